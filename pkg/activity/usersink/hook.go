// Package usersink forwards entity activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-entity/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts entity activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify logs event as an ActivityRecord. Ids the event leaves blank come
// from the actor on ctx, and an unparsable actor id falls back to the user.
// Record events also carry their entity type in Data.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = event.Normalize()
	if !event.Complete() {
		return nil
	}
	if actor, ok := activity.ActorFromContext(ctx); ok {
		event.Actor = event.Actor.Or(actor)
	}
	return h.Sink.Log(ctx, toRecord(event))
}

func toRecord(event activity.Event) usertypes.ActivityRecord {
	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       event.Metadata,
		OccurredAt: event.OccurredAt,
	}
	if record.ActorID == uuid.Nil {
		record.ActorID = record.UserID
	}
	if strings.HasPrefix(event.Verb, "record.") {
		if record.Data == nil {
			record.Data = map[string]any{}
		}
		record.Data["entity_type"] = event.ObjectType
	}
	return record
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
