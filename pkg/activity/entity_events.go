package activity

import (
	"strings"
	"time"
)

// Verbs emitted for entity lifecycle changes.
const (
	VerbRecordLoaded    = "record.loaded"
	VerbRecordSaved     = "record.saved"
	VerbRecordDeleted   = "record.deleted"
	VerbRecordDestroyed = "record.destroyed"
	VerbStoreLoaded     = "store.loaded"
	VerbStoreSaved      = "store.saved"
	VerbStoreDeleted    = "store.deleted"
)

// EntityEventInput describes the common fields for entity lifecycle events.
type EntityEventInput struct {
	Actor
	Channel  string
	Metadata map[string]any
	// ModelType is the entity type; ID the record id in key form.
	ModelType string
	ID        string
	StoreID   string
	// Fields lists the fields a save sent.
	Fields []string
	// IDs lists the ids a store operation touched.
	IDs        []string
	Count      int
	OccurredAt time.Time
}

// BuildRecordLoadedEvent constructs the event for a record load.
func BuildRecordLoadedEvent(input EntityEventInput) Event {
	return buildRecordEvent(VerbRecordLoaded, input)
}

// BuildRecordSavedEvent constructs the event for a record save or create.
func BuildRecordSavedEvent(input EntityEventInput) Event {
	return buildRecordEvent(VerbRecordSaved, input)
}

// BuildRecordDeletedEvent constructs the event for a remote record delete.
func BuildRecordDeletedEvent(input EntityEventInput) Event {
	return buildRecordEvent(VerbRecordDeleted, input)
}

// BuildRecordDestroyedEvent constructs the event for a local record teardown.
func BuildRecordDestroyedEvent(input EntityEventInput) Event {
	return buildRecordEvent(VerbRecordDestroyed, input)
}

// BuildStoreLoadedEvent constructs the event for a store page load.
func BuildStoreLoadedEvent(input EntityEventInput) Event {
	return buildStoreEvent(VerbStoreLoaded, input)
}

// BuildStoreSavedEvent constructs the event for a bulk save.
func BuildStoreSavedEvent(input EntityEventInput) Event {
	return buildStoreEvent(VerbStoreSaved, input)
}

// BuildStoreDeletedEvent constructs the event for a bulk delete.
func BuildStoreDeletedEvent(input EntityEventInput) Event {
	return buildStoreEvent(VerbStoreDeleted, input)
}

func buildRecordEvent(verb string, input EntityEventInput) Event {
	metadata := baseMetadata(input)
	if input.StoreID != "" {
		metadata = ensureMetadata(metadata)
		metadata["store_id"] = input.StoreID
	}
	objectType := strings.TrimSpace(input.ModelType)
	if objectType == "" {
		objectType = "record"
	}
	return newEvent(verb, objectType, strings.TrimSpace(input.ID), metadata, input)
}

func buildStoreEvent(verb string, input EntityEventInput) Event {
	metadata := baseMetadata(input)
	if input.ModelType != "" {
		metadata = ensureMetadata(metadata)
		metadata["model_type"] = input.ModelType
	}
	metadata = ensureMetadata(metadata)
	metadata["count"] = input.Count
	return newEvent(verb, "store", strings.TrimSpace(input.StoreID), metadata, input)
}

func baseMetadata(input EntityEventInput) map[string]any {
	metadata := cloneMap(input.Metadata)
	if len(input.Fields) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["fields"] = append([]string{}, input.Fields...)
	}
	if len(input.IDs) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["ids"] = append([]string{}, input.IDs...)
	}
	return metadata
}

func newEvent(verb, objectType, objectID string, metadata map[string]any, input EntityEventInput) Event {
	return Event{
		Verb: verb,
		Actor: Actor{
			ActorID:  strings.TrimSpace(input.ActorID),
			UserID:   strings.TrimSpace(input.UserID),
			TenantID: strings.TrimSpace(input.TenantID),
		},
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
