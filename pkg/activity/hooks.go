package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Event describes an entity lifecycle occurrence. ObjectType is the entity
// type, or "store" for collection events, and ObjectID the entity or store id
// in key form. The embedded Actor carries identity as plain strings.
type Event struct {
	Verb string
	Actor
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Complete reports whether the event names a verb and an object. Hooks drop
// incomplete events.
func (e Event) Complete() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Normalize returns a copy with trimmed identifiers, a lowercase verb, its
// own metadata map and a timestamp.
func (e Event) Normalize() Event {
	out := Event{
		Verb: strings.ToLower(strings.TrimSpace(e.Verb)),
		Actor: Actor{
			ActorID:  strings.TrimSpace(e.ActorID),
			UserID:   strings.TrimSpace(e.UserID),
			TenantID: strings.TrimSpace(e.TenantID),
		},
		ObjectType: strings.TrimSpace(e.ObjectType),
		ObjectID:   strings.TrimSpace(e.ObjectID),
		Channel:    strings.TrimSpace(e.Channel),
		Metadata:   cloneMap(e.Metadata),
		OccurredAt: e.OccurredAt,
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Only wraps hook so it sees just the verbs starting with one of prefixes.
func Only(hook ActivityHook, prefixes ...string) ActivityHook {
	return filtered(hook, func(verb string) bool { return hasAnyPrefix(verb, prefixes) })
}

// Except wraps hook so it never sees verbs starting with one of prefixes.
func Except(hook ActivityHook, prefixes ...string) ActivityHook {
	return filtered(hook, func(verb string) bool { return !hasAnyPrefix(verb, prefixes) })
}

func filtered(hook ActivityHook, keep func(verb string) bool) ActivityHook {
	if hook == nil {
		return nil
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if !keep(strings.TrimSpace(event.Verb)) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

func hasAnyPrefix(verb string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(verb, prefix) {
			return true
		}
	}
	return false
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and forwards it to every hook. Incomplete events
// are dropped. A failing hook does not stop the others; their errors are
// joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = event.Normalize()
	if !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
