package activity

import (
	"context"
	"strings"
)

// Config controls activity emission defaults supplied by DI/config.
type Config struct {
	Enabled bool
	Channel string
	// Verbs restricts emission to verbs with one of these prefixes, for
	// example "record." or "store.saved". Empty allows every verb.
	Verbs []string
}

// Emitter stamps entity events with a channel and the context actor before
// handing them to its hooks.
type Emitter struct {
	hooks   Hooks
	channel string
	verbs   []string
}

// NewEmitter constructs an emitter. A disabled config or an empty hook list
// yields an emitter that drops everything.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	e := &Emitter{channel: strings.TrimSpace(cfg.Channel)}
	if e.channel == "" {
		e.channel = "entity"
	}
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb != "" {
			e.verbs = append(e.verbs, verb)
		}
	}
	if !cfg.Enabled {
		return e
	}
	for _, hook := range hooks {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
	return e
}

// Enabled reports whether emissions should be attempted. A nil emitter is
// disabled.
func (e *Emitter) Enabled() bool {
	return e != nil && e.hooks.Enabled()
}

// Allows reports whether verb passes the emitter's verb filter.
func (e *Emitter) Allows(verb string) bool {
	if e == nil {
		return false
	}
	return len(e.verbs) == 0 || hasAnyPrefix(verb, e.verbs)
}

// Emit forwards event to the hooks. The default channel and the actor on ctx
// fill what the event leaves blank.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() || !e.Allows(strings.TrimSpace(event.Verb)) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if actor, ok := ActorFromContext(ctx); ok {
		event.Actor = event.Actor.Or(actor)
	}
	return e.hooks.Notify(ctx, event)
}
