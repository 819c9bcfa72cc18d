package entity

import (
	"context"
	"fmt"
	"strings"
)

// Scope selects which profile of a Model a request uses.
type Scope string

const (
	ScopeRecord Scope = "record"
	ScopeStore  Scope = "store"
)

// Action names a CRUD operation.
type Action string

const (
	ActionLoad   Action = "load"
	ActionSave   Action = "save"
	ActionDelete Action = "delete"
	ActionCreate Action = "create"
)

// Handler is a function endpoint. It receives the built request in place of
// a transport round trip and returns the raw response.
type Handler func(ctx context.Context, req Request) (any, error)

// Endpoint configures one request target. Unset fields fall through to the
// enclosing profile and then to the model-wide defaults.
type Endpoint struct {
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Handler Handler           `yaml:"-" json:"-"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	ID      string            `yaml:"id,omitempty" json:"id,omitempty"`
	Data    string            `yaml:"data,omitempty" json:"data,omitempty"`
	Success string            `yaml:"success,omitempty" json:"success,omitempty"`
	Total   string            `yaml:"total,omitempty" json:"total,omitempty"`
	Start   string            `yaml:"start,omitempty" json:"start,omitempty"`
	Limit   string            `yaml:"limit,omitempty" json:"limit,omitempty"`
	JSON    *bool             `yaml:"json,omitempty" json:"json,omitempty"`
	Extra   map[string]any    `yaml:"extra,omitempty" json:"extra,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Bool returns a pointer to v, for Endpoint.JSON.
func Bool(v bool) *bool {
	return &v
}

// Profile groups the endpoints used by one Scope.
type Profile struct {
	Endpoint `yaml:",inline"`

	Actions map[Action]Endpoint `yaml:"actions,omitempty" json:"actions,omitempty"`
}

func (p Profile) action(action Action) (Endpoint, bool) {
	ep, ok := p.Actions[action]
	return ep, ok
}

// ModelConfig declares an entity type.
type ModelConfig struct {
	// Type names the entity type. An empty Type makes the model plain: store
	// items stay raw maps and records are never cached.
	Type     string           `yaml:"type,omitempty" json:"type,omitempty"`
	Fields   map[string]Field `yaml:"fields,omitempty" json:"fields,omitempty"`
	Defaults Endpoint         `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Record   Profile          `yaml:"record,omitempty" json:"record,omitempty"`
	Store    Profile          `yaml:"store,omitempty" json:"store,omitempty"`

	// OnRestore and OnStore run for every field after its own codec.
	OnRestore FieldHook `yaml:"-" json:"-"`
	OnStore   FieldHook `yaml:"-" json:"-"`
}

// Validate checks field and action names.
func (c ModelConfig) Validate() error {
	for name := range c.Fields {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("entity: model %q: empty field name", c.Type)
		}
	}
	for _, profile := range []struct {
		scope Scope
		p     Profile
	}{{ScopeRecord, c.Record}, {ScopeStore, c.Store}} {
		for action := range profile.p.Actions {
			switch action {
			case ActionLoad, ActionSave, ActionDelete, ActionCreate:
			default:
				return fmt.Errorf("entity: model %q: unknown %s action %q", c.Type, profile.scope, action)
			}
		}
	}
	return nil
}

// WithFieldHooks returns a copy of c with restore and store hooks attached to
// the named field. Hooks cannot be declared in YAML.
func (c ModelConfig) WithFieldHooks(name string, restore, store FieldHook) ModelConfig {
	fields := make(map[string]Field, len(c.Fields)+1)
	for key, field := range c.Fields {
		fields[key] = field
	}
	field := fields[name]
	if restore != nil {
		field.Restore = restore
	}
	if store != nil {
		field.Store = store
	}
	fields[name] = field
	c.Fields = fields
	return c
}

// WithHandler returns a copy of c routing scope/action to handler.
func (c ModelConfig) WithHandler(scope Scope, action Action, handler Handler) ModelConfig {
	profile := c.profile(scope)
	actions := make(map[Action]Endpoint, len(profile.Actions)+1)
	for key, ep := range profile.Actions {
		actions[key] = ep
	}
	ep := actions[action]
	ep.Handler = handler
	actions[action] = ep
	profile.Actions = actions
	if scope == ScopeStore {
		c.Store = profile
	} else {
		c.Record = profile
	}
	return c
}

func (c ModelConfig) profile(scope Scope) Profile {
	if scope == ScopeStore {
		return c.Store
	}
	return c.Record
}
