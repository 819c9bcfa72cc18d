package entity

import (
	"encoding/json"
)

// PropTrace records how an endpoint property resolved across the levels
// Prop consults, strongest first.
type PropTrace struct {
	Scope  Scope       `json:"scope"`
	Action Action      `json:"action"`
	Prop   string      `json:"prop"`
	Layers []PropLayer `json:"layers"`
}

// PropLayer is one level of a PropTrace: "action", "profile" or "defaults".
type PropLayer struct {
	Level string `json:"level"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// Value returns the effective value, the first layer that has one.
func (t PropTrace) Value() (any, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer.Value, true
		}
	}
	return nil, false
}

// ToJSON serialises the trace for logging. Handler values are omitted.
func (t PropTrace) ToJSON() ([]byte, error) {
	type alias PropTrace
	out := alias(t)
	out.Layers = make([]PropLayer, len(t.Layers))
	for i, layer := range t.Layers {
		if _, ok := layer.Value.(Handler); ok {
			layer.Value = "<handler>"
		}
		out.Layers[i] = layer
	}
	return json.Marshal(out)
}

// TraceProp reports every level Prop would consult for scope/action/prop.
// The action level is absent when the profile declares no such action.
func (m *Model) TraceProp(scope Scope, action Action, prop string) PropTrace {
	trace := PropTrace{Scope: scope, Action: action, Prop: prop}
	profile := m.cfg.profile(scope)
	if ep, ok := profile.action(action); ok {
		value, found := ep.prop(prop)
		trace.Layers = append(trace.Layers, PropLayer{Level: "action", Value: value, Found: found})
	}
	value, found := profile.Endpoint.prop(prop)
	trace.Layers = append(trace.Layers, PropLayer{Level: "profile", Value: value, Found: found})
	value, found = m.cfg.Defaults.prop(prop)
	trace.Layers = append(trace.Layers, PropLayer{Level: "defaults", Value: value, Found: found})
	return trace
}
