package entity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a helper callable from filter expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the functions expressions can call. Names are
// case-insensitive and stored lowercase.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// EntityFunctions returns a registry preloaded with the conversions model
// fields apply on restore, so expressions can coerce raw wire values:
//
//	to_int(v)          leading integer of v, or nil
//	to_float(v)        leading number of v, or nil
//	to_bool(v)         "0", "no", "off", "false" and "null" are false
//	to_date(v, layout) time.Time; layout may be "timestamp" or omitted
//	id_key(v)          the identity key records and stores index v under
func EntityFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	coercions := map[string]Field{
		"to_int":   F(FieldInt),
		"to_float": F(FieldDouble),
		"to_bool":  F(FieldBool),
	}
	for name, field := range coercions {
		_ = r.Register(name, func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
			}
			return field.codec().restore(field, args[0]), nil
		})
	}
	_ = r.Register("to_date", func(args ...any) (any, error) {
		if len(args) == 0 || len(args) > 2 {
			return nil, fmt.Errorf("expects 1 or 2 arguments, got %d", len(args))
		}
		field := F(FieldDate)
		if len(args) == 2 {
			field.Format = fmt.Sprint(args[1])
		}
		return field.codec().restore(field, args[0]), nil
	})
	_ = r.Register("id_key", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		key, ok := KeyOf(args[0])
		if !ok {
			return nil, nil
		}
		return key, nil
	})
	return r
}

// Register stores fn under name. Names already taken are rejected.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("entity: function %q is nil", name)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("entity: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("entity: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Merge returns a new registry holding the functions of r and others. Later
// registries win on name clashes.
func (r *FunctionRegistry) Merge(others ...*FunctionRegistry) *FunctionRegistry {
	merged := r.Clone()
	if merged == nil {
		merged = NewFunctionRegistry()
	}
	for _, other := range others {
		if other == nil {
			continue
		}
		other.mu.RLock()
		for name, fn := range other.functions {
			merged.functions[name] = fn
		}
		other.mu.RUnlock()
	}
	return merged
}

// Clone returns a shallow copy, so evaluators are unaffected by later
// registrations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call runs the function registered for name. Its errors are prefixed with
// the function name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("entity: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("entity: function %q not registered", name)
	}
	out, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("entity: %s: %w", name, err)
	}
	return out, nil
}

// Names returns the registered names in order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
