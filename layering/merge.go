// Package layering merges request parameter layers. Layers are ordered from
// strongest to weakest: a key present in a stronger layer wins, nested maps
// are merged key by key, and every value in the result is a deep copy so
// callers can mutate it without touching configuration.
package layering

import "reflect"

// MergeParams composes layers ordered strongest first. Nil layers are
// skipped. The result is never nil.
func MergeParams(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		if layer == nil {
			continue
		}
		mergeInto(merged, layer)
	}
	return merged
}

// Overlay applies a single strong layer on top of base and returns base.
func Overlay(base, strong map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	mergeInto(base, strong)
	return base
}

func mergeInto(dst, strong map[string]any) {
	for key, value := range strong {
		nested, isMap := value.(map[string]any)
		existing, hasMap := dst[key].(map[string]any)
		if isMap && hasMap {
			merged := CloneParams(existing)
			mergeInto(merged, nested)
			dst[key] = merged
			continue
		}
		dst[key] = Clone(value)
	}
}

// CloneParams deep copies a parameter map. Nil stays nil.
func CloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		out[key] = Clone(value)
	}
	return out
}

// Clone deep copies maps and slices reachable from value. Pointers, funcs and
// channels are shared.
func Clone[T any](value T) T {
	rv := reflect.ValueOf(&value).Elem()
	cloned := cloneValue(rv)
	if !cloned.IsValid() {
		return value
	}
	out := reflect.New(rv.Type()).Elem()
	out.Set(cloned)
	if typed, ok := out.Interface().(T); ok {
		return typed
	}
	return value
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return v
	}
}
