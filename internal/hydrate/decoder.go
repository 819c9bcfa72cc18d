// Package hydrate turns entity data maps into typed Go values through their
// JSON form.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref identifies the entity a data map belongs to.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) String() string {
	if r.ID == "" {
		return r.Type
	}
	return r.Type + "/" + r.ID
}

// Source is one data map to decode.
type Source struct {
	Ref
	Data map[string]any
}

// Stage names the decoding step that failed.
type Stage string

const (
	StagePreHook  Stage = "pre-hook"
	StageEncode   Stage = "encode"
	StageDecode   Stage = "decode"
	StagePostHook Stage = "post-hook"
)

// Error reports a failed decode. Index is the position in a DecodeAll batch,
// or -1 for a single Decode.
type Error struct {
	Ref   Ref
	Stage Stage
	Index int
	Err   error
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("hydrate: %s %q (item %d): %v", e.Stage, e.Ref.String(), e.Index, e.Err)
	}
	return fmt.Sprintf("hydrate: %s %q: %v", e.Stage, e.Ref.String(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PreHook rewrites a private copy of the data before it is decoded.
type PreHook func(Ref, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Ref, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder converts entity data maps into values of T.
type Decoder[T any] struct {
	pre       []PreHook
	post      []PostHook[T]
	strict    bool
	useNumber bool
}

func WithPreHook[T any](hook PreHook) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithStrict rejects data keys T does not declare.
func WithStrict[T any]() Option[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithUseNumber decodes numbers into untyped targets as json.Number.
func WithUseNumber[T any]() Option[T] {
	return func(d *Decoder[T]) {
		d.useNumber = true
	}
}

func NewDecoder[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts src.Data into T. The caller's map is never modified.
func (d *Decoder[T]) Decode(src Source) (T, error) {
	out, err := d.decode(src)
	if err != nil {
		err.Index = -1
		var zero T
		return zero, err
	}
	return out, nil
}

// DecodeAll decodes every source in order and stops at the first failure.
func (d *Decoder[T]) DecodeAll(sources []Source) ([]T, error) {
	out := make([]T, 0, len(sources))
	for i, src := range sources {
		value, err := d.decode(src)
		if err != nil {
			err.Index = i
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func (d *Decoder[T]) decode(src Source) (T, *Error) {
	var result T
	fail := func(stage Stage, err error) (T, *Error) {
		var zero T
		return zero, &Error{Ref: src.Ref, Stage: stage, Err: err}
	}
	if src.Data == nil {
		return fail(StageDecode, fmt.Errorf("data is nil"))
	}

	data := copyMap(src.Data)
	for _, hook := range d.pre {
		next, err := hook(src.Ref, data)
		if err != nil {
			return fail(StagePreHook, err)
		}
		if next != nil {
			data = next
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fail(StageEncode, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if d.useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(&result); err != nil {
		return fail(StageDecode, err)
	}

	for _, hook := range d.post {
		if err := hook(src.Ref, &result); err != nil {
			return fail(StagePostHook, err)
		}
	}
	return result, nil
}

// copyMap copies nested maps and slices; leaf values such as time.Time are
// shared.
func copyMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}
