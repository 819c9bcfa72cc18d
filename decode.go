package entity

import (
	"github.com/goliatone/go-entity/internal/hydrate"
)

// DecodeOption configures Decode and DecodeItems.
type DecodeOption[T any] = hydrate.Option[T]

// DecodeError reports which entity failed to decode and at which step.
type DecodeError = hydrate.Error

// DecodeStrict rejects data fields T does not declare.
func DecodeStrict[T any]() DecodeOption[T] {
	return hydrate.WithStrict[T]()
}

// DecodeUseNumber decodes untyped numbers as json.Number.
func DecodeUseNumber[T any]() DecodeOption[T] {
	return hydrate.WithUseNumber[T]()
}

// DecodePreHook rewrites a copy of the data before it is decoded. Date fields
// still hold time.Time values at this point.
func DecodePreHook[T any](fn func(modelType, id string, data map[string]any) (map[string]any, error)) DecodeOption[T] {
	return hydrate.WithPreHook[T](func(ref hydrate.Ref, data map[string]any) (map[string]any, error) {
		return fn(ref.Type, ref.ID, data)
	})
}

// DecodePostHook adjusts or validates the decoded value.
func DecodePostHook[T any](fn func(modelType, id string, out *T) error) DecodeOption[T] {
	return hydrate.WithPostHook[T](func(ref hydrate.Ref, out *T) error {
		return fn(ref.Type, ref.ID, out)
	})
}

// Decode converts the record's data into T through its JSON form. Date
// fields decode into time.Time.
func Decode[T any](rec *Record, opts ...DecodeOption[T]) (T, error) {
	var zero T
	if rec == nil || rec.IsDestroyed() {
		return zero, ErrRecordDestroyed
	}
	key, _ := KeyOf(rec.ID())
	return hydrate.NewDecoder(opts...).Decode(hydrate.Source{
		Ref:  hydrate.Ref{Type: rec.Model().Type(), ID: key},
		Data: rec.GetData(),
	})
}

// DecodeItems decodes every visible item of store into T, in order. Items
// that are neither records nor maps are skipped. A failure is a
// *DecodeError whose Index counts decoded items.
func DecodeItems[T any](store *Store, opts ...DecodeOption[T]) ([]T, error) {
	sources := make([]hydrate.Source, 0, store.Len())
	store.Each(func(item any, _ int) bool {
		var data map[string]any
		switch v := item.(type) {
		case *Record:
			data = v.GetData()
		case map[string]any:
			data = v
		default:
			return true
		}
		key, _ := KeyOf(store.RecordID(item))
		sources = append(sources, hydrate.Source{
			Ref:  hydrate.Ref{Type: store.Model().Type(), ID: key},
			Data: data,
		})
		return true
	})
	return hydrate.NewDecoder(opts...).DecodeAll(sources)
}
