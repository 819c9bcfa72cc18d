package entity

import (
	"context"
	"slices"
	"sort"

	"github.com/goliatone/go-entity/future"
	"github.com/goliatone/go-entity/observable"
	"github.com/goliatone/go-entity/pkg/activity"
)

// Record is one synchronized entity instance. Data always holds app-state
// values produced by the model's RestoreField. A Record is not safe for
// concurrent use.
//
// Events, all fired with the record as first argument:
//
//	change, change-<key>        (rec, key, value, prev)
//	dirtychange                 (rec, dirty)
//	beforeload, load            (rec)
//	beforesave, save            (rec)
//	beforedelete, delete        (rec)
//	failedload, failedsave,
//	faileddelete                (rec, err)
//	reset, beforedestroy,
//	destroy                     (rec)
//
// A before* or beforedestroy listener returning false cancels the operation.
type Record struct {
	model  *Model
	events *observable.Observable

	id       any
	data     map[string]any
	orig     map[string]any
	modified map[string]bool

	dirty      bool
	loaded     bool
	destroyed  bool
	standalone bool
	stores     []string
}

// RecordOption configures NewRecord.
type RecordOption func(*recordOptions)

type recordOptions struct {
	id         any
	data       map[string]any
	autoLoad   bool
	standalone bool
	ctx        context.Context
}

// WithID sets the record id.
func WithID(id any) RecordOption {
	return func(opts *recordOptions) {
		opts.id = id
	}
}

// WithData imports data as the record's loaded state.
func WithData(data map[string]any) RecordOption {
	return func(opts *recordOptions) {
		opts.data = data
	}
}

// WithAutoLoad toggles loading a record built with an id and no data.
// Enabled by default.
func WithAutoLoad(enabled bool) RecordOption {
	return func(opts *recordOptions) {
		opts.autoLoad = enabled
	}
}

// WithStandalone marks whether the application owns the record. A record
// that is not standalone is destroyed when its last store detaches it.
func WithStandalone(standalone bool) RecordOption {
	return func(opts *recordOptions) {
		opts.standalone = standalone
	}
}

// WithLoadContext sets the context of the automatic load.
func WithLoadContext(ctx context.Context) RecordOption {
	return func(opts *recordOptions) {
		opts.ctx = ctx
	}
}

// NewRecord builds a record of model. Typed records with an id enter the
// identity cache. When an automatic load cannot be issued the record is
// still returned together with the error.
func NewRecord(model *Model, opts ...RecordOption) (*Record, error) {
	if model == nil {
		return nil, ErrUnknownModel
	}
	options := recordOptions{autoLoad: true, standalone: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	rec := &Record{
		model:      model,
		events:     observable.New(),
		id:         options.id,
		data:       map[string]any{},
		orig:       map[string]any{},
		modified:   map[string]bool{},
		standalone: options.standalone,
	}

	var err error
	if options.data != nil {
		rec.ImportData(options.data)
	} else if options.autoLoad && hasID(options.id) {
		_, err = rec.Load(options.ctx)
	}
	model.registry.AddToCache(rec)
	return rec, err
}

// NewRecord builds a record of the shared model typ.
func (r *Registry) NewRecord(typ string, opts ...RecordOption) (*Record, error) {
	model, err := r.Model(typ)
	if err != nil {
		return nil, err
	}
	return NewRecord(model, opts...)
}

func (r *Record) ID() any {
	return r.id
}

// SetID assigns id when the record has none yet.
func (r *Record) SetID(id any) {
	if hasID(r.id) || !hasID(id) {
		return
	}
	r.id = id
	if !r.destroyed {
		r.model.registry.AddToCache(r)
	}
}

func (r *Record) Model() *Model {
	return r.model
}

// Get returns the app-state value of key.
func (r *Record) Get(key string) any {
	return r.data[key]
}

// GetData returns a copy of the named fields, or of all fields.
func (r *Record) GetData(keys ...string) map[string]any {
	if len(keys) == 0 {
		return cloneData(r.data)
	}
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = r.data[key]
	}
	return out
}

// Changed returns the modified field names in name order.
func (r *Record) Changed() []string {
	keys := make([]string, 0, len(r.modified))
	for key := range r.modified {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *Record) IsChanged(key string) bool {
	return r.modified[key]
}

func (r *Record) IsDirty() bool {
	return r.dirty
}

func (r *Record) IsLoaded() bool {
	return r.loaded
}

func (r *Record) IsStandalone() bool {
	return r.standalone
}

func (r *Record) IsDestroyed() bool {
	return r.destroyed
}

// Stores returns the ids of the stores holding the record.
func (r *Record) Stores() []string {
	return slices.Clone(r.stores)
}

// Set restores value through the model and stores it under key. Equal values
// are ignored; anything else marks the record dirty and fires change then
// change-<key>. It reports whether the value changed.
func (r *Record) Set(key string, value any) bool {
	if r.destroyed {
		return false
	}
	prev, had := r.data[key]
	value = r.model.RestoreField(r, key, value)
	if had && valuesEqual(prev, value) || !had && value == nil {
		return false
	}
	r.data[key] = value
	r.modified[key] = true
	r.SetDirty(true)
	r.events.Trigger("change", r, key, value, prev)
	r.events.Trigger("change-"+key, r, key, value, prev)
	return true
}

// SetDirty updates the dirty flag, firing dirtychange when it flips.
func (r *Record) SetDirty(dirty bool) {
	if r.dirty == dirty {
		return
	}
	r.dirty = dirty
	r.events.Trigger("dirtychange", r, dirty)
}

// ImportData replaces the record's data with the restored form of data and
// makes it the new clean state. A nil map keeps the current data.
func (r *Record) ImportData(data map[string]any) {
	if r.destroyed {
		return
	}
	if data != nil {
		r.data = r.model.RestoreData(r, data)
	}
	r.orig = cloneData(r.data)
	r.modified = map[string]bool{}
	r.loaded = true
	r.SetDirty(false)
}

// StoreData converts app-state data into its wire form.
func (r *Record) StoreData(data map[string]any) map[string]any {
	return r.model.StoreData(r, data)
}

// Revert restores the state of the last import. Clean records are left alone.
func (r *Record) Revert() {
	if !r.dirty {
		return
	}
	r.data = cloneData(r.orig)
	r.modified = map[string]bool{}
	r.SetDirty(false)
}

// Reset forgets id, data and load state.
func (r *Record) Reset() {
	if r.destroyed {
		return
	}
	if hasID(r.id) {
		r.model.registry.removeRecord(r, r.model.Type(), r.id)
	}
	r.id = nil
	r.data = map[string]any{}
	r.orig = map[string]any{}
	r.modified = map[string]bool{}
	r.loaded = false
	r.dirty = false
	r.events.Trigger("reset", r)
}

// Load fetches the record by id and imports the response.
func (r *Record) Load(ctx context.Context) (*future.Future[Result], error) {
	if r.destroyed {
		return nil, ErrRecordDestroyed
	}
	if observable.Cancelled(r.events.Trigger("beforeload", r)) {
		return nil, ErrCancelled
	}
	f, err := r.model.LoadRecord(ctx, r.id)
	if err != nil {
		return nil, err
	}
	f.Done(func(res Result) {
		if r.destroyed {
			return
		}
		r.SetID(res.ID)
		r.ImportData(res.Map())
		r.events.Trigger("load", r)
		r.emit(ctx, activity.BuildRecordLoadedEvent)
	})
	f.Fail(func(err error) {
		if !r.destroyed {
			r.events.Trigger("failedload", r, err)
		}
	})
	return f, nil
}

// Save sends keys (every field when empty) plus extra. Records without an id
// are created.
func (r *Record) Save(ctx context.Context, keys []string, extra map[string]any) (*future.Future[Result], error) {
	if r.destroyed {
		return nil, ErrRecordDestroyed
	}
	if observable.Cancelled(r.events.Trigger("beforesave", r)) {
		return nil, ErrCancelled
	}
	changed := r.Changed()
	f, err := r.model.SaveRecord(ctx, r, keys, extra)
	if err != nil {
		return nil, err
	}
	f.Done(func(res Result) {
		if r.destroyed {
			return
		}
		r.SetID(res.ID)
		r.ImportData(res.Map())
		r.events.Trigger("save", r)
		r.emit(ctx, func(input activity.EntityEventInput) activity.Event {
			input.Fields = changed
			return activity.BuildRecordSavedEvent(input)
		})
	})
	f.Fail(func(err error) {
		if !r.destroyed {
			r.events.Trigger("failedsave", r, err)
		}
	})
	return f, nil
}

// Delete removes the record remotely and destroys it on success. A failed
// delete leaves the record intact.
func (r *Record) Delete(ctx context.Context) (*future.Future[Result], error) {
	if r.destroyed {
		return nil, ErrRecordDestroyed
	}
	if observable.Cancelled(r.events.Trigger("beforedelete", r)) {
		return nil, ErrCancelled
	}
	f, err := r.model.DeleteRecord(ctx, r)
	if err != nil {
		return nil, err
	}
	f.Done(func(Result) {
		if r.destroyed {
			return
		}
		r.events.Trigger("delete", r)
		r.emit(ctx, activity.BuildRecordDeletedEvent)
		r.destroy(ctx)
	})
	f.Fail(func(err error) {
		if !r.destroyed {
			r.events.Trigger("faileddelete", r, err)
		}
	})
	return f, nil
}

// AttachStore records that the store with id holds the record.
func (r *Record) AttachStore(id string) {
	if r.destroyed || slices.Contains(r.stores, id) {
		return
	}
	r.stores = append(r.stores, id)
}

// DetachStore forgets the store with id. A record that is not standalone is
// destroyed once no store holds it.
func (r *Record) DetachStore(id string) {
	if r.destroyed {
		return
	}
	idx := slices.Index(r.stores, id)
	if idx == -1 {
		return
	}
	r.stores = slices.Delete(r.stores, idx, idx+1)
	if len(r.stores) == 0 && !r.standalone {
		r.Destroy()
	}
}

// Destroy fires destroy, drops the record from the identity cache and
// releases its state. It reports false when the record was already destroyed
// or a beforedestroy listener vetoed it.
func (r *Record) Destroy() bool {
	return r.destroy(context.Background())
}

func (r *Record) destroy(ctx context.Context) bool {
	if r.destroyed {
		return false
	}
	if observable.Cancelled(r.events.Trigger("beforedestroy", r)) {
		return false
	}
	r.destroyed = true
	r.events.Trigger("destroy", r)
	r.emit(ctx, activity.BuildRecordDestroyedEvent)
	if hasID(r.id) {
		r.model.registry.removeRecord(r, r.model.Type(), r.id)
	}
	r.data = map[string]any{}
	r.orig = map[string]any{}
	r.modified = map[string]bool{}
	r.stores = nil
	r.events.Destroy()
	return true
}

// On subscribes fn to the record event name.
func (r *Record) On(name string, fn observable.Listener, scope any, options ...observable.ListenerOptions) int {
	return r.events.On(name, fn, scope, options...)
}

// Once subscribes fn for a single delivery.
func (r *Record) Once(name string, fn observable.Listener, scope any, options ...observable.ListenerOptions) int {
	return r.events.Once(name, fn, scope, options...)
}

// Un removes the subscription identified by scope or fn.
func (r *Record) Un(name string, fn observable.Listener, scope any) bool {
	return r.events.Un(name, fn, scope)
}

// Events exposes the record's observable.
func (r *Record) Events() *observable.Observable {
	return r.events
}

func (r *Record) emit(ctx context.Context, build func(activity.EntityEventInput) activity.Event) {
	key, _ := KeyOf(r.id)
	r.model.registry.emit(ctx, build(activity.EntityEventInput{
		ModelType: r.model.Type(),
		ID:        key,
	}))
}
