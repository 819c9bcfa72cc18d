package entity

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/goliatone/go-entity/observable"
)

// Store is an ordered, id-indexed collection of records, or of raw maps when
// its model is plain. Items, keys and the id index always have the same
// length. A Store is not safe for concurrent use.
//
// Events:
//
//	add                  (index, items []any)
//	remove               (item, id)
//	replace              (id, old, item)
//	clear                (items []any)
//	update               (store, rec)       a held record changed or flipped dirty
//	beforeload, load     (store)
//	failedload           (store, err)
//	beforesave           (store, data map[string]any)
//	save                 (store)
//	failedsave           (store, err)
//	beforedelete, delete (store, ids []any)
//	faileddelete         (store, ids []any, err)
//	beforefilter, filter, beforeclearfilter, clearfilter (store)
//	beforedestroy, destroy (store)
//
// before* listeners returning false cancel the operation.
type Store struct {
	id       string
	registry *Registry
	model    *Model
	events   *observable.Observable

	autoLoad    bool
	clearOnLoad bool
	local       bool
	loaded      bool
	loading     bool
	destroyed   bool
	extraParams map[string]any

	items []any
	keys  []any
	index map[string]any

	totalLength int
	start       int
	pageSize    int

	filtered     bool
	filterBackup *storeSnapshot
	filterFn     FilterFunc
	filterParams any
}

type storeSnapshot struct {
	items []any
	keys  []any
	index map[string]any
}

// StoreOption configures NewStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	id          string
	url         string
	pageSize    int
	start       int
	extraParams map[string]any
	autoLoad    bool
	local       bool
	clearOnLoad bool
	initialData any
	ctx         context.Context
}

// WithStoreID sets the store id token. Defaults to a generated id.
func WithStoreID(id string) StoreOption {
	return func(opts *storeOptions) {
		opts.id = id
	}
}

// WithPageSize enables pagination with n items per page.
func WithPageSize(n int) StoreOption {
	return func(opts *storeOptions) {
		opts.pageSize = n
	}
}

// WithStart sets the initial pagination cursor.
func WithStart(start int) StoreOption {
	return func(opts *storeOptions) {
		opts.start = start
	}
}

// WithExtraParams sets parameters sent with every load.
func WithExtraParams(params map[string]any) StoreOption {
	return func(opts *storeOptions) {
		opts.extraParams = params
	}
}

// WithStoreAutoLoad loads the store right after construction.
func WithStoreAutoLoad(enabled bool) StoreOption {
	return func(opts *storeOptions) {
		opts.autoLoad = enabled
	}
}

// WithLocal makes the store local: remote operations return ErrLocalStore.
func WithLocal(local bool) StoreOption {
	return func(opts *storeOptions) {
		opts.local = local
	}
}

// WithClearOnLoad controls whether a non-appending load replaces the
// current items. Enabled by default.
func WithClearOnLoad(enabled bool) StoreOption {
	return func(opts *storeOptions) {
		opts.clearOnLoad = enabled
	}
}

// WithInitialData seeds the store: a slice goes through LoadArray, anything
// else through LoadResponse.
func WithInitialData(data any) StoreOption {
	return func(opts *storeOptions) {
		opts.initialData = data
	}
}

// WithURL points the store's load action at url without touching the shared
// model.
func WithURL(url string) StoreOption {
	return func(opts *storeOptions) {
		opts.url = url
	}
}

// WithStoreContext sets the context of the automatic load.
func WithStoreContext(ctx context.Context) StoreOption {
	return func(opts *storeOptions) {
		opts.ctx = ctx
	}
}

// NewStore builds a store over model and registers it. A nil model makes a
// plain store.
func (r *Registry) NewStore(model *Model, opts ...StoreOption) (*Store, error) {
	options := storeOptions{clearOnLoad: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var err error
	if model == nil {
		if model, err = r.NewModel(ModelConfig{}); err != nil {
			return nil, err
		}
	}
	if options.url != "" {
		cfg := model.Config()
		actions := make(map[Action]Endpoint, len(cfg.Store.Actions)+1)
		for action, ep := range cfg.Store.Actions {
			actions[action] = ep
		}
		ep := actions[ActionLoad]
		ep.URL = options.url
		ep.Handler = nil
		actions[ActionLoad] = ep
		cfg.Store.Actions = actions
		if model, err = r.NewModel(cfg, WithModelTransport(model.transport)); err != nil {
			return nil, err
		}
	}

	id := options.id
	if id == "" {
		id = r.cfg.newID()
	}
	s := &Store{
		id:          id,
		registry:    r,
		model:       model,
		events:      observable.New(),
		autoLoad:    options.autoLoad,
		clearOnLoad: options.clearOnLoad,
		local:       options.local,
		extraParams: cloneData(options.extraParams),
		index:       map[string]any{},
		start:       options.start,
		pageSize:    options.pageSize,
	}
	if err := r.registerStore(s); err != nil {
		return nil, err
	}

	switch {
	case !s.local && s.autoLoad:
		_, err = s.Load(options.ctx, nil)
	case options.initialData != nil:
		if items, ok := toItems(options.initialData); ok {
			err = s.LoadArray(items, false)
		} else {
			err = s.LoadResponse(options.initialData)
		}
	}
	if s.local {
		s.loaded = true
	}
	return s, err
}

func toItems(data any) ([]any, bool) {
	switch v := data.(type) {
	case []any:
		return v, true
	case []map[string]any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return items, true
	case []*Record:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return items, true
	default:
		return nil, false
	}
}

func (s *Store) ID() string {
	return s.id
}

func (s *Store) Model() *Model {
	return s.model
}

func (s *Store) IsLoaded() bool {
	return s.loaded
}

func (s *Store) IsLoading() bool {
	return s.loading
}

func (s *Store) IsLocal() bool {
	return s.local
}

func (s *Store) SetLocal(local bool) {
	s.local = local
}

func (s *Store) IsFiltered() bool {
	return s.filtered
}

func (s *Store) IsDestroyed() bool {
	return s.destroyed
}

// Len returns the number of visible items.
func (s *Store) Len() int {
	return len(s.items)
}

// TotalLength returns the server-reported total, or Len when the store is
// filtered or no total is known.
func (s *Store) TotalLength() int {
	if s.filtered || s.totalLength == 0 {
		return len(s.items)
	}
	return s.totalLength
}

// PagesCount returns the number of pages of TotalLength, 1 without paging.
func (s *Store) PagesCount() int {
	if s.pageSize <= 0 {
		return 1
	}
	return (s.totalLength + s.pageSize - 1) / s.pageSize
}

func (s *Store) Start() int {
	return s.start
}

func (s *Store) SetStart(start int) {
	s.start = start
}

func (s *Store) PageSize() int {
	return s.pageSize
}

func (s *Store) SetPageSize(n int) {
	s.pageSize = n
}

// SetParam sets an extra load parameter.
func (s *Store) SetParam(key string, value any) {
	if s.extraParams == nil {
		s.extraParams = map[string]any{}
	}
	s.extraParams[key] = value
}

// Param returns an extra load parameter.
func (s *Store) Param(key string) any {
	return s.extraParams[key]
}

// Items returns a copy of the visible items.
func (s *Store) Items() []any {
	return slices.Clone(s.items)
}

// Keys returns a copy of the visible ids, parallel to Items.
func (s *Store) Keys() []any {
	return slices.Clone(s.keys)
}

// Records returns the visible items that are records.
func (s *Store) Records() []*Record {
	out := make([]*Record, 0, len(s.items))
	for _, item := range s.items {
		if rec, ok := item.(*Record); ok {
			out = append(out, rec)
		}
	}
	return out
}

// RecordID returns the id of item: a record's id, or the id field of a raw
// map as configured on the store load endpoint.
func (s *Store) RecordID(item any) any {
	switch v := item.(type) {
	case *Record:
		return v.ID()
	case map[string]any:
		if id := v[s.model.IDField(ScopeStore, ActionLoad)]; hasID(id) {
			return id
		}
	}
	return nil
}

// process turns raw data into the item the store holds: records and plain
// model items pass through, raw maps of typed models resolve through the
// identity cache or become new non-standalone records.
func (s *Store) process(item any) any {
	if _, ok := item.(*Record); ok {
		return item
	}
	if s.model.IsPlain() {
		return item
	}
	data, ok := item.(map[string]any)
	if !ok {
		return item
	}
	id := s.RecordID(data)
	if hasID(id) {
		if rec := s.registry.GetFromCache(s.model.Type(), id); rec != nil {
			return rec
		}
	}
	rec, _ := NewRecord(s.model, WithID(id), WithData(data), WithStandalone(false))
	return rec
}

// Add appends item, or replaces the item with the same id.
func (s *Store) Add(item any) (any, error) {
	if s.filtered {
		return nil, ErrStoreFiltered
	}
	item = s.process(item)
	return item, s.add(s.RecordID(item), item, false)
}

// AddWithID appends item under an explicit id.
func (s *Store) AddWithID(id any, item any) (any, error) {
	if s.filtered {
		return nil, ErrStoreFiltered
	}
	item = s.process(item)
	return item, s.add(id, item, false)
}

// AddMany appends items and fires a single add event for the batch.
func (s *Store) AddMany(items []any) error {
	if s.filtered {
		return ErrStoreFiltered
	}
	if len(items) == 0 {
		return nil
	}
	prevLength := len(s.items)
	processed := make([]any, len(items))
	for i, item := range items {
		processed[i] = s.process(item)
		if err := s.add(s.RecordID(processed[i]), processed[i], true); err != nil {
			return err
		}
	}
	s.events.Trigger("add", prevLength, processed)
	return nil
}

func (s *Store) add(id any, item any, silent bool) error {
	if s.filtered {
		return ErrStoreFiltered
	}
	if key, ok := KeyOf(id); ok {
		if _, exists := s.index[key]; exists {
			s.replace(id, item)
			return nil
		}
		s.index[key] = item
	}
	s.items = append(s.items, item)
	s.keys = append(s.keys, id)
	if rec, ok := item.(*Record); ok {
		rec.AttachStore(s.id)
		s.bindRecord(rec)
	}
	if !silent {
		s.events.Trigger("add", len(s.items)-1, []any{item})
	}
	return nil
}

// Insert places item at index. An item with the same id is moved rather than
// duplicated; an index past the end appends.
func (s *Store) Insert(index int, item any) (any, error) {
	return s.InsertWithID(index, nil, item)
}

// InsertWithID places item at index under id, or under the item's own id
// when id is nil.
func (s *Store) InsertWithID(index int, id any, item any) (any, error) {
	if s.filtered {
		return nil, ErrStoreFiltered
	}
	item = s.process(item)
	if id == nil {
		id = s.RecordID(item)
	}
	if key, ok := KeyOf(id); ok {
		if old, exists := s.index[key]; exists {
			s.events.SuspendAll()
			s.removeAt(s.IndexOfID(id), !sameItem(old, item))
			s.events.ResumeAll()
		}
	}
	if index < 0 {
		index = 0
	}
	if index >= len(s.items) {
		return item, s.add(id, item, false)
	}
	s.items = slices.Insert(s.items, index, item)
	s.keys = slices.Insert(s.keys, index, id)
	if key, ok := KeyOf(id); ok {
		s.index[key] = item
	}
	if rec, ok := item.(*Record); ok {
		rec.AttachStore(s.id)
		s.bindRecord(rec)
	}
	s.events.Trigger("add", index, []any{item})
	return item, nil
}

// Replace swaps the item with item's id for item, adding it when absent.
// While filtered, items hidden by the filter are replaced too and a new id
// is rejected with a nil result.
func (s *Store) Replace(item any) any {
	item = s.process(item)
	return s.replace(s.RecordID(item), item)
}

// ReplaceID swaps the item stored under id for item.
func (s *Store) ReplaceID(id any, item any) any {
	return s.replace(id, s.process(item))
}

// replace writes through to the collection kept aside by an active filter,
// so an item hidden by the filter can be replaced too.
func (s *Store) replace(id any, item any) any {
	key, ok := KeyOf(id)
	old, exists := s.index[key]
	visible := exists
	if ok && !exists && s.filtered && s.filterBackup != nil {
		old, exists = s.filterBackup.index[key]
	}
	if !ok || !exists {
		if err := s.add(id, item, false); err != nil {
			return nil
		}
		return item
	}
	same := sameItem(old, item)
	if rec, isRec := old.(*Record); isRec && !same {
		s.unbindRecord(rec)
		rec.DetachStore(s.id)
	}
	if visible {
		s.items[s.IndexOfID(id)] = item
		s.index[key] = item
	}
	if s.filtered && s.filterBackup != nil {
		s.filterBackup.replace(old, item, key)
	}
	if rec, isRec := item.(*Record); isRec && !same {
		s.bindRecord(rec)
		rec.AttachStore(s.id)
	}
	s.events.Trigger("replace", id, old, item)
	return item
}

// RemoveAt removes the item at index. ok is false for an index out of range.
func (s *Store) RemoveAt(index int) (item any, ok bool) {
	return s.removeAt(index, true)
}

func (s *Store) removeAt(index int, detach bool) (any, bool) {
	if index < 0 || index >= len(s.items) {
		return nil, false
	}
	item := s.items[index]
	id := s.keys[index]
	s.items = slices.Delete(s.items, index, index+1)
	s.keys = slices.Delete(s.keys, index, index+1)
	if key, ok := KeyOf(id); ok {
		delete(s.index, key)
	}
	if s.totalLength > 0 {
		s.totalLength--
	}
	if s.filtered && s.filterBackup != nil {
		s.filterBackup.remove(item, id)
	}
	s.events.Trigger("remove", item, id)
	if rec, ok := item.(*Record); ok && detach {
		s.unbindRecord(rec)
		rec.DetachStore(s.id)
	}
	return item, true
}

// remove drops item from the snapshot. It reports false when item is not
// there.
func (b *storeSnapshot) remove(item any, id any) bool {
	for i := range b.items {
		if !sameItem(b.items[i], item) {
			continue
		}
		if id == nil {
			id = b.keys[i]
		}
		b.items = slices.Delete(b.items, i, i+1)
		b.keys = slices.Delete(b.keys, i, i+1)
		if key, ok := KeyOf(id); ok {
			delete(b.index, key)
		}
		return true
	}
	return false
}

func (b *storeSnapshot) replace(old any, item any, key string) {
	for i := range b.items {
		if sameItem(b.items[i], old) {
			b.items[i] = item
			break
		}
	}
	b.index[key] = item
}

// Remove removes item.
func (s *Store) Remove(item any) (any, bool) {
	return s.RemoveAt(s.IndexOf(item))
}

// RemoveID removes the item stored under id.
func (s *Store) RemoveID(id any) (any, bool) {
	return s.RemoveAt(s.IndexOfID(id))
}

func (s *Store) Contains(item any) bool {
	return s.IndexOf(item) != -1
}

func (s *Store) ContainsID(id any) bool {
	key, ok := KeyOf(id)
	if !ok {
		return false
	}
	_, exists := s.index[key]
	return exists
}

// GetAt returns the item at index, or nil.
func (s *Store) GetAt(index int) any {
	if index < 0 || index >= len(s.items) {
		return nil
	}
	return s.items[index]
}

// GetByID returns the item stored under id, or nil.
func (s *Store) GetByID(id any) any {
	key, ok := KeyOf(id)
	if !ok {
		return nil
	}
	return s.index[key]
}

// RecordByID returns the record stored under id.
func (s *Store) RecordByID(id any) (*Record, bool) {
	rec, ok := s.GetByID(id).(*Record)
	return rec, ok
}

func (s *Store) IndexOf(item any) int {
	return slices.IndexFunc(s.items, func(candidate any) bool {
		return sameItem(candidate, item)
	})
}

func (s *Store) IndexOfID(id any) int {
	key, ok := KeyOf(id)
	if !ok {
		return -1
	}
	return slices.IndexFunc(s.keys, func(candidate any) bool {
		ck, ok := KeyOf(candidate)
		return ok && ck == key
	})
}

// Each calls fn over a snapshot of the items until fn returns false.
func (s *Store) Each(fn func(item any, index int) bool) {
	items := slices.Clone(s.items)
	for i, item := range items {
		if !fn(item, i) {
			return
		}
	}
}

// EachID calls fn with every id and item.
func (s *Store) EachID(fn func(id any, item any, index int)) {
	keys := slices.Clone(s.keys)
	items := slices.Clone(s.items)
	for i := range keys {
		fn(keys[i], items[i], i)
	}
}

// Collect returns the truthy values of field across the items.
func (s *Store) Collect(field string) []any {
	var out []any
	for _, item := range s.items {
		if value := fieldOf(item, field); truthy(value) {
			out = append(out, value)
		}
	}
	return out
}

// First returns the first item, or nil.
func (s *Store) First() any {
	return s.GetAt(0)
}

// Last returns the last item, or nil.
func (s *Store) Last() any {
	return s.GetAt(len(s.items) - 1)
}

// Range returns the items from start to end inclusive. end is clamped to the
// last index; start greater than end walks backwards.
func (s *Store) Range(start, end int) []any {
	if len(s.items) == 0 {
		return []any{}
	}
	last := len(s.items) - 1
	if end > last {
		end = last
	}
	if start > last {
		start = last
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}
	var out []any
	if start <= end {
		for i := start; i <= end; i++ {
			out = append(out, s.items[i])
		}
		return out
	}
	for i := start; i >= end; i-- {
		out = append(out, s.items[i])
	}
	return out
}

// FindIndexBy returns the index of the first item from start for which fn
// reports true, or -1.
func (s *Store) FindIndexBy(fn func(item any, id any) bool, start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(s.items); i++ {
		if fn(s.items[i], s.keys[i]) {
			return i
		}
	}
	return -1
}

// FindBy returns the first item matching fn, or nil.
func (s *Store) FindBy(fn func(item any, id any) bool, start int) any {
	return s.GetAt(s.FindIndexBy(fn, start))
}

// Find returns the index of the first item whose field equals value. Without
// exact, values compare by their string form, so 5 matches "5".
func (s *Store) Find(field string, value any, exact bool) int {
	return s.FindIndexBy(func(item any, _ any) bool {
		if exact {
			return valuesEqual(fieldOf(item, field), value)
		}
		return looseEqual(fieldOf(item, field), value)
	}, 0)
}

// FindExact is Find with exact comparison.
func (s *Store) FindExact(field string, value any) int {
	return s.Find(field, value, true)
}

// FindBySet returns the first item whose fields loosely equal every entry of
// props, or nil.
func (s *Store) FindBySet(props map[string]any) any {
	return s.FindBy(func(item any, _ any) bool {
		for field, want := range props {
			if !looseEqual(fieldOf(item, field), want) {
				return false
			}
		}
		return true
	}, 0)
}

// HasDirty reports whether any held record is dirty.
func (s *Store) HasDirty() bool {
	if s.model.IsPlain() {
		return false
	}
	for _, rec := range s.Records() {
		if rec.IsDirty() {
			return true
		}
	}
	return false
}

// Dirty returns the dirty records.
func (s *Store) Dirty() []*Record {
	var out []*Record
	if s.model.IsPlain() {
		return out
	}
	for _, rec := range s.Records() {
		if rec.IsDirty() {
			out = append(out, rec)
		}
	}
	return out
}

// Clear drops every item, clearing any filter first, and fires clear.
func (s *Store) Clear() {
	items := s.Range(0, len(s.items)-1)
	s.ClearFilter(true)
	s.reset(false)
	s.events.Trigger("clear", items)
}

// Reset drops every item without firing clear.
func (s *Store) Reset() {
	s.reset(false)
}

func (s *Store) reset(keepRecords bool) {
	if !keepRecords {
		for _, item := range s.items {
			if rec, ok := item.(*Record); ok {
				s.unbindRecord(rec)
				rec.DetachStore(s.id)
			}
		}
	}
	s.start = 0
	s.totalLength = 0
	s.items = nil
	s.keys = nil
	s.index = map[string]any{}
	s.loaded = s.local
}

// Destroy clears the store and removes it from the registry. It reports
// false when already destroyed or vetoed by a beforedestroy listener.
func (s *Store) Destroy() bool {
	if s.destroyed {
		return false
	}
	if observable.Cancelled(s.events.Trigger("beforedestroy", s)) {
		return false
	}
	s.registry.unregisterStore(s.id)
	s.Clear()
	s.destroyed = true
	s.events.Trigger("destroy", s)
	s.events.Destroy()
	return true
}

// On subscribes fn to the store event name.
func (s *Store) On(name string, fn observable.Listener, scope any, options ...observable.ListenerOptions) int {
	return s.events.On(name, fn, scope, options...)
}

// Once subscribes fn for a single delivery.
func (s *Store) Once(name string, fn observable.Listener, scope any, options ...observable.ListenerOptions) int {
	return s.events.Once(name, fn, scope, options...)
}

// Un removes the subscription identified by scope or fn.
func (s *Store) Un(name string, fn observable.Listener, scope any) bool {
	return s.events.Un(name, fn, scope)
}

// Events exposes the store's observable.
func (s *Store) Events() *observable.Observable {
	return s.events
}

func (s *Store) bindRecord(rec *Record) {
	rec.On("change", s.onRecordChange, s)
	rec.On("destroy", s.onRecordDestroy, s)
	rec.On("dirtychange", s.onRecordChange, s)
}

func (s *Store) unbindRecord(rec *Record) {
	rec.Un("change", nil, s)
	rec.Un("destroy", nil, s)
	rec.Un("dirtychange", nil, s)
}

func (s *Store) onRecordChange(args ...any) any {
	if len(args) > 0 {
		s.events.Trigger("update", s, args[0])
	}
	return nil
}

// onRecordDestroy drops a destroyed record, including one hidden by the
// active filter.
func (s *Store) onRecordDestroy(args ...any) any {
	if len(args) == 0 {
		return nil
	}
	if _, ok := s.Remove(args[0]); ok {
		return nil
	}
	rec, ok := args[0].(*Record)
	if !ok || !s.filtered || s.filterBackup == nil {
		return nil
	}
	if s.filterBackup.remove(rec, nil) {
		if s.totalLength > 0 {
			s.totalLength--
		}
		s.unbindRecord(rec)
		rec.DetachStore(s.id)
	}
	return nil
}

func fieldOf(item any, field string) any {
	switch v := item.(type) {
	case *Record:
		return v.Get(field)
	case map[string]any:
		return v[field]
	default:
		return nil
	}
}

// sameItem compares items by identity: pointers and maps by address,
// comparable values with ==.
func sameItem(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Func, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

func looseEqual(a, b any) bool {
	if valuesEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
