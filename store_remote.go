package entity

import (
	"context"
	"slices"

	"github.com/goliatone/go-entity/future"
	"github.com/goliatone/go-entity/layering"
	"github.com/goliatone/go-entity/observable"
	"github.com/goliatone/go-entity/pkg/activity"
)

// Load requests a page through the store load endpoint. params are layered
// over the store's extra params; when paging is enabled and the caller
// supplied neither cursor parameter, the current start and page size are
// sent.
func (s *Store) Load(ctx context.Context, params map[string]any) (*future.Future[Result], error) {
	return s.load(ctx, params, false)
}

func (s *Store) load(ctx context.Context, params map[string]any, add bool) (*future.Future[Result], error) {
	if s.destroyed {
		return nil, ErrRecordDestroyed
	}
	if s.local {
		return nil, ErrLocalStore
	}
	params = layering.MergeParams(params, s.extraParams)
	if s.pageSize > 0 {
		startParam, limitParam := s.model.StartParam(), s.model.LimitParam()
		_, hasStart := params[startParam]
		_, hasLimit := params[limitParam]
		if !hasStart && !hasLimit {
			params[startParam] = s.start
			params[limitParam] = s.pageSize
		}
	}
	if observable.Cancelled(s.events.Trigger("beforeload", s)) {
		return nil, ErrCancelled
	}

	s.loading = true
	f, err := s.model.LoadStore(ctx, params)
	if err != nil {
		s.loading = false
		return nil, err
	}
	f.Done(func(res Result) {
		if s.destroyed {
			return
		}
		if !add && s.clearOnLoad && len(s.items) > 0 {
			start := s.start
			s.Clear()
			s.start = start
		}
		total, _ := toInt(res.Total)
		s.totalLength = total
		s.importData(res.Items())
		s.totalLength = total
		s.emit(ctx, activity.BuildStoreLoadedEvent, len(res.Items()), nil)
	})
	f.Fail(func(err error) {
		if s.destroyed {
			return
		}
		s.loading = false
		s.events.Trigger("failedload", s, err)
	})
	return f, nil
}

// AddNextPage appends the page that follows the items already held. It
// returns a nil future when everything known is loaded.
func (s *Store) AddNextPage(ctx context.Context) (*future.Future[Result], error) {
	if s.local {
		return nil, ErrLocalStore
	}
	if len(s.items) >= s.totalLength {
		return nil, nil
	}
	return s.load(ctx, map[string]any{
		s.model.StartParam(): len(s.items),
		s.model.LimitParam(): s.pageSize,
	}, true)
}

// LoadNextPage advances start by one page and loads it.
func (s *Store) LoadNextPage(ctx context.Context) (*future.Future[Result], error) {
	if s.local {
		return nil, ErrLocalStore
	}
	s.start += s.pageSize
	return s.Load(ctx, nil)
}

// LoadPrevPage moves start back one page, not below zero, and loads it.
func (s *Store) LoadPrevPage(ctx context.Context) (*future.Future[Result], error) {
	if s.local {
		return nil, ErrLocalStore
	}
	s.start -= s.pageSize
	if s.start < 0 {
		s.start = 0
	}
	return s.Load(ctx, nil)
}

// LoadOr loads the store when it has not been loaded yet, or calls fn when it
// has. Local stores and stores with a load in flight do nothing.
func (s *Store) LoadOr(ctx context.Context, fn func()) error {
	if s.local || s.loading {
		return nil
	}
	if !s.loaded {
		_, err := s.Load(ctx, nil)
		return err
	}
	if fn != nil {
		fn()
	}
	return nil
}

// LoadArray imports items directly. Without add, and with clear-on-load
// enabled, the current items are cleared first.
func (s *Store) LoadArray(items []any, add bool) error {
	if observable.Cancelled(s.events.Trigger("beforeload", s)) {
		return ErrCancelled
	}
	if !add && s.clearOnLoad && len(s.items) > 0 {
		s.Clear()
	}
	s.importData(items)
	s.totalLength = len(s.items)
	return nil
}

// LoadResponse runs a raw store load response through the model and imports
// its items.
func (s *Store) LoadResponse(response any) error {
	if observable.Cancelled(s.events.Trigger("beforeload", s)) {
		return ErrCancelled
	}
	res, err := s.model.Interpret(ScopeStore, ActionLoad, response)
	if err != nil {
		return err
	}
	total, _ := toInt(res.Total)
	s.totalLength = total
	s.importData(res.Items())
	s.totalLength = total
	return nil
}

// importData adds items with events suspended, then fires load. An active
// filter is lifted for the import and applied again afterwards.
func (s *Store) importData(items []any) {
	filtered, fn, params := s.filtered, s.filterFn, s.filterParams
	if filtered {
		s.ClearFilter(true)
	}
	s.events.SuspendAll()
	for _, item := range items {
		item = s.process(item)
		_ = s.add(s.RecordID(item), item, true)
	}
	s.events.ResumeAll()
	if filtered {
		s.Filter(fn, params)
	}
	s.loaded = true
	s.loading = false
	s.events.Trigger("load", s)
}

// Save sends the stored data of every dirty record keyed by id and imports
// the returned entries into the matching records.
func (s *Store) Save(ctx context.Context) (*future.Future[Result], error) {
	if s.local {
		return nil, ErrLocalStore
	}
	if s.model.IsPlain() {
		return nil, ErrPlainStore
	}
	dirty := s.Dirty()
	if len(dirty) == 0 {
		return nil, ErrNothingToSave
	}
	data := make(map[string]any, len(dirty))
	ids := make([]string, 0, len(dirty))
	for _, rec := range dirty {
		key, _ := KeyOf(rec.ID())
		data[key] = rec.StoreData(rec.GetData())
		ids = append(ids, key)
	}
	if observable.Cancelled(s.events.Trigger("beforesave", s, data)) {
		return nil, ErrCancelled
	}

	f, err := s.model.SaveStore(ctx, data)
	if err != nil {
		return nil, err
	}
	f.Done(func(res Result) {
		if s.destroyed {
			return
		}
		for _, item := range res.Items() {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if rec, ok := s.RecordByID(s.RecordID(entry)); ok {
				rec.ImportData(entry)
			}
		}
		s.events.Trigger("save", s)
		s.emit(ctx, activity.BuildStoreSavedEvent, len(ids), ids)
	})
	f.Fail(func(err error) {
		if !s.destroyed {
			s.events.Trigger("failedsave", s, err)
		}
	})
	return f, nil
}

// DeleteByID removes the items with ids locally, destroying records, then
// requests their remote deletion. A failed request does not restore them.
// Empty ids are skipped; ErrIDRequired is returned when none remain.
func (s *Store) DeleteByID(ctx context.Context, ids ...any) (*future.Future[Result], error) {
	if s.local {
		return nil, ErrLocalStore
	}
	ids = slices.DeleteFunc(slices.Clone(ids), func(id any) bool { return !hasID(id) })
	if len(ids) == 0 {
		return nil, ErrIDRequired
	}
	for _, id := range ids {
		if rec, ok := s.RecordByID(id); ok && rec.Destroy() {
			if s.ContainsID(id) {
				s.RemoveID(id)
			}
			continue
		}
		s.RemoveID(id)
	}
	if observable.Cancelled(s.events.Trigger("beforedelete", s, ids)) {
		return nil, ErrCancelled
	}

	f, err := s.model.DeleteRecords(ctx, ids)
	if err != nil {
		return nil, err
	}
	f.Done(func(Result) {
		s.events.Trigger("delete", s, ids)
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			if key, ok := KeyOf(id); ok {
				keys = append(keys, key)
			}
		}
		s.emit(ctx, activity.BuildStoreDeletedEvent, len(keys), keys)
	})
	f.Fail(func(err error) {
		s.events.Trigger("faileddelete", s, ids, err)
	})
	return f, nil
}

// DeleteAt deletes the item at index.
func (s *Store) DeleteAt(ctx context.Context, index int) (*future.Future[Result], error) {
	item := s.GetAt(index)
	if item == nil {
		return nil, ErrRecordNotFound
	}
	return s.DeleteRecord(ctx, item)
}

// DeleteRecord deletes item by its id.
func (s *Store) DeleteRecord(ctx context.Context, item any) (*future.Future[Result], error) {
	return s.DeleteByID(ctx, s.RecordID(item))
}

// DeleteRecords deletes items by their ids in one request.
func (s *Store) DeleteRecords(ctx context.Context, items []any) (*future.Future[Result], error) {
	ids := make([]any, 0, len(items))
	for _, item := range items {
		if id := s.RecordID(item); id != nil {
			ids = append(ids, id)
		}
	}
	return s.DeleteByID(ctx, ids...)
}

func (s *Store) emit(ctx context.Context, build func(activity.EntityEventInput) activity.Event, count int, ids []string) {
	s.registry.emit(ctx, build(activity.EntityEventInput{
		ModelType: s.model.Type(),
		StoreID:   s.id,
		IDs:       ids,
		Count:     count,
	}))
}
