package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-entity"
	"github.com/goliatone/go-entity/future"
	"github.com/goliatone/go-entity/transport/memory"
)

func newUserModel(t *testing.T, backend *memory.Backend, q *future.Queue) (*entity.Registry, *entity.Model) {
	t.Helper()
	registry := entity.NewRegistry(
		entity.WithScheduler(q),
		entity.WithTransport(backend),
	)
	model, err := registry.DefineModel(entity.ModelConfig{
		Type:   "user",
		Fields: map[string]entity.Field{"age": entity.F(entity.FieldInt)},
		Defaults: entity.Endpoint{
			URL:     "/users",
			Data:    "data",
			Success: "success",
			Total:   "total",
		},
	})
	if err != nil {
		t.Fatalf("define model: %v", err)
	}
	return registry, model
}

func TestRecordRoundTrip(t *testing.T) {
	q := future.NewQueue()
	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	backend := memory.New(q, memory.WithClock(func() time.Time { return clock }))
	backend.Seed("/users", map[string]any{"id": 1, "name": "Ada", "age": "36"})
	_, model := newUserModel(t, backend, q)

	rec, err := entity.NewRecord(model, entity.WithID(1))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	q.Drain()
	if !rec.IsLoaded() || rec.Get("age") != 36 || rec.Get("name") != "Ada" {
		t.Fatalf("unexpected loaded state: loaded=%v data=%v", rec.IsLoaded(), rec.GetData())
	}

	rec.Set("name", "Grace")
	if _, err := rec.Save(context.Background(), nil, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	q.Drain()
	if rec.IsDirty() {
		t.Fatalf("expected clean record after save")
	}
	row, meta, ok := backend.Row("/users", 1)
	if !ok || row["name"] != "Grace" {
		t.Fatalf("expected saved row, got %v", row)
	}
	if meta.Version != 2 || !meta.UpdatedAt.Equal(clock) {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestRecordCreateAndDelete(t *testing.T) {
	q := future.NewQueue()
	backend := memory.New(q)
	backend.Seed("/users", map[string]any{"id": 1, "name": "Ada"})
	_, model := newUserModel(t, backend, q)

	rec, err := entity.NewRecord(model, entity.WithData(map[string]any{"name": "Linus"}))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if _, err := rec.Save(context.Background(), nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	q.Drain()
	if rec.ID() != 2 {
		t.Fatalf("expected sequence id 2, got %#v", rec.ID())
	}
	requests := backend.Requests()
	if got := requests[len(requests)-1].Action; got != entity.ActionCreate {
		t.Fatalf("expected create action, got %s", got)
	}

	if _, err := rec.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	q.Drain()
	if !rec.IsDestroyed() {
		t.Fatalf("expected record destroyed after delete")
	}
	if rows := backend.Rows("/users"); len(rows) != 1 || rows[0]["name"] != "Ada" {
		t.Fatalf("unexpected rows after delete: %v", rows)
	}
}

func TestStorePaging(t *testing.T) {
	q := future.NewQueue()
	backend := memory.New(q)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		backend.Seed("/users", map[string]any{"name": name})
	}
	registry, model := newUserModel(t, backend, q)

	store, err := registry.NewStore(model, entity.WithPageSize(2))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Load(context.Background(), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	q.Drain()
	if store.Len() != 2 || store.TotalLength() != 5 || store.PagesCount() != 3 {
		t.Fatalf("unexpected page state: len=%d total=%d pages=%d", store.Len(), store.TotalLength(), store.PagesCount())
	}

	if _, err := store.AddNextPage(context.Background()); err != nil {
		t.Fatalf("next page: %v", err)
	}
	q.Drain()
	if diff := cmp.Diff([]any{"a", "b", "c", "d"}, store.Collect("name")); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	if _, err := store.LoadNextPage(context.Background()); err != nil {
		t.Fatalf("load next page: %v", err)
	}
	q.Drain()
	if diff := cmp.Diff([]any{"c", "d"}, store.Collect("name")); diff != "" {
		t.Fatalf("page 2 mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreSaveAndDelete(t *testing.T) {
	q := future.NewQueue()
	backend := memory.New(q)
	backend.Seed("/users",
		map[string]any{"id": 1, "name": "Ada"},
		map[string]any{"id": 2, "name": "Grace"},
	)
	registry, model := newUserModel(t, backend, q)

	store, err := registry.NewStore(model)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Load(context.Background(), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	q.Drain()

	rec, ok := store.RecordByID(2)
	if !ok {
		t.Fatalf("expected record 2 in store")
	}
	rec.Set("name", "Hopper")
	if _, err := store.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	q.Drain()
	if row, _, _ := backend.Row("/users", 2); row["name"] != "Hopper" {
		t.Fatalf("expected bulk save to reach backend, got %v", row)
	}
	if rec.IsDirty() {
		t.Fatalf("expected record clean after bulk save")
	}

	if _, err := store.DeleteByID(context.Background(), 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	q.Drain()
	if store.Len() != 1 {
		t.Fatalf("expected one item left, got %d", store.Len())
	}
	if _, _, ok := backend.Row("/users", 1); ok {
		t.Fatalf("expected row 1 removed from backend")
	}
}

func TestFailNextRejectsOneRequest(t *testing.T) {
	q := future.NewQueue()
	backend := memory.New(q)
	backend.Seed("/users", map[string]any{"id": 1, "name": "Ada"})
	_, model := newUserModel(t, backend, q)

	rec, err := entity.NewRecord(model, entity.WithID(1), entity.WithAutoLoad(false))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	var failed error
	rec.On("failedload", func(args ...any) any {
		failed, _ = args[1].(error)
		return nil
	}, nil)

	offline := errors.New("offline")
	backend.FailNext(offline)
	f, err := rec.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	q.Drain()
	if _, ferr, ok := f.Result(); !ok || !errors.Is(ferr, offline) {
		t.Fatalf("expected rejection wrapping offline, got %v", ferr)
	}
	if !errors.Is(failed, offline) {
		t.Fatalf("expected failedload with offline, got %v", failed)
	}

	if _, err := rec.Load(context.Background()); err != nil {
		t.Fatalf("second load: %v", err)
	}
	q.Drain()
	if !rec.IsLoaded() {
		t.Fatalf("expected second load to succeed")
	}
}

func TestSendDirect(t *testing.T) {
	q := future.NewQueue()
	backend := memory.New(q, memory.WithFields(memory.Fields{ID: "id", Start: "start", Limit: "limit"}))
	backend.Seed("/tags",
		map[string]any{"id": "go", "kind": "lang"},
		map[string]any{"id": "k8s", "kind": "infra"},
	)

	f := backend.Send(context.Background(), entity.Request{
		Scope:  entity.ScopeStore,
		Action: entity.ActionLoad,
		URL:    "/tags",
		Data:   map[string]any{"kind": "lang"},
	})
	q.Drain()
	value, err, ok := f.Result()
	if !ok || err != nil {
		t.Fatalf("expected settled page, got err=%v ok=%v", err, ok)
	}
	want := []any{map[string]any{"id": "go", "kind": "lang"}}
	if diff := cmp.Diff(want, value); diff != "" {
		t.Fatalf("bare page mismatch (-want +got):\n%s", diff)
	}

	f = backend.Send(context.Background(), entity.Request{
		Scope:  entity.ScopeStore,
		Action: entity.ActionDelete,
		URL:    "/tags",
		Data:   map[string]any{"id": []any{"go", "rust"}},
	})
	q.Drain()
	if _, err, _ := f.Result(); !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("expected not found for partial delete, got %v", err)
	}
	if len(backend.Rows("/tags")) != 2 {
		t.Fatalf("expected failed delete to keep every row")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f = backend.Send(ctx, entity.Request{Scope: entity.ScopeRecord, Action: entity.ActionLoad, URL: "/tags"})
	q.Drain()
	if _, err, _ := f.Result(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if got := len(backend.Requests()); got != 2 {
		t.Fatalf("expected cancelled request unrecorded, got %d requests", got)
	}
}
