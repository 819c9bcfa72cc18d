package entity_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-entity"
	"github.com/goliatone/go-entity/future"
	"github.com/goliatone/go-entity/pkg/activity"
	"github.com/goliatone/go-entity/transport/memory"
)

type harness struct {
	queue    *future.Queue
	backend  *memory.Backend
	registry *entity.Registry
	model    *entity.Model
	capture  *activity.CaptureHook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		queue:   future.NewQueue(),
		capture: &activity.CaptureHook{},
	}
	h.backend = memory.New(h.queue)
	h.registry = entity.NewRegistry(
		entity.WithScheduler(h.queue),
		entity.WithTransport(h.backend),
		entity.WithActivity(activity.NewEmitter(activity.Hooks{h.capture}, activity.Config{Enabled: true})),
		entity.WithIDGenerator(sequentialIDs()),
	)
	model, err := h.registry.DefineModel(entity.ModelConfig{
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
	h.model = model
	return h
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "store-" + strconv.Itoa(n)
	}
}

func TestRecordSetTracksChanges(t *testing.T) {
	h := newHarness(t)
	rec, err := entity.NewRecord(h.model, entity.WithData(map[string]any{"name": "Ada", "age": "36"}))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	var changes []string
	var dirtyFlips []bool
	rec.On("change", func(args ...any) any {
		changes = append(changes, args[1].(string))
		return nil
	}, nil)
	rec.On("dirtychange", func(args ...any) any {
		dirtyFlips = append(dirtyFlips, args[1].(bool))
		return nil
	}, nil)
	keyed := 0
	rec.On("change-age", func(args ...any) any {
		keyed++
		return nil
	}, nil)

	if rec.Set("age", 36) {
		t.Fatalf("expected equal value to be ignored")
	}
	if rec.Set("missing", nil) {
		t.Fatalf("expected nil on an absent key to be ignored")
	}
	if !rec.Set("age", "37") {
		t.Fatalf("expected change")
	}
	rec.Set("name", "Grace")

	if rec.Get("age") != 37 {
		t.Fatalf("expected restored int, got %#v", rec.Get("age"))
	}
	if diff := cmp.Diff([]string{"age", "name"}, changes); diff != "" {
		t.Fatalf("change events mismatch (-want +got):\n%s", diff)
	}
	if keyed != 1 {
		t.Fatalf("expected one change-age event, got %d", keyed)
	}
	if diff := cmp.Diff([]string{"age", "name"}, rec.Changed()); diff != "" {
		t.Fatalf("changed keys mismatch (-want +got):\n%s", diff)
	}

	rec.Revert()
	if rec.IsDirty() || rec.Get("age") != 36 || rec.Get("name") != "Ada" {
		t.Fatalf("expected reverted state, got %v", rec.GetData())
	}
	if diff := cmp.Diff([]bool{true, false}, dirtyFlips); diff != "" {
		t.Fatalf("dirtychange mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordIdentityCache(t *testing.T) {
	h := newHarness(t)
	rec, err := h.registry.NewRecord("user", entity.WithID(1), entity.WithAutoLoad(false))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if h.registry.GetFromCache("user", "1") != rec {
		t.Fatalf("expected record cached under its key form")
	}

	plain, err := h.registry.NewModel(entity.ModelConfig{Defaults: entity.Endpoint{URL: "/raw"}})
	if err != nil {
		t.Fatalf("plain model: %v", err)
	}
	if _, err := entity.NewRecord(plain, entity.WithID(1), entity.WithAutoLoad(false)); err != nil {
		t.Fatalf("plain record: %v", err)
	}
	if h.registry.GetFromCache("", 1) != nil {
		t.Fatalf("plain records must not be cached")
	}

	if !rec.Destroy() {
		t.Fatalf("expected destroy to succeed")
	}
	if rec.Destroy() {
		t.Fatalf("expected second destroy to be a no-op")
	}
	if h.registry.GetFromCache("user", 1) != nil {
		t.Fatalf("expected destroyed record evicted")
	}
	if rec.Set("name", "x") {
		t.Fatalf("destroyed record accepted a change")
	}
	if _, err := rec.Save(context.Background(), nil, nil); !errors.Is(err, entity.ErrRecordDestroyed) {
		t.Fatalf("expected ErrRecordDestroyed, got %v", err)
	}
	if _, err := h.registry.NewRecord("order"); !errors.Is(err, entity.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestRecordAutoLoadFailure(t *testing.T) {
	h := newHarness(t)
	rec, err := entity.NewRecord(h.model, entity.WithID(9))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	var failure error
	rec.On("failedload", func(args ...any) any {
		failure = args[1].(error)
		return nil
	}, nil)
	h.queue.Drain()

	if !errors.Is(failure, memory.ErrNotFound) {
		t.Fatalf("expected not found failure, got %v", failure)
	}
	var remote *entity.RemoteError
	if !errors.As(failure, &remote) || remote.Action != entity.ActionLoad {
		t.Fatalf("expected remote load error, got %#v", failure)
	}
	if rec.IsLoaded() {
		t.Fatalf("failed load must not mark the record loaded")
	}
}

func TestRecordBeforeSaveCancels(t *testing.T) {
	h := newHarness(t)
	rec, err := entity.NewRecord(h.model, entity.WithData(map[string]any{"name": "Ada"}))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	rec.On("beforesave", func(args ...any) any { return false }, nil)

	if _, err := rec.Save(context.Background(), nil, nil); !errors.Is(err, entity.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if got := len(h.backend.Requests()); got != 0 {
		t.Fatalf("cancelled save reached the transport %d times", got)
	}
}

func TestRecordCreateAssignsIDAndEmits(t *testing.T) {
	h := newHarness(t)
	rec, err := entity.NewRecord(h.model, entity.WithData(map[string]any{"name": "Linus"}))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	rec.Set("age", 54)
	saved := 0
	rec.On("save", func(args ...any) any {
		saved++
		return nil
	}, nil)

	f, err := rec.Save(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	h.queue.Drain()

	res, err, ok := f.Result()
	if !ok || err != nil {
		t.Fatalf("expected settled save, got ok=%v err=%v", ok, err)
	}
	if res.ID != 1 || rec.ID() != 1 {
		t.Fatalf("expected id 1, got result %v record %v", res.ID, rec.ID())
	}
	if h.registry.GetFromCache("user", 1) != rec {
		t.Fatalf("expected created record to enter the cache")
	}
	if saved != 1 || rec.IsDirty() || rec.Get("age") != 54 {
		t.Fatalf("unexpected state after create: saved=%d dirty=%v data=%v", saved, rec.IsDirty(), rec.GetData())
	}
	requests := h.backend.Requests()
	if len(requests) != 1 || requests[0].Action != entity.ActionCreate {
		t.Fatalf("expected one create request, got %+v", requests)
	}
	if diff := cmp.Diff([]string{activity.VerbRecordSaved}, h.capture.Verbs()); diff != "" {
		t.Fatalf("activity mismatch (-want +got):\n%s", diff)
	}
	event := h.capture.Events[0]
	if event.ObjectType != "user" || event.ObjectID != "1" {
		t.Fatalf("unexpected event target %s/%s", event.ObjectType, event.ObjectID)
	}
	if diff := cmp.Diff([]string{"age"}, event.Metadata["fields"]); diff != "" {
		t.Fatalf("saved fields mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordSaveSendsSelectedKeys(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed("/users", map[string]any{"id": 1, "name": "Ada", "age": "36"})
	rec, err := entity.NewRecord(h.model, entity.WithID(1))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	h.queue.Drain()

	rec.Set("age", 37)
	rec.Set("name", "Grace")
	if _, err := rec.Save(context.Background(), []string{"age"}, map[string]any{"note": "birthday"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	h.queue.Drain()

	requests := h.backend.Requests()
	sent := requests[len(requests)-1].Params()["data"]
	if diff := cmp.Diff(map[string]any{"age": "37", "note": "birthday"}, sent); diff != "" {
		t.Fatalf("save payload mismatch (-want +got):\n%s", diff)
	}
	row, _, _ := h.backend.Row("/users", 1)
	if row["name"] != "Ada" || row["age"] != "37" {
		t.Fatalf("expected partial update, got %v", row)
	}
	if rec.Get("name") != "Ada" {
		t.Fatalf("expected record to import the saved row, got %v", rec.Get("name"))
	}
}

func TestRecordDelete(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed("/users", map[string]any{"id": 1, "name": "Ada"})
	rec, err := entity.NewRecord(h.model, entity.WithID(1), entity.WithData(map[string]any{"name": "Ada"}))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	var order []string
	for _, name := range []string{"delete", "destroy", "faileddelete"} {
		name := name
		rec.On(name, func(args ...any) any {
			order = append(order, name)
			return nil
		}, nil)
	}

	h.backend.FailNext(errors.New("offline"))
	if _, err := rec.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	h.queue.Drain()
	if rec.IsDestroyed() || len(h.backend.Rows("/users")) != 1 {
		t.Fatalf("failed delete must leave the record intact")
	}

	if _, err := rec.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	h.queue.Drain()
	if !rec.IsDestroyed() || len(h.backend.Rows("/users")) != 0 {
		t.Fatalf("expected record destroyed and row removed")
	}
	if diff := cmp.Diff([]string{"faileddelete", "delete", "destroy"}, order); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{activity.VerbRecordDeleted, activity.VerbRecordDestroyed}, h.capture.Verbs()); diff != "" {
		t.Fatalf("activity mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistrySchedulerDefault(t *testing.T) {
	if got := entity.NewRegistry().Scheduler(); got != future.Default() {
		t.Fatalf("expected the process-wide serial scheduler, got %T", got)
	}
	queue := future.NewQueue()
	if got := entity.NewRegistry(entity.WithScheduler(queue)).Scheduler(); got != queue {
		t.Fatalf("expected the injected queue, got %T", got)
	}
}
