package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEventNormalizeTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " Record.Saved ",
		Actor:      Actor{ActorID: " actor ", UserID: " user ", TenantID: " tenant "},
		ObjectType: " user ",
		ObjectID:   " 42 ",
		Channel:    " entity ",
		Metadata:   meta,
	}

	got := evt.Normalize()

	if got.Verb != "record.saved" || got.ObjectType != "user" || got.ObjectID != "42" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.Actor != (Actor{ActorID: "actor", UserID: "user", TenantID: "tenant"}) || got.Channel != "entity" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	if !got.Complete() {
		t.Fatalf("expected normalized event to be complete")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestActorOrFillsBlanks(t *testing.T) {
	got := Actor{UserID: "u-1", TenantID: " "}.Or(Actor{ActorID: "a-1", UserID: "u-2", TenantID: "t-1"})
	want := Actor{ActorID: "a-1", UserID: "u-1", TenantID: "t-1"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: VerbRecordSaved, ObjectType: "user"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbRecordLoaded, ObjectType: "user", ObjectID: "1"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestOnlyFiltersByVerbPrefix(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{Only(capture, "store.")}

	_ = hooks.Notify(context.Background(), Event{Verb: VerbRecordSaved, ObjectType: "user", ObjectID: "1"})
	_ = hooks.Notify(context.Background(), Event{Verb: VerbStoreSaved, ObjectType: "store", ObjectID: "s"})

	if got := capture.Verbs(); len(got) != 1 || got[0] != VerbStoreSaved {
		t.Fatalf("expected only store events, got %v", got)
	}
	if Only(nil, "x") != nil {
		t.Fatalf("expected nil hook to stay nil")
	}
}

func TestExceptDropsVerbPrefix(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{Except(capture, "record.destroyed", "store.")}

	_ = hooks.Notify(context.Background(), Event{Verb: VerbRecordDestroyed, ObjectType: "user", ObjectID: "1"})
	_ = hooks.Notify(context.Background(), Event{Verb: VerbStoreLoaded, ObjectType: "store", ObjectID: "s"})
	_ = hooks.Notify(context.Background(), Event{Verb: VerbRecordSaved, ObjectType: "user", ObjectID: "1"})

	if got := capture.Verbs(); len(got) != 1 || got[0] != VerbRecordSaved {
		t.Fatalf("expected only record.saved, got %v", got)
	}
	if _, ok := capture.Find(VerbStoreLoaded); ok {
		t.Fatalf("expected store.loaded to be dropped")
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: VerbRecordLoaded, ObjectType: "user", ObjectID: "1"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != "entity" {
		t.Fatalf("expected default channel applied, got %q", capture.Events[0].Channel)
	}

	var nilEmitter *Emitter
	if nilEmitter.Enabled() {
		t.Fatalf("expected nil emitter to be disabled")
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       VerbRecordSaved,
		ObjectType: "user",
		ObjectID:   "1",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events[0].Channel)
	}
	if !capture.Events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events[0].OccurredAt)
	}
}

func TestEmitterAppliesVerbFilterAndActor(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Verbs: []string{"record.saved", " store."}})
	ctx := WithActor(context.Background(), Actor{ActorID: "a-1", TenantID: "t-1"})

	_ = emitter.Emit(ctx, Event{Verb: VerbRecordLoaded, ObjectType: "user", ObjectID: "1"})
	_ = emitter.Emit(ctx, Event{Verb: VerbRecordSaved, ObjectType: "user", ObjectID: "1", Actor: Actor{TenantID: "explicit"}})
	_ = emitter.Emit(ctx, Event{Verb: VerbStoreLoaded, ObjectType: "store", ObjectID: "s"})

	if got := capture.Verbs(); len(got) != 2 || got[0] != VerbRecordSaved || got[1] != VerbStoreLoaded {
		t.Fatalf("unexpected verbs %v", got)
	}
	first := capture.Events[0]
	if first.ActorID != "a-1" || first.TenantID != "explicit" {
		t.Fatalf("expected actor applied without overriding explicit ids, got %+v", first)
	}
	if emitter.Allows(VerbRecordDestroyed) {
		t.Fatalf("expected record.destroyed to be filtered")
	}
}
