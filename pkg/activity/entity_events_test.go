package activity

import (
	"context"
	"testing"
)

func TestBuildRecordSavedEventCarriesFields(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := EntityEventInput{
		Actor:     Actor{ActorID: " actor ", UserID: " user ", TenantID: " tenant "},
		ModelType: "user",
		ID:        " 7 ",
		StoreID:   "store-1",
		Fields:    []string{"age", "name"},
		Metadata:  meta,
	}

	event := BuildRecordSavedEvent(input)

	if event.Verb != VerbRecordSaved {
		t.Fatalf("expected verb %s got %s", VerbRecordSaved, event.Verb)
	}
	if event.ObjectType != "user" || event.ObjectID != "7" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	fields, ok := event.Metadata["fields"].([]string)
	if !ok || len(fields) != 2 || fields[0] != "age" {
		t.Fatalf("expected fields metadata, got %v", event.Metadata["fields"])
	}
	if event.Metadata["store_id"] != "store-1" {
		t.Fatalf("expected store_id metadata, got %v", event.Metadata["store_id"])
	}
	fields[0] = "changed"
	if input.Fields[0] != "age" {
		t.Fatalf("expected input fields untouched, got %v", input.Fields)
	}
	if _, ok := meta["fields"]; ok {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildRecordEventFallsBackToRecordType(t *testing.T) {
	event := BuildRecordDestroyedEvent(EntityEventInput{ID: "1"})
	if event.ObjectType != "record" {
		t.Fatalf("expected fallback object type 'record', got %q", event.ObjectType)
	}
}

func TestBuildStoreDeletedEventCountsIDs(t *testing.T) {
	event := BuildStoreDeletedEvent(EntityEventInput{
		ModelType: "user",
		StoreID:   "s1",
		IDs:       []string{"1", "2"},
		Count:     2,
	})
	if event.Verb != VerbStoreDeleted || event.ObjectType != "store" || event.ObjectID != "s1" {
		t.Fatalf("unexpected store event: %+v", event)
	}
	if event.Metadata["model_type"] != "user" || event.Metadata["count"] != 2 {
		t.Fatalf("expected store metadata, got %+v", event.Metadata)
	}
	if ids, ok := event.Metadata["ids"].([]string); !ok || len(ids) != 2 {
		t.Fatalf("expected ids metadata, got %v", event.Metadata["ids"])
	}
}

func TestRecordEventWithoutIDIsDroppedByHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	if err := hooks.Notify(context.Background(), BuildRecordDestroyedEvent(EntityEventInput{ModelType: "user"})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected event without id to be skipped, got %d", len(capture.Events))
	}

	if err := hooks.Notify(context.Background(), BuildRecordLoadedEvent(EntityEventInput{ModelType: "user", ID: "3"})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := capture.Verbs(); len(got) != 1 || got[0] != VerbRecordLoaded {
		t.Fatalf("expected record.loaded captured, got %v", got)
	}
}
