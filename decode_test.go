package entity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-entity"
)

type person struct {
	ID   int       `json:"id"`
	Name string    `json:"name"`
	Age  int       `json:"age"`
	Born time.Time `json:"born"`
}

func newPersonModel(t *testing.T, registry *entity.Registry) *entity.Model {
	t.Helper()
	model, err := registry.DefineModel(entity.ModelConfig{
		Type: "person",
		Fields: map[string]entity.Field{
			"age":  entity.F(entity.FieldInt),
			"born": {Type: entity.FieldDate, Format: entity.TimestampFormat},
		},
	})
	if err != nil {
		t.Fatalf("define model: %v", err)
	}
	return model
}

func TestDecodeRecord(t *testing.T) {
	registry := entity.NewRegistry()
	model := newPersonModel(t, registry)
	rec, err := entity.NewRecord(model, entity.WithID(1), entity.WithData(map[string]any{
		"id": 1, "name": "Ada", "age": "36", "born": 1700000000,
	}))
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	got, err := entity.Decode[person](rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := person{ID: 1, Name: "Ada", Age: 36, Born: time.Unix(1700000000, 0).UTC()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
	}

	_, err = entity.Decode[person](rec, entity.DecodeStrict[person](), entity.DecodePreHook[person](
		func(_ string, _ string, data map[string]any) (map[string]any, error) {
			data["nickname"] = "Countess"
			return data, nil
		}))
	if err == nil {
		t.Fatalf("expected strict decode to reject unknown fields")
	}

	seen := ""
	_, err = entity.Decode[person](rec, entity.DecodePostHook[person](func(modelType, id string, _ *person) error {
		seen = modelType + "/" + id
		return nil
	}))
	if err != nil || seen != "person/1" {
		t.Fatalf("expected post hook with context, got %q err %v", seen, err)
	}

	rec.Destroy()
	if _, err := entity.Decode[person](rec); !errors.Is(err, entity.ErrRecordDestroyed) {
		t.Fatalf("expected ErrRecordDestroyed, got %v", err)
	}
}

func TestDecodeItems(t *testing.T) {
	registry := entity.NewRegistry()
	model := newPersonModel(t, registry)
	store, err := registry.NewStore(model, entity.WithLocal(true), entity.WithInitialData([]any{
		map[string]any{"id": 1, "name": "Ada", "age": "36"},
		map[string]any{"id": 2, "name": "Grace", "age": "45"},
	}))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	decoded, err := entity.DecodeItems[person](store)
	if err != nil {
		t.Fatalf("decode items: %v", err)
	}
	names := []string{decoded[0].Name, decoded[1].Name}
	if diff := cmp.Diff([]string{"Ada", "Grace"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if decoded[1].Age != 45 {
		t.Fatalf("expected restored age, got %d", decoded[1].Age)
	}
}
