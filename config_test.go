package entity_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-entity"
)

const modelsList = `
models:
  - type: user
    fields:
      age: int
      score: double
      active: bool
      born: {type: date, format: timestamp}
    defaults:
      url: /users
      data: data
      success: success
    store:
      total: total
      actions:
        load:
          url: /users/search
          extra: {active: true}
`

func TestParseModelConfigsList(t *testing.T) {
	configs, err := entity.ParseModelConfigs([]byte(modelsList))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected one model, got %d", len(configs))
	}
	cfg := configs[0]

	wantFields := map[string]entity.Field{
		"age":    entity.F(entity.FieldInt),
		"score":  entity.F(entity.FieldDouble),
		"active": entity.F(entity.FieldBool),
		"born":   {Type: entity.FieldDate, Format: entity.TimestampFormat},
	}
	if diff := cmp.Diff(wantFields, cfg.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if cfg.Defaults.URL != "/users" || cfg.Store.Total != "total" {
		t.Fatalf("unexpected endpoints %+v %+v", cfg.Defaults, cfg.Store.Endpoint)
	}
	load := cfg.Store.Actions[entity.ActionLoad]
	if load.URL != "/users/search" || load.Extra["active"] != true {
		t.Fatalf("unexpected store load endpoint %+v", load)
	}
}

func TestDefineModelsYAMLStream(t *testing.T) {
	stream := `
type: user
defaults: {url: /users}
---
type: order
fields: {total: double}
record:
  actions:
    save: {url: /orders, method: PUT, json: true}
`
	registry := entity.NewRegistry()
	models, err := registry.DefineModelsYAML([]byte(stream))
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected two models, got %d", len(models))
	}
	if diff := cmp.Diff([]string{"order", "user"}, registry.ModelTypes()); diff != "" {
		t.Fatalf("model types mismatch (-want +got):\n%s", diff)
	}
	order, err := registry.Model("order")
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	req, err := order.BuildRequest(entity.ScopeRecord, entity.ActionSave, 3, map[string]any{"total": "9.5"}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Method != "PUT" || !req.JSON {
		t.Fatalf("expected PUT with JSON body, got %s json=%v", req.Method, req.JSON)
	}
}

func TestParseModelConfigsErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{name: "syntax", yaml: "models: [", want: "parse models document 0"},
		{name: "unknown action", yaml: "models: [{type: x, record: {actions: {purge: {url: /x}}}}]", want: `unknown record action "purge"`},
		{name: "blank field", yaml: "type: x\nfields: {' ': int}", want: "empty field name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := entity.ParseModelConfigs([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFieldMarshalYAML(t *testing.T) {
	fields := map[string]entity.Field{
		"age":  entity.F(entity.FieldInt),
		"born": {Type: entity.FieldDate, Format: "2006-01-02"},
	}
	out, err := yaml.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), "age: int") {
		t.Fatalf("expected scalar form for plain fields, got:\n%s", out)
	}

	var back map[string]entity.Field
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(fields, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
