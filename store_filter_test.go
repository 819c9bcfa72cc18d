package entity_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-entity"
)

func filledStore(t *testing.T) *entity.Store {
	t.Helper()
	h := newHarness(t)
	store, err := h.registry.NewStore(h.model)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.AddMany(people()); err != nil {
		t.Fatalf("add many: %v", err)
	}
	return store
}

func TestFilterExpr(t *testing.T) {
	cases := []struct {
		name      string
		evaluator entity.Evaluator
		expr      string
		params    map[string]any
		want      []any
	}{
		{name: "expr default", expr: "age >= 40", want: []any{2, 3}},
		{name: "expr args", evaluator: entity.NewExprEvaluator(), expr: "age < args.max", params: map[string]any{"max": 40}, want: []any{1}},
		{name: "expr record binding", expr: "record.id != 2 && name != ''", want: []any{1}},
		{name: "cel", evaluator: entity.NewCELEvaluator(), expr: "age >= 40 && record.type == 'user'", want: []any{2, 3}},
		{name: "cel args", evaluator: entity.NewCELEvaluator(), expr: "name == args.who", params: map[string]any{"who": "Grace"}, want: []any{2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := filledStore(t)
			if err := store.FilterExpr(tc.expr, tc.evaluator, tc.params); err != nil {
				t.Fatalf("filter: %v", err)
			}
			if diff := cmp.Diff(tc.want, store.Keys()); diff != "" {
				t.Fatalf("filtered keys mismatch (-want +got):\n%s", diff)
			}
			store.ClearFilter(true)
			if store.Len() != 3 {
				t.Fatalf("expected full collection after clear, got %d", store.Len())
			}
		})
	}
}

func TestFilterExprRefiltersFullCollection(t *testing.T) {
	store := filledStore(t)
	if err := store.FilterExpr("age >= 40", nil, nil); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if err := store.FilterExpr("age < 40", nil, nil); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if diff := cmp.Diff([]any{1}, store.Keys()); diff != "" {
		t.Fatalf("expected the second filter to see hidden items (-want +got):\n%s", diff)
	}
}

func TestFilterExprErrorLeavesStoreUnchanged(t *testing.T) {
	cases := []struct {
		name string
		expr string
	}{
		{name: "syntax", expr: "age >="},
		{name: "runtime", expr: "age % 0 == 0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := filledStore(t)
			filtered := 0
			store.On("filter", func(args ...any) any {
				filtered++
				return nil
			}, nil)

			err := store.FilterExpr(tc.expr, nil, nil)
			var evalErr *entity.EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %v", err)
			}
			if evalErr.Engine != "expr" || evalErr.Expr != tc.expr {
				t.Fatalf("unexpected error metadata %+v", evalErr)
			}
			if store.IsFiltered() || store.Len() != 3 || filtered != 0 {
				t.Fatalf("store changed on error: filtered=%v len=%d events=%d", store.IsFiltered(), store.Len(), filtered)
			}
		})
	}
}
