package entity

import (
	"errors"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "age > missing", "user", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "age > missing" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Scope != "user" {
		t.Fatalf("expected scope metadata, got %q", evalErr.Scope)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", "post", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Scope != "post" {
		t.Fatalf("scope should be filled, got %q", existing.Scope)
	}
}

func TestRemoteErrorUnwrapsAndCarriesResponse(t *testing.T) {
	response := map[string]any{"success": false}
	err := remoteError(ScopeRecord, ActionSave, response, ErrUnsuccessful)

	if !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("expected remote error to unwrap to ErrUnsuccessful, got %v", err)
	}
	raw, ok := ResponseOf(err)
	if !ok {
		t.Fatalf("expected response to be attached")
	}
	if raw.(map[string]any)["success"] != false {
		t.Fatalf("unexpected response %v", raw)
	}
	if again := remoteError(ScopeStore, ActionLoad, nil, err); again != err {
		t.Fatalf("expected existing remote error to pass through")
	}
	if err.Error() != "entity: record save failed: entity: unsuccessful response" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
