package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEndpointNotDefined reports a CRUD action with no endpoint configured.
	ErrEndpointNotDefined = errors.New("entity: endpoint not defined")
	// ErrURLNotDefined reports an endpoint with neither a URL nor a handler.
	ErrURLNotDefined = errors.New("entity: url not defined")
	// ErrPlainStore reports a bulk save against a plain (untyped) model.
	ErrPlainStore = errors.New("entity: cannot save plain store")
	// ErrNothingToSave reports a bulk save with no dirty records.
	ErrNothingToSave = errors.New("entity: nothing to save")
	// ErrIDRequired reports a delete or load issued without ids.
	ErrIDRequired = errors.New("entity: id required")
	// ErrStoreFiltered reports a mutation against a filtered view.
	ErrStoreFiltered = errors.New("entity: store is filtered")
	// ErrRecordDestroyed reports an operation on a destroyed record.
	ErrRecordDestroyed = errors.New("entity: record destroyed")
	// ErrUnknownModel reports a lookup for a type that was never defined.
	ErrUnknownModel = errors.New("entity: unknown model")
	// ErrLocalStore reports a remote operation against a local-only store.
	ErrLocalStore = errors.New("entity: store is local")
	// ErrRecordNotFound reports an id that is not present in a store.
	ErrRecordNotFound = errors.New("entity: record not found")
	// ErrCancelled reports a before* listener vetoing an operation.
	ErrCancelled = errors.New("entity: cancelled by listener")
	// ErrUnsuccessful is the reason used when a response's success field is
	// false.
	ErrUnsuccessful = errors.New("entity: unsuccessful response")
	// ErrNoTransport reports a URL endpoint used without a Transport.
	ErrNoTransport = errors.New("entity: transport not configured")
)

// RemoteError is the rejection reason of every remote CRUD future. Response
// carries the raw payload when the server answered.
type RemoteError struct {
	Scope    Scope
	Action   Action
	Response any
	Err      error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("entity: %s %s failed: %v", e.Scope, e.Action, e.Err)
}

func (e *RemoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func remoteError(scope Scope, action Action, response any, err error) error {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return err
	}
	return &RemoteError{Scope: scope, Action: action, Response: response, Err: err}
}

// ResponseOf extracts the raw response from a remote rejection reason.
func ResponseOf(err error) (any, bool) {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return nil, false
	}
	return remote.Response, remote.Response != nil
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("entity: %s evaluator %s scope=%s: %v", e.Engine, describeExpression(e.Expr), e.Scope, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "entity:") {
		return err
	}
	return fmt.Errorf("entity: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Scope == "" {
			evalErr.Scope = scope
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Scope:  scope,
		Err:    err,
	}
}
