package entity

import (
	"context"
	"net/http"

	"github.com/goliatone/go-entity/future"
)

// Request is the descriptor a Model hands to a Transport or Handler.
type Request struct {
	Scope   Scope
	Action  Action
	URL     string
	Method  string
	Headers map[string]string
	// Data is the merged parameter set, or the payload itself when the
	// endpoint has no data field.
	Data any
	// JSON marks Body as the JSON encoding of Data.
	JSON bool
	Body []byte
}

// IsRead reports whether the request uses a read method.
func (r Request) IsRead() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// Params returns Data as a parameter map, or nil when the payload replaced
// the parameters with something else.
func (r Request) Params() map[string]any {
	params, _ := r.Data.(map[string]any)
	return params
}

// Transport performs the network exchange for a Request. The returned future
// resolves with the decoded response payload or rejects with the failure
// reason, including non-success HTTP statuses.
type Transport interface {
	Send(ctx context.Context, req Request) *future.Future[any]
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) *future.Future[any]

// Send implements Transport.
func (fn TransportFunc) Send(ctx context.Context, req Request) *future.Future[any] {
	return fn(ctx, req)
}
