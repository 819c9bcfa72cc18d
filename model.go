package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-entity/future"
	"github.com/goliatone/go-entity/layering"
)

// Model maps one entity type to wire requests and responses. A Model is
// immutable after construction apart from the last raw response it saw.
type Model struct {
	cfg       ModelConfig
	registry  *Registry
	transport Transport

	mu   sync.Mutex
	last any
}

// ModelOption configures a Model.
type ModelOption func(*modelOptions)

type modelOptions struct {
	transport Transport
}

// WithModelTransport overrides the registry transport for one model.
func WithModelTransport(transport Transport) ModelOption {
	return func(opts *modelOptions) {
		opts.transport = transport
	}
}

// Result is what a successful model request resolves with. Record requests
// fill ID and Data; store requests fill Data and Total.
type Result struct {
	ID    any
	Data  any
	Total any
}

// Map returns Data as a field map.
func (r Result) Map() map[string]any {
	data, _ := r.Data.(map[string]any)
	return data
}

// Items returns Data as a list of entries.
func (r Result) Items() []any {
	switch data := r.Data.(type) {
	case []any:
		return data
	case []map[string]any:
		items := make([]any, len(data))
		for i, item := range data {
			items[i] = item
		}
		return items
	default:
		return nil
	}
}

// Type returns the entity type name.
func (m *Model) Type() string {
	return m.cfg.Type
}

// IsPlain reports whether entities of this model stay raw maps.
func (m *Model) IsPlain() bool {
	return m.cfg.Type == ""
}

// Config returns the model's configuration.
func (m *Model) Config() ModelConfig {
	return m.cfg
}

// Registry returns the registry the model belongs to.
func (m *Model) Registry() *Registry {
	return m.registry
}

// Field returns the descriptor of name.
func (m *Model) Field(name string) (Field, bool) {
	f, ok := m.cfg.Fields[name]
	return f, ok
}

// Fields returns a copy of the field table.
func (m *Model) Fields() map[string]Field {
	out := make(map[string]Field, len(m.cfg.Fields))
	for name, f := range m.cfg.Fields {
		out[name] = f
	}
	return out
}

// LastResponse returns the most recent raw transport response.
func (m *Model) LastResponse() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Prop resolves an endpoint property: the action endpoint first, then the
// scope profile, then the model-wide defaults. Unset values fall through; nil
// means unset everywhere.
func (m *Model) Prop(scope Scope, action Action, prop string) any {
	profile := m.cfg.profile(scope)
	if ep, ok := profile.action(action); ok {
		if value, ok := ep.prop(prop); ok {
			return value
		}
	}
	if value, ok := profile.Endpoint.prop(prop); ok {
		return value
	}
	if value, ok := m.cfg.Defaults.prop(prop); ok {
		return value
	}
	return nil
}

func (m *Model) stringProp(scope Scope, action Action, prop string) string {
	s, _ := m.Prop(scope, action, prop).(string)
	return s
}

func (e Endpoint) prop(name string) (any, bool) {
	var value any
	switch name {
	case "url":
		value = e.URL
	case "handler":
		if e.Handler == nil {
			return nil, false
		}
		return e.Handler, true
	case "method":
		value = e.Method
	case "id":
		value = e.ID
	case "data":
		value = e.Data
	case "success":
		value = e.Success
	case "total":
		value = e.Total
	case "start":
		value = e.Start
	case "limit":
		value = e.Limit
	case "json":
		if e.JSON == nil || !*e.JSON {
			return nil, false
		}
		return true, true
	case "extra":
		if len(e.Extra) == 0 {
			return nil, false
		}
		return e.Extra, true
	case "headers":
		if len(e.Headers) == 0 {
			return nil, false
		}
		return e.Headers, true
	default:
		return nil, false
	}
	s := value.(string)
	return s, s != ""
}

// IDField returns the id field name for scope/action, "id" when unset.
func (m *Model) IDField(scope Scope, action Action) string {
	if name := m.stringProp(scope, action, "id"); name != "" {
		return name
	}
	return "id"
}

// StartParam and LimitParam name the pagination parameters of store loads.
func (m *Model) StartParam() string {
	if name := m.stringProp(ScopeStore, ActionLoad, "start"); name != "" {
		return name
	}
	return "start"
}

func (m *Model) LimitParam() string {
	if name := m.stringProp(ScopeStore, ActionLoad, "limit"); name != "" {
		return name
	}
	return "limit"
}

// target walks the same chain as Prop but treats URL and Handler as one
// property, so a handler on the action beats a URL on the profile.
func (m *Model) target(scope Scope, action Action) (string, Handler) {
	profile := m.cfg.profile(scope)
	levels := make([]Endpoint, 0, 3)
	if ep, ok := profile.action(action); ok {
		levels = append(levels, ep)
	}
	levels = append(levels, profile.Endpoint, m.cfg.Defaults)
	for _, ep := range levels {
		if ep.Handler != nil {
			return "", ep.Handler
		}
		if ep.URL != "" {
			return ep.URL, nil
		}
	}
	return "", nil
}

// BuildRequest assembles the request for scope/action. Extra parameters are
// layered model defaults < profile < action < extra.
func (m *Model) BuildRequest(scope Scope, action Action, id any, data any, extra map[string]any) (Request, error) {
	req, _, err := m.buildRequest(scope, action, id, data, extra)
	return req, err
}

func (m *Model) buildRequest(scope Scope, action Action, id any, data any, extra map[string]any) (Request, Handler, error) {
	profile := m.cfg.profile(scope)
	ep, hasAction := profile.action(action)
	url, handler := m.target(scope, action)
	if url == "" && handler == nil {
		if !hasAction {
			return Request{}, nil, fmt.Errorf("%w: %s.%s", ErrEndpointNotDefined, scope, action)
		}
		return Request{}, nil, fmt.Errorf("%w: %s.%s", ErrURLNotDefined, scope, action)
	}

	params := layering.MergeParams(extra, ep.Extra, profile.Extra, m.cfg.Defaults.Extra)

	method := m.stringProp(scope, action, "method")
	if method == "" {
		if action == ActionLoad {
			method = http.MethodGet
		} else {
			method = http.MethodPost
		}
	}

	var payload any = params
	if hasID(id) {
		params[m.IDField(scope, action)] = id
	}
	if data != nil {
		if dataProp := m.stringProp(scope, action, "data"); dataProp != "" {
			params[dataProp] = data
		} else {
			payload = data
		}
	}

	req := Request{
		Scope:  scope,
		Action: action,
		URL:    url,
		Method: method,
		Data:   payload,
	}
	if headers, ok := m.Prop(scope, action, "headers").(map[string]string); ok {
		req.Headers = make(map[string]string, len(headers))
		for key, value := range headers {
			req.Headers[key] = value
		}
	}
	if m.Prop(scope, action, "json") == true && payload != nil && !req.IsRead() {
		body, err := json.Marshal(payload)
		if err != nil {
			return Request{}, nil, fmt.Errorf("entity: encode %s.%s: %w", scope, action, err)
		}
		req.JSON = true
		req.Body = body
	}
	return req, handler, nil
}

// LoadRecord requests the record with id.
func (m *Model) LoadRecord(ctx context.Context, id any) (*future.Future[Result], error) {
	return m.request(ctx, ScopeRecord, ActionLoad, id, nil, nil)
}

// SaveRecord sends the stored representation of rec's keys (all fields when
// keys is empty). Records without an id use the create action.
func (m *Model) SaveRecord(ctx context.Context, rec *Record, keys []string, extra map[string]any) (*future.Future[Result], error) {
	action := ActionSave
	if !hasID(rec.ID()) {
		action = ActionCreate
	}
	data := rec.StoreData(rec.GetData(keys...))
	for key, value := range extra {
		data[key] = value
	}
	return m.request(ctx, ScopeRecord, action, rec.ID(), data, nil)
}

// DeleteRecord requests deletion of rec.
func (m *Model) DeleteRecord(ctx context.Context, rec *Record) (*future.Future[Result], error) {
	return m.request(ctx, ScopeRecord, ActionDelete, rec.ID(), nil, nil)
}

// LoadStore requests a page of entities.
func (m *Model) LoadStore(ctx context.Context, params map[string]any) (*future.Future[Result], error) {
	return m.request(ctx, ScopeStore, ActionLoad, nil, nil, params)
}

// SaveStore sends stored record data keyed by record id.
func (m *Model) SaveStore(ctx context.Context, records map[string]any) (*future.Future[Result], error) {
	return m.request(ctx, ScopeStore, ActionSave, nil, records, nil)
}

// DeleteRecords requests deletion of ids.
func (m *Model) DeleteRecords(ctx context.Context, ids []any) (*future.Future[Result], error) {
	return m.request(ctx, ScopeStore, ActionDelete, ids, nil, nil)
}

func (m *Model) request(ctx context.Context, scope Scope, action Action, id any, data any, extra map[string]any) (*future.Future[Result], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	req, handler, err := m.buildRequest(scope, action, id, data, extra)
	if err != nil {
		m.logRequest(scope, action, id, 0, err)
		return nil, err
	}

	scheduler := m.registry.Scheduler()
	var raw *future.Future[any]
	switch {
	case handler != nil:
		response, err := handler(ctx, req)
		if err != nil {
			raw = future.Rejected[any](scheduler, err)
		} else {
			raw = future.Resolved(scheduler, response)
		}
	default:
		transport := m.transport
		if transport == nil {
			transport = m.registry.transport()
		}
		if transport == nil {
			m.logRequest(scope, action, id, 0, ErrNoTransport)
			return nil, ErrNoTransport
		}
		raw = transport.Send(ctx, req)
	}

	out := future.New[Result](scheduler)
	raw.Done(func(response any) {
		m.mu.Lock()
		m.last = response
		m.mu.Unlock()

		result, err := m.interpret(scope, action, response)
		m.logRequest(scope, action, id, time.Since(started), err)
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(result)
	})
	raw.Fail(func(err error) {
		err = remoteError(scope, action, nil, err)
		m.logRequest(scope, action, id, time.Since(started), err)
		out.Reject(err)
	})
	return out, nil
}

// Success reports whether response counts as successful. Without a success
// field, or when the field is absent from the response, it is.
func (m *Model) Success(scope Scope, action Action, response any) bool {
	prop := m.stringProp(scope, action, "success")
	if prop == "" {
		return true
	}
	value, ok := lookup(response, prop)
	if !ok || value == nil {
		return true
	}
	return truthy(value)
}

// Interpret applies the success check and payload extraction to a raw
// response.
func (m *Model) Interpret(scope Scope, action Action, response any) (Result, error) {
	return m.interpret(scope, action, response)
}

func (m *Model) interpret(scope Scope, action Action, response any) (Result, error) {
	if !m.Success(scope, action, response) {
		return Result{}, remoteError(scope, action, response, ErrUnsuccessful)
	}
	data := response
	if prop := m.stringProp(scope, action, "data"); prop != "" {
		data, _ = lookup(response, prop)
	}
	if scope == ScopeRecord {
		idProp := m.IDField(scope, action)
		id, _ := lookup(data, idProp)
		if !truthy(id) {
			id, _ = lookup(response, idProp)
		}
		return Result{ID: id, Data: data}, nil
	}
	var total any
	if prop := m.stringProp(scope, action, "total"); prop != "" {
		total, _ = lookup(response, prop)
	}
	return Result{Data: data, Total: total}, nil
}

func lookup(container any, key string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		value, ok := c[key]
		return value, ok
	case map[any]any:
		value, ok := c[key]
		return value, ok
	case map[string]string:
		value, ok := c[key]
		return value, ok
	default:
		return nil, false
	}
}

// RestoreField converts a wire value into its app-state representation.
func (m *Model) RestoreField(rec *Record, name string, value any) any {
	if f, ok := m.cfg.Fields[name]; ok {
		value = f.codec().restore(f, value)
		if f.Restore != nil {
			value = f.Restore(rec, value, name)
		}
	}
	if m.cfg.OnRestore != nil {
		value = m.cfg.OnRestore(rec, value, name)
	}
	return value
}

// StoreField converts an app-state value into its wire representation.
func (m *Model) StoreField(rec *Record, name string, value any) any {
	if f, ok := m.cfg.Fields[name]; ok {
		value = f.codec().store(f, value)
		if f.Store != nil {
			value = f.Store(rec, value, name)
		}
	}
	if m.cfg.OnStore != nil {
		value = m.cfg.OnStore(rec, value, name)
	}
	return value
}

// RestoreData runs RestoreField over every entry of data.
func (m *Model) RestoreData(rec *Record, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for name, value := range data {
		out[name] = m.RestoreField(rec, name, value)
	}
	return out
}

// StoreData runs StoreField over every entry of data.
func (m *Model) StoreData(rec *Record, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for name, value := range data {
		out[name] = m.StoreField(rec, name, value)
	}
	return out
}

func (m *Model) logRequest(scope Scope, action Action, id any, elapsed time.Duration, err error) {
	m.registry.logger().Log(LogEvent{
		Component: "model",
		Action:    string(scope) + "." + string(action),
		Type:      m.cfg.Type,
		ID:        id,
		Duration:  elapsed,
		Err:       err,
	})
}
