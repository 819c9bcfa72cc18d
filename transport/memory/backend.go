// Package memory is an in-process entity backend. It answers the requests a
// Model builds the way a small REST service would, keeping rows per URL in a
// mutex-guarded map. It is meant for tests, examples and offline use.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-entity"
	"github.com/goliatone/go-entity/future"
)

var ErrNotFound = errors.New("memory: row not found")

// Meta is backend-owned bookkeeping for one row.
type Meta struct {
	Version   int
	UpdatedAt time.Time
}

// Fields names the request and response properties the backend reads and
// writes. They must match the model endpoints it serves. With an empty Data
// the payload is the row itself and responses are bare.
type Fields struct {
	ID      string
	Data    string
	Total   string
	Success string
	Start   string
	Limit   string
}

// DefaultFields matches a model with id "id", payloads under "data", the
// total under "total" and a "success" flag.
var DefaultFields = Fields{
	ID:      "id",
	Data:    "data",
	Total:   "total",
	Success: "success",
	Start:   "start",
	Limit:   "limit",
}

// Option configures a Backend.
type Option func(*Backend)

// WithFields overrides DefaultFields.
func WithFields(fields Fields) Option {
	return func(b *Backend) {
		b.fields = fields
	}
}

// WithClock overrides time.Now for row metadata.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// Backend implements entity.Transport over in-memory collections keyed by
// request URL.
type Backend struct {
	scheduler future.Scheduler
	fields    Fields
	now       func() time.Time

	mu          sync.RWMutex
	collections map[string]*collection
	requests    []entity.Request
	failures    []error
}

type collection struct {
	rows   map[string]map[string]any
	meta   map[string]Meta
	order  []string
	nextID int
}

// New returns an empty backend whose futures run continuations on scheduler.
func New(scheduler future.Scheduler, opts ...Option) *Backend {
	b := &Backend{
		scheduler:   scheduler,
		fields:      DefaultFields,
		now:         time.Now,
		collections: map[string]*collection{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Seed stores rows under url. Rows without an id get the next sequence id.
func (b *Backend) Seed(url string, rows ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.collection(url)
	for _, row := range rows {
		b.put(c, cloneRow(row))
	}
}

// Rows returns copies of the rows under url in insertion order.
func (b *Backend) Rows(url string) []map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[url]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, cloneRow(c.rows[key]))
	}
	return out
}

// Row returns a copy of the row with id under url.
func (b *Backend) Row(url string, id any) (map[string]any, Meta, bool) {
	key, ok := entity.KeyOf(id)
	if !ok {
		return nil, Meta{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[url]
	if !ok {
		return nil, Meta{}, false
	}
	row, ok := c.rows[key]
	if !ok {
		return nil, Meta{}, false
	}
	return cloneRow(row), c.meta[key], true
}

// Requests returns the requests received so far.
func (b *Backend) Requests() []entity.Request {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]entity.Request(nil), b.requests...)
}

// FailNext makes the next request reject with err.
func (b *Backend) FailNext(err error) {
	b.mu.Lock()
	b.failures = append(b.failures, err)
	b.mu.Unlock()
}

// Send implements entity.Transport.
func (b *Backend) Send(ctx context.Context, req entity.Request) *future.Future[any] {
	if err := ctx.Err(); err != nil {
		return future.Rejected[any](b.scheduler, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		return future.Rejected[any](b.scheduler, err)
	}
	response, err := b.serve(req)
	if err != nil {
		return future.Rejected[any](b.scheduler, err)
	}
	return future.Resolved(b.scheduler, response)
}

func (b *Backend) serve(req entity.Request) (any, error) {
	c := b.collection(req.URL)
	switch {
	case req.Scope == entity.ScopeRecord && req.Action == entity.ActionLoad:
		return b.loadRecord(c, req)
	case req.Scope == entity.ScopeRecord && (req.Action == entity.ActionSave || req.Action == entity.ActionCreate):
		return b.saveRecord(c, req)
	case req.Scope == entity.ScopeRecord && req.Action == entity.ActionDelete:
		return b.deleteRows(c, []any{b.requestID(req)})
	case req.Scope == entity.ScopeStore && req.Action == entity.ActionLoad:
		return b.loadPage(c, req.Params())
	case req.Scope == entity.ScopeStore && req.Action == entity.ActionSave:
		return b.saveRows(c, req)
	case req.Scope == entity.ScopeStore && req.Action == entity.ActionDelete:
		ids, _ := req.Params()[b.fields.ID].([]any)
		return b.deleteRows(c, ids)
	default:
		return nil, fmt.Errorf("memory: unsupported request %s.%s", req.Scope, req.Action)
	}
}

func (b *Backend) loadRecord(c *collection, req entity.Request) (any, error) {
	key, ok := entity.KeyOf(b.requestID(req))
	if !ok {
		return nil, fmt.Errorf("%w: missing id", ErrNotFound)
	}
	row, ok := c.rows[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, req.URL, key)
	}
	return b.recordResponse(cloneRow(row)), nil
}

func (b *Backend) saveRecord(c *collection, req entity.Request) (any, error) {
	data, ok := b.requestData(req).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("memory: %s.%s without data", req.Scope, req.Action)
	}
	row := cloneRow(data)
	if id := b.requestID(req); id != nil {
		row[b.fields.ID] = id
	}
	if key, ok := entity.KeyOf(row[b.fields.ID]); ok {
		if existing, found := c.rows[key]; found {
			for field, value := range existing {
				if _, set := row[field]; !set {
					row[field] = value
				}
			}
		}
	}
	return b.recordResponse(cloneRow(b.put(c, row))), nil
}

func (b *Backend) saveRows(c *collection, req entity.Request) (any, error) {
	rows, ok := b.requestData(req).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("memory: store save expects rows keyed by id")
	}
	keys := make([]string, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	saved := make([]any, 0, len(keys))
	for _, key := range keys {
		data, ok := rows[key].(map[string]any)
		if !ok {
			continue
		}
		row := cloneRow(data)
		if _, set := row[b.fields.ID]; !set {
			row[b.fields.ID] = parseID(key)
		}
		saved = append(saved, cloneRow(b.put(c, row)))
	}
	return b.listResponse(saved, len(c.order)), nil
}

func (b *Backend) deleteRows(c *collection, ids []any) (any, error) {
	for _, id := range ids {
		key, ok := entity.KeyOf(id)
		if !ok {
			continue
		}
		if _, found := c.rows[key]; !found {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
	}
	for _, id := range ids {
		key, _ := entity.KeyOf(id)
		delete(c.rows, key)
		delete(c.meta, key)
		for i, existing := range c.order {
			if existing == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	return b.status(), nil
}

func (b *Backend) loadPage(c *collection, params map[string]any) (any, error) {
	matched := make([]any, 0, len(c.order))
	for _, key := range c.order {
		row := c.rows[key]
		if b.matches(row, params) {
			matched = append(matched, cloneRow(row))
		}
	}
	total := len(matched)
	start := intParam(params[b.fields.Start], 0)
	limit := intParam(params[b.fields.Limit], total)
	if start > total {
		start = total
	}
	end := start + limit
	if limit <= 0 || end > total {
		end = total
	}
	return b.listResponse(matched[start:end], total), nil
}

// matches filters on params naming row fields; pagination and id parameters
// are ignored.
func (b *Backend) matches(row map[string]any, params map[string]any) bool {
	for name, want := range params {
		switch name {
		case b.fields.Start, b.fields.Limit, b.fields.ID, b.fields.Data:
			continue
		}
		got, ok := row[name]
		if !ok {
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (b *Backend) put(c *collection, row map[string]any) map[string]any {
	key, ok := entity.KeyOf(row[b.fields.ID])
	if !ok || key == "" {
		c.nextID++
		row[b.fields.ID] = c.nextID
		key = strconv.Itoa(c.nextID)
	} else if n, err := strconv.Atoi(key); err == nil && n > c.nextID {
		c.nextID = n
	}
	if _, exists := c.rows[key]; !exists {
		c.order = append(c.order, key)
	}
	c.rows[key] = row
	meta := c.meta[key]
	meta.Version++
	meta.UpdatedAt = b.now()
	c.meta[key] = meta
	return row
}

func (b *Backend) collection(url string) *collection {
	c, ok := b.collections[url]
	if !ok {
		c = &collection{
			rows: map[string]map[string]any{},
			meta: map[string]Meta{},
		}
		b.collections[url] = c
	}
	return c
}

func (b *Backend) requestID(req entity.Request) any {
	if params := req.Params(); params != nil {
		if id, ok := params[b.fields.ID]; ok {
			return id
		}
	}
	return nil
}

// requestData returns the payload: the data field when the parameters carry
// one, else the whole payload.
func (b *Backend) requestData(req entity.Request) any {
	params := req.Params()
	if params == nil {
		return req.Data
	}
	if b.fields.Data != "" {
		if data, ok := params[b.fields.Data]; ok {
			return data
		}
	}
	return params
}

// recordResponse answers a single row, wrapped under the data field when one
// is configured.
func (b *Backend) recordResponse(row map[string]any) any {
	if b.fields.Data == "" {
		return row
	}
	response := b.status()
	response[b.fields.Data] = row
	return response
}

func (b *Backend) listResponse(rows []any, total int) any {
	if b.fields.Data == "" {
		return rows
	}
	response := b.status()
	response[b.fields.Data] = rows
	if b.fields.Total != "" {
		response[b.fields.Total] = total
	}
	return response
}

func (b *Backend) status() map[string]any {
	response := map[string]any{}
	if b.fields.Success != "" {
		response[b.fields.Success] = true
	}
	return response
}

func intParam(value any, fallback int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseID(key string) any {
	if n, err := strconv.Atoi(key); err == nil {
		return n
	}
	return key
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		out[key] = value
	}
	return out
}
