// Package httptransport sends entity requests over net/http. Read requests
// carry their parameters in the query string; other requests carry them as a
// JSON or msgpack body.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-entity"
	"github.com/goliatone/go-entity/future"
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httptransport: unexpected status %s", e.Status)
}

// Option configures a Transport.
type Option func(*Transport)

// WithClient sets the HTTP client. Defaults to http.DefaultClient.
func WithClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithBaseURL prefixes every endpoint URL.
func WithBaseURL(base string) Option {
	return func(t *Transport) {
		t.baseURL = strings.TrimRight(base, "/")
	}
}

// WithCodec sets the body codec. Defaults to JSONCodec.
func WithCodec(codec Codec) Option {
	return func(t *Transport) {
		if codec != nil {
			t.codec = codec
		}
	}
}

// WithHeader adds a header to every request. Endpoint headers win.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.headers[key] = value
	}
}

// Transport implements entity.Transport over HTTP.
type Transport struct {
	client    *http.Client
	baseURL   string
	codec     Codec
	headers   map[string]string
	scheduler future.Scheduler
}

// New returns a Transport settling its futures on scheduler.
func New(scheduler future.Scheduler, opts ...Option) *Transport {
	t := &Transport{
		client:    http.DefaultClient,
		codec:     JSONCodec{},
		headers:   map[string]string{},
		scheduler: scheduler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Send performs req on a new goroutine.
func (t *Transport) Send(ctx context.Context, req entity.Request) *future.Future[any] {
	return future.Go(t.scheduler, func() (any, error) {
		return t.Do(ctx, req)
	})
}

// Do performs req synchronously and returns the decoded response body.
// Non-2xx responses fail with an *entity.RemoteError wrapping a StatusError
// and carrying the decoded body.
func (t *Transport) Do(ctx context.Context, req entity.Request) (any, error) {
	httpReq, err := t.build(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httptransport: read body: %w", err)
	}
	ok := succeeded(resp.StatusCode)
	var body any
	if len(bytes.TrimSpace(raw)) > 0 {
		body, err = codecFor(resp.Header.Get("Content-Type"), t.codec).Unmarshal(raw)
		if err != nil && ok {
			return nil, fmt.Errorf("httptransport: decode body: %w", err)
		}
	}
	if !ok {
		return nil, &entity.RemoteError{
			Scope:    req.Scope,
			Action:   req.Action,
			Response: body,
			Err:      &StatusError{StatusCode: resp.StatusCode, Status: resp.Status},
		}
	}
	return body, nil
}

// succeeded accepts 2xx and 304 Not Modified.
func succeeded(code int) bool {
	return code >= 200 && code < 300 || code == http.StatusNotModified
}

func (t *Transport) build(ctx context.Context, req entity.Request) (*http.Request, error) {
	target := t.baseURL + req.URL
	var body io.Reader
	contentType := ""
	if req.IsRead() {
		query, err := encodeQuery(req.Params())
		if err != nil {
			return nil, err
		}
		if query != "" {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + query
		}
	} else if req.JSON && req.Body != nil {
		body = bytes.NewReader(req.Body)
		contentType = JSONCodec{}.ContentType()
	} else if req.Data != nil {
		encoded, err := t.codec.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("httptransport: encode %s.%s: %w", req.Scope, req.Action, err)
		}
		body = bytes.NewReader(encoded)
		contentType = t.codec.ContentType()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", t.codec.ContentType())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range t.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

// encodeQuery flattens params: lists repeat the key, maps travel as JSON.
func encodeQuery(params map[string]any) (string, error) {
	values := url.Values{}
	for key, value := range params {
		switch v := value.(type) {
		case nil:
			continue
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		case map[string]any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("httptransport: encode %q: %w", key, err)
			}
			values.Set(key, string(encoded))
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values.Encode(), nil
}
