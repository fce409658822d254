// Package store is the Remote Store Client: a uniform list/get/create/
// update/delete contract over the college REST API, independent of entity
// shape. Every call is a single request/response round trip; nothing is
// batched or retried, and no local state is mutated.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// Client talks to one API root, e.g. "http://localhost:5000/api".
type Client struct {
	baseURL  string
	http     *http.Client
	registry *schema.Registry
	logger   zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, registry *schema.Registry, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token; "" stops sending Authorization.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// List fetches every record of an entity. A body that is not a JSON array
// is treated as an empty collection.
func (c *Client) List(ctx context.Context, entity string) ([]record.Record, error) {
	es, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, es, OpList, http.MethodGet, "/"+es.Path+"/get", nil, &raw); err != nil {
		return nil, err
	}
	var rows []record.Record
	if err := json.Unmarshal(raw, &rows); err != nil {
		c.logger.Warn().Str("entity", entity).Msg("list body is not an array, treating as empty")
		return []record.Record{}, nil
	}
	out := rows[:0]
	for _, r := range rows {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get fetches a single record by id.
func (c *Client) Get(ctx context.Context, entity, id string) (record.Record, error) {
	es, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	var rec record.Record
	if err := c.do(ctx, es, OpGet, http.MethodGet, "/"+es.Path+"/get/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return unwrapRecord(rec, entity), nil
}

// Create submits a new record. The payload carries foreign keys as bare ids.
func (c *Client) Create(ctx context.Context, entity string, payload record.Record) (record.Record, error) {
	es, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	var rec record.Record
	if err := c.do(ctx, es, OpCreate, http.MethodPost, "/"+es.Path+"/create", payload, &rec); err != nil {
		return nil, err
	}
	return unwrapRecord(rec, entity), nil
}

// Update replaces the mutable fields of the record identified by id.
func (c *Client) Update(ctx context.Context, entity, id string, payload record.Record) (record.Record, error) {
	es, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	var rec record.Record
	if err := c.do(ctx, es, OpUpdate, http.MethodPut, "/"+es.Path+"/update/"+url.PathEscape(id), payload, &rec); err != nil {
		return nil, err
	}
	return unwrapRecord(rec, entity), nil
}

// Delete removes the record identified by id.
func (c *Client) Delete(ctx context.Context, entity, id string) error {
	es, err := c.entity(entity)
	if err != nil {
		return err
	}
	return c.do(ctx, es, OpDelete, http.MethodDelete, "/"+es.Path+"/delete/"+url.PathEscape(id), nil, nil)
}

func (c *Client) entity(name string) (*schema.EntitySchema, error) {
	es := c.registry.Entity(name)
	if es == nil {
		return nil, fmt.Errorf("store: unknown entity %q", name)
	}
	return es, nil
}

// do performs one round trip. On a non-2xx status the body's "message" is
// surfaced; otherwise a 2xx body is decoded into out (if out is non-nil).
func (c *Client) do(ctx context.Context, es *schema.EntitySchema, op Op, method, path string, body, out any) error {
	singular, plural := "request", "records"
	name := ""
	if es != nil {
		singular, plural, name = es.Singular(), es.Plural, es.Name
	}
	fail := func(status int, msg string, err error) *Error {
		if msg == "" {
			msg = fallbackMessage(op, singular, plural)
		}
		return &Error{Op: op, Entity: name, Status: status, Message: msg, Err: err}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(0, "", fmt.Errorf("encoding payload: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fail(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("store request failed")
		return fail(0, "", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("store request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &eb)
		return fail(resp.StatusCode, eb.Message, nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fail(resp.StatusCode, "", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// unwrapRecord accepts both a bare record and the common envelope shapes
// {"data": {...}} or {"<entity>": {...}}.
func unwrapRecord(rec record.Record, entity string) record.Record {
	if rec == nil || rec.ID() != "" {
		return rec
	}
	for _, key := range []string{"data", entity} {
		if inner, ok := rec[key].(map[string]any); ok && record.IDOf(inner) != "" {
			return record.Record(inner)
		}
	}
	return rec
}
