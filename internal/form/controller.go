// Package form is the Form State Controller: a single mutable draft record
// per screen, in add or edit mode, validated against the entity schema and
// serialised for submission.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

var (
	// ErrClosed is returned by draft operations when no form is open.
	ErrClosed = errors.New("form: no draft is open")
	// ErrImmutableField is returned when an edit touches a business key.
	ErrImmutableField = errors.New("form: field cannot be changed after creation")
	// ErrUnknownField is returned for fields the entity does not declare.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrNoID is returned by OpenEdit for a record without a store id.
	ErrNoID = errors.New("form: record has no id")
)

// Mode is the controller state.
type Mode int

const (
	ModeClosed Mode = iota
	ModeAdd
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeEdit:
		return "edit"
	default:
		return "closed"
	}
}

// Remote is the subset of the store client used for submission.
type Remote interface {
	Create(ctx context.Context, entity string, payload record.Record) (record.Record, error)
	Update(ctx context.Context, entity, id string, payload record.Record) (record.Record, error)
}

// Sink receives the effect of a successful submission.
type Sink interface {
	OnCreated(rec record.Record)
	OnUpdated(rec record.Record)
}

// Result describes a successful submission.
type Result struct {
	Mode   Mode          // mode the draft was submitted from
	Record record.Record // record as returned by the store
	// Closed is false when the draft was replaced (cancel/reopen) while the
	// request was in flight; the collection is updated either way.
	Closed bool
	// NeedsReload is set when a create response carried no id, so the
	// collection could not be patched and must be re-fetched.
	NeedsReload bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for date defaults.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns one entity's draft. It is safe for concurrent use.
type Controller struct {
	es  *schema.EntitySchema
	now func() time.Time

	mu     sync.Mutex
	mode   Mode
	draft  record.Record
	origin record.Record // edit mode: the record the draft was seeded from
	id     string
	gen    uint64
	errs   map[string]string
}

// New creates a closed controller for an entity.
func New(es *schema.EntitySchema, opts ...Option) *Controller {
	c := &Controller{es: es, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Entity returns the controlled entity schema.
func (c *Controller) Entity() *schema.EntitySchema {
	return c.es
}

// Mode returns the current state.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ID returns the id of the record being edited, "" otherwise.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Draft returns a copy of the current draft, nil when closed.
func (c *Controller) Draft() record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// Errors returns a copy of the field errors from the last validation.
func (c *Controller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// OpenAdd starts a fresh draft populated with schema defaults.
func (c *Controller) OpenAdd() {
	draft := make(record.Record, len(c.es.FieldOrder))
	today := c.now().Format(record.DateLayout)
	for _, name := range c.es.FieldOrder {
		f := c.es.Fields[name]
		switch {
		case f.DefaultToday:
			draft[name] = today
		case f.Default != nil:
			draft[name] = f.Default
		case f.Type == schema.FieldRefList:
			draft[name] = []string{}
		default:
			draft[name] = ""
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.mode = ModeAdd
	c.draft = draft
	c.origin = nil
	c.id = ""
	c.errs = nil
}

// OpenEdit seeds a draft from a stored record. References are flattened to
// bare ids (embedded objects included), dates are canonicalised and
// write-only fields start empty.
func (c *Controller) OpenEdit(rec record.Record) error {
	id := rec.ID()
	if id == "" {
		return ErrNoID
	}
	draft := rec.Clone()
	for _, name := range c.es.FieldOrder {
		f := c.es.Fields[name]
		v := rec[name]
		switch f.Type {
		case schema.FieldRef:
			draft[name] = record.IDOf(v)
		case schema.FieldRefList:
			draft[name] = record.IDsOf(v)
		case schema.FieldDate:
			draft[name] = record.NormalizeDate(v)
		case schema.FieldSecret:
			draft[name] = ""
		default:
			if v == nil {
				draft[name] = ""
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.mode = ModeEdit
	c.draft = draft
	c.origin = rec.Clone()
	c.id = id
	c.errs = nil
	return nil
}

// Cancel discards the draft.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	c.gen++
	c.mode = ModeClosed
	c.draft = nil
	c.origin = nil
	c.id = ""
	c.errs = nil
}

// Set assigns a draft field. Reference values are normalised to ids.
func (c *Controller) Set(field string, value any) error {
	f := c.es.Field(field)
	if f == nil {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, c.es.Name, field)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeClosed {
		return ErrClosed
	}
	if c.mode == ModeEdit && f.Immutable {
		return fmt.Errorf("%w: %s", ErrImmutableField, f.Label)
	}
	switch f.Type {
	case schema.FieldRef:
		value = record.IDOf(value)
	case schema.FieldRefList:
		value = record.IDsOf(value)
	}
	c.draft[field] = value
	delete(c.errs, field)
	return nil
}

// Toggle adds id to a multi-reference field, or removes it if present.
func (c *Controller) Toggle(field, id string) error {
	f := c.es.Field(field)
	if f == nil || f.Type != schema.FieldRefList {
		return fmt.Errorf("%w: %s.%s is not a multi reference", ErrUnknownField, c.es.Name, field)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeClosed {
		return ErrClosed
	}
	ids := record.IDsOf(c.draft[field])
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found && id != "" {
		out = append(out, id)
	}
	c.draft[field] = out
	delete(c.errs, field)
	return nil
}

// Validate checks the draft and records the field errors. It returns a
// *ValidationError when any field is invalid.
func (c *Controller) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

func (c *Controller) validateLocked() error {
	if c.mode == ModeClosed {
		return ErrClosed
	}
	problems := Validate(c.es, c.draft, c.mode == ModeAdd)
	c.errs = problems
	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// Payload serialises the draft for submission: numbers as numbers, refs as
// bare ids, empty write-only fields omitted.
func (c *Controller) Payload() (record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeClosed {
		return nil, ErrClosed
	}
	return c.payloadLocked(), nil
}

func (c *Controller) payloadLocked() record.Record {
	out := c.draft.Clone()
	for _, name := range c.es.FieldOrder {
		f := c.es.Fields[name]
		v := out[name]
		if isEmpty(v) {
			if c.omitEmptyLocked(f) {
				delete(out, name)
			}
			continue
		}
		switch {
		case f.Type.Numeric():
			if n, ok := ToNumber(v); ok {
				out[name] = n
			}
		case f.Type == schema.FieldDate:
			out[name] = record.NormalizeDate(v)
		}
	}
	return out
}

// omitEmptyLocked decides whether an empty field is left out of the
// payload. Write-only fields are never sent empty. In add mode optional
// scalars are dropped while lists are sent as []; in edit mode a field is
// dropped only if the stored record never had it.
func (c *Controller) omitEmptyLocked(f *schema.FieldMeta) bool {
	if f.WriteOnly {
		return true
	}
	if c.mode == ModeAdd {
		return f.Type != schema.FieldRefList && !f.RequiredFor(true)
	}
	_, had := c.origin[f.Name]
	return !had
}

// Submit validates the draft and, if valid, issues exactly one create or
// update through remote. On success the result is applied to sink and the
// form closes, unless the draft was replaced while the request was in
// flight, in which case sink is still updated but the new draft is kept.
// On failure the draft and mode are left untouched.
func (c *Controller) Submit(ctx context.Context, remote Remote, sink Sink) (*Result, error) {
	c.mu.Lock()
	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	mode, id, gen := c.mode, c.id, c.gen
	payload := c.payloadLocked()
	c.mu.Unlock()

	var (
		rec record.Record
		err error
	)
	if mode == ModeAdd {
		rec, err = remote.Create(ctx, c.es.Name, payload)
	} else {
		rec, err = remote.Update(ctx, c.es.Name, id, payload)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: mode, Record: rec}
	switch {
	case mode == ModeAdd && rec.ID() == "":
		res.NeedsReload = true
	case mode == ModeAdd:
		sink.OnCreated(rec)
	default:
		if rec.ID() != id {
			// The store echoed something other than the record; fall back
			// to what was sent.
			rec = payload.Clone()
			rec[record.IDField] = id
			res.Record = rec
		}
		sink.OnUpdated(rec)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.closeLocked()
		res.Closed = true
	}
	c.mu.Unlock()
	return res, nil
}
