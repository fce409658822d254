// Package console holds per-screen state for the admin console. A Screen
// owns one entity's collection, the supporting collections its references
// point at, a form controller and the current search, and wires them to
// the Remote Store and the notification bus.
package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/collegeadmin/internal/filter"
	"github.com/matthewbaird/collegeadmin/internal/form"
	"github.com/matthewbaird/collegeadmin/internal/notify"
	"github.com/matthewbaird/collegeadmin/internal/reconcile"
	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/resolve"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// ErrNotFound is returned when an operation names a record that is not in
// the screen's collection.
var ErrNotFound = errors.New("console: record not in collection")

// Remote is the store surface a screen needs.
type Remote interface {
	form.Remote
	List(ctx context.Context, entity string) ([]record.Record, error)
	Delete(ctx context.Context, entity, id string) error
}

// Option configures a Screen.
type Option func(*Screen)

// WithSession tags published notifications with a session id.
func WithSession(id string) Option {
	return func(s *Screen) { s.session = id }
}

// WithLogger sets the screen logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Screen) { s.logger = l }
}

// WithClock sets the time source for form date defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Screen) { s.now = now }
}

// Choice is one selectable target for a reference field.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Screen is the state of one entity screen.
type Screen struct {
	reg     *schema.Registry
	es      *schema.EntitySchema
	remote  Remote
	pub     notify.Publisher
	session string
	logger  zerolog.Logger
	now     func() time.Time

	primary    *reconcile.Collection
	supporting map[string]*reconcile.Collection
	form       *form.Controller

	mu     sync.RWMutex
	query  string
	status string
}

// NewScreen creates a screen for entity. Nothing is fetched until Load.
func NewScreen(reg *schema.Registry, entity string, remote Remote, pub notify.Publisher, opts ...Option) (*Screen, error) {
	es := reg.Entity(entity)
	if es == nil {
		return nil, fmt.Errorf("console: unknown entity %q", entity)
	}
	s := &Screen{
		reg:        reg,
		es:         es,
		remote:     remote,
		pub:        pub,
		logger:     zerolog.Nop(),
		now:        time.Now,
		primary:    reconcile.NewCollection(),
		supporting: make(map[string]*reconcile.Collection),
		status:     filter.All,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dep := range reg.Dependencies(entity) {
		s.supporting[dep] = reconcile.NewCollection()
	}
	s.form = form.New(es, form.WithClock(s.now))
	return s, nil
}

// Entity returns the screen's entity schema.
func (s *Screen) Entity() *schema.EntitySchema { return s.es }

// Form returns the screen's form controller.
func (s *Screen) Form() *form.Controller { return s.form }

// Load fetches the primary collection and every supporting collection
// concurrently and joins on all of them. A failed supporting collection is
// left unloaded, so its references display as unavailable; the screen
// stays usable. The returned error is the primary collection's failure.
func (s *Screen) Load(ctx context.Context) error {
	targets := append([]string{s.es.Name}, s.reg.Dependencies(s.es.Name)...)
	results := make([][]record.Record, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, entity := range targets {
		g.Go(func() error {
			results[i], errs[i] = s.remote.List(ctx, entity)
			return nil
		})
	}
	_ = g.Wait()

	for i, entity := range targets {
		coll := s.collection(entity)
		if errs[i] != nil {
			coll.Reset()
			s.logger.Warn().Err(errs[i]).Str("entity", entity).Msg("collection load failed")
			s.publish(ctx, notify.FetchFailed(s.reg.Entity(entity)))
			continue
		}
		coll.Replace(results[i])
	}
	return errs[0]
}

// ReloadPrimary re-fetches only the primary collection.
func (s *Screen) ReloadPrimary(ctx context.Context) error {
	recs, err := s.remote.List(ctx, s.es.Name)
	if err != nil {
		s.publish(ctx, notify.FetchFailed(s.es))
		return err
	}
	s.primary.Replace(recs)
	return nil
}

func (s *Screen) collection(entity string) *reconcile.Collection {
	if entity == s.es.Name {
		return s.primary
	}
	return s.supporting[entity]
}

// Loaded reports whether the primary collection has loaded.
func (s *Screen) Loaded() bool {
	return s.primary.Loaded()
}

// Resolver returns a resolver over the currently loaded collections.
func (s *Screen) Resolver() *resolve.Resolver {
	cols := make(resolve.Collections, len(s.supporting)+1)
	for entity, coll := range s.supporting {
		if coll.Loaded() {
			cols[entity] = coll.Records()
		}
	}
	if _, self := cols[s.es.Name]; !self {
		cols[s.es.Name] = s.primary.Records()
	}
	return resolve.New(s.reg, cols)
}

// Rows returns every primary record, resolved, in collection order.
func (s *Screen) Rows() []resolve.Row {
	return s.Resolver().ResolveAll(s.es.Name, s.primary.Records())
}

// Search sets the text query and status predicate. A status of "" or
// filter.All disables the predicate; it is ignored for entities without a
// status field.
func (s *Screen) Search(query, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.status = status
}

// Query returns the current query and status.
func (s *Screen) Query() (query, status string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query, s.status
}

// Visible returns the rows matching the current search.
func (s *Screen) Visible() []resolve.Row {
	query, status := s.Query()
	var pred filter.Predicate
	if s.es.StatusField != "" {
		pred = filter.StatusIs(s.es.StatusField, status)
	}
	return filter.Filter(s.Rows(), s.es.SearchFields, query, pred)
}

// Choices lists the selectable targets of a reference field, labelled by
// the target's display field.
func (s *Screen) Choices(field string) ([]Choice, error) {
	f := s.es.Field(field)
	if f == nil || !f.IsRef() {
		return nil, fmt.Errorf("console: %s.%s is not a reference", s.es.Name, field)
	}
	coll := s.supporting[f.Target]
	if coll == nil {
		return nil, nil
	}
	target := s.reg.Entity(f.Target)
	res := s.Resolver()
	recs := coll.Records()
	out := make([]Choice, 0, len(recs))
	for _, rec := range recs {
		label := res.Resolve(f.Target, rec).Display(target.DisplayField)
		out = append(out, Choice{ID: rec.ID(), Label: label})
	}
	return out, nil
}

// OpenAdd opens the form with a fresh default draft.
func (s *Screen) OpenAdd() {
	s.form.OpenAdd()
}

// OpenEdit opens the form on the record with id.
func (s *Screen) OpenEdit(id string) error {
	rec := s.primary.Get(id)
	if rec == nil {
		return fmt.Errorf("%w: %s %s", ErrNotFound, s.es.Name, id)
	}
	return s.form.OpenEdit(rec)
}

// Submit sends the draft. Success patches the collection and publishes a
// success notification; failure publishes the error and leaves both the
// form and the collection untouched.
func (s *Screen) Submit(ctx context.Context) (*form.Result, error) {
	res, err := s.form.Submit(ctx, s.remote, s.primary)
	if err != nil {
		if !errors.Is(err, form.ErrClosed) {
			s.publish(ctx, notify.Failure(s.es, err))
		}
		return nil, err
	}
	if res.NeedsReload {
		if err := s.ReloadPrimary(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("reload after create failed")
		}
	}
	if res.Mode == form.ModeAdd {
		s.publish(ctx, notify.Created(s.es))
	} else {
		s.publish(ctx, notify.Updated(s.es))
	}
	return res, nil
}

// Delete removes the record with id from the store and, on success, from
// the local collection.
func (s *Screen) Delete(ctx context.Context, id string) error {
	if err := s.remote.Delete(ctx, s.es.Name, id); err != nil {
		s.publish(ctx, notify.Failure(s.es, err))
		return err
	}
	s.primary.OnDeleted(id)
	s.publish(ctx, notify.Deleted(s.es))
	return nil
}

func (s *Screen) publish(ctx context.Context, n notify.Notification) {
	if s.pub == nil {
		return
	}
	n.Session = s.session
	s.pub.Publish(ctx, n)
}
