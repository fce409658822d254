package console

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/collegeadmin/internal/notify"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// Workspace is the set of screens one operator has open. Screens are
// created on first use and keep their state until the workspace is
// discarded.
type Workspace struct {
	reg    *schema.Registry
	remote Remote
	pub    notify.Publisher
	opts   []Option

	mu      sync.Mutex
	screens map[string]*Screen
}

// NewWorkspace creates an empty workspace. opts are applied to every
// screen it creates.
func NewWorkspace(reg *schema.Registry, remote Remote, pub notify.Publisher, opts ...Option) *Workspace {
	return &Workspace{
		reg:     reg,
		remote:  remote,
		pub:     pub,
		opts:    opts,
		screens: make(map[string]*Screen),
	}
}

// Screen returns the screen for entity, creating it if needed.
func (w *Workspace) Screen(entity string) (*Screen, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.screens[entity]; ok {
		return s, nil
	}
	s, err := NewScreen(w.reg, entity, w.remote, w.pub, w.opts...)
	if err != nil {
		return nil, err
	}
	w.screens[entity] = s
	return s, nil
}

// Counts returns the number of records of every registered entity,
// fetched concurrently. Counts for entities that loaded are returned even
// when another list call fails; the error is the first failure.
func (w *Workspace) Counts(ctx context.Context) (map[string]int, error) {
	names := w.reg.EntityNames()
	counts := make([]int, len(names))
	loaded := make([]bool, len(names))

	var g errgroup.Group
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			recs, err := w.remote.List(ctx, name)
			if err != nil {
				return err
			}
			counts[i], loaded[i] = len(recs), true
			return nil
		})
	}
	err := g.Wait()

	out := make(map[string]int, len(names))
	for i, name := range names {
		if loaded[i] {
			out[name] = counts[i]
		}
	}
	return out, err
}
