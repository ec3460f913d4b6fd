// Package session is the in-memory session repository. Sessions and
// their fitted models live for the lifetime of the process; dataset
// artifacts are persisted separately.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/tabsynth/tabsynth/internal/domain"
	domsession "github.com/tabsynth/tabsynth/internal/domain/session"
)

type entry struct {
	sess  domsession.Session
	model domsession.Model
}

// Repo stores sessions keyed by id.
type Repo struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty repository.
func New() *Repo {
	return &Repo{entries: make(map[string]entry)}
}

// Save inserts or replaces a session together with its fitted model.
func (r *Repo) Save(_ context.Context, sess domsession.Session, model domsession.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sess.ID()] = entry{sess: sess, model: model}
	return nil
}

// Get returns a session and its model by id.
func (r *Repo) Get(_ context.Context, id string) (domsession.Session, domsession.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return domsession.Session{}, nil, domain.ErrSessionNotFound
	}
	return e.sess, e.model, nil
}

// List returns all sessions ordered by creation time, oldest first.
func (r *Repo) List(_ context.Context) ([]domsession.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domsession.Session, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, nil
}

// Delete removes a session. Deleting an unknown id returns
// ErrSessionNotFound.
func (r *Repo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.entries, id)
	return nil
}
