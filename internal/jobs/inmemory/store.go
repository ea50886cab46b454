package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jfields/txsentry/internal/jobs"
)

// ErrJobNotFound is returned by Get for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Store tracks job state in memory. State is lost on restart; workers
// treat that as acceptable because imports are idempotent and can be
// re-published.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.Job
}

// NewStore creates an empty in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.Job)}
}

// Save inserts or replaces a job snapshot. The stored value is a copy;
// callers can keep mutating their own.
func (s *Store) Save(ctx context.Context, job *jobs.Job) error {
	if job.ID == "" {
		return errors.New("job ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

// Get returns a copy of the job, or ErrJobNotFound.
func (s *Store) Get(ctx context.Context, id string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// List returns matching jobs, newest first.
func (s *Store) List(ctx context.Context, f jobs.Filter) ([]*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*jobs.Job
	for _, j := range s.jobs {
		if f.Type != "" && j.Type != f.Type {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

var _ jobs.Store = (*Store)(nil)
