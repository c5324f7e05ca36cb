// Package session owns the state of the slicing workflow for one user:
// Idle until an image is submitted, Processing while it is sliced, then
// Ready or Failed.  Only the most recent submission may publish a result;
// anything it superseded is cancelled and its outcome dropped.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
)

// State is the workflow state.
type State int

const (
	Idle State = iota
	Processing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// SliceFunc runs one slicing invocation.  Slicer.Slice satisfies it.
type SliceFunc func(ctx context.Context, data []byte) (*core.SliceResult, error)

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	// ID identifies the submission the state belongs to; uuid.Nil when Idle.
	ID     uuid.UUID
	Name   string
	State  State
	Result *core.SliceResult
	Err    error
}

// Session serialises submissions so that at most one result is visible and
// it always belongs to the latest submission.  Safe for concurrent use.
type Session struct {
	slice  SliceFunc
	logger core.Logger

	mu     sync.Mutex
	gen    uint64
	cur    Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an Idle session that slices with fn.
func New(fn SliceFunc, logger core.Logger) *Session {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Session{slice: fn, logger: logger}
}

// Submit starts slicing data in the background and returns the submission
// ID.  Any submission still running is cancelled and its result discarded.
// The invocation inherits ctx's values and cancellation.
func (s *Session) Submit(ctx context.Context, name string, data []byte) uuid.UUID {
	id := uuid.New()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.supersedeLocked()
	s.gen++
	gen := s.gen
	s.cur = Snapshot{ID: id, Name: name, State: Processing}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Debug("session.submit", "id", id.String(), "name", name, "bytes", len(data))
	go s.run(runCtx, cancel, gen, id, data, done)
	return id
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, id uuid.UUID, data []byte, done chan struct{}) {
	defer close(done)
	defer cancel()

	res, err := s.slice(ctx, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("session.stale", "id", id.String())
		return
	}
	if err != nil {
		s.cur.State = Failed
		s.cur.Err = err
		s.logger.Warn("session.failed",
			"id", id.String(),
			"category", apperrors.CategoryOf(err),
			"error", err.Error(),
		)
		return
	}
	s.cur.State = Ready
	s.cur.Result = res
	s.logger.Info("session.ready", "id", id.String())
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Wait blocks until the session leaves Processing or ctx ends.  A submission
// that arrives while waiting extends the wait to that submission.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap, done := s.cur, s.done
		s.mu.Unlock()
		if snap.State != Processing {
			return snap, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Reset cancels any running submission and returns the session to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	s.supersedeLocked()
	s.gen++
	s.cur = Snapshot{State: Idle}
	s.mu.Unlock()
	s.logger.Debug("session.reset")
}

func (s *Session) supersedeLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
