package jockey

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/timeutil"
)

// SnapshotStore holds the latest local grid delivered by the sensor feed.
//
// Submit may be called from any goroutine. A grid counts as fresh when it
// was submitted after the most recent ClearFresh; AwaitFresh blocks until
// one is.
type SnapshotStore struct {
	clock timeutil.Clock

	mu        sync.Mutex
	grid      *costmap.Grid
	seq       uint64 // bumped on every Submit
	freshFrom uint64 // seq at the last ClearFresh
	notify    chan struct{}
}

// NewSnapshotStore creates an empty store. A nil clock uses the wall clock.
func NewSnapshotStore(clock timeutil.Clock) *SnapshotStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SnapshotStore{clock: clock, notify: make(chan struct{})}
}

// Submit replaces the held grid and wakes any waiter. The store keeps the
// pointer; callers must not mutate g afterwards.
func (s *SnapshotStore) Submit(g *costmap.Grid) {
	if g == nil {
		return
	}
	s.mu.Lock()
	s.grid = g
	s.seq++
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
}

// ClearFresh marks the held grid as stale. It returns the submission
// sequence at the time of the call.
func (s *SnapshotStore) ClearFresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshFrom = s.seq
	return s.seq
}

// AwaitFresh waits up to timeout for a grid submitted after the last
// ClearFresh. It fails with DataTimeout when the budget runs out and with
// Interrupted when ctx is cancelled first.
func (s *SnapshotStore) AwaitFresh(ctx context.Context, timeout time.Duration) (*costmap.Grid, error) {
	timer := s.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.seq > s.freshFrom {
			g := s.grid
			s.mu.Unlock()
			return g, nil
		}
		wake := s.notify
		s.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C():
			return nil, newError(DataTimeout, nil, "no grid received within %v", timeout)
		case <-ctx.Done():
			return nil, newError(Interrupted, ctx.Err(), "interrupted while awaiting grid")
		}
	}
}

// Latest returns the most recently submitted grid, fresh or not.
func (s *SnapshotStore) Latest() (*costmap.Grid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid, s.grid != nil
}

// Submitted reports how many grids have been submitted since creation.
func (s *SnapshotStore) Submitted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
