package jockey

import (
	"context"
	"sync"

	"github.com/banshee-data/lj-costmap/internal/place"
)

// Frame hosts a Controller for concurrent callers. Goals run one at a time;
// a new goal preempts the running one, which ends Interrupted.
type Frame struct {
	ctrl *Controller

	run sync.Mutex // held while a goal executes

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewFrame wraps ctrl.
func NewFrame(ctrl *Controller) *Frame {
	return &Frame{ctrl: ctrl}
}

// Controller returns the hosted controller.
func (f *Frame) Controller() *Controller { return f.ctrl }

// Execute preempts any running goal, then runs req.
func (f *Frame) Execute(ctx context.Context, req Request) Result {
	gctx, done := f.begin(ctx)
	defer done()
	return f.ctrl.Execute(gctx, req)
}

// Persist preempts any running goal, then stores the descriptors on vertex.
func (f *Frame) Persist(ctx context.Context, vertex place.VertexID, profile place.Profile, cr place.Crossing) Result {
	gctx, done := f.begin(ctx)
	defer done()
	return f.ctrl.Persist(gctx, vertex, profile, cr)
}

// Cancel interrupts the running goal, if any.
func (f *Frame) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
}

func (f *Frame) begin(ctx context.Context) (context.Context, func()) {
	gctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.seq++
	mine := f.seq
	f.cancel = cancel
	f.mu.Unlock()

	f.run.Lock()
	return gctx, func() {
		f.run.Unlock()
		f.mu.Lock()
		if f.seq == mine {
			f.cancel = nil
		}
		f.mu.Unlock()
		cancel()
	}
}
