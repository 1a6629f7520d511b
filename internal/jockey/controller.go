// Package jockey implements the costmap localizing jockey: it waits for a
// fresh local grid, turns it into place descriptors and answers the three
// navigation actions against the map and the dissimilarity service.
package jockey

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lj-costmap/internal/monitoring"
	"github.com/banshee-data/lj-costmap/internal/place"
	"github.com/banshee-data/lj-costmap/internal/timeutil"
)

// DefaultDataTimeout is how long an action waits for a fresh grid.
const DefaultDataTimeout = 2 * time.Second

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Name        string
	Store       *SnapshotStore
	Builder     *DescriptorBuilder
	Map         *MapInterfaceClient
	Dissim      *DissimilarityClient
	Params      BuildParams
	DataTimeout time.Duration
	Clock       timeutil.Clock
}

// Controller runs one action at a time. Callers that may overlap should go
// through a Frame.
type Controller struct {
	name        string
	store       *SnapshotStore
	builder     *DescriptorBuilder
	maps        *MapInterfaceClient
	dissim      *DissimilarityClient
	params      BuildParams
	dataTimeout time.Duration
	clock       timeutil.Clock
	logf        func(format string, v ...interface{})

	mu        sync.Mutex
	state     State
	observers []func(Result)
}

// NewController creates a controller from cfg.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.DataTimeout <= 0 {
		cfg.DataTimeout = DefaultDataTimeout
	}
	if cfg.Builder == nil {
		cfg.Builder = NewDescriptorBuilder(nil)
	}
	if cfg.Name == "" {
		cfg.Name = "lj_costmap"
	}
	return &Controller{
		name:        cfg.Name,
		store:       cfg.Store,
		builder:     cfg.Builder,
		maps:        cfg.Map,
		dissim:      cfg.Dissim,
		params:      cfg.Params,
		dataTimeout: cfg.DataTimeout,
		clock:       cfg.Clock,
		logf:        monitoring.Tagged(cfg.Name),
	}
}

// Name returns the jockey name.
func (c *Controller) Name() string { return c.name }

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe registers fn to receive every terminal result.
func (c *Controller) Observe(fn func(Result)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// actionState is the transient state of one running action.
type actionState struct {
	res          Result
	freshSince   uint64
	dataReceived bool
}

func (c *Controller) transition(st *actionState, to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	st.res.State = to
	c.logf("goal %s %s: %s -> %s", shortID(st.res.GoalID), st.res.Action, from, to)
}

// Execute runs req to completion. It never returns a non-terminal result;
// failures are reported in Result.Err.
func (c *Controller) Execute(ctx context.Context, req Request) Result {
	st := &actionState{res: Result{
		GoalID:  uuid.NewString(),
		Action:  req.Action,
		Vertex:  req.Vertex,
		Started: c.clock.Now(),
	}}
	if req.Action != LocalizeInVertex {
		st.res.Vertex = 0
	}
	if err := req.Validate(); err != nil {
		return c.finish(st, newError(KindNone, err, "rejected request"))
	}
	if err := ctx.Err(); err != nil {
		return c.finish(st, newError(Interrupted, err, "cancelled before start"))
	}

	st.freshSince = c.store.ClearFresh()
	c.transition(st, StateAwaitingData)
	c.logf("goal %s waiting %v for a grid newer than #%d", shortID(st.res.GoalID), c.dataTimeout, st.freshSince)
	grid, err := c.store.AwaitFresh(ctx, c.dataTimeout)
	if err != nil {
		return c.fail(ctx, st, err)
	}
	st.dataReceived = true
	if err := c.checkpoint(ctx); err != nil {
		return c.fail(ctx, st, err)
	}

	c.transition(st, StateBuilding)
	profile, cr, err := c.builder.Build(grid, c.params)
	if err != nil {
		return c.fail(ctx, st, err)
	}
	if err := c.checkpoint(ctx); err != nil {
		return c.fail(ctx, st, err)
	}

	switch req.Action {
	case GetVertexDescriptor:
		st.res.Profile = &profile
		st.res.Crossing = &cr
	case LocalizeInVertex:
		c.transition(st, StateComparing)
		target, link, err := c.maps.GetPlaceProfile(ctx, req.Vertex)
		if err != nil {
			return c.fail(ctx, st, err)
		}
		st.res.Links = []place.DescriptorLink{link}
		if err := c.checkpoint(ctx); err != nil {
			return c.fail(ctx, st, err)
		}
		score, err := c.dissim.CompareOne(ctx, profile, place.VertexProfile{Vertex: req.Vertex, Profile: target})
		if err != nil {
			return c.fail(ctx, st, err)
		}
		st.res.Scores = []place.Score{score}
	case GetSimilarity:
		c.transition(st, StateComparing)
		scores, err := c.dissim.CompareAll(ctx, profile)
		if err != nil {
			return c.fail(ctx, st, err)
		}
		st.res.Scores = scores
	}
	if err := c.checkpoint(ctx); err != nil {
		return c.fail(ctx, st, err)
	}
	return c.finish(st, nil)
}

// Persist stores descriptors previously returned by GetVertexDescriptor on
// vertex. The returned result lists every committed link, also on failure.
func (c *Controller) Persist(ctx context.Context, vertex place.VertexID, profile place.Profile, cr place.Crossing) Result {
	st := &actionState{res: Result{
		GoalID:  uuid.NewString(),
		Action:  PersistDescriptors,
		Vertex:  vertex,
		Started: c.clock.Now(),
	}}
	if profile.Empty() {
		return c.finish(st, newError(KindNone, ErrEmptyProfile, "refusing to store on vertex %d", vertex))
	}
	if err := ctx.Err(); err != nil {
		return c.finish(st, newError(Interrupted, err, "cancelled before start"))
	}
	c.transition(st, StateStoring)
	links, err := c.maps.Persist(ctx, vertex, profile, cr)
	st.res.Links = links
	return c.fail(ctx, st, err)
}

// fail reports err, or Interrupted when ctx was cancelled while the failing
// step ran.
func (c *Controller) fail(ctx context.Context, st *actionState, err error) Result {
	if err != nil && KindOf(err) != Interrupted && ctx.Err() != nil {
		err = newError(Interrupted, err, "interrupted during %s", st.res.State)
	}
	return c.finish(st, err)
}

// checkpoint turns a cancelled context into an Interrupted error.
func (c *Controller) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return newError(Interrupted, err, "interrupted")
	}
	return nil
}

func (c *Controller) finish(st *actionState, err error) Result {
	switch {
	case err == nil:
		c.transition(st, StateDone)
	case KindOf(err) == Interrupted:
		// An interrupted action reports no descriptor or score.
		st.res.Profile, st.res.Crossing, st.res.Scores = nil, nil, nil
		st.res.Err = asActionError(err)
		c.transition(st, StateInterrupted)
	default:
		st.res.Profile, st.res.Crossing, st.res.Scores = nil, nil, nil
		st.res.Err = asActionError(err)
		c.transition(st, StateFailed)
	}
	st.res.Finished = c.clock.Now()
	if st.res.Err != nil {
		c.logf("goal %s %s failed after %v (data received: %v): %v",
			shortID(st.res.GoalID), st.res.Action, st.res.Duration(), st.dataReceived, st.res.Err)
	}

	c.mu.Lock()
	c.state = StateIdle
	observers := append([]func(Result){}, c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(st.res)
	}
	return st.res
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
