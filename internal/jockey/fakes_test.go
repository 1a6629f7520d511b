package jockey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/monitoring"
	"github.com/banshee-data/lj-costmap/internal/place"
	"github.com/banshee-data/lj-costmap/internal/timeutil"
)

// fakeMap is an in-memory MapService that records every call.
type fakeMap struct {
	mu         sync.Mutex
	interfaces []InterfaceSpec
	data       map[string]map[place.VertexID][]byte
	nextID     int64
	sets       int
	gets       int

	rejectType string // AddInterface fails for this message type
	failSetOn  string // SetDescriptor fails for this interface
	getErr     error
}

func newFakeMap() *fakeMap {
	return &fakeMap{data: map[string]map[place.VertexID][]byte{}}
}

func (m *fakeMap) AddInterface(_ context.Context, spec InterfaceSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if spec.MessageType == m.rejectType {
		return "", fmt.Errorf("interface %q already exists with another type", spec.Name)
	}
	m.interfaces = append(m.interfaces, spec)
	return spec.Name, nil
}

func (m *fakeMap) SetDescriptor(_ context.Context, iface string, vertex place.VertexID, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if iface == m.failSetOn {
		return 0, errors.New("map: write failed")
	}
	if m.data[iface] == nil {
		m.data[iface] = map[place.VertexID][]byte{}
	}
	m.data[iface][vertex] = payload
	m.nextID++
	return m.nextID, nil
}

func (m *fakeMap) GetDescriptor(_ context.Context, iface string, vertex place.VertexID) (int64, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return 0, nil, m.getErr
	}
	payload, ok := m.data[iface][vertex]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s[%d]", ErrUnknownVertex, iface, vertex)
	}
	return int64(vertex) * 10, payload, nil
}

func (m *fakeMap) calls() (sets, gets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets, m.gets
}

// fakeDissim scores every request with a fixed per-vertex table.
type fakeDissim struct {
	mu       sync.Mutex
	requests []place.CompareRequest
	scores   map[place.VertexID]float64
	err      error
	block    chan struct{} // when set, Compare waits for it to close
}

func (d *fakeDissim) Compare(ctx context.Context, endpoint string, req place.CompareRequest) (place.CompareResponse, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	block, err := d.block, d.err
	d.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return place.CompareResponse{}, err
	}
	if req.Target != nil {
		return place.CompareResponse{Scores: []place.Score{{Vertex: req.Target.Vertex, Dissimilarity: d.scores[req.Target.Vertex]}}}, nil
	}
	var resp place.CompareResponse
	for v, s := range d.scores {
		resp.Scores = append(resp.Scores, place.Score{Vertex: v, Dissimilarity: s})
	}
	return resp, nil
}

func (d *fakeDissim) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// rig is a controller wired to fakes and a mock clock.
type rig struct {
	clock  *timeutil.MockClock
	store  *SnapshotStore
	maps   *fakeMap
	dissim *fakeDissim
	ctrl   *Controller
	frame  *Frame
}

func newRig(t *testing.T) *rig {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	r := &rig{
		clock:  timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		maps:   newFakeMap(),
		dissim: &fakeDissim{scores: map[place.VertexID]float64{}},
	}
	r.store = NewSnapshotStore(r.clock)
	mc := NewMapInterfaceClient(r.maps, "lj_costmap_place_profile", "lj_costmap_crossing")
	require.NoError(t, mc.RegisterInterfaces(context.Background()))
	r.ctrl = NewController(ControllerConfig{
		Name:        "lj_costmap",
		Store:       r.store,
		Map:         mc,
		Dissim:      NewDissimilarityClient(r.dissim, "localize_in_vertex", "compute_dissimilarity", mc.PlaceProfileInterface),
		Params:      BuildParams{FrontierWidth: 0.5, MaxFrontierAngle: 0.785},
		DataTimeout: 2 * time.Second,
		Clock:       r.clock,
	})
	r.frame = NewFrame(r.ctrl)
	return r
}

// start runs req on the frame in the background and waits until it is
// blocked on the grid.
func (r *rig) start(t *testing.T, ctx context.Context, req Request) <-chan Result {
	t.Helper()
	out := make(chan Result, 1)
	go func() { out <- r.frame.Execute(ctx, req) }()
	r.waitAwaiting(t)
	return out
}

func (r *rig) waitAwaiting(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.clock.PendingTimers() == 1 && r.ctrl.State() == StateAwaitingData
	}, 2*time.Second, time.Millisecond)
}

func wait(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("action did not finish")
		return Result{}
	}
}

func openGrid() *costmap.Grid {
	return costmap.Centered(10, 10, 0.5, costmap.Free)
}
