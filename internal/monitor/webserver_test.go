package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/gridfeed"
	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/monitoring"
	"github.com/banshee-data/lj-costmap/internal/place"
)

type fakeJockey struct {
	mu        sync.Mutex
	observers []func(jockey.Result)
}

func (f *fakeJockey) Name() string        { return "lj_costmap" }
func (f *fakeJockey) State() jockey.State { return jockey.StateIdle }

func (f *fakeJockey) Observe(fn func(jockey.Result)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

func (f *fakeJockey) emit(res jockey.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.observers {
		fn(res)
	}
}

func newTestServer(t *testing.T) (*WebServer, *fakeJockey, *jockey.SnapshotStore) {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	j := &fakeJockey{}
	snaps := jockey.NewSnapshotStore(nil)
	ws := NewWebServer(WebServerConfig{Address: "127.0.0.1:0", Jockey: j, Grids: snaps, Feed: &gridfeed.Stats{}})
	return ws, j, snaps
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func square() *place.Profile {
	p := &place.Profile{}
	for i := 0; i < 8; i++ {
		p.Samples = append(p.Samples, place.Sample{Angle: -3.0 + float64(i)*0.75, Range: 2, Frontier: i == 3})
	}
	return p
}

func TestHealth(t *testing.T) {
	ws, _, _ := newTestServer(t)
	rec := get(t, ws.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "lj_costmap", body["jockey"])
	assert.Equal(t, "Idle", body["state"])
}

func TestResultEndpoints(t *testing.T) {
	ws, j, _ := newTestServer(t)
	h := ws.Handler()

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/result").Code)

	for i := 1; i <= 3; i++ {
		j.emit(jockey.Result{GoalID: string(rune('a' + i - 1)), Action: jockey.GetSimilarity, State: jockey.StateDone,
			Scores: []place.Score{{Vertex: place.VertexID(i), Dissimilarity: float64(i)}}})
	}

	rec := get(t, h, "/api/result")
	require.Equal(t, http.StatusOK, rec.Code)
	var last jockey.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	assert.Equal(t, "c", last.GoalID)
	assert.Equal(t, jockey.GetSimilarity, last.Action)

	rec = get(t, h, "/api/results?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []jockey.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].GoalID)
	assert.Equal(t, "b", list[1].GoalID)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/results?limit=zero").Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/result", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHistoryIsBounded(t *testing.T) {
	ws, j, _ := newTestServer(t)
	for i := 0; i < historySize+5; i++ {
		j.emit(jockey.Result{State: jockey.StateDone})
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	assert.Len(t, ws.results, historySize)
}

func TestGridEndpoint(t *testing.T) {
	ws, _, snaps := newTestServer(t)
	h := ws.Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/grid").Code)

	g := costmap.Centered(10, 6, 0.5, costmap.Unknown)
	g.Set(1, 1, costmap.Free)
	g.Set(2, 1, costmap.Lethal)
	snaps.Submit(g)

	rec := get(t, h, "/api/grid")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum GridSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 10, sum.Width)
	assert.Equal(t, 6, sum.Height)
	assert.Equal(t, 2, sum.KnownCells)
	assert.Equal(t, uint64(1), sum.Submitted)

	rec = get(t, h, "/api/grid?cells=1")
	var full costmap.Grid
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.Len(t, full.Data, 60)

	rec = httptest.NewRecorder()
	ws.handleGridChart(rec, httptest.NewRequest(http.MethodGet, "/debug/grid", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Latest occupancy grid")
}

func TestFeedEndpoint(t *testing.T) {
	ws, _, _ := newTestServer(t)
	ws.feed.Packets.Add(4)
	ws.feed.Grids.Add(3)
	rec := get(t, ws.Handler(), "/api/feed")
	require.Equal(t, http.StatusOK, rec.Code)
	var s gridfeed.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, gridfeed.Snapshot{Packets: 4, Grids: 3}, s)

	ws.feed = nil
	assert.Equal(t, http.StatusNotFound, get(t, ws.Handler(), "/api/feed").Code)
}

func TestDebugRoutesMounted(t *testing.T) {
	ws, _, _ := newTestServer(t)
	mux := ws.Handler().(*http.ServeMux)
	for _, path := range []string{"/debug/dissimilarity", "/debug/profile.png", "/debug/grid"} {
		_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, path, nil))
		assert.True(t, strings.HasPrefix(pattern, "/debug/"), "%s not routed, got %q", path, pattern)
	}
}

func TestDissimilarityChart(t *testing.T) {
	ws, j, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	ws.handleDissimilarityChart(rec, httptest.NewRequest(http.MethodGet, "/debug/dissimilarity", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	j.emit(jockey.Result{GoalID: "g1", Action: jockey.GetSimilarity, State: jockey.StateDone,
		Scores: []place.Score{{Vertex: 4, Dissimilarity: 0.2}, {Vertex: 9, Dissimilarity: 1.5}}})
	// A later result without scores does not hide the chart.
	j.emit(jockey.Result{GoalID: "g2", Action: jockey.GetVertexDescriptor, State: jockey.StateFailed})

	rec = httptest.NewRecorder()
	ws.handleDissimilarityChart(rec, httptest.NewRequest(http.MethodGet, "/debug/dissimilarity", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Dissimilarity by vertex")
	assert.Contains(t, body, "best=4")
}

func TestProfilePlot(t *testing.T) {
	ws, j, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	ws.handleProfilePlot(rec, httptest.NewRequest(http.MethodGet, "/debug/profile.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cr := &place.Crossing{Radius: 1, Frontiers: []place.Frontier{{Width: 0.8}}}
	j.emit(jockey.Result{GoalID: "g1", Action: jockey.GetVertexDescriptor, State: jockey.StateDone, Profile: square(), Crossing: cr})

	rec = httptest.NewRecorder()
	ws.handleProfilePlot(rec, httptest.NewRequest(http.MethodGet, "/debug/profile.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	ws, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_ListenError(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	monitoring.SetLogger(nil)
	ws := NewWebServer(WebServerConfig{Address: lis.Addr().String(), Jockey: &fakeJockey{}, Grids: jockey.NewSnapshotStore(nil)})
	assert.Error(t, ws.Start(context.Background()))
}
