// Package monitor serves the jockey's HTTP debug surface: health, the most
// recent action results, the latest grid and a few rendered charts.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/gridfeed"
	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/monitoring"
	"github.com/banshee-data/lj-costmap/internal/version"
)

var logf = monitoring.Tagged("monitor")

// historySize bounds the results kept for /api/results.
const historySize = 32

// Jockey is the part of jockey.Controller the monitor reads.
type Jockey interface {
	Name() string
	State() jockey.State
	Observe(fn func(jockey.Result))
}

// GridSource yields the most recent grid. jockey.SnapshotStore satisfies it.
type GridSource interface {
	Latest() (*costmap.Grid, bool)
	Submitted() uint64
}

// WebServerConfig configures a WebServer.
type WebServerConfig struct {
	Address string
	Jockey  Jockey
	Grids   GridSource
	// Feed is optional; when set /api/feed reports its counters.
	Feed *gridfeed.Stats
}

// WebServer serves the monitor routes.
type WebServer struct {
	address string
	jockey  Jockey
	grids   GridSource
	feed    *gridfeed.Stats
	server  *http.Server
	started time.Time

	mu      sync.Mutex
	results []jockey.Result
}

// NewWebServer creates the server and subscribes to the jockey's results.
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address: cfg.Address,
		jockey:  cfg.Jockey,
		grids:   cfg.Grids,
		feed:    cfg.Feed,
		started: time.Now(),
	}
	ws.jockey.Observe(ws.record)
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler exposes the routes, mainly for tests.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

func (ws *WebServer) record(res jockey.Result) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.results = append(ws.results, res)
	if len(ws.results) > historySize {
		ws.results = ws.results[len(ws.results)-historySize:]
	}
}

// last returns the most recent result, if any.
func (ws *WebServer) last() (jockey.Result, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.results) == 0 {
		return jockey.Result{}, false
	}
	return ws.results[len(ws.results)-1], true
}

// lastWith returns the most recent result satisfying keep.
func (ws *WebServer) lastWith(keep func(jockey.Result) bool) (jockey.Result, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i := len(ws.results) - 1; i >= 0; i-- {
		if keep(ws.results[i]) {
			return ws.results[i], true
		}
	}
	return jockey.Result{}, false
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf("failed to encode response: %v", err)
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ws.address, err)
	}
	errc := make(chan error, 1)
	go func() {
		logf("starting HTTP server on %s", lis.Addr())
		if err := ws.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}
	logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			logf("HTTP server force close error: %v", err)
		}
	}
	logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/result", ws.handleResult)
	mux.HandleFunc("/api/results", ws.handleResults)
	mux.HandleFunc("/api/grid", ws.handleGrid)
	mux.HandleFunc("/api/feed", ws.handleFeed)

	debug := tsweb.Debugger(mux)
	debug.HandleFunc("dissimilarity", "Dissimilarity scores of the last scoring action", ws.handleDissimilarityChart)
	debug.HandleFunc("profile.png", "Place profile of the last descriptor action", ws.handleProfilePlot)
	debug.HandleFunc("grid", "Latest occupancy grid", ws.handleGridChart)
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"jockey":  ws.jockey.Name(),
		"state":   ws.jockey.State(),
		"uptime":  time.Since(ws.started).Round(time.Second).String(),
		"version": version.Version,
	})
}

func (ws *WebServer) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	res, ok := ws.last()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no action has completed yet")
		return
	}
	ws.writeJSON(w, res)
}

// handleResults lists recent results, newest first.
// Query params:
//
//	limit (optional, default 10)
func (ws *WebServer) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		limit = min(v, historySize)
	}

	ws.mu.Lock()
	out := make([]jockey.Result, 0, limit)
	for i := len(ws.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ws.results[i])
	}
	ws.mu.Unlock()
	ws.writeJSON(w, out)
}

// GridSummary describes a grid without its cells.
type GridSummary struct {
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Resolution float64      `json:"resolution"`
	Origin     costmap.Pose `json:"origin"`
	Stamp      time.Time    `json:"stamp"`
	KnownCells int          `json:"known_cells"`
	Submitted  uint64       `json:"submitted"`
}

func (ws *WebServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	g, ok := ws.grids.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no grid received yet")
		return
	}
	if r.URL.Query().Get("cells") == "1" {
		ws.writeJSON(w, g)
		return
	}
	ws.writeJSON(w, GridSummary{
		Width:      g.Width,
		Height:     g.Height,
		Resolution: g.Resolution,
		Origin:     g.Origin,
		Stamp:      g.Stamp,
		KnownCells: g.KnownCells(),
		Submitted:  ws.grids.Submitted(),
	})
}

func (ws *WebServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if ws.feed == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no grid feed configured")
		return
	}
	ws.writeJSON(w, ws.feed.Snapshot())
}
