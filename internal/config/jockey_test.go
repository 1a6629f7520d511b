package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultJockeyConfig(t *testing.T) {
	cfg := DefaultJockeyConfig()

	if cfg.JockeyName == nil || *cfg.JockeyName != "lj_costmap" {
		t.Errorf("Expected JockeyName lj_costmap, got %v", cfg.JockeyName)
	}
	if got := cfg.GetPlaceProfileInterfaceName(); got != "lj_costmap_place_profile" {
		t.Errorf("GetPlaceProfileInterfaceName() = %q", got)
	}
	if got := cfg.GetCrossingInterfaceName(); got != "lj_costmap_crossing" {
		t.Errorf("GetCrossingInterfaceName() = %q", got)
	}
	if got := cfg.GetLocalizeService(); got != "localize_in_vertex" {
		t.Errorf("GetLocalizeService() = %q", got)
	}
	if got := cfg.GetDissimilarityServerName(); got != "compute_dissimilarity" {
		t.Errorf("GetDissimilarityServerName() = %q", got)
	}
	if got := cfg.GetRangeCutoff(); got != 0 {
		t.Errorf("GetRangeCutoff() = %f, want 0", got)
	}
	if got := cfg.GetMaxFrontierAngle(); got != 0.785 {
		t.Errorf("GetMaxFrontierAngle() = %f, want 0.785", got)
	}
	if got := cfg.GetDataTimeout(); got != 2*time.Second {
		t.Errorf("GetDataTimeout() = %v, want 2s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestInterfaceNamesFollowJockeyName(t *testing.T) {
	cfg := EmptyJockeyConfig()
	cfg.JockeyName = ptrString("lj_test")

	if got := cfg.GetPlaceProfileInterfaceName(); got != "lj_test_place_profile" {
		t.Errorf("GetPlaceProfileInterfaceName() = %q", got)
	}
	if got := cfg.GetCrossingInterfaceName(); got != "lj_test_crossing" {
		t.Errorf("GetCrossingInterfaceName() = %q", got)
	}

	cfg.CrossingInterfaceName = ptrString("custom")
	if got := cfg.GetCrossingInterfaceName(); got != "custom" {
		t.Errorf("explicit crossing name ignored, got %q", got)
	}
}

func TestLoadJockeyConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "jockey.json")

	testJSON := `{
  "jockey_name": "lj_lab",
  "range_cutoff": 3.5,
  "frontier_width": 0.8,
  "data_timeout": "750ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadJockeyConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetJockeyName(); got != "lj_lab" {
		t.Errorf("GetJockeyName() = %q", got)
	}
	if got := cfg.GetPlaceProfileInterfaceName(); got != "lj_lab_place_profile" {
		t.Errorf("GetPlaceProfileInterfaceName() = %q", got)
	}
	opts := cfg.DetectorOptions()
	if opts.RangeCutoff != 3.5 || opts.FrontierWidth != 0.8 || opts.MaxFrontierAngle != 0.785 {
		t.Errorf("DetectorOptions() = %+v", opts)
	}
	if got := cfg.GetDataTimeout(); got != 750*time.Millisecond {
		t.Errorf("GetDataTimeout() = %v, want 750ms", got)
	}
	// Unset fields fall back to defaults.
	if got := cfg.GetMapAddress(); got != "localhost:50061" {
		t.Errorf("GetMapAddress() = %q", got)
	}
}

func TestLoadJockeyConfig_Rejects(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{`, "parse config JSON"},
		{"negative cutoff", "cutoff.json", `{"range_cutoff": -1}`, "range_cutoff"},
		{"zero width", "width.json", `{"frontier_width": 0}`, "frontier_width"},
		{"angle too wide", "angle.json", `{"max_frontier_angle": 4}`, "max_frontier_angle"},
		{"bad timeout", "timeout.json", `{"data_timeout": "soon"}`, "data_timeout"},
		{"zero timeout", "zero.json", `{"data_timeout": "0s"}`, "data_timeout"},
		{"threshold range", "thr.json", `{"occupied_threshold": 101}`, "occupied_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadJockeyConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadJockeyConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadJockeyConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := `{"jockey_name": "` + strings.Repeat("x", 1024*1024) + `"}`
	if err := os.WriteFile(path, []byte(big), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadJockeyConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultJockeyConfig()
	if cfg.GetJockeyName() != want.GetJockeyName() ||
		cfg.GetFrontierWidth() != want.GetFrontierWidth() ||
		cfg.GetDataTimeout() != want.GetDataTimeout() ||
		cfg.GetDissimilarityBins() != want.GetDissimilarityBins() {
		t.Errorf("defaults file disagrees with built-in defaults")
	}
	d := cfg.Detector()
	if d.Beams != 360 || d.OccupiedThreshold != 50 {
		t.Errorf("Detector() = %+v", d)
	}
}
