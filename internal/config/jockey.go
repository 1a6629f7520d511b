package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/lj-costmap/internal/crossing"
)

// DefaultConfigPath is the path to the canonical jockey defaults file.
const DefaultConfigPath = "config/jockey.defaults.json"

// JockeyConfig is the static configuration of the jockey and of the
// reference map/dissimilarity daemon. Every field is optional; the Get*
// methods fill in defaults.
type JockeyConfig struct {
	JockeyName                *string `json:"jockey_name,omitempty"`
	PlaceProfileInterfaceName *string `json:"place_profile_interface_name,omitempty"`
	CrossingInterfaceName     *string `json:"crossing_interface_name,omitempty"`
	LocalizeService           *string `json:"localize_service,omitempty"`
	DissimilarityServerName   *string `json:"dissimilarity_server_name,omitempty"`

	// Detector params
	RangeCutoff       *float64 `json:"range_cutoff,omitempty"`
	FrontierWidth     *float64 `json:"frontier_width,omitempty"`
	MaxFrontierAngle  *float64 `json:"max_frontier_angle,omitempty"`
	Beams             *int     `json:"beams,omitempty"`
	OccupiedThreshold *int     `json:"occupied_threshold,omitempty"`

	DataTimeout *string `json:"data_timeout,omitempty"` // duration string like "2s"
	CallTimeout *string `json:"call_timeout,omitempty"` // per remote call

	MapAddress           *string `json:"map_address,omitempty"`
	DissimilarityAddress *string `json:"dissimilarity_address,omitempty"`

	// Reference dissimilarity service
	DissimilarityBins *int `json:"dissimilarity_bins,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyJockeyConfig returns a JockeyConfig with every field unset.
func EmptyJockeyConfig() *JockeyConfig {
	return &JockeyConfig{}
}

// DefaultJockeyConfig returns a config with every field set to its default.
func DefaultJockeyConfig() *JockeyConfig {
	c := EmptyJockeyConfig()
	return &JockeyConfig{
		JockeyName:                ptrString(c.GetJockeyName()),
		PlaceProfileInterfaceName: ptrString(c.GetPlaceProfileInterfaceName()),
		CrossingInterfaceName:     ptrString(c.GetCrossingInterfaceName()),
		LocalizeService:           ptrString(c.GetLocalizeService()),
		DissimilarityServerName:   ptrString(c.GetDissimilarityServerName()),
		RangeCutoff:               ptrFloat64(c.GetRangeCutoff()),
		FrontierWidth:             ptrFloat64(c.GetFrontierWidth()),
		MaxFrontierAngle:          ptrFloat64(c.GetMaxFrontierAngle()),
		Beams:                     ptrInt(c.GetBeams()),
		OccupiedThreshold:         ptrInt(c.GetOccupiedThreshold()),
		DataTimeout:               ptrString(c.GetDataTimeout().String()),
		CallTimeout:               ptrString(c.GetCallTimeout().String()),
		MapAddress:                ptrString(c.GetMapAddress()),
		DissimilarityAddress:      ptrString(c.GetDissimilarityAddress()),
		DissimilarityBins:         ptrInt(c.GetDissimilarityBins()),
	}
}

// LoadJockeyConfig loads a JockeyConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Omitted fields
// keep their defaults.
func LoadJockeyConfig(path string) (*JockeyConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyJockeyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *JockeyConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/<name>/ subpackages
	}
	for _, path := range candidates {
		if cfg, err := LoadJockeyConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *JockeyConfig) Validate() error {
	if c.JockeyName != nil && *c.JockeyName == "" {
		return fmt.Errorf("jockey_name must not be empty")
	}
	if c.RangeCutoff != nil && *c.RangeCutoff < 0 {
		return fmt.Errorf("range_cutoff must be non-negative, got %f", *c.RangeCutoff)
	}
	if c.FrontierWidth != nil && *c.FrontierWidth <= 0 {
		return fmt.Errorf("frontier_width must be positive, got %f", *c.FrontierWidth)
	}
	if c.MaxFrontierAngle != nil {
		if *c.MaxFrontierAngle <= 0 || *c.MaxFrontierAngle > math.Pi {
			return fmt.Errorf("max_frontier_angle must be in (0, π], got %f", *c.MaxFrontierAngle)
		}
	}
	if c.Beams != nil && *c.Beams < 8 {
		return fmt.Errorf("beams must be at least 8, got %d", *c.Beams)
	}
	if c.OccupiedThreshold != nil {
		if *c.OccupiedThreshold < 1 || *c.OccupiedThreshold > 100 {
			return fmt.Errorf("occupied_threshold must be between 1 and 100, got %d", *c.OccupiedThreshold)
		}
	}
	if c.DataTimeout != nil && *c.DataTimeout != "" {
		d, err := time.ParseDuration(*c.DataTimeout)
		if err != nil {
			return fmt.Errorf("invalid data_timeout '%s': %w", *c.DataTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("data_timeout must be positive, got %s", d)
		}
	}
	if c.CallTimeout != nil && *c.CallTimeout != "" {
		if _, err := time.ParseDuration(*c.CallTimeout); err != nil {
			return fmt.Errorf("invalid call_timeout '%s': %w", *c.CallTimeout, err)
		}
	}
	if c.DissimilarityBins != nil && *c.DissimilarityBins < 1 {
		return fmt.Errorf("dissimilarity_bins must be positive, got %d", *c.DissimilarityBins)
	}
	return nil
}

// GetJockeyName returns the jockey_name value or the default.
func (c *JockeyConfig) GetJockeyName() string {
	if c.JockeyName == nil || *c.JockeyName == "" {
		return "lj_costmap"
	}
	return *c.JockeyName
}

// GetPlaceProfileInterfaceName defaults to <jockey_name>_place_profile.
func (c *JockeyConfig) GetPlaceProfileInterfaceName() string {
	if c.PlaceProfileInterfaceName == nil || *c.PlaceProfileInterfaceName == "" {
		return c.GetJockeyName() + "_place_profile"
	}
	return *c.PlaceProfileInterfaceName
}

// GetCrossingInterfaceName defaults to <jockey_name>_crossing.
func (c *JockeyConfig) GetCrossingInterfaceName() string {
	if c.CrossingInterfaceName == nil || *c.CrossingInterfaceName == "" {
		return c.GetJockeyName() + "_crossing"
	}
	return *c.CrossingInterfaceName
}

// GetLocalizeService returns the localize_service value or the default.
func (c *JockeyConfig) GetLocalizeService() string {
	if c.LocalizeService == nil || *c.LocalizeService == "" {
		return "localize_in_vertex"
	}
	return *c.LocalizeService
}

// GetDissimilarityServerName returns the dissimilarity_server_name value or the default.
func (c *JockeyConfig) GetDissimilarityServerName() string {
	if c.DissimilarityServerName == nil || *c.DissimilarityServerName == "" {
		return "compute_dissimilarity"
	}
	return *c.DissimilarityServerName
}

// GetRangeCutoff returns the range_cutoff value or the default (disabled).
func (c *JockeyConfig) GetRangeCutoff() float64 {
	if c.RangeCutoff == nil {
		return 0
	}
	return *c.RangeCutoff
}

// GetFrontierWidth returns the frontier_width value or the default.
func (c *JockeyConfig) GetFrontierWidth() float64 {
	if c.FrontierWidth == nil {
		return 0.5
	}
	return *c.FrontierWidth
}

// GetMaxFrontierAngle returns the max_frontier_angle value or the default.
func (c *JockeyConfig) GetMaxFrontierAngle() float64 {
	if c.MaxFrontierAngle == nil {
		return 0.785
	}
	return *c.MaxFrontierAngle
}

// GetBeams returns the beams value or the default.
func (c *JockeyConfig) GetBeams() int {
	if c.Beams == nil {
		return crossing.DefaultBeams
	}
	return *c.Beams
}

// GetOccupiedThreshold returns the occupied_threshold value or the default.
func (c *JockeyConfig) GetOccupiedThreshold() int {
	if c.OccupiedThreshold == nil {
		return int(crossing.DefaultOccupiedThreshold)
	}
	return *c.OccupiedThreshold
}

// GetDataTimeout parses and returns data_timeout.
func (c *JockeyConfig) GetDataTimeout() time.Duration {
	if c.DataTimeout == nil || *c.DataTimeout == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.DataTimeout)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetCallTimeout parses and returns call_timeout. Zero means no deadline
// beyond the action's own.
func (c *JockeyConfig) GetCallTimeout() time.Duration {
	if c.CallTimeout == nil || *c.CallTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.CallTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetMapAddress returns the map_address value or the default.
func (c *JockeyConfig) GetMapAddress() string {
	if c.MapAddress == nil || *c.MapAddress == "" {
		return "localhost:50061"
	}
	return *c.MapAddress
}

// GetDissimilarityAddress returns the dissimilarity_address value or the default.
func (c *JockeyConfig) GetDissimilarityAddress() string {
	if c.DissimilarityAddress == nil || *c.DissimilarityAddress == "" {
		return "localhost:50061"
	}
	return *c.DissimilarityAddress
}

// GetDissimilarityBins returns the dissimilarity_bins value or the default.
func (c *JockeyConfig) GetDissimilarityBins() int {
	if c.DissimilarityBins == nil {
		return 180
	}
	return *c.DissimilarityBins
}

// DetectorOptions returns the shape tolerances for the crossing detector.
func (c *JockeyConfig) DetectorOptions() crossing.Options {
	return crossing.Options{
		RangeCutoff:      c.GetRangeCutoff(),
		MaxFrontierAngle: c.GetMaxFrontierAngle(),
		FrontierWidth:    c.GetFrontierWidth(),
	}
}

// Detector returns a crossing detector configured from c.
func (c *JockeyConfig) Detector() *crossing.CostmapDetector {
	return &crossing.CostmapDetector{
		Beams:             c.GetBeams(),
		OccupiedThreshold: int8(c.GetOccupiedThreshold()),
	}
}
