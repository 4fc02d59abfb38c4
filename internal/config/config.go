// Package config holds the tuning knobs of the lane overlay pipeline.
//
// Every constant the pipeline uses is a named field here. Default returns
// the stock values; Load reads a JSON tuning file over those defaults, so a
// partial file only changes the fields it names.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ironsheep/lane-overlay-mcp/internal/detection"
	"github.com/ironsheep/lane-overlay-mcp/internal/imaging"
)

// EnvConfigPath names the environment variable holding a tuning file path.
const EnvConfigPath = "LANE_MCP_CONFIG"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the full set of pipeline parameters.
type Config struct {
	// Edge extraction
	BlurKernelSize int     `json:"blur_kernel_size"`
	BlurSigma      float64 `json:"blur_sigma"` // 0 derives sigma from the kernel size
	LowThreshold   float64 `json:"low_threshold"`
	HighThreshold  float64 `json:"high_threshold"`
	L2Gradient     bool    `json:"l2_gradient"`

	// Region of interest
	Region imaging.RegionSpec `json:"region"`

	// Segment detection
	HoughRho           float64 `json:"hough_rho"`
	HoughThetaDegrees  float64 `json:"hough_theta_degrees"`
	HoughThreshold     int     `json:"hough_threshold"`
	HoughMinLineLength int     `json:"hough_min_line_length"`
	HoughMaxLineGap    int     `json:"hough_max_line_gap"`
	HoughMaxLines      int     `json:"hough_max_lines"`
	HoughSeed          uint64  `json:"hough_seed"`

	// Lane aggregation
	TopRatio    float64 `json:"top_ratio"`
	MinAbsSlope float64 `json:"min_abs_slope"`

	// Rendering
	LaneColor     string  `json:"lane_color"`
	LaneThickness int     `json:"lane_thickness"`
	OverlayWeight float64 `json:"overlay_weight"`
	FrameWeight   float64 `json:"frame_weight"`
	Bias          float64 `json:"bias"`

	// Workers bounds concurrent frames in batch and stream processing.
	// 0 means one worker per CPU.
	Workers int `json:"workers"`
}

// Default returns the stock pipeline configuration.
func Default() *Config {
	edge := imaging.DefaultEdgeParams()
	hough := detection.DefaultHoughParams()
	agg := detection.DefaultAggregateParams()
	render := imaging.DefaultRenderParams()

	return &Config{
		BlurKernelSize:     edge.BlurKernelSize,
		BlurSigma:          edge.BlurSigma,
		LowThreshold:       edge.LowThreshold,
		HighThreshold:      edge.HighThreshold,
		L2Gradient:         edge.L2Gradient,
		Region:             imaging.DefaultRegionSpec(),
		HoughRho:           hough.Rho,
		HoughThetaDegrees:  1,
		HoughThreshold:     hough.Threshold,
		HoughMinLineLength: hough.MinLineLength,
		HoughMaxLineGap:    hough.MaxLineGap,
		HoughMaxLines:      hough.MaxLines,
		HoughSeed:          hough.Seed,
		TopRatio:           agg.TopRatio,
		MinAbsSlope:        agg.MinAbsSlope,
		LaneColor:          "#0000ff",
		LaneThickness:      render.Thickness,
		OverlayWeight:      render.OverlayWeight,
		FrameWeight:        render.FrameWeight,
		Bias:               render.Bias,
		Workers:            4,
	}
}

// Load reads a JSON tuning file over Default and validates the result.
// The file must have a .json extension and be at most 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnv loads the file named by LANE_MCP_CONFIG, or returns Default when
// the variable is unset.
func FromEnv() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.BlurKernelSize < 1 || c.BlurKernelSize%2 == 0 {
		return fmt.Errorf("blur_kernel_size must be a positive odd number, got %d", c.BlurKernelSize)
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur_sigma must be non-negative, got %f", c.BlurSigma)
	}
	if c.LowThreshold < 0 || c.HighThreshold < 0 {
		return fmt.Errorf("thresholds must be non-negative, got %f and %f", c.LowThreshold, c.HighThreshold)
	}

	if c.Region.ApexY < 0 {
		return fmt.Errorf("region apex_y must be non-negative, got %d", c.Region.ApexY)
	}

	if _, err := c.HoughParams(); err != nil {
		return err
	}

	if c.TopRatio < 0 || c.TopRatio >= 1 {
		return fmt.Errorf("top_ratio must be in [0, 1), got %f", c.TopRatio)
	}
	if c.MinAbsSlope < 0 {
		return fmt.Errorf("min_abs_slope must be non-negative, got %f", c.MinAbsSlope)
	}

	if _, err := imaging.ParseColor(c.LaneColor); err != nil {
		return fmt.Errorf("invalid lane_color: %w", err)
	}
	if c.LaneThickness < 1 {
		return fmt.Errorf("lane_thickness must be at least 1, got %d", c.LaneThickness)
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}

	return nil
}

// EdgeParams returns the edge extraction parameters.
func (c *Config) EdgeParams() imaging.EdgeParams {
	return imaging.EdgeParams{
		BlurKernelSize: c.BlurKernelSize,
		BlurSigma:      c.BlurSigma,
		LowThreshold:   c.LowThreshold,
		HighThreshold:  c.HighThreshold,
		L2Gradient:     c.L2Gradient,
	}
}

// HoughParams returns the segment detection parameters with theta converted
// to radians.
func (c *Config) HoughParams() (detection.HoughParams, error) {
	p := detection.HoughParams{
		Rho:           c.HoughRho,
		Theta:         c.HoughThetaDegrees * math.Pi / 180,
		Threshold:     c.HoughThreshold,
		MinLineLength: c.HoughMinLineLength,
		MaxLineGap:    c.HoughMaxLineGap,
		MaxLines:      c.HoughMaxLines,
		Seed:          c.HoughSeed,
	}
	if err := p.Validate(); err != nil {
		return detection.HoughParams{}, fmt.Errorf("invalid hough parameters: %w", err)
	}
	return p, nil
}

// AggregateParams returns the lane reconstruction parameters.
func (c *Config) AggregateParams() detection.AggregateParams {
	return detection.AggregateParams{
		TopRatio:    c.TopRatio,
		MinAbsSlope: c.MinAbsSlope,
	}
}

// RenderParams returns the overlay parameters with the lane colour parsed.
func (c *Config) RenderParams() (imaging.RenderParams, error) {
	col, err := imaging.ParseColor(c.LaneColor)
	if err != nil {
		return imaging.RenderParams{}, fmt.Errorf("invalid lane_color: %w", err)
	}
	return imaging.RenderParams{
		Color:         col,
		Thickness:     c.LaneThickness,
		OverlayWeight: c.OverlayWeight,
		FrameWeight:   c.FrameWeight,
		Bias:          c.Bias,
	}, nil
}
