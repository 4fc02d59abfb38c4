package config

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/lane-overlay-mcp/internal/detection"
	"github.com/ironsheep/lane-overlay-mcp/internal/imaging"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}

	if cfg.BlurKernelSize != 5 {
		t.Errorf("BlurKernelSize = %d, want 5", cfg.BlurKernelSize)
	}
	if cfg.LowThreshold != 50 || cfg.HighThreshold != 150 {
		t.Errorf("thresholds = %v/%v, want 50/150", cfg.LowThreshold, cfg.HighThreshold)
	}
	if cfg.Region != (imaging.RegionSpec{BottomLeftX: 200, BottomRightX: 1100, ApexX: 550, ApexY: 250}) {
		t.Errorf("Region = %+v", cfg.Region)
	}
	if cfg.HoughRho != 2 || cfg.HoughThetaDegrees != 1 || cfg.HoughThreshold != 100 {
		t.Errorf("hough = %v/%v/%v, want 2/1/100", cfg.HoughRho, cfg.HoughThetaDegrees, cfg.HoughThreshold)
	}
	if cfg.HoughMinLineLength != 40 || cfg.HoughMaxLineGap != 5 {
		t.Errorf("hough length/gap = %d/%d, want 40/5", cfg.HoughMinLineLength, cfg.HoughMaxLineGap)
	}
	if cfg.LaneThickness != 20 || cfg.OverlayWeight != 0.8 || cfg.FrameWeight != 1 || cfg.Bias != 1 {
		t.Errorf("render = %d/%v/%v/%v", cfg.LaneThickness, cfg.OverlayWeight, cfg.FrameWeight, cfg.Bias)
	}
}

func TestDefault_ParamsMatchPackageDefaults(t *testing.T) {
	cfg := Default()

	if diff := cmp.Diff(imaging.DefaultEdgeParams(), cfg.EdgeParams()); diff != "" {
		t.Errorf("EdgeParams mismatch (-want +got):\n%s", diff)
	}

	hough, err := cfg.HoughParams()
	if err != nil {
		t.Fatalf("HoughParams failed: %v", err)
	}
	want := detection.DefaultHoughParams()
	if math.Abs(hough.Theta-want.Theta) > 1e-15 {
		t.Errorf("Theta = %v, want %v", hough.Theta, want.Theta)
	}
	hough.Theta = want.Theta
	if diff := cmp.Diff(want, hough); diff != "" {
		t.Errorf("HoughParams mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(detection.DefaultAggregateParams(), cfg.AggregateParams()); diff != "" {
		t.Errorf("AggregateParams mismatch (-want +got):\n%s", diff)
	}

	render, err := cfg.RenderParams()
	if err != nil {
		t.Fatalf("RenderParams failed: %v", err)
	}
	if diff := cmp.Diff(imaging.DefaultRenderParams(), render); diff != "" {
		t.Errorf("RenderParams mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
  "low_threshold": 40,
  "region": {"bottom_left_x": 100, "bottom_right_x": 900, "apex_x": 480, "apex_y": 300},
  "hough_seed": 7,
  "lane_color": "#ff0000",
  "workers": 2
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LowThreshold != 40 {
		t.Errorf("LowThreshold = %v, want 40", cfg.LowThreshold)
	}
	if cfg.HighThreshold != 150 {
		t.Errorf("HighThreshold = %v, want default 150", cfg.HighThreshold)
	}
	if cfg.Region.ApexY != 300 || cfg.Region.BottomLeftX != 100 {
		t.Errorf("Region = %+v", cfg.Region)
	}
	if cfg.HoughSeed != 7 || cfg.Workers != 2 {
		t.Errorf("seed/workers = %d/%d, want 7/2", cfg.HoughSeed, cfg.Workers)
	}

	render, err := cfg.RenderParams()
	if err != nil {
		t.Fatalf("RenderParams failed: %v", err)
	}
	if render.Color != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("Color = %v, want red", render.Color)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "tuning.yaml", `{}`, ".json extension"},
		{"bad json", "tuning.json", `{"low_threshold": `, "parse"},
		{"even kernel", "tuning.json", `{"blur_kernel_size": 4}`, "blur_kernel_size"},
		{"zero rho", "tuning.json", `{"hough_rho": 0}`, "hough"},
		{"bad colour", "tuning.json", `{"lane_color": "blue"}`, "lane_color"},
		{"zero thickness", "tuning.json", `{"lane_thickness": 0}`, "lane_thickness"},
		{"top ratio one", "tuning.json", `{"top_ratio": 1}`, "top_ratio"},
		{"negative workers", "tuning.json", `{"workers": -1}`, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_TooLarge(t *testing.T) {
	path := writeConfig(t, "big.json", `{"bias": 1}`+strings.Repeat(" ", maxFileSize))
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("got %v, want size error", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("unset variable should give defaults (-want +got):\n%s", diff)
	}

	path := writeConfig(t, "env.json", `{"lane_thickness": 8}`)
	t.Setenv(EnvConfigPath, path)
	cfg, err = FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.LaneThickness != 8 {
		t.Errorf("LaneThickness = %d, want 8", cfg.LaneThickness)
	}
}
