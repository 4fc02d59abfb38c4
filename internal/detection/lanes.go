package detection

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// LineModel is a line in slope-intercept form: y = Slope*x + Intercept.
type LineModel struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// LaneLine holds the two endpoints of a reconstructed lane boundary.
// (X1,Y1) is on the bottom row of the frame, (X2,Y2) higher up; Y1 > Y2.
type LaneLine struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Endpoints returns the line's bottom and top points.
func (l LaneLine) Endpoints() (image.Point, image.Point) {
	return image.Point{X: l.X1, Y: l.Y1}, image.Point{X: l.X2, Y: l.Y2}
}

// Lanes is the per-frame result. A nil side means no lane was found there.
type Lanes struct {
	Left  *LaneLine `json:"left"`
	Right *LaneLine `json:"right"`
}

// Present returns the non-nil lane lines, left first.
func (l Lanes) Present() []LaneLine {
	out := make([]LaneLine, 0, 2)
	if l.Left != nil {
		out = append(out, *l.Left)
	}
	if l.Right != nil {
		out = append(out, *l.Right)
	}
	return out
}

// AggregateParams controls lane reconstruction.
type AggregateParams struct {
	// TopRatio places the upper endpoint at int(TopRatio*height) from the
	// top of the frame. 0.6 leaves the line covering the bottom 40%.
	TopRatio float64

	// MinAbsSlope drops an averaged model whose slope magnitude is below
	// this. Such lines are nearly horizontal and their reconstructed x
	// coordinates run off toward infinity.
	MinAbsSlope float64
}

// DefaultAggregateParams returns TopRatio 0.6 and MinAbsSlope 1e-3.
func DefaultAggregateParams() AggregateParams {
	return AggregateParams{
		TopRatio:    0.6,
		MinAbsSlope: 1e-3,
	}
}

// FitSegment fits y = m*x + b through the segment's two endpoints by least
// squares. ok is false for vertical segments, which have no such form.
func FitSegment(s Segment) (m LineModel, ok bool) {
	if s.X1 == s.X2 {
		return LineModel{}, false
	}
	xs := []float64{float64(s.X1), float64(s.X2)}
	ys := []float64{float64(s.Y1), float64(s.Y2)}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return LineModel{Slope: beta, Intercept: alpha}, true
}

// Fits is the result of partitioning segment fits by slope sign.
type Fits struct {
	Left  []LineModel `json:"left"`
	Right []LineModel `json:"right"`
}

// Partition fits every segment and splits the models: slope < 0 goes left,
// slope >= 0 goes right. Vertical segments are skipped.
func Partition(segments []Segment) Fits {
	var f Fits
	for _, s := range segments {
		m, ok := FitSegment(s)
		if !ok {
			continue
		}
		if m.Slope < 0 {
			f.Left = append(f.Left, m)
		} else {
			f.Right = append(f.Right, m)
		}
	}
	return f
}

// AverageModels returns the arithmetic mean slope and mean intercept.
// ok is false for an empty slice.
func AverageModels(fits []LineModel) (m LineModel, ok bool) {
	if len(fits) == 0 {
		return LineModel{}, false
	}
	slopes := make([]float64, len(fits))
	intercepts := make([]float64, len(fits))
	for i, f := range fits {
		slopes[i] = f.Slope
		intercepts[i] = f.Intercept
	}
	return LineModel{
		Slope:     stat.Mean(slopes, nil),
		Intercept: stat.Mean(intercepts, nil),
	}, true
}

// Reconstruct solves the model for x at the bottom row (y = height) and at
// y = int(topRatio*height), truncating toward zero.
//
// ok is false when |slope| < minAbsSlope or when an x coordinate is not a
// finite value that fits in 32 bits.
func (m LineModel) Reconstruct(height int, topRatio, minAbsSlope float64) (l LaneLine, ok bool) {
	if math.IsNaN(m.Slope) || math.Abs(m.Slope) < minAbsSlope || m.Slope == 0 {
		return LaneLine{}, false
	}
	y1 := height
	y2 := int(topRatio * float64(height))
	x1, ok1 := solveX(m, y1)
	x2, ok2 := solveX(m, y2)
	if !ok1 || !ok2 {
		return LaneLine{}, false
	}
	return LaneLine{X1: x1, Y1: y1, X2: x2, Y2: y2}, true
}

func solveX(m LineModel, y int) (int, bool) {
	x := (float64(y) - m.Intercept) / m.Slope
	if math.IsNaN(x) || math.IsInf(x, 0) || x > math.MaxInt32 || x < math.MinInt32 {
		return 0, false
	}
	return int(x), true
}

// Aggregate turns raw segments into at most one lane line per side.
//
// Each side's fits are averaged into one model and reconstructed across the
// lower part of the frame. A side with no fits, or whose averaged model is
// numerically unstable, is nil; nothing is synthesized for it.
func Aggregate(height int, segments []Segment, p AggregateParams) Lanes {
	fits := Partition(segments)
	var lanes Lanes
	if m, ok := AverageModels(fits.Left); ok {
		if l, ok := m.Reconstruct(height, p.TopRatio, p.MinAbsSlope); ok {
			lanes.Left = &l
		}
	}
	if m, ok := AverageModels(fits.Right); ok {
		if l, ok := m.Reconstruct(height, p.TopRatio, p.MinAbsSlope); ok {
			lanes.Right = &l
		}
	}
	return lanes
}
