package detection

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"
)

// Segment is a detected straight line segment in image coordinates.
type Segment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// HoughParams controls the probabilistic Hough transform.
type HoughParams struct {
	// Rho is the distance resolution of the accumulator in pixels.
	Rho float64

	// Theta is the angular resolution of the accumulator in radians.
	Theta float64

	// Threshold is the minimum vote count for a line candidate.
	Threshold int

	// MinLineLength rejects segments whose horizontal and vertical extents
	// are both shorter than this.
	MinLineLength int

	// MaxLineGap is the largest run of missing pixels bridged along a line.
	MaxLineGap int

	// MaxLines stops detection after this many segments. Zero means no limit.
	MaxLines int

	// Seed fixes the point visiting order so results are reproducible.
	Seed uint64
}

// DefaultHoughParams returns rho 2 px, theta 1 degree, 100 votes, 40 px
// minimum length and 5 px maximum gap.
func DefaultHoughParams() HoughParams {
	return HoughParams{
		Rho:           2,
		Theta:         math.Pi / 180,
		Threshold:     100,
		MinLineLength: 40,
		MaxLineGap:    5,
	}
}

// Validate checks that the parameters describe a usable accumulator.
func (p HoughParams) Validate() error {
	if p.Rho <= 0 {
		return fmt.Errorf("rho must be positive, got %v", p.Rho)
	}
	if p.Theta <= 0 || p.Theta > math.Pi {
		return fmt.Errorf("theta must be in (0, pi], got %v", p.Theta)
	}
	if p.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", p.Threshold)
	}
	if p.MinLineLength < 0 || p.MaxLineGap < 0 || p.MaxLines < 0 {
		return fmt.Errorf("line length, gap and limit must be non-negative")
	}
	return nil
}

// fixed-point shift used when walking along a candidate line
const walkShift = 16

// DetectSegments finds straight line segments in a binary edge map using the
// progressive probabilistic Hough transform.
//
// Edge pixels are visited in a random (seeded) order. Each visited pixel votes
// for every line through it; as soon as one accumulator cell reaches
// Threshold, the line is followed in both directions from the pixel,
// bridging gaps of up to MaxLineGap pixels. The pixels walked over are
// removed from the map and, for accepted segments, their votes withdrawn, so
// each edge pixel contributes to at most one segment.
//
// The returned order carries no meaning. An empty map yields an empty slice.
func DetectSegments(edges *image.Gray, p HoughParams) ([]Segment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	segments := make([]Segment, 0)
	if edges == nil || edges.Bounds().Empty() {
		return segments, nil
	}

	bounds := edges.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	numAngle := int(math.RoundToEven(math.Pi / p.Theta))
	numRho := int(math.RoundToEven(float64((width+height)*2+1) / p.Rho))
	irho := 1 / p.Rho
	cosTab := make([]float64, numAngle)
	sinTab := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		cosTab[n] = math.Cos(float64(n)*p.Theta) * irho
		sinTab[n] = math.Sin(float64(n)*p.Theta) * irho
	}
	rhoOffset := (numRho - 1) / 2
	accum := make([]int, numAngle*numRho)
	vote := func(x, y, delta int) (maxVal, maxN int) {
		maxVal, maxN = p.Threshold-1, 0
		for n := 0; n < numAngle; n++ {
			r := int(math.RoundToEven(float64(x)*cosTab[n]+float64(y)*sinTab[n])) + rhoOffset
			if r < 0 || r >= numRho {
				continue
			}
			cell := &accum[n*numRho+r]
			*cell += delta
			if *cell > maxVal {
				maxVal, maxN = *cell, n
			}
		}
		return maxVal, maxN
	}

	mask := make([]bool, width*height)
	points := make([]image.Point, 0)
	for y := 0; y < height; y++ {
		row := edges.Pix[edges.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < width; x++ {
			if row[x] != 0 {
				mask[y*width+x] = true
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	for count := len(points); count > 0; count-- {
		idx := rng.IntN(count)
		pt := points[idx]
		points[idx] = points[count-1]

		// Already consumed by an earlier segment.
		if !mask[pt.Y*width+pt.X] {
			continue
		}

		maxVal, maxN := vote(pt.X, pt.Y, 1)
		if maxVal < p.Threshold {
			continue
		}

		// Direction along the line is perpendicular to its normal.
		a := -sinTab[maxN]
		b := cosTab[maxN]
		x0, y0 := pt.X, pt.Y
		var dx0, dy0 int
		xflag := math.Abs(a) > math.Abs(b)
		if xflag {
			dx0 = sign(a)
			dy0 = int(math.RoundToEven(b * (1 << walkShift) / math.Abs(a)))
			y0 = (y0 << walkShift) + (1 << (walkShift - 1))
		} else {
			dy0 = sign(b)
			dx0 = int(math.RoundToEven(a * (1 << walkShift) / math.Abs(b)))
			x0 = (x0 << walkShift) + (1 << (walkShift - 1))
		}

		walk := func(k int, visit func(px, py int) bool) {
			x, y, dx, dy := x0, y0, dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for ; ; x, y = x+dx, y+dy {
				px, py := x>>walkShift, y
				if xflag {
					px, py = x, y>>walkShift
				}
				if px < 0 || px >= width || py < 0 || py >= height {
					return
				}
				if !visit(px, py) {
					return
				}
			}
		}

		var ends [2]image.Point
		for k := 0; k < 2; k++ {
			gap := 0
			walk(k, func(px, py int) bool {
				if mask[py*width+px] {
					gap = 0
					ends[k] = image.Point{X: px, Y: py}
					return true
				}
				gap++
				return gap <= p.MaxLineGap
			})
		}

		good := abs(ends[1].X-ends[0].X) >= p.MinLineLength ||
			abs(ends[1].Y-ends[0].Y) >= p.MinLineLength

		for k := 0; k < 2; k++ {
			walk(k, func(px, py int) bool {
				i := py*width + px
				if mask[i] {
					if good {
						vote(px, py, -1)
					}
					mask[i] = false
				}
				return px != ends[k].X || py != ends[k].Y
			})
		}

		if good {
			segments = append(segments, Segment{
				X1: ends[0].X + bounds.Min.X,
				Y1: ends[0].Y + bounds.Min.Y,
				X2: ends[1].X + bounds.Min.X,
				Y2: ends[1].Y + bounds.Min.Y,
			})
			if p.MaxLines > 0 && len(segments) >= p.MaxLines {
				break
			}
		}
	}

	return segments, nil
}

func sign(v float64) int {
	if v > 0 {
		return 1
	}
	return -1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
