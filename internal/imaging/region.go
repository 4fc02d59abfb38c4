package imaging

import (
	"fmt"
	"image"

	"golang.org/x/image/vector"
)

// RegionSpec describes the road-area triangle in pixel coordinates.
//
// The bottom corners sit on the last frame row (y = frame height) and the
// apex is a fixed point. These values encode an assumed camera framing for
// 1280x720 dashcam footage; they are tuning constants, not derived geometry.
type RegionSpec struct {
	BottomLeftX  int `json:"bottom_left_x"`
	BottomRightX int `json:"bottom_right_x"`
	ApexX        int `json:"apex_x"`
	ApexY        int `json:"apex_y"`
}

// DefaultRegionSpec returns the triangle (200,H), (1100,H), (550,250).
func DefaultRegionSpec() RegionSpec {
	return RegionSpec{
		BottomLeftX:  200,
		BottomRightX: 1100,
		ApexX:        550,
		ApexY:        250,
	}
}

// Region is an immutable polygon bounding the area of interest.
type Region struct {
	Points []image.Point `json:"points"`
}

// ForHeight anchors the triangle to a frame of the given height.
func (s RegionSpec) ForHeight(height int) Region {
	return Region{Points: []image.Point{
		{X: s.BottomLeftX, Y: height},
		{X: s.BottomRightX, Y: height},
		{X: s.ApexX, Y: s.ApexY},
	}}
}

// Check reports ErrDegenerateGeometry when the apex is outside a frame of
// the given size. Bottom corners may extend past the frame edges; the mask
// is clipped to the frame.
func (s RegionSpec) Check(width, height int) error {
	if s.ApexX < 0 || s.ApexX >= width || s.ApexY < 0 || s.ApexY >= height {
		return fmt.Errorf("%w: apex (%d,%d) outside %dx%d frame",
			ErrDegenerateGeometry, s.ApexX, s.ApexY, width, height)
	}
	return nil
}

// MaskRegion zeroes every edge pixel outside the region of interest.
//
// The result is a new image; edges is not modified. Masking an already
// masked map with the same spec returns an identical map.
func MaskRegion(edges *image.Gray, s RegionSpec) (*image.Gray, error) {
	if err := ValidateFrame(edges); err != nil {
		return nil, err
	}
	bounds := edges.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if err := s.Check(width, height); err != nil {
		return nil, err
	}

	mask := s.ForHeight(height).Mask(width, height)
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := edges.Pix[edges.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		m := mask.Pix[y*mask.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < width; x++ {
			dst[x] = src[x] & m[x]
		}
	}
	return out, nil
}

// Mask rasterizes the filled polygon into a width x height binary image:
// 255 inside, 0 outside.
//
// Vertices are pixel centers. A pixel belongs to the polygon when at least
// half of its area is covered.
func (r Region) Mask(width, height int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	poly := clipPolygon(r.Points, float32(width), float32(height))
	if len(poly) < 3 {
		return mask
	}

	z := vector.NewRasterizer(width, height)
	z.MoveTo(poly[0][0], poly[0][1])
	for _, p := range poly[1:] {
		z.LineTo(p[0], p[1])
	}
	z.ClosePath()

	coverage := image.NewAlpha(mask.Bounds())
	z.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})
	for i, a := range coverage.Pix {
		if a >= 0x80 {
			mask.Pix[i] = 255
		}
	}
	return mask
}

// clipPolygon shifts vertices from pixel centers to pixel-area coordinates
// and clips the polygon to [0,w]x[0,h] (Sutherland-Hodgman).
func clipPolygon(points []image.Point, w, h float32) [][2]float32 {
	poly := make([][2]float32, len(points))
	for i, p := range points {
		poly[i] = [2]float32{float32(p.X) + 0.5, float32(p.Y) + 0.5}
	}

	edges := []struct {
		inside func(p [2]float32) bool
		cross  func(a, b [2]float32) [2]float32
	}{
		{
			func(p [2]float32) bool { return p[0] >= 0 },
			func(a, b [2]float32) [2]float32 { return lerpX(a, b, 0) },
		},
		{
			func(p [2]float32) bool { return p[0] <= w },
			func(a, b [2]float32) [2]float32 { return lerpX(a, b, w) },
		},
		{
			func(p [2]float32) bool { return p[1] >= 0 },
			func(a, b [2]float32) [2]float32 { return lerpY(a, b, 0) },
		},
		{
			func(p [2]float32) bool { return p[1] <= h },
			func(a, b [2]float32) [2]float32 { return lerpY(a, b, h) },
		},
	}

	for _, e := range edges {
		if len(poly) == 0 {
			break
		}
		in := poly
		poly = make([][2]float32, 0, len(in)+2)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				poly = append(poly, cur)
			case e.inside(cur):
				poly = append(poly, e.cross(prev, cur), cur)
			case e.inside(prev):
				poly = append(poly, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return poly
}

func lerpX(a, b [2]float32, x float32) [2]float32 {
	t := (x - a[0]) / (b[0] - a[0])
	return [2]float32{x, a[1] + t*(b[1]-a[1])}
}

func lerpY(a, b [2]float32, y float32) [2]float32 {
	t := (y - a[1]) / (b[1] - a[1])
	return [2]float32{a[0] + t*(b[0]-a[0]), y}
}
