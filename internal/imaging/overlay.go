package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Line is a stroke between two pixel coordinates.
type Line struct {
	From image.Point
	To   image.Point
}

// RenderParams controls how lane lines are drawn and composited.
type RenderParams struct {
	// Color is the stroke color in RGB channel order.
	Color color.RGBA

	// Thickness is the stroke width in pixels. Strokes have round caps.
	Thickness int

	// OverlayWeight, FrameWeight and Bias define the per-channel composite
	// out = OverlayWeight*overlay + FrameWeight*frame + Bias, rounded and
	// saturated to 0-255.
	OverlayWeight float64
	FrameWeight   float64
	Bias          float64
}

// DefaultRenderParams returns pure blue 20 px strokes blended 0.8/1.0/+1.
//
// The +1 bias lifts every channel of every pixel by one level, including
// pixels no lane touches.
func DefaultRenderParams() RenderParams {
	return RenderParams{
		Color:         color.RGBA{R: 0, G: 0, B: 255, A: 255},
		Thickness:     20,
		OverlayWeight: 0.8,
		FrameWeight:   1.0,
		Bias:          1.0,
	}
}

// Render draws lines onto a blank overlay and blends it with frame.
//
// The output has the frame's size and is anchored at (0,0). Alpha is copied
// from the frame; only the color channels are blended. frame is not
// modified. An empty lines slice still applies the blend, so the output is
// frame*FrameWeight + Bias.
func Render(frame image.Image, lines []Line, p RenderParams) (*image.NRGBA, error) {
	if err := ValidateFrame(frame); err != nil {
		return nil, err
	}
	if p.Thickness < 1 {
		return nil, fmt.Errorf("line thickness must be positive, got %d", p.Thickness)
	}

	base := cloneFrame(frame)
	overlay := NewOverlay(base.Bounds().Dx(), base.Bounds().Dy())
	for _, l := range lines {
		DrawLine(overlay, l, p.Color, p.Thickness)
	}
	return Blend(overlay, base, p.OverlayWeight, p.FrameWeight, p.Bias)
}

// NewOverlay allocates a zero-initialized (transparent black) canvas.
func NewOverlay(width, height int) *image.NRGBA {
	return imaging.New(width, height, color.NRGBA{})
}

// DrawLine paints every pixel whose center lies within thickness/2 of the
// segment. Endpoints may lie far outside the canvas; only the visible part
// is visited.
func DrawLine(dst *image.NRGBA, l Line, c color.RGBA, thickness int) {
	bounds := dst.Bounds()
	r := float64(thickness) / 2

	ax, ay := float64(l.From.X), float64(l.From.Y)
	bx, by := float64(l.To.X), float64(l.To.Y)

	minX := int(math.Max(math.Floor(math.Min(ax, bx)-r), float64(bounds.Min.X)))
	maxX := int(math.Min(math.Ceil(math.Max(ax, bx)+r), float64(bounds.Max.X-1)))
	minY := int(math.Max(math.Floor(math.Min(ay, by)-r), float64(bounds.Min.Y)))
	maxY := int(math.Min(math.Ceil(math.Max(ay, by)+r), float64(bounds.Max.Y-1)))
	if minX > maxX || minY > maxY {
		return
	}

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	rSq := r * r

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)-ax, float64(y)-ay
			t := 0.0
			if lenSq > 0 {
				t = math.Max(0, math.Min(1, (px*dx+py*dy)/lenSq))
			}
			ex, ey := px-t*dx, py-t*dy
			if ex*ex+ey*ey <= rSq {
				i := dst.PixOffset(x, y)
				dst.Pix[i+0] = c.R
				dst.Pix[i+1] = c.G
				dst.Pix[i+2] = c.B
				dst.Pix[i+3] = c.A
			}
		}
	}
}

// Blend computes wOverlay*overlay + wFrame*frame + bias per color channel.
//
// Both images must have the same size. Results are rounded half-to-even and
// saturated; alpha is taken from frame.
func Blend(overlay, frame *image.NRGBA, wOverlay, wFrame, bias float64) (*image.NRGBA, error) {
	ob, fb := overlay.Bounds(), frame.Bounds()
	if ob.Dx() != fb.Dx() || ob.Dy() != fb.Dy() {
		return nil, fmt.Errorf("overlay %dx%d does not match frame %dx%d", ob.Dx(), ob.Dy(), fb.Dx(), fb.Dy())
	}

	width, height := fb.Dx(), fb.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		o := overlay.Pix[overlay.PixOffset(ob.Min.X, ob.Min.Y+y):]
		f := frame.Pix[frame.PixOffset(fb.Min.X, fb.Min.Y+y):]
		d := out.Pix[y*out.Stride:]
		for x := 0; x < width*4; x += 4 {
			for ch := 0; ch < 3; ch++ {
				d[x+ch] = saturate(wOverlay*float64(o[x+ch]) + wFrame*float64(f[x+ch]) + bias)
			}
			d[x+3] = f[x+3]
		}
	}
	return out, nil
}
