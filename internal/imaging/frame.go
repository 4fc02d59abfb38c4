package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrInvalidFrame is returned for frames with zero width or height, or for a
// nil frame. It aborts the current frame and is never retried.
var ErrInvalidFrame = errors.New("invalid frame")

// ErrDegenerateGeometry is returned when the configured region of interest
// cannot be placed on the frame (its apex lies outside the frame bounds).
// This is a configuration error, not an input error.
var ErrDegenerateGeometry = errors.New("degenerate region geometry")

// ValidateFrame checks that a frame can enter the pipeline.
func ValidateFrame(frame image.Image) error {
	if frame == nil {
		return fmt.Errorf("%w: frame is nil", ErrInvalidFrame)
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: frame is %dx%d", ErrInvalidFrame, b.Dx(), b.Dy())
	}
	return nil
}

// cloneFrame copies any frame into a fresh NRGBA buffer anchored at (0,0).
// Every derived frame starts here so callers' buffers are never written.
func cloneFrame(frame image.Image) *image.NRGBA {
	return imaging.Clone(frame)
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// saturate rounds v half-to-even and clamps it to a pixel byte.
func saturate(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.RoundToEven(v))
}
