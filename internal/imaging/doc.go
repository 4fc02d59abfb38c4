// Package imaging provides the pixel-level stages of the lane overlay pipeline.
//
// This package implements the frame-in, frame-out operations: edge extraction,
// region-of-interest masking, and overlay rendering, plus the frame cache and
// file helpers used by the MCP host. All operations work with standard Go
// image.Image types and use a coordinate system where (0,0) is at the
// top-left corner, X increases rightward, and Y increases downward.
//
// # Frames
//
// Input frames may be any image.Image with any bounds origin. Every function
// returns a new image anchored at (0,0); inputs are never written. Edge maps
// are *image.Gray with pixels at exactly 0 or 255.
//
// # Thread Safety
//
// The FrameCache type is safe for concurrent use. Individual operations are
// stateless and can be called concurrently on different frames.
//
// # Error Handling
//
// Functions return errors for invalid inputs:
//   - ErrInvalidFrame: nil or zero-sized frames
//   - ErrDegenerateGeometry: a region apex outside the frame
//   - Invalid parameters (even blur kernels, non-positive stroke width)
//   - File I/O errors during frame loading and saving
//
// Callers should match the sentinel errors with errors.Is.
package imaging
