// Package detection turns a binary edge map into lane boundary lines.
//
// Detection runs in two stages:
//
//  1. Segment extraction: DetectSegments runs a progressive probabilistic
//     Hough transform over the edge map and returns straight segments.
//  2. Aggregation: Aggregate fits y = m*x + b to every segment, splits the
//     fits by slope sign, averages each side and reconstructs one line per
//     side spanning the lower part of the frame.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Because y grows downward, a boundary on the left of the lane rises to the
// right and has a negative slope. Slope < 0 is left, slope >= 0 is right.
//
// # Missing Lanes
//
// A side with no segments, or whose averaged slope is too close to zero to
// reconstruct, is reported as nil. Absence is not an error.
//
// # Reproducibility
//
// The Hough stage visits edge pixels in a random order drawn from a seeded
// generator. The same edge map and HoughParams always give the same segments.
package detection
