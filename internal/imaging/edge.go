package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// EdgeParams controls the edge extraction stage.
type EdgeParams struct {
	// BlurKernelSize is the side of the square Gaussian kernel. Must be odd.
	BlurKernelSize int

	// BlurSigma is the Gaussian standard deviation. Zero derives it from the
	// kernel size as 0.3*((k-1)*0.5-1)+0.8.
	BlurSigma float64

	// LowThreshold and HighThreshold are the hysteresis thresholds on the
	// 0-255 gradient scale. Gradients above HighThreshold are strong edges;
	// those between the two survive only when connected to a strong edge.
	LowThreshold  float64
	HighThreshold float64

	// L2Gradient selects sqrt(Gx²+Gy²) for the magnitude instead of |Gx|+|Gy|.
	L2Gradient bool
}

// DefaultEdgeParams returns the 5x5 blur and 50/150 thresholds used for
// road frames.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{
		BlurKernelSize: 5,
		LowThreshold:   50,
		HighThreshold:  150,
	}
}

// Edges converts a color frame to a binary edge map.
//
// The returned image has the frame's size, anchored at (0,0), with edge
// pixels set to 255 and everything else 0.
//
// # Algorithm
//
//  1. Grayscale conversion using ITU-R BT.601 weights
//     (0.299*R + 0.587*G + 0.114*B)
//
//  2. Gaussian blur with a BlurKernelSize x BlurKernelSize kernel
//
//  3. Gradient computation: Sobel operators for X and Y gradients
//
//  4. Non-maximum suppression: thin edges to 1-pixel width by keeping only
//     local maxima in the gradient direction
//
//  5. Hysteresis thresholding: strong pixels seed edges, weak pixels are
//     kept when 8-connected (transitively) to a strong pixel
func Edges(frame image.Image, p EdgeParams) (*image.Gray, error) {
	if err := ValidateFrame(frame); err != nil {
		return nil, err
	}
	if p.BlurKernelSize < 1 || p.BlurKernelSize%2 == 0 {
		return nil, fmt.Errorf("blur kernel size must be a positive odd number, got %d", p.BlurKernelSize)
	}
	if p.LowThreshold > p.HighThreshold {
		p.LowThreshold, p.HighThreshold = p.HighThreshold, p.LowThreshold
	}

	gray := imaging.Grayscale(frame)
	blurred := convolution.Convolve(gray, gaussianKernel(p.BlurKernelSize, p.BlurSigma), &convolution.Options{KeepAlpha: true})

	bounds := blurred.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	intensity := make([][]float64, height)
	for y := 0; y < height; y++ {
		intensity[y] = make([]float64, width)
		row := blurred.Pix[y*blurred.Stride:]
		for x := 0; x < width; x++ {
			intensity[y][x] = float64(row[x*4])
		}
	}

	magnitude, direction := sobel(intensity, width, height, p.L2Gradient)
	suppressed := nonMaxSuppress(magnitude, direction, width, height)
	return hysteresis(suppressed, width, height, p.LowThreshold, p.HighThreshold), nil
}

// gaussianKernel builds a normalized size x size Gaussian kernel.
//
// A non-positive sigma is derived from the size the same way common vision
// libraries do, which gives sigma = 1.1 for a 5x5 kernel.
func gaussianKernel(size int, sigma float64) *convolution.Kernel {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	k := convolution.NewKernel(size, size)
	half := size / 2
	weights := make([]float64, size)
	var sum float64
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			k.Matrix[y*size+x] = weights[y] * weights[x]
		}
	}
	return k
}

// sobel returns gradient magnitude and direction for every pixel.
// Border pixels use clamped (replicated) edge values.
func sobel(img [][]float64, width, height int, l2 bool) (magnitude, direction [][]float64) {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude = make([][]float64, height)
	direction = make([][]float64, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					gx += img[py][px] * sobelX[ky+1][kx+1]
					gy += img[py][px] * sobelY[ky+1][kx+1]
				}
			}
			if l2 {
				magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			} else {
				magnitude[y][x] = math.Abs(gx) + math.Abs(gy)
			}
			direction[y][x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// nonMaxSuppress keeps a pixel's magnitude only if it is a local maximum
// along its gradient direction. The outermost ring is always suppressed.
func nonMaxSuppress(magnitude, direction [][]float64, width, height int) [][]float64 {
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			angle := direction[y][x]
			mag := magnitude[y][x]
			if mag == 0 {
				continue
			}

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			} else {
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			}

			// Ties on one side only, so a flat ridge two pixels wide keeps one.
			if mag > n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}
	return suppressed
}

// hysteresis turns suppressed magnitudes into a binary edge map.
func hysteresis(suppressed [][]float64, width, height int, low, high float64) *image.Gray {
	result := image.NewGray(image.Rect(0, 0, width, height))

	stack := make([]image.Point, 0, 64)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if suppressed[y][x] > high && result.Pix[y*result.Stride+x] == 0 {
				result.Pix[y*result.Stride+x] = 255
				stack = append(stack, image.Point{X: x, Y: y})
			}
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						nx, ny := p.X+kx, p.Y+ky
						if nx < 0 || nx >= width || ny < 0 || ny >= height {
							continue
						}
						i := ny*result.Stride + nx
						if result.Pix[i] == 0 && suppressed[ny][nx] > low {
							result.Pix[i] = 255
							stack = append(stack, image.Point{X: nx, Y: ny})
						}
					}
				}
			}
		}
	}
	return result
}
