// Package pipeline chains the lane overlay stages into a frame-in,
// frame-out transformation.
//
// A frame flows through edge extraction, region masking, segment detection,
// lane aggregation and overlay rendering. Each stage takes the previous
// stage's output; nothing is kept between frames, so a Pipeline can process
// frames concurrently.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/lane-overlay-mcp/internal/config"
	"github.com/ironsheep/lane-overlay-mcp/internal/detection"
	"github.com/ironsheep/lane-overlay-mcp/internal/imaging"
	"github.com/ironsheep/lane-overlay-mcp/internal/logger"
)

// Pipeline holds the resolved parameters of every stage.
type Pipeline struct {
	edge    imaging.EdgeParams
	region  imaging.RegionSpec
	hough   detection.HoughParams
	agg     detection.AggregateParams
	render  imaging.RenderParams
	workers int
	log     *logrus.Entry
}

// New validates cfg and resolves it into stage parameters. A nil cfg means
// config.Default().
func New(cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hough, err := cfg.HoughParams()
	if err != nil {
		return nil, err
	}
	render, err := cfg.RenderParams()
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pipeline{
		edge:    cfg.EdgeParams(),
		region:  cfg.Region,
		hough:   hough,
		agg:     cfg.AggregateParams(),
		render:  render,
		workers: workers,
		log:     logger.WithField("component", "pipeline"),
	}, nil
}

// Result carries every intermediate product of one frame.
type Result struct {
	Width    int
	Height   int
	Region   imaging.Region
	Edges    *image.Gray
	Masked   *image.Gray
	Segments []detection.Segment
	Fits     detection.Fits
	Lanes    detection.Lanes
	Output   *image.NRGBA
}

// ProcessFrame returns a new frame of the same size with the detected lane
// lines blended over it. The input is not modified.
//
// Errors:
//   - imaging.ErrInvalidFrame for a nil or zero-sized frame
//   - imaging.ErrDegenerateGeometry when the region apex lies outside the frame
//
// A frame with no detectable lanes is not an error; it is returned with only
// the blend bias applied.
func (p *Pipeline) ProcessFrame(frame image.Image) (*image.NRGBA, error) {
	res, err := p.Analyze(frame)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Analyze runs all stages on frame and returns their outputs.
func (p *Pipeline) Analyze(frame image.Image) (*Result, error) {
	if err := imaging.ValidateFrame(frame); err != nil {
		return nil, err
	}
	width, height := frame.Bounds().Dx(), frame.Bounds().Dy()
	if err := p.region.Check(width, height); err != nil {
		return nil, err
	}

	edges, err := imaging.Edges(frame, p.edge)
	if err != nil {
		return nil, fmt.Errorf("edge extraction: %w", err)
	}

	masked, err := imaging.MaskRegion(edges, p.region)
	if err != nil {
		return nil, fmt.Errorf("region mask: %w", err)
	}

	segments, err := detection.DetectSegments(masked, p.hough)
	if err != nil {
		return nil, fmt.Errorf("segment detection: %w", err)
	}

	lanes := detection.Aggregate(height, segments, p.agg)

	present := lanes.Present()
	lines := make([]imaging.Line, 0, len(present))
	for _, l := range present {
		from, to := l.Endpoints()
		lines = append(lines, imaging.Line{From: from, To: to})
	}

	out, err := imaging.Render(frame, lines, p.render)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"width":    width,
		"height":   height,
		"segments": len(segments),
		"left":     lanes.Left != nil,
		"right":    lanes.Right != nil,
	}).Debug("frame processed")

	return &Result{
		Width:    width,
		Height:   height,
		Region:   p.region.ForHeight(height),
		Edges:    edges,
		Masked:   masked,
		Segments: segments,
		Fits:     detection.Partition(segments),
		Lanes:    lanes,
		Output:   out,
	}, nil
}

// ProcessFrames processes a batch concurrently with at most Workers frames
// in flight. Output i corresponds to frames[i]. The first failure cancels
// the remaining frames and is returned with its index.
func (p *Pipeline) ProcessFrames(ctx context.Context, frames []image.Image) ([]*image.NRGBA, error) {
	out := make([]*image.NRGBA, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, frame := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := p.ProcessFrame(frame)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamResult is one processed frame from ProcessStream.
type StreamResult struct {
	Index int
	Frame *image.NRGBA
	Err   error
}

// ProcessStream processes frames as they arrive on in and emits results in
// arrival order. Up to Workers frames are processed at once. A failed frame
// is reported in its result and does not stop the stream.
//
// The returned channel is closed after in is closed and drained, or when ctx
// is cancelled.
func (p *Pipeline) ProcessStream(ctx context.Context, in <-chan image.Image) <-chan StreamResult {
	out := make(chan StreamResult)
	pending := make(chan chan StreamResult, p.workers)

	go func() {
		defer close(pending)
		for index := 0; ; index++ {
			var frame image.Image
			select {
			case <-ctx.Done():
				return
			case f, ok := <-in:
				if !ok {
					return
				}
				frame = f
			}

			slot := make(chan StreamResult, 1)
			select {
			case pending <- slot:
			case <-ctx.Done():
				return
			}
			go func(i int, f image.Image) {
				img, err := p.ProcessFrame(f)
				slot <- StreamResult{Index: i, Frame: img, Err: err}
			}(index, frame)
		}
	}()

	go func() {
		defer close(out)
		for slot := range pending {
			var res StreamResult
			select {
			case res = <-slot:
			case <-ctx.Done():
				return
			}
			if res.Err != nil {
				p.log.WithError(res.Err).WithField("index", res.Index).Warn("frame failed")
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
