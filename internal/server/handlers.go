package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/lane-overlay-mcp/internal/detection"
	"github.com/ironsheep/lane-overlay-mcp/internal/imaging"
	"github.com/ironsheep/lane-overlay-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "lane_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errMissingPath is returned by tools called without a path argument.
var errMissingPath = errors.New("path is required")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Loads the frame from cache
//  3. Runs the pipeline up to the stage it reports
//  4. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Frame Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Lane Detection
	case "lane_detect":
		return s.handleLaneDetect(args)
	case "lane_edges":
		return s.handleLaneEdges(args)
	case "lane_segments":
		return s.handleLaneSegments(args)
	case "lane_region":
		return s.handleLaneRegion(args)
	case "lane_config":
		return s.handleLaneConfig(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments, treating absent arguments as empty.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}

// analyze loads the frame at path and runs every pipeline stage on it.
func (s *Server) analyze(path string) (*pipeline.Result, error) {
	if path == "" {
		return nil, errMissingPath
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Analyze(img)
}

// === Frame Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errMissingPath
	}
	return imaging.LoadFrameInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errMissingPath
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Lane Detection Handlers ===

type laneDetectArgs struct {
	Path         string `json:"path"`
	OutputPath   string `json:"output_path"`
	IncludeImage bool   `json:"include_image"`
}

// LaneDetectResult reports the lanes found in a frame and where the overlay
// was written.
type LaneDetectResult struct {
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	SegmentCount int                   `json:"segment_count"`
	Left         *detection.LaneLine   `json:"left"`
	Right        *detection.LaneLine   `json:"right"`
	OutputPath   string                `json:"output_path,omitempty"`
	Image        *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handleLaneDetect(args json.RawMessage) (interface{}, error) {
	var a laneDetectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.analyze(a.Path)
	if err != nil {
		return nil, err
	}

	out := &LaneDetectResult{
		Width:        res.Width,
		Height:       res.Height,
		SegmentCount: len(res.Segments),
		Left:         res.Lanes.Left,
		Right:        res.Lanes.Right,
	}
	if a.OutputPath != "" {
		if err := imaging.SaveFrame(res.Output, a.OutputPath); err != nil {
			return nil, err
		}
		out.OutputPath = a.OutputPath
	}
	if a.IncludeImage {
		enc, err := imaging.EncodePNG(res.Output)
		if err != nil {
			return nil, err
		}
		out.Image = enc
	}
	return out, nil
}

type laneEdgesArgs struct {
	Path   string `json:"path"`
	Masked bool   `json:"masked"`
}

// LaneEdgesResult is a binary edge map of a frame.
type LaneEdgesResult struct {
	EdgePixels int                   `json:"edge_pixels"`
	Masked     bool                  `json:"masked"`
	Image      *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleLaneEdges(args json.RawMessage) (interface{}, error) {
	var a laneEdgesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.analyze(a.Path)
	if err != nil {
		return nil, err
	}

	edges := res.Edges
	if a.Masked {
		edges = res.Masked
	}
	count := 0
	for _, v := range edges.Pix {
		if v != 0 {
			count++
		}
	}
	enc, err := imaging.EncodePNG(edges)
	if err != nil {
		return nil, err
	}
	return &LaneEdgesResult{EdgePixels: count, Masked: a.Masked, Image: enc}, nil
}

// LaneSegmentsResult lists the raw segments and their per-side line fits.
type LaneSegmentsResult struct {
	Count    int                 `json:"count"`
	Segments []detection.Segment `json:"segments"`
	Fits     detection.Fits      `json:"fits"`
	Lanes    detection.Lanes     `json:"lanes"`
}

func (s *Server) handleLaneSegments(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.analyze(a.Path)
	if err != nil {
		return nil, err
	}
	return &LaneSegmentsResult{
		Count:    len(res.Segments),
		Segments: res.Segments,
		Fits:     res.Fits,
		Lanes:    res.Lanes,
	}, nil
}

// LaneRegionResult is the region of interest resolved for a frame size.
type LaneRegionResult struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Region imaging.Region `json:"region"`
}

func (s *Server) handleLaneRegion(args json.RawMessage) (interface{}, error) {
	dims, err := s.handleImageDimensions(args)
	if err != nil {
		return nil, err
	}
	d := dims.(*imaging.DimensionsResult)
	if err := s.cfg.Region.Check(d.Width, d.Height); err != nil {
		return nil, err
	}
	return &LaneRegionResult{
		Width:  d.Width,
		Height: d.Height,
		Region: s.cfg.Region.ForHeight(d.Height),
	}, nil
}

func (s *Server) handleLaneConfig(json.RawMessage) (interface{}, error) {
	cfg := *s.cfg
	return &cfg, nil
}
