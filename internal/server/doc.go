// Package server implements the MCP (Model Context Protocol) server for lane
// detection tools.
//
// This package provides a JSON-RPC 2.0 server that exposes the lane overlay
// pipeline through the MCP protocol, so an MCP client can run lane detection
// on road frames stored on disk and inspect every intermediate stage.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Frame Information:
//   - image_load: Load a frame and get metadata
//   - image_dimensions: Get width and height
//
// Lane Detection:
//   - lane_detect: Find lanes and render the overlay
//   - lane_edges: Edge map, whole frame or masked
//   - lane_segments: Raw segments and per-side fits
//   - lane_region: Region of interest for the frame size
//   - lane_config: Active tuning parameters
//
// # Frame Caching
//
// Frames are cached by path and reused across tool calls. The cache persists
// for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A frame with no visible lanes is not an error: lane_detect reports null
// for the missing side.
//
// # Usage
//
//	srv, err := server.NewWithConfig(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
