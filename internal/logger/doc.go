// Package logger provides the structured logger shared by the server, the
// pipeline and the command line tool.
//
// Entries go to stderr; stdout is reserved for the MCP protocol. The level,
// format and an optional rotating log file come from LANE_MCP_LOG_LEVEL,
// LANE_MCP_LOG_FORMAT and LANE_MCP_LOG_FILE.
package logger
