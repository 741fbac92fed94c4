// Package server exposes the grading workflow as an MCP (Model Context
// Protocol) server.
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
// The same tools are also reachable over HTTP when an address is
// configured: GET /health, GET /tools and POST /tools/{name} with the tool
// arguments as the JSON body.
//
// # Tools
//
// Pages:
//   - submission_add_page, submission_remove_page, submission_pages
//   - page_detect_bounds: Paper detection with a suggested crop and viewport
//   - page_crop: Crop to a rectangle or to the visible part of a viewport
//
// Grading:
//   - grader_configure: Set the API key and model at runtime
//   - submission_grade: One grading call for all pages; seeds annotations
//
// Annotations:
//   - annotation_set_tool, annotation_click, annotation_double_click
//   - annotation_text_commit, annotation_remove, annotation_list
//
// Output and history:
//   - submission_render: Annotations burned in, as data URLs or files
//   - history_save, history_list, history_get, history_delete, history_export_csv
//   - rubric_save, rubric_list, rubric_delete
//   - class_list, class_add
//   - submission_reset
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The error text. Grading failures carry only the user-facing
//     message; the cause is logged.
package server
