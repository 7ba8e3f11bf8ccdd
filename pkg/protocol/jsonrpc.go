// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package protocol defines the JSON-RPC 2.0 message model spoken on both sides
// of the shim: newline-delimited requests on stdin and responses on stdout, and
// the same shapes as HTTP bodies toward the remote proxy.
package protocol

import "encoding/json"

// Version is the JSON-RPC protocol version stamped on every message.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes plus the shim-specific codes in the
// reserved server-error range.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600

	ErrProxyUnreachable = -32000
	ErrTimeout          = -32001
	ErrRateLimited      = -32002
)

// Request is an inbound JSON-RPC request. ID is opaque (number, string, or
// null) and is echoed verbatim in the matching response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`

	// SecurityViolation marks a request rejected by the path sanitizer. It is
	// never serialized; the forwarder translates it into an error response
	// before any rate-limit, cache, or network activity.
	SecurityViolation string `json:"-"`
}

// ToolCall extracts the tool name and arguments when the request is a
// tools/call invocation. ok is false for every other method or params shape.
func (r *Request) ToolCall() (name string, args map[string]any, ok bool) {
	if r.Method != "tools/call" {
		return "", nil, false
	}
	params, isMap := r.Params.(map[string]any)
	if !isMap {
		return "", nil, false
	}
	name, isString := params["name"].(string)
	if !isString {
		return "", nil, false
	}
	args, _ = params["arguments"].(map[string]any)
	return name, args, true
}

// Response is an outbound JSON-RPC response. Exactly one of Result and Error
// is set. Result stays raw so proxy payloads round-trip byte for byte.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject carries the error details of a failed response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewResponse builds a successful response for the given request id.
func NewResponse(id any, result json.RawMessage) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
}
