// Copyright © 2025 MCP Bridge Authors, All Rights reserved

package protocol

import (
	"encoding/json"
	"testing"
)

func TestErrorResponseSerialization(t *testing.T) {
	resp := NewErrorResponse(nil, ErrParseError, "parse error: bad input")

	payload, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error: bad input"}}`
	if string(payload) != want {
		t.Fatalf("serialization mismatch:\n got %s\nwant %s", payload, want)
	}
}

func TestSuccessResponseSerialization(t *testing.T) {
	resp := NewResponse(float64(1), json.RawMessage(`{"content":"hi"}`))

	payload, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"jsonrpc":"2.0","id":1,"result":{"content":"hi"}}`
	if string(payload) != want {
		t.Fatalf("serialization mismatch:\n got %s\nwant %s", payload, want)
	}
}

func TestToolCallExtraction(t *testing.T) {
	var req Request
	line := `{"jsonrpc":"2.0","id":"abc","method":"tools/call","params":{"name":"read_file","arguments":{"path":"/tmp/x"}}}`
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	name, args, ok := req.ToolCall()
	if !ok {
		t.Fatal("expected a tool call")
	}
	if name != "read_file" {
		t.Fatalf("name mismatch: %s", name)
	}
	if args["path"] != "/tmp/x" {
		t.Fatalf("arguments mismatch: %v", args)
	}
	if req.ID != "abc" {
		t.Fatalf("id mismatch: %v", req.ID)
	}
}

func TestToolCallRejectsOtherShapes(t *testing.T) {
	for _, line := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":[1,2]}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":42}}`,
	} {
		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", line, err)
		}
		if _, _, ok := req.ToolCall(); ok {
			t.Fatalf("unexpected tool call for %s", line)
		}
	}
}
