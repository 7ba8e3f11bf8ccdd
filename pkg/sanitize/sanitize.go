// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package sanitize validates filesystem path arguments in tool-call requests
// against a configured allow-list of absolute path prefixes.
package sanitize

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcp-bridge/mcp-proxy-shim/pkg/protocol"
)

// ViolationError reports a path rejected by the sanitizer. Its message is
// surfaced verbatim to the client in the resulting error response.
type ViolationError struct {
	Path string
}

func (e *ViolationError) Error() string {
	return "Access denied to path: " + e.Path
}

// Sanitizer normalizes path arguments and enforces the allow-list.
type Sanitizer struct {
	// allowed holds cleaned absolute prefixes; empty means no restriction.
	allowed []string
	logger  zerolog.Logger
}

// New constructs a Sanitizer. Prefixes are normalized once up front so later
// comparisons are purely lexical.
func New(allowedPrefixes []string) *Sanitizer {
	allowed := make([]string, 0, len(allowedPrefixes))
	for _, prefix := range allowedPrefixes {
		allowed = append(allowed, filepath.Clean(prefix))
	}
	return &Sanitizer{
		allowed: allowed,
		logger:  log.With().Str("component", "sanitize").Logger(),
	}
}

// SanitizePath normalizes raw and checks it against the allow-list. Relative
// paths are always rejected: their base directory is unknowable here.
func (s *Sanitizer) SanitizePath(raw string) (string, error) {
	clean := filepath.Clean(raw)
	if !filepath.IsAbs(clean) {
		s.logger.Warn().Str("path", raw).Msg("rejected relative path")
		return "", &ViolationError{Path: raw}
	}

	if len(s.allowed) == 0 {
		return clean, nil
	}

	for _, prefix := range s.allowed {
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			return clean, nil
		}
	}

	s.logger.Warn().
		Str("path", raw).
		Strs("allowed_prefixes", s.allowed).
		Msg("rejected path outside allow-list")
	return "", &ViolationError{Path: raw}
}

// Apply sanitizes the path-bearing arguments of a tools/call request in place:
// a single `path`, a `paths` array (all-or-nothing), and independent `source`
// and `destination` fields. The first violation aborts; the caller marks the
// request so it never reaches the network.
func (s *Sanitizer) Apply(req *protocol.Request) error {
	_, args, ok := req.ToolCall()
	if !ok || args == nil {
		return nil
	}

	for _, field := range []string{"path", "source", "destination"} {
		raw, isString := args[field].(string)
		if !isString {
			continue
		}
		clean, err := s.SanitizePath(raw)
		if err != nil {
			return err
		}
		args[field] = clean
	}

	if list, isList := args["paths"].([]any); isList {
		cleaned := make([]any, len(list))
		for i, item := range list {
			raw, isString := item.(string)
			if !isString {
				cleaned[i] = item
				continue
			}
			clean, err := s.SanitizePath(raw)
			if err != nil {
				return err
			}
			cleaned[i] = clean
		}
		args["paths"] = cleaned
	}

	return nil
}
