// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package shim owns the stdio loop: it reads newline-delimited JSON-RPC
// requests, applies path sanitation for the filesystem server, hands each
// request to the forwarder on its own goroutine, and writes one response line
// per input line. Responses are emitted as each forward completes, so output
// order may differ from input order when an earlier request sits in backoff.
package shim

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcp-bridge/mcp-proxy-shim/pkg/config"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/forward"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/protocol"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/sanitize"
)

// Processor drives the read-process-write loop over stdio.
type Processor struct {
	cfg       config.Config
	sanitizer *sanitize.Sanitizer
	forwarder *forward.Forwarder
	reader    *bufio.Reader
	writer    *bufio.Writer
	writeMu   sync.Mutex
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// New constructs a Processor reading requests from in and writing responses
// to out.
func New(cfg config.Config, sanitizer *sanitize.Sanitizer, forwarder *forward.Forwarder, in io.Reader, out io.Writer) *Processor {
	return &Processor{
		cfg:       cfg,
		sanitizer: sanitizer,
		forwarder: forwarder,
		reader:    bufio.NewReader(in),
		writer:    bufio.NewWriter(out),
		logger:    log.With().Str("component", "shim").Logger(),
	}
}

// Run consumes input lines until EOF or context cancellation. On EOF the
// in-flight handlers are drained so their responses still reach stdout; on
// cancellation the loop returns without awaiting in-flight work.
func (p *Processor) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		for {
			line, err := p.reader.ReadString('\n')
			if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
				lines <- trimmed
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutdown requested; no longer accepting input")
			return nil

		case err := <-readErr:
			p.wg.Wait()
			if errors.Is(err, io.EOF) {
				p.logger.Debug().Msg("stdin closed")
				return nil
			}
			return fmt.Errorf("read stdin: %w", err)

		case line := <-lines:
			p.wg.Add(1)
			go func(line string) {
				defer p.wg.Done()
				p.handleLine(ctx, line)
			}(line)
		}
	}
}

// handleLine resolves one input line to exactly one output line.
func (p *Processor) handleLine(ctx context.Context, line string) {
	// Oversize lines are rejected before any parse attempt.
	if len(line) > p.cfg.MaxRequestSize {
		p.logger.Warn().Int("bytes", len(line)).Msg("input line exceeds maximum request size")
		p.write(protocol.NewErrorResponse(nil, protocol.ErrParseError,
			fmt.Sprintf("input line of %d bytes exceeds maximum size of %d bytes", len(line), p.cfg.MaxRequestSize)))
		return
	}

	var req protocol.Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		p.logger.Warn().Err(err).Msg("discarding unparseable input line")
		p.write(protocol.NewErrorResponse(nil, protocol.ErrParseError,
			fmt.Sprintf("parse error: %v", err)))
		return
	}

	// Path sanitation only applies to the filesystem server; other targets
	// pass through unmodified.
	if p.cfg.ServerName == config.FilesystemServer {
		if err := p.sanitizer.Apply(&req); err != nil {
			req.SecurityViolation = err.Error()
		}
	}

	p.write(p.forwarder.Forward(ctx, &req))
}

// write serializes one response line under the write mutex and flushes it so
// the consuming client sees it immediately.
func (p *Processor) write(resp *protocol.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to serialize response")
		return
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.writer.Write(append(payload, '\n')); err != nil {
		p.logger.Error().Err(err).Msg("failed to write response")
		return
	}
	if err := p.writer.Flush(); err != nil {
		p.logger.Error().Err(err).Msg("failed to flush response")
	}
}
