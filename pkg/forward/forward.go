// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package forward performs the HTTP call to the remote proxy on behalf of a
// JSON-RPC request, composing the security-violation short-circuit, the size
// cap, the rate limiter, the response cache, and a capped exponential retry
// loop. Forward never fails as a Go function: every failure mode resolves to
// a JSON-RPC error response.
package forward

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcp-bridge/mcp-proxy-shim/pkg/cache"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/config"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/protocol"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/ratelimit"
)

// maxLogBody caps how much of an upstream error body is captured for logs.
const maxLogBody = 64 * 1024

// Forwarder issues proxy calls with per-attempt timeouts and retry/backoff.
type Forwarder struct {
	cfg     config.Config
	client  *http.Client
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
	// target is the resolved POST endpoint: {proxy base}/{server name}.
	target string
}

// New constructs a Forwarder backed by an http.Client with tuned connection
// pooling. The per-attempt timeout is enforced through request contexts, not
// the client, so each retry gets a fresh budget.
func New(cfg config.Config, responseCache *cache.Cache, limiter *ratelimit.Limiter) *Forwarder {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Forwarder{
		cfg:     cfg,
		client:  &http.Client{Transport: transport},
		cache:   responseCache,
		limiter: limiter,
		logger:  log.With().Str("component", "forward").Logger(),
		target:  strings.TrimSuffix(cfg.ProxyURL.String(), "/") + "/" + cfg.ServerName,
	}
}

// Forward resolves a request to exactly one response. Order matters: the
// violation marker and size cap are checked before the rate limiter, the rate
// limiter before the cache, and the cache before any network attempt.
func (f *Forwarder) Forward(ctx context.Context, req *protocol.Request) *protocol.Response {
	if req.SecurityViolation != "" {
		return protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, req.SecurityViolation)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest,
			fmt.Sprintf("unserializable request: %v", err))
	}
	if len(body) > f.cfg.MaxRequestSize {
		return protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest,
			fmt.Sprintf("request of %d bytes exceeds maximum size of %d bytes", len(body), f.cfg.MaxRequestSize))
	}

	if f.limiter.WouldExceed() {
		f.logger.Warn().Str("method", req.Method).Msg("rate limit exceeded")
		return protocol.NewErrorResponse(req.ID, protocol.ErrRateLimited,
			fmt.Sprintf("rate limit of %d requests per minute exceeded", f.cfg.RateLimit))
	}
	f.limiter.Record()

	key, cacheable := cache.Key(req)
	if cacheable {
		if resp, hit := f.cache.Get(key, req.ID); hit {
			f.logger.Debug().Str("method", req.Method).Msg("served from cache")
			return resp
		}
	}

	resp, err := f.send(ctx, body)
	if err != nil {
		var timeout *timeoutError
		if errors.As(err, &timeout) {
			f.logger.Error().Err(err).Str("method", req.Method).Msg("proxy request timed out")
			return protocol.NewErrorResponse(req.ID, protocol.ErrTimeout,
				fmt.Sprintf("request timed out after %s", f.cfg.RequestTimeout))
		}
		f.logger.Error().Err(err).Str("method", req.Method).Msg("proxy unreachable after retries")
		return protocol.NewErrorResponse(req.ID, protocol.ErrProxyUnreachable,
			fmt.Sprintf("could not reach proxy: %v", err))
	}

	if resp.Error == nil && cacheable {
		f.cache.Put(key, resp)
	}
	return resp
}

// send runs the retry loop: maxRetries+1 attempts with capped exponential
// backoff and ±10% jitter. Timeouts are permanent — a hung request already
// consumed the full timeout budget once, so retrying only multiplies tail
// latency.
func (f *Forwarder) send(ctx context.Context, body []byte) (*protocol.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.InitialRetryDelay
	policy.MaxInterval = f.cfg.MaxRetryDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.1
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() (*protocol.Response, error) {
		attempt++
		resp, err := f.attempt(ctx, body)
		if err != nil {
			var timeout *timeoutError
			if errors.As(err, &timeout) {
				return nil, backoff.Permanent(err)
			}
			f.logger.Warn().Err(err).Int("attempt", attempt).Msg("proxy attempt failed")
			return nil, err
		}
		return resp, nil
	}

	return backoff.RetryWithData(operation, backoff.WithMaxRetries(policy, uint64(f.cfg.MaxRetries)))
}

// attempt performs one POST to the proxy within its own timeout context.
func (f *Forwarder) attempt(ctx context.Context, body []byte) (*protocol.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, f.target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build proxy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if f.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, &timeoutError{err: err}
		}
		return nil, fmt.Errorf("perform proxy request: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			f.logger.Error().Err(closeErr).Msg("close proxy response body failed")
		}
	}()

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxLogBody))
		return nil, fmt.Errorf("proxy returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(payload)))
	}

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy response: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode proxy response: %w", err)
	}
	return &resp, nil
}

// isTimeout classifies context deadline and net-level timeouts.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// timeoutError marks a per-attempt timeout so the retry loop treats it as
// permanent and Forward maps it to the timeout error code.
type timeoutError struct {
	err error
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("proxy request timed out: %v", e.err)
}

func (e *timeoutError) Unwrap() error {
	return e.err
}
