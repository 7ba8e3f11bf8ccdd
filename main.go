// Copyright © 2025 MCP Bridge Authors, All Rights reserved

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mcp-bridge/mcp-proxy-shim/pkg/cache"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/config"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/forward"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/ratelimit"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/sanitize"
	"github.com/mcp-bridge/mcp-proxy-shim/pkg/shim"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	closeLogs := setupLogging(cfg)
	defer closeLogs()

	// stdout carries the JSON-RPC wire; a crash must never leak onto it.
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("unexpected fault")
			closeLogs()
			os.Exit(1)
		}
	}()

	limiter := ratelimit.New(cfg.RateLimit)
	responseCache := cache.New(cfg.CacheEnabled, cfg.CacheTTL)
	forwarder := forward.New(cfg, responseCache, limiter)
	sanitizer := sanitize.New(cfg.AllowedPaths)
	processor := shim.New(cfg, sanitizer, forwarder, os.Stdin, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- processor.Run(ctx)
	}()

	log.Info().
		Str("proxy_url", cfg.ProxyURL.String()).
		Str("server_name", cfg.ServerName).
		Strs("allowed_paths", cfg.AllowedPaths).
		Msg("mcp proxy shim started")

	waitForShutdown(cancel, done)
}

// waitForShutdown blocks until stdin is exhausted or a termination signal
// arrives. In-flight requests are not awaited on signal; the loop simply stops
// accepting input and exits.
func waitForShutdown(cancel context.CancelFunc, done <-chan error) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down mcp proxy shim")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("shim loop exited unexpectedly")
			os.Exit(1)
		}
	}

	log.Info().Msg("shim stopped")
}

// setupLogging routes logs to stderr or, when configured, to a size-capped
// file. Returns a closer for the file sink.
func setupLogging(cfg config.Config) func() {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("invalid log level")
	}

	if cfg.LogToFile {
		sink := &lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxSize:  cfg.LogMaxSizeMB,
		}
		log.Logger = zerolog.New(sink).Level(level).With().Timestamp().Logger()
		return func() {
			if err := sink.Close(); err != nil {
				// The sink is already gone; stderr is all that's left.
				os.Stderr.WriteString("failed to close log file: " + err.Error() + "\n")
			}
		}
	}

	log.Logger = log.Level(level)
	return func() {}
}
