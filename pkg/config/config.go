// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package config loads the shim's runtime configuration from environment
// variables. The surrounding launcher supplies the target server name and the
// allowed path prefixes; everything else has a default.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// FilesystemServer is the server name that enables path sanitation.
const FilesystemServer = "filesystem"

const (
	envProxyURL          = "MCP_PROXY_URL"
	envServerName        = "MCP_SERVER_NAME"
	envAPIKey            = "MCP_PROXY_API_KEY"
	envAllowedPaths      = "MCP_ALLOWED_PATHS"
	envMaxRequestSize    = "MCP_MAX_REQUEST_SIZE"
	envRateLimit         = "MCP_RATE_LIMIT"
	envCacheEnabled      = "MCP_CACHE_ENABLED"
	envCacheTTL          = "MCP_CACHE_TTL"
	envRequestTimeout    = "MCP_REQUEST_TIMEOUT"
	envMaxRetries        = "MCP_MAX_RETRIES"
	envInitialRetryDelay = "MCP_INITIAL_RETRY_DELAY"
	envMaxRetryDelay     = "MCP_MAX_RETRY_DELAY"
	envLogLevel          = "MCP_LOG_LEVEL"
	envLogToFile         = "MCP_LOG_TO_FILE"
	envLogFile           = "MCP_LOG_FILE"
	envLogMaxSizeMB      = "MCP_LOG_MAX_SIZE_MB"

	defaultProxyURL          = "http://localhost:8080/proxy"
	defaultServerName        = FilesystemServer
	defaultMaxRequestSize    = 1 << 20
	defaultRateLimit         = 100
	defaultCacheEnabled      = true
	defaultCacheTTL          = 5 * time.Minute
	defaultRequestTimeout    = 30 * time.Second
	defaultMaxRetries        = 3
	defaultInitialRetryDelay = 1 * time.Second
	defaultMaxRetryDelay     = 30 * time.Second
	defaultLogLevel          = "info"
	defaultLogFile           = "mcp-shim.log"
	defaultLogMaxSizeMB      = 10
)

// Config captures runtime settings for the shim. Immutable after Load.
type Config struct {
	ProxyURL          *url.URL
	ServerName        string
	APIKey            string
	AllowedPaths      []string
	MaxRequestSize    int
	RateLimit         int
	CacheEnabled      bool
	CacheTTL          time.Duration
	RequestTimeout    time.Duration
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	LogLevel          string
	LogToFile         bool
	LogFile           string
	LogMaxSizeMB      int
}

// Load reads configuration from environment variables and validates required
// values. Malformed optional values fall back to their defaults.
func Load() (Config, error) {
	proxyRaw := getString(envProxyURL, defaultProxyURL)

	proxyURL, err := url.Parse(proxyRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envProxyURL, err)
	}
	if !proxyURL.IsAbs() {
		return Config{}, fmt.Errorf("%s must be absolute (scheme://host)", envProxyURL)
	}

	cfg := Config{
		ProxyURL:          proxyURL,
		ServerName:        getString(envServerName, defaultServerName),
		APIKey:            strings.TrimSpace(os.Getenv(envAPIKey)),
		AllowedPaths:      splitPaths(os.Getenv(envAllowedPaths)),
		MaxRequestSize:    getInt(envMaxRequestSize, defaultMaxRequestSize),
		RateLimit:         getInt(envRateLimit, defaultRateLimit),
		CacheEnabled:      getBool(envCacheEnabled, defaultCacheEnabled),
		CacheTTL:          getDuration(envCacheTTL, defaultCacheTTL),
		RequestTimeout:    getDuration(envRequestTimeout, defaultRequestTimeout),
		MaxRetries:        getInt(envMaxRetries, defaultMaxRetries),
		InitialRetryDelay: getDuration(envInitialRetryDelay, defaultInitialRetryDelay),
		MaxRetryDelay:     getDuration(envMaxRetryDelay, defaultMaxRetryDelay),
		LogLevel:          strings.ToLower(getString(envLogLevel, defaultLogLevel)),
		LogToFile:         getBool(envLogToFile, false),
		LogFile:           getString(envLogFile, defaultLogFile),
		LogMaxSizeMB:      getInt(envLogMaxSizeMB, defaultLogMaxSizeMB),
	}

	return cfg, nil
}

// splitPaths parses the colon-delimited allow-list, dropping empty entries.
func splitPaths(raw string) []string {
	var paths []string
	for _, p := range strings.Split(raw, ":") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths
}

func getString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
