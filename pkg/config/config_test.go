// Copyright © 2025 MCP Bridge Authors, All Rights reserved

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with defaults: %v", err)
	}

	if cfg.ProxyURL.String() != defaultProxyURL {
		t.Fatalf("proxy url mismatch: %s", cfg.ProxyURL)
	}
	if cfg.ServerName != FilesystemServer {
		t.Fatalf("server name mismatch: %s", cfg.ServerName)
	}
	if cfg.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.APIKey)
	}
	if len(cfg.AllowedPaths) != 0 {
		t.Fatalf("expected empty allow-list, got %v", cfg.AllowedPaths)
	}
	if cfg.MaxRequestSize != defaultMaxRequestSize {
		t.Fatalf("max request size mismatch: %d", cfg.MaxRequestSize)
	}
	if cfg.RateLimit != defaultRateLimit {
		t.Fatalf("rate limit mismatch: %d", cfg.RateLimit)
	}
	if !cfg.CacheEnabled {
		t.Fatal("cache should default to enabled")
	}
	if cfg.CacheTTL != defaultCacheTTL {
		t.Fatalf("cache ttl mismatch: %s", cfg.CacheTTL)
	}
	if cfg.MaxRetries != defaultMaxRetries {
		t.Fatalf("max retries mismatch: %d", cfg.MaxRetries)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("log level mismatch: %s", cfg.LogLevel)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(envProxyURL, "https://proxy.example.com/api")
	t.Setenv(envServerName, "memory")
	t.Setenv(envAPIKey, "  secret  ")
	t.Setenv(envAllowedPaths, "/home/user:/tmp::/var/data")
	t.Setenv(envRateLimit, "7")
	t.Setenv(envCacheEnabled, "false")
	t.Setenv(envCacheTTL, "90s")
	t.Setenv(envLogLevel, "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ProxyURL.String() != "https://proxy.example.com/api" {
		t.Fatalf("proxy url mismatch: %s", cfg.ProxyURL)
	}
	if cfg.ServerName != "memory" {
		t.Fatalf("server name mismatch: %s", cfg.ServerName)
	}
	if cfg.APIKey != "secret" {
		t.Fatalf("api key should be trimmed, got %q", cfg.APIKey)
	}
	want := []string{"/home/user", "/tmp", "/var/data"}
	if len(cfg.AllowedPaths) != len(want) {
		t.Fatalf("allow-list mismatch: %v", cfg.AllowedPaths)
	}
	for i, p := range want {
		if cfg.AllowedPaths[i] != p {
			t.Fatalf("allow-list[%d] mismatch: %s", i, cfg.AllowedPaths[i])
		}
	}
	if cfg.RateLimit != 7 {
		t.Fatalf("rate limit mismatch: %d", cfg.RateLimit)
	}
	if cfg.CacheEnabled {
		t.Fatal("cache should be disabled")
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Fatalf("cache ttl mismatch: %s", cfg.CacheTTL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level should be lowercased, got %s", cfg.LogLevel)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv(envRateLimit, "lots")
	t.Setenv(envCacheTTL, "soon")
	t.Setenv(envCacheEnabled, "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.RateLimit != defaultRateLimit {
		t.Fatalf("malformed rate limit should fall back, got %d", cfg.RateLimit)
	}
	if cfg.CacheTTL != defaultCacheTTL {
		t.Fatalf("malformed ttl should fall back, got %s", cfg.CacheTTL)
	}
	if cfg.CacheEnabled != defaultCacheEnabled {
		t.Fatalf("malformed bool should fall back, got %v", cfg.CacheEnabled)
	}
}

func TestLoadRejectsRelativeProxyURL(t *testing.T) {
	t.Setenv(envProxyURL, "proxy.example.com/api")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-absolute proxy url")
	}
}
