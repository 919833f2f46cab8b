package ratelimit

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected RedisAddr 'localhost:6379', got %q", cfg.RedisAddr)
	}
	if cfg.DefaultLimit != 100 {
		t.Errorf("expected DefaultLimit 100, got %d", cfg.DefaultLimit)
	}
	if cfg.DefaultWindow != time.Minute {
		t.Errorf("expected DefaultWindow 1m, got %v", cfg.DefaultWindow)
	}
	if cfg.KeyPrefix != "orangechat:ratelimit:" {
		t.Errorf("expected KeyPrefix 'orangechat:ratelimit:', got %q", cfg.KeyPrefix)
	}
	if cfg.ClientIDHeader != "X-Client-ID" {
		t.Errorf("expected ClientIDHeader 'X-Client-ID', got %q", cfg.ClientIDHeader)
	}
	if cfg.FallbackClientID != "anonymous" {
		t.Errorf("expected FallbackClientID 'anonymous', got %q", cfg.FallbackClientID)
	}
	if cfg.ServiceLimits == nil {
		t.Error("expected ServiceLimits to be initialized")
	}
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithRedisAddr("redis.example.com:6380"),
		WithRedisPassword("secret123"),
		WithRedisDB(5),
		WithKeyPrefix("test:"),
		WithClientIDHeader("X-User"),
		WithServiceLimit("insert-message", 30, 10*time.Second),
	} {
		opt(&cfg)
	}

	if cfg.RedisAddr != "redis.example.com:6380" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "redis.example.com:6380")
	}
	if cfg.RedisPassword != "secret123" {
		t.Errorf("RedisPassword = %q, want %q", cfg.RedisPassword, "secret123")
	}
	if cfg.RedisDB != 5 {
		t.Errorf("RedisDB = %d, want 5", cfg.RedisDB)
	}
	if cfg.KeyPrefix != "test:" {
		t.Errorf("KeyPrefix = %q, want %q", cfg.KeyPrefix, "test:")
	}
	if cfg.ClientIDHeader != "X-User" {
		t.Errorf("ClientIDHeader = %q, want %q", cfg.ClientIDHeader, "X-User")
	}
	got := cfg.ServiceLimits["insert-message"]
	if got.Limit != 30 || got.Window != 10*time.Second {
		t.Errorf("ServiceLimits[insert-message] = %+v, want 30 per 10s", got)
	}
}

func TestWithDefaultLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		window     time.Duration
		wantLimit  int
		wantWindow time.Duration
	}{
		{"custom", 50, 30 * time.Second, 50, 30 * time.Second},
		{"zero limit ignored", 0, time.Second, 100, time.Minute},
		{"zero window ignored", 10, 0, 100, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			WithDefaultLimit(tt.limit, tt.window)(&cfg)
			if cfg.DefaultLimit != tt.wantLimit || cfg.DefaultWindow != tt.wantWindow {
				t.Errorf("got %d per %v, want %d per %v", cfg.DefaultLimit, cfg.DefaultWindow, tt.wantLimit, tt.wantWindow)
			}
		})
	}
}
