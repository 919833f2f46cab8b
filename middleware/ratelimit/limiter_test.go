package ratelimit

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testRedisAddr = "localhost:6379"

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testRedisAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	conn.Close()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewLimiter(t *testing.T) {
	limiter := NewLimiter(nil, "test:")
	if limiter.keyPrefix != "test:" {
		t.Errorf("expected keyPrefix 'test:', got %q", limiter.keyPrefix)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(newTestClient(t), "orangechat:test:")
	ctx := context.Background()
	key := uuid.New().String()
	t.Cleanup(func() { limiter.Reset(ctx, key) })

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if result.Remaining != 2-i {
			t.Errorf("request %d Remaining = %d, want %d", i+1, result.Remaining, 2-i)
		}
	}

	result, err := limiter.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if result.Allowed {
		t.Error("fourth request should be rejected")
	}

	count, err := limiter.GetStats(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if count != 3 {
		t.Errorf("GetStats() = %d, want 3", count)
	}

	if err := limiter.Reset(ctx, key); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	result, err = limiter.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !result.Allowed {
		t.Error("request after Reset() should be allowed")
	}
}
