package ratelimit

import (
	"time"
)

// Config configures the limiter. Limits are counted per (service, client)
// inside a sliding window.
type Config struct {
	// Redis connection.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DefaultLimit requests per DefaultWindow for services not listed in
	// ServiceLimits.
	DefaultLimit  int
	DefaultWindow time.Duration
	ServiceLimits map[string]ServiceLimit

	KeyPrefix string

	// ClientIDHeader is consulted before the actor id of the request body.
	// Requests carrying neither count against FallbackClientID.
	ClientIDHeader   string
	FallbackClientID string
}

// ServiceLimit is the quota of one service.
type ServiceLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig targets a local Redis and allows 100 calls a minute.
func DefaultConfig() Config {
	return Config{
		RedisAddr:        "localhost:6379",
		DefaultLimit:     100,
		DefaultWindow:    time.Minute,
		ServiceLimits:    map[string]ServiceLimit{},
		KeyPrefix:        "orangechat:ratelimit:",
		ClientIDHeader:   "X-Client-ID",
		FallbackClientID: "anonymous",
	}
}

// Option mutates a Config.
type Option func(*Config)

func WithRedisAddr(addr string) Option {
	return func(c *Config) { c.RedisAddr = addr }
}

func WithRedisPassword(password string) Option {
	return func(c *Config) { c.RedisPassword = password }
}

func WithRedisDB(db int) Option {
	return func(c *Config) { c.RedisDB = db }
}

// WithDefaultLimit replaces the fallback limit. Non-positive values keep the
// current one.
func WithDefaultLimit(limit int, window time.Duration) Option {
	return func(c *Config) {
		if limit > 0 && window > 0 {
			c.DefaultLimit, c.DefaultWindow = limit, window
		}
	}
}

// WithServiceLimit overrides the limit of one request-reply service, named
// as registered (for example "insert-message").
func WithServiceLimit(service string, limit int, window time.Duration) Option {
	return func(c *Config) {
		if limit > 0 && window > 0 {
			c.ServiceLimits[service] = ServiceLimit{Limit: limit, Window: window}
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(c *Config) { c.KeyPrefix = prefix }
}

func WithClientIDHeader(header string) Option {
	return func(c *Config) { c.ClientIDHeader = header }
}
