package cache

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

// DefaultPrefix namespaces profile entries in a shared Redis.
const DefaultPrefix = "orangechat:profile:"

// DefaultTTL bounds how long a renamed author keeps the old name in lists.
const DefaultTTL = 5 * time.Minute

const healthKey = "orangechat:health"

// PluginModule connects the profile cache to Redis. The chat module receives
// it through SetPlugin; plugins start before and stop after regular modules.
type PluginModule struct {
	container types.ServiceContainer
	store     storage.Storage
	profiles  ProfileCache
	redisAddr string
	password  string
	prefix    string
	ttl       time.Duration
}

var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the cache plugin for the Redis server at
// redisAddr. A non-positive ttl selects DefaultTTL.
func NewPluginModule(redisAddr, password string, ttl time.Duration) *PluginModule {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PluginModule{
		redisAddr: redisAddr,
		password:  password,
		prefix:    DefaultPrefix,
		ttl:       ttl,
	}
}

func (m *PluginModule) Name() string {
	return "cache"
}

// Start connects to Redis. The redis driver panics when the server is
// unreachable, so the plugin is only registered when REDIS_ADDR is set.
func (m *PluginModule) Start(_ context.Context) error {
	host, port := parseRedisAddr(m.redisAddr)
	m.store = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: m.password,
		PoolSize: 50,
	})
	m.profiles = NewProfileCache(m.store, m.prefix, m.ttl)
	log.Printf("[cache] Profile cache on Redis %s (prefix %s, TTL %s)", m.redisAddr, m.prefix, m.ttl)
	return nil
}

func (m *PluginModule) Stop(_ context.Context) error {
	if m.profiles == nil {
		return nil
	}
	if err := m.profiles.Close(); err != nil {
		log.Printf("[cache] Error closing Redis connection: %v", err)
		return fmt.Errorf("failed to close profile cache: %w", err)
	}
	log.Println("[cache] Profile cache closed")
	return nil
}

func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Profiles returns the profile cache, or nil before Start.
func (m *PluginModule) Profiles() ProfileCache {
	return m.profiles
}

// Health reads a fixed key to prove the connection is usable.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "not connected"}
	}
	if _, err := m.store.GetWithContext(ctx, healthKey); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis unreachable: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.redisAddr,
			"prefix":     m.prefix,
			"ttl":        m.ttl.String(),
		},
	}
}

// parseRedisAddr splits "host:port", defaulting to 127.0.0.1:6379.
func parseRedisAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "127.0.0.1", 6379
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}
