package api

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/AtharvaShastrakar/orangeChat/core/authz"
	"github.com/AtharvaShastrakar/orangeChat/core/directory"
	"github.com/AtharvaShastrakar/orangeChat/core/lifecycle"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
	"github.com/AtharvaShastrakar/orangeChat/modules/broadcast"
	"github.com/AtharvaShastrakar/orangeChat/modules/chat"
)

// APIModule is the HTTP API module with WebSocket support. It drives the
// client core (directory, authorizer, lifecycle manager and one message
// channel per socket) against the chat and auth services.
type APIModule struct {
	app         *fiber.App
	chatAdapter chat.ChatPort
	authAdapter auth.AuthPort
	hub         *broadcast.Hub
	port        string
	corsOrigins string
	logger      *slog.Logger

	directory *directory.Directory
	roles     *authz.Authorizer
	rooms     *lifecycle.Manager

	clientsCtx    context.Context
	cancelClients context.CancelFunc
	clients       sync.Map // client id -> *wsClient
	clientCount   atomic.Int64
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule listening on port.
func NewModule(port, corsOrigins string) *APIModule {
	if port == "" {
		port = "3000"
	}
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000,http://localhost:8080"
	}
	return &APIModule{
		port:        port,
		corsOrigins: corsOrigins,
		logger:      slog.Default().With("module", "api"),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "chat":
		m.chatAdapter = chat.NewChatAdapter(container)
	}
}

// SetHub sets the push hub (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth adapter dependency not set")
	}
	if m.chatAdapter == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}

	m.init()
	m.app = m.newApp()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// init builds the client core on top of the chat port.
func (m *APIModule) init() {
	m.directory = directory.New(m.chatAdapter, m.logger)
	m.roles = authz.New(m.chatAdapter)
	m.rooms = lifecycle.New(m.chatAdapter, lifecycle.WithLogger(m.logger))
	m.clientsCtx, m.cancelClients = context.WithCancel(context.Background())
}

func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "orangeChat",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(loggerMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     m.corsOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization",
		AllowCredentials: m.corsOrigins != "*",
	}))

	m.setupRoutes(app)
	return app
}

// Stop closes every socket and shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.cancelClients != nil {
		m.cancelClients()
	}
	m.clients.Range(func(_, value any) bool {
		value.(*wsClient).hangup()
		return true
	})

	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port":              m.port,
		"connected_clients": m.clientCount.Load(),
	}
	if m.hub != nil {
		details["subscriptions"] = m.hub.SubscriptionCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}
