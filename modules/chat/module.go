package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/events"
	"github.com/AtharvaShastrakar/orangeChat/modules/cache"
)

// Module provides chat storage as request-reply services and emits the
// message events that feed the push channel.
type Module struct {
	db          *gorm.DB
	repo        *Repository
	service     *Service
	cachePlugin *cache.PluginModule
	eventBus    mono.EventBus
	logger      types.Logger
	dbPath      string
	debug       bool
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Publisher                  = (*Module)(nil)
)

// NewModule creates a new chat module backed by the SQLite file at dbPath.
func NewModule(dbPath string, debug bool, logger types.Logger) *Module {
	return &Module{
		dbPath: dbPath,
		debug:  debug,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// OpenDatabase opens the SQLite database at path. Unique constraint
// violations are translated to gorm.ErrDuplicatedKey.
func OpenDatabase(path string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// SetPlugin receives the optional cache plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "cache" {
		return
	}
	cachePlugin, ok := plugin.(*cache.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for cache",
			"alias", alias,
			"expected", "*cache.PluginModule")
		return
	}
	m.cachePlugin = cachePlugin
	m.logger.Info("Received cache plugin", "alias", alias)
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageCreatedV1.ToBase(),
		events.MessageDeletedV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
		events.MemberJoinedV1.ToBase(),
	}
}

// RegisterEventConsumers creates profiles for newly registered users.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserRegisteredV1, m.handleUserRegistered, m,
	); err != nil {
		return fmt.Errorf("failed to register UserRegistered consumer: %w", err)
	}
	m.logger.Info("Registered chat event consumers")
	return nil
}

func (m *Module) handleUserRegistered(ctx context.Context, event events.UserRegisteredEvent, _ *mono.Msg) error {
	now := time.Now().UTC()
	err := m.service.UpsertProfile(ctx, &domain.Profile{
		ID:        event.UserID,
		Email:     event.Email,
		FullName:  event.FullName,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		m.logger.Error("Failed to create profile", "userID", event.UserID, "error", err)
		return err
	}
	m.logger.Info("Profile created", "userID", event.UserID)
	return nil
}

// RegisterServices registers the storage services under "services.chat.".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	registrations := []struct {
		name     string
		register func() error
	}{
		{ServiceListMemberships, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListMemberships, json.Unmarshal, json.Marshal, m.listMemberships)
		}},
		{ServiceListRooms, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms)
		}},
		{ServiceGetMembership, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetMembership, json.Unmarshal, json.Marshal, m.getMembership)
		}},
		{ServiceFindRoomByGroup, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceFindRoomByGroup, json.Unmarshal, json.Marshal, m.findRoomByGroup)
		}},
		{ServiceInsertRoom, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceInsertRoom, json.Unmarshal, json.Marshal, m.insertRoom)
		}},
		{ServiceInsertMembership, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceInsertMembership, json.Unmarshal, json.Marshal, m.insertMembership)
		}},
		{ServiceDeleteRoom, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceDeleteRoom, json.Unmarshal, json.Marshal, m.deleteRoom)
		}},
		{ServiceListMessages, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListMessages, json.Unmarshal, json.Marshal, m.listMessages)
		}},
		{ServiceInsertMessage, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceInsertMessage, json.Unmarshal, json.Marshal, m.insertMessage)
		}},
		{ServiceDeleteMessage, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceDeleteMessage, json.Unmarshal, json.Marshal, m.deleteMessage)
		}},
		{ServiceGetProfile, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetProfile, json.Unmarshal, json.Marshal, m.getProfile)
		}},
	}

	for _, r := range registrations {
		if err := r.register(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", r.name, err)
		}
	}

	m.logger.Info("Registered chat services", "count", len(registrations))
	return nil
}

// Start opens the database, runs migrations and creates the service.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.dbPath)

	db, err := OpenDatabase(m.dbPath, m.debug)
	if err != nil {
		return err
	}
	m.db = db

	if err := Migrate(m.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var profiles cache.ProfileCache
	if m.cachePlugin != nil {
		profiles = m.cachePlugin.Profiles()
	}

	m.repo = NewRepository(m.db)
	m.service = NewService(m.repo, profiles, m, m.logger)

	m.logger.Info("Chat module started", "profile_cache", profiles != nil)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Chat module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
			"cache":  m.cachePlugin != nil,
		},
	}
}

// Service returns the chat service.
func (m *Module) Service() *Service {
	return m.service
}

// PublishMessageCreated publishes a MessageCreated event.
func (m *Module) PublishMessageCreated(event events.MessageCreatedEvent) error {
	return events.MessageCreatedV1.Publish(m.eventBus, event, nil)
}

// PublishMessageDeleted publishes a MessageDeleted event.
func (m *Module) PublishMessageDeleted(event events.MessageDeletedEvent) error {
	return events.MessageDeletedV1.Publish(m.eventBus, event, nil)
}

// PublishRoomCreated publishes a RoomCreated event.
func (m *Module) PublishRoomCreated(event events.RoomCreatedEvent) error {
	return events.RoomCreatedV1.Publish(m.eventBus, event, nil)
}

// PublishMemberJoined publishes a MemberJoined event.
func (m *Module) PublishMemberJoined(event events.MemberJoinedEvent) error {
	return events.MemberJoinedV1.Publish(m.eventBus, event, nil)
}
