// Package lifecycle creates rooms and joins existing rooms by group id.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// Store is the slice of the storage collaborator used by the manager.
type Store interface {
	InsertRoom(ctx context.Context, actorID, name, groupID string) (*chat.Room, error)
	InsertMembership(ctx context.Context, actorID, roomID, userID string, role chat.Role) (*chat.Membership, error)
	DeleteRoom(ctx context.Context, actorID, roomID string) error
	FindRoomByGroupID(ctx context.Context, groupID string) (*chat.Room, error)
}

// Default retry settings for the two-write room creation.
const (
	DefaultGroupIDAttempts    = 3
	DefaultMembershipAttempts = 3
	DefaultRetryDelay         = 100 * time.Millisecond
	DefaultRollbackTimeout    = 5 * time.Second
)

// Manager creates and joins rooms.
type Manager struct {
	store  Store
	logger *slog.Logger

	newGroupID         func() (string, error)
	groupIDAttempts    int
	membershipAttempts int
	retryDelay         time.Duration
	rollbackTimeout    time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetry sets how often the admin membership insert is attempted and the
// delay between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.membershipAttempts = attempts
		}
		if delay >= 0 {
			m.retryDelay = delay
		}
	}
}

// WithGroupIDGenerator replaces the group id generator.
func WithGroupIDGenerator(gen func() (string, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newGroupID = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Manager backed by store.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:              store,
		logger:             slog.Default(),
		newGroupID:         chat.NewGroupID,
		groupIDAttempts:    DefaultGroupIDAttempts,
		membershipAttempts: DefaultMembershipAttempts,
		retryDelay:         DefaultRetryDelay,
		rollbackTimeout:    DefaultRollbackTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom creates a room named name with a fresh group id and makes
// actorID its sole admin.
//
// The room and the admin membership are two separate writes. A failed
// membership insert is retried; if it keeps failing the room is deleted
// again and chat.ErrRoomCreateFailed is returned. If that delete fails as
// well the result is chat.ErrRoomOrphaned. Both are retryable and distinct
// from validation errors.
func (m *Manager) CreateRoom(ctx context.Context, actorID, name string) (*chat.Room, error) {
	name, err := chat.ValidateRoomName(name)
	if err != nil {
		return nil, err
	}
	if actorID == "" {
		return nil, chat.ErrUnauthorized
	}

	room, err := m.insertRoom(ctx, actorID, name)
	if err != nil {
		return nil, err
	}

	if err := m.insertAdmin(ctx, actorID, room.ID); err != nil {
		m.logger.Warn("admin membership failed, rolling back room", "room_id", room.ID, "error", err)
		return nil, m.rollback(ctx, actorID, room.ID, err)
	}

	m.logger.Info("room created", "room_id", room.ID, "created_by", actorID)
	return room, nil
}

func (m *Manager) insertRoom(ctx context.Context, actorID, name string) (*chat.Room, error) {
	var lastErr error
	for i := 0; i < m.groupIDAttempts; i++ {
		groupID, err := m.newGroupID()
		if err != nil {
			return nil, fmt.Errorf("mint group id: %w", err)
		}
		room, err := m.store.InsertRoom(ctx, actorID, name, groupID)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, chat.ErrGroupIDTaken) {
			return nil, chat.AsTransport(fmt.Errorf("insert room: %w", err))
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: insert room: %w", chat.ErrTransport, lastErr)
}

func (m *Manager) insertAdmin(ctx context.Context, actorID, roomID string) error {
	var err error
	for attempt := 1; attempt <= m.membershipAttempts; attempt++ {
		_, err = m.store.InsertMembership(ctx, actorID, roomID, actorID, chat.RoleAdmin)
		if err == nil || errors.Is(err, chat.ErrAlreadyMember) {
			// a previous attempt landed even though its reply was lost
			return nil
		}
		if errors.Is(err, chat.ErrValidation) || errors.Is(err, chat.ErrUnauthorized) {
			return err
		}
		if attempt == m.membershipAttempts {
			break
		}
		m.logger.Debug("retrying admin membership", "room_id", roomID, "attempt", attempt, "error", err)
		if waitErr := sleep(ctx, m.retryDelay); waitErr != nil {
			return waitErr
		}
	}
	return err
}

func (m *Manager) rollback(ctx context.Context, actorID, roomID string, cause error) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.rollbackTimeout)
	defer cancel()

	if err := m.store.DeleteRoom(rctx, actorID, roomID); err != nil {
		m.logger.Error("room left without an admin", "room_id", roomID, "error", err)
		return fmt.Errorf("%w: room %s: %w", chat.ErrRoomOrphaned, roomID, cause)
	}
	return fmt.Errorf("%w: %w", chat.ErrRoomCreateFailed, cause)
}

// JoinRoom resolves groupID and adds actorID as a member. An unknown group
// id gives chat.ErrNotFound and a second join chat.ErrAlreadyMember.
func (m *Manager) JoinRoom(ctx context.Context, actorID, groupID string) (*chat.Room, error) {
	if actorID == "" {
		return nil, chat.ErrUnauthorized
	}
	groupID, err := chat.NormalizeGroupID(groupID)
	if err != nil {
		return nil, err
	}

	room, err := m.store.FindRoomByGroupID(ctx, groupID)
	if err != nil {
		return nil, chat.AsTransport(err)
	}
	if room == nil {
		return nil, chat.ErrRoomNotFound
	}

	if _, err := m.store.InsertMembership(ctx, actorID, room.ID, actorID, chat.RoleMember); err != nil {
		return nil, chat.AsTransport(err)
	}

	m.logger.Info("room joined", "room_id", room.ID, "user_id", actorID)
	return room, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
