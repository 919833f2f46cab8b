package chat

import (
	"context"
	"errors"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/events"
	"github.com/AtharvaShastrakar/orangeChat/modules/cache"
)

// Publisher emits chat events after a write has been committed.
type Publisher interface {
	PublishMessageCreated(event events.MessageCreatedEvent) error
	PublishMessageDeleted(event events.MessageDeletedEvent) error
	PublishRoomCreated(event events.RoomCreatedEvent) error
	PublishMemberJoined(event events.MemberJoinedEvent) error
}

// Service is the storage and query collaborator: validated writes, reads and
// the events that drive the push channel. Its method set matches the ports
// of the client core.
type Service struct {
	repo      *Repository
	profiles  cache.ProfileCache
	publisher Publisher
	logger    types.Logger
	sfGroup   singleflight.Group
}

// NewService creates a chat service. profiles may be nil to disable caching.
func NewService(repo *Repository, profiles cache.ProfileCache, publisher Publisher, logger types.Logger) *Service {
	return &Service{
		repo:      repo,
		profiles:  profiles,
		publisher: publisher,
		logger:    logger,
	}
}

// UpsertProfile stores a profile and drops its cache entry.
func (s *Service) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return err
	}
	if s.profiles != nil {
		if err := s.profiles.InvalidateProfile(ctx, p.ID); err != nil {
			s.logger.Warn("Failed to invalidate cached profile", "userID", p.ID, "error", err)
		}
	}
	return nil
}

// GetProfile returns a profile using the cache-aside pattern. Concurrent
// misses for the same user share one database read.
func (s *Service) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if s.profiles != nil {
		cached, found, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			s.logger.Warn("Profile cache read failed", "userID", userID, "error", err)
		}
		if found {
			return cached, nil
		}
	}

	val, err, _ := s.sfGroup.Do("profile:"+userID, func() (any, error) {
		return s.repo.GetProfile(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	p := val.(*domain.Profile)

	if s.profiles != nil {
		if err := s.profiles.SetProfile(ctx, p); err != nil {
			s.logger.Warn("Failed to cache profile", "userID", userID, "error", err)
		}
	}
	return p, nil
}

// ListMemberships returns the memberships of userID.
func (s *Service) ListMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	return s.repo.ListMemberships(ctx, userID)
}

// ListRooms returns rooms by id.
func (s *Service) ListRooms(ctx context.Context, roomIDs []string) ([]domain.Room, error) {
	return s.repo.ListRooms(ctx, roomIDs)
}

// GetMembership returns one membership.
func (s *Service) GetMembership(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	return s.repo.GetMembership(ctx, roomID, userID)
}

// FindRoomByGroupID resolves a group id.
func (s *Service) FindRoomByGroupID(ctx context.Context, groupID string) (*domain.Room, error) {
	groupID, err := domain.NormalizeGroupID(groupID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindRoomByGroupID(ctx, groupID)
}

// InsertRoom stores a room created by actorID.
func (s *Service) InsertRoom(ctx context.Context, actorID, name, groupID string) (*domain.Room, error) {
	if actorID == "" {
		return nil, domain.ErrUnauthorized
	}
	name, err := domain.ValidateRoomName(name)
	if err != nil {
		return nil, err
	}
	groupID, err = domain.NormalizeGroupID(groupID)
	if err != nil {
		return nil, err
	}

	room := &domain.Room{
		ID:        uuid.New().String(),
		Name:      name,
		GroupID:   groupID,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertRoom(ctx, room); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishRoomCreated(events.RoomCreatedEvent{
		RoomID:    room.ID,
		RoomName:  room.Name,
		CreatedBy: actorID,
		Timestamp: room.CreatedAt,
	}); err != nil {
		s.logger.Warn("Failed to publish RoomCreated event", "roomID", room.ID, "error", err)
	}

	s.logger.Info("Room created", "roomID", room.ID, "createdBy", actorID)
	return room, nil
}

// InsertMembership stores a membership written by actorID.
func (s *Service) InsertMembership(ctx context.Context, actorID, roomID, userID string, role domain.Role) (*domain.Membership, error) {
	m := &domain.Membership{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertMembership(ctx, actorID, m); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishMemberJoined(events.MemberJoinedEvent{
		RoomID:    roomID,
		UserID:    userID,
		Role:      string(role),
		Timestamp: m.CreatedAt,
	}); err != nil {
		s.logger.Warn("Failed to publish MemberJoined event", "roomID", roomID, "error", err)
	}

	s.logger.Info("Member joined", "roomID", roomID, "userID", userID, "role", role)
	return m, nil
}

// DeleteRoom removes an unshared room created by actorID.
func (s *Service) DeleteRoom(ctx context.Context, actorID, roomID string) error {
	if err := s.repo.DeleteRoom(ctx, actorID, roomID); err != nil {
		return err
	}
	s.logger.Info("Room deleted", "roomID", roomID, "deletedBy", actorID)
	return nil
}

// ListMessages returns the messages of roomID for a member.
func (s *Service) ListMessages(ctx context.Context, actorID, roomID string) ([]domain.AuthoredMessage, error) {
	return s.repo.ListMessages(ctx, actorID, roomID)
}

// InsertMessage stores a message and publishes its creation.
func (s *Service) InsertMessage(ctx context.Context, actorID, roomID, content string) (*domain.Message, error) {
	content, err := domain.ValidateMessage(content)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    actorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, actorID, msg); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishMessageCreated(events.MessageCreatedEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}); err != nil {
		// the row is committed; clients pick it up on their next load
		s.logger.Error("Failed to publish MessageCreated event", "messageID", msg.ID, "error", err)
	}

	s.logger.Debug("Message created", "messageID", msg.ID, "roomID", roomID)
	return msg, nil
}

// DeleteMessage removes a message and publishes its deletion.
func (s *Service) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	if messageID == "" {
		return domain.ErrMessageNotFound
	}
	msg, err := s.repo.DeleteMessage(ctx, actorID, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.logger.Warn("Rejected message delete", "messageID", messageID, "actorID", actorID)
		}
		return err
	}

	if err := s.publisher.PublishMessageDeleted(events.MessageDeletedEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		DeletedBy: actorID,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.logger.Error("Failed to publish MessageDeleted event", "messageID", msg.ID, "error", err)
	}

	s.logger.Debug("Message deleted", "messageID", msg.ID, "roomID", msg.RoomID)
	return nil
}
