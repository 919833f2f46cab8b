package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// ChatPort is the storage collaborator as seen by the client core.
type ChatPort interface {
	ListMemberships(ctx context.Context, userID string) ([]domain.Membership, error)
	ListRooms(ctx context.Context, roomIDs []string) ([]domain.Room, error)
	GetMembership(ctx context.Context, roomID, userID string) (*domain.Membership, error)
	FindRoomByGroupID(ctx context.Context, groupID string) (*domain.Room, error)
	InsertRoom(ctx context.Context, actorID, name, groupID string) (*domain.Room, error)
	InsertMembership(ctx context.Context, actorID, roomID, userID string, role domain.Role) (*domain.Membership, error)
	DeleteRoom(ctx context.Context, actorID, roomID string) error
	ListMessages(ctx context.Context, actorID, roomID string) ([]domain.AuthoredMessage, error)
	InsertMessage(ctx context.Context, actorID, roomID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, actorID, messageID string) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Compile-time interface checks.
var (
	_ ChatPort = (*ChatAdapter)(nil)
	_ ChatPort = (*Service)(nil)
)

// ChatAdapter implements ChatPort over the chat request-reply services.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) *ChatAdapter {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

func (a *ChatAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return mapServiceError(service, err)
	}
	return nil
}

// ListMemberships returns the memberships of userID.
func (a *ChatAdapter) ListMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	req := ListMembershipsRequest{ActorID: userID}
	var resp ListMembershipsResponse
	if err := a.call(ctx, ServiceListMemberships, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Memberships, nil
}

// ListRooms returns rooms by id.
func (a *ChatAdapter) ListRooms(ctx context.Context, roomIDs []string) ([]domain.Room, error) {
	req := ListRoomsRequest{RoomIDs: roomIDs}
	var resp ListRoomsResponse
	if err := a.call(ctx, ServiceListRooms, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// GetMembership returns one membership.
func (a *ChatAdapter) GetMembership(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	req := GetMembershipRequest{ActorID: userID, RoomID: roomID, UserID: userID}
	var resp MembershipResponse
	if err := a.call(ctx, ServiceGetMembership, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Membership == nil {
		return nil, domain.ErrMembershipNotFound
	}
	return resp.Membership, nil
}

// FindRoomByGroupID resolves a group id.
func (a *ChatAdapter) FindRoomByGroupID(ctx context.Context, groupID string) (*domain.Room, error) {
	req := FindRoomByGroupRequest{GroupID: groupID}
	var resp RoomResponse
	if err := a.call(ctx, ServiceFindRoomByGroup, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Room == nil {
		return nil, domain.ErrRoomNotFound
	}
	return resp.Room, nil
}

// InsertRoom creates a room.
func (a *ChatAdapter) InsertRoom(ctx context.Context, actorID, name, groupID string) (*domain.Room, error) {
	req := InsertRoomRequest{ActorID: actorID, Name: name, GroupID: groupID}
	var resp RoomResponse
	if err := a.call(ctx, ServiceInsertRoom, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// InsertMembership creates a membership.
func (a *ChatAdapter) InsertMembership(ctx context.Context, actorID, roomID, userID string, role domain.Role) (*domain.Membership, error) {
	req := InsertMembershipRequest{ActorID: actorID, RoomID: roomID, UserID: userID, Role: role}
	var resp MembershipResponse
	if err := a.call(ctx, ServiceInsertMembership, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Membership, nil
}

// DeleteRoom removes an unshared room.
func (a *ChatAdapter) DeleteRoom(ctx context.Context, actorID, roomID string) error {
	req := DeleteRoomRequest{ActorID: actorID, RoomID: roomID}
	var resp AckResponse
	return a.call(ctx, ServiceDeleteRoom, &req, &resp)
}

// ListMessages returns the messages of a room.
func (a *ChatAdapter) ListMessages(ctx context.Context, actorID, roomID string) ([]domain.AuthoredMessage, error) {
	req := ListMessagesRequest{ActorID: actorID, RoomID: roomID}
	var resp ListMessagesResponse
	if err := a.call(ctx, ServiceListMessages, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// InsertMessage sends a message.
func (a *ChatAdapter) InsertMessage(ctx context.Context, actorID, roomID, content string) (*domain.Message, error) {
	req := InsertMessageRequest{ActorID: actorID, RoomID: roomID, Content: content}
	var resp MessageResponse
	if err := a.call(ctx, ServiceInsertMessage, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// DeleteMessage deletes a message.
func (a *ChatAdapter) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	req := DeleteMessageRequest{ActorID: actorID, MessageID: messageID}
	var resp AckResponse
	return a.call(ctx, ServiceDeleteMessage, &req, &resp)
}

// GetProfile returns a profile.
func (a *ChatAdapter) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetProfileRequest{UserID: userID}
	var resp ProfileResponse
	if err := a.call(ctx, ServiceGetProfile, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return resp.Profile, nil
}

// mapServiceError converts service errors back to sentinel errors by their
// message, since errors lose their type over NATS. Anything unrecognized
// is a transport error.
func mapServiceError(service string, err error) error {
	if err == nil {
		return nil
	}
	if sentinel := domain.FromMessage(err.Error()); sentinel != nil {
		return sentinel
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrTransport, service, err)
}
