package chat

import (
	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// Request-reply service names. The framework prefixes them with
// "services.chat.".
const (
	ServiceListMemberships  = "list-memberships"
	ServiceListRooms        = "list-rooms"
	ServiceGetMembership    = "get-membership"
	ServiceFindRoomByGroup  = "find-room-by-group"
	ServiceInsertRoom       = "insert-room"
	ServiceInsertMembership = "insert-membership"
	ServiceDeleteRoom       = "delete-room"
	ServiceListMessages     = "list-messages"
	ServiceInsertMessage    = "insert-message"
	ServiceDeleteMessage    = "delete-message"
	ServiceGetProfile       = "get-profile"
)

// ListMembershipsRequest asks for the memberships of a user.
type ListMembershipsRequest struct {
	ActorID string `json:"actor_id"`
}

// ListMembershipsResponse carries membership rows.
type ListMembershipsResponse struct {
	Memberships []domain.Membership `json:"memberships"`
}

// ListRoomsRequest asks for rooms by id.
type ListRoomsRequest struct {
	ActorID string   `json:"actor_id"`
	RoomIDs []string `json:"room_ids"`
}

// ListRoomsResponse carries room rows.
type ListRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

// GetMembershipRequest asks for one membership.
type GetMembershipRequest struct {
	ActorID string `json:"actor_id"`
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
}

// MembershipResponse carries one membership row.
type MembershipResponse struct {
	Membership *domain.Membership `json:"membership"`
}

// FindRoomByGroupRequest resolves a group id.
type FindRoomByGroupRequest struct {
	ActorID string `json:"actor_id"`
	GroupID string `json:"group_id"`
}

// RoomResponse carries one room row.
type RoomResponse struct {
	Room *domain.Room `json:"room"`
}

// InsertRoomRequest creates a room row.
type InsertRoomRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
}

// InsertMembershipRequest creates a membership row.
type InsertMembershipRequest struct {
	ActorID string      `json:"actor_id"`
	RoomID  string      `json:"room_id"`
	UserID  string      `json:"user_id"`
	Role    domain.Role `json:"role"`
}

// DeleteRoomRequest deletes a room row.
type DeleteRoomRequest struct {
	ActorID string `json:"actor_id"`
	RoomID  string `json:"room_id"`
}

// ListMessagesRequest asks for the messages of a room.
type ListMessagesRequest struct {
	ActorID string `json:"actor_id"`
	RoomID  string `json:"room_id"`
}

// ListMessagesResponse carries authored messages in creation order.
type ListMessagesResponse struct {
	Messages []domain.AuthoredMessage `json:"messages"`
}

// InsertMessageRequest creates a message row.
type InsertMessageRequest struct {
	ActorID string `json:"actor_id"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// MessageResponse carries one message row.
type MessageResponse struct {
	Message *domain.Message `json:"message"`
}

// DeleteMessageRequest deletes a message row.
type DeleteMessageRequest struct {
	ActorID   string `json:"actor_id"`
	MessageID string `json:"message_id"`
}

// GetProfileRequest asks for a profile.
type GetProfileRequest struct {
	ActorID string `json:"actor_id"`
	UserID  string `json:"user_id"`
}

// ProfileResponse carries one profile row.
type ProfileResponse struct {
	Profile *domain.Profile `json:"profile"`
}

// AckResponse is returned by services without a payload.
type AckResponse struct {
	OK bool `json:"ok"`
}
