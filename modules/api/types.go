package api

import (
	"encoding/json"
	"time"

	"github.com/AtharvaShastrakar/orangeChat/core/directory"
	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// SignupRequest is the API request to create an account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest is the API request to sign in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the API request to refresh tokens.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// VerifyEmailRequest is the API request to confirm an email address.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// SignupResponse is the API response after signup.
type SignupResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Next      string    `json:"next"`
}

// TokenResponse is the API response carrying a token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Next         string `json:"next,omitempty"`
}

// SurfaceResponse describes a page the client may render.
type SurfaceResponse struct {
	Surface string `json:"surface"`
	Email   string `json:"email,omitempty"`
}

// CreateRoomRequest is the API request to create a room.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// JoinRoomRequest is the API request to join a room by group id.
type JoinRoomRequest struct {
	GroupID string `json:"group_id"`
}

// SendMessageRequest is the API request to post a message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// RoomResponse is a room as shown to one of its members.
type RoomResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	GroupID   string      `json:"group_id,omitempty"` // admins only
	Role      domain.Role `json:"role,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// RoomListResponse is the API response for the room directory.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// DashboardResponse is the directory listing with the default selection.
type DashboardResponse struct {
	Email     string               `json:"email"`
	Rooms     []RoomResponse       `json:"rooms"`
	Selection *directory.Selection `json:"selection,omitempty"`
}

// RoleResponse is the caller's role in a room.
type RoleResponse struct {
	RoomID string      `json:"room_id"`
	Role   domain.Role `json:"role"`
	Member bool        `json:"member"`
}

// MessageResponse is a message with its author.
type MessageResponse struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is the API response for a room's messages.
type HistoryResponse struct {
	RoomID   string            `json:"room_id"`
	Messages []MessageResponse `json:"messages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Frame is one WebSocket message in either direction.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client frame types.
const (
	FrameSelectRoom   = "select_room"
	FrameSend         = "send"
	FrameDelete       = "delete"
	FrameCreateRoom   = "create_room"
	FrameJoinRoom     = "join_room"
	FrameListRooms    = "list_rooms"
	FrameRefreshToken = "refresh_token"
	FrameSignOut      = "sign_out"
)

// Server frame types.
const (
	FrameSession      = "session"
	FrameRooms        = "rooms"
	FrameRoomSelected = "room_selected"
	FrameMessages     = "messages"
	FrameRoomCreated  = "room_created"
	FrameRoomJoined   = "room_joined"
	FrameError        = "error"
)

// SelectRoomPayload selects the active room.
type SelectRoomPayload struct {
	RoomID string `json:"room_id"`
}

// DeletePayload deletes a message of the active room.
type DeletePayload struct {
	MessageID string `json:"message_id"`
}

// SessionPayload reports the session state of the connection.
type SessionPayload struct {
	Status   string `json:"status"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Verified bool   `json:"verified"`
	Next     string `json:"next,omitempty"`
}

// RoomsPayload is the directory listing of the connection's identity.
type RoomsPayload struct {
	Rooms     []RoomResponse       `json:"rooms"`
	Selection *directory.Selection `json:"selection,omitempty"`
}

// RoomSelectedPayload announces the new active room.
type RoomSelectedPayload struct {
	Room RoomResponse `json:"room"`
}

// MessagesPayload is the message list of the active room.
type MessagesPayload struct {
	RoomID     string            `json:"room_id"`
	State      string            `json:"state"`
	Generation uint64            `json:"generation"`
	Messages   []MessageResponse `json:"messages"`
}

// toRoomResponse shows room as seen with role. The group id is the invite
// secret and is left out for members.
func toRoomResponse(room domain.Room, role domain.Role) RoomResponse {
	resp := RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		Role:      role,
		CreatedAt: room.CreatedAt,
	}
	if role == domain.RoleAdmin {
		resp.GroupID = room.GroupID
	}
	return resp
}

func toRoomResponses(entries []directory.Entry) []RoomResponse {
	rooms := make([]RoomResponse, 0, len(entries))
	for _, e := range entries {
		rooms = append(rooms, toRoomResponse(e.Room, e.Role))
	}
	return rooms
}

func toMessageResponses(msgs []domain.AuthoredMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, MessageResponse{
			ID:        msg.ID,
			RoomID:    msg.RoomID,
			UserID:    msg.UserID,
			Author:    msg.Author.DisplayName(),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return out
}
