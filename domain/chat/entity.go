package chat

import "time"

// Role is a member's permission tier inside a room.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Profile is the public display identity of a user.
type Profile struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Email     string    `gorm:"not null;type:text" json:"email"`
	FullName  string    `gorm:"type:text" json:"full_name,omitempty"`
	AvatarURL string    `gorm:"type:text" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for the Profile entity.
func (Profile) TableName() string {
	return "profiles"
}

// Room is a named chat channel. GroupID is the invite capability.
type Room struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"not null;type:text" json:"name"`
	GroupID   string    `gorm:"uniqueIndex;not null;type:text" json:"group_id"`
	CreatedBy string    `gorm:"index;not null;type:text" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Room entity.
func (Room) TableName() string {
	return "rooms"
}

// Membership is the (room, user, role) authorization record.
type Membership struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	RoomID    string    `gorm:"uniqueIndex:idx_room_members_room_user;not null;type:text" json:"room_id"`
	UserID    string    `gorm:"uniqueIndex:idx_room_members_room_user;index;not null;type:text" json:"user_id"`
	Role      Role      `gorm:"not null;type:text" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Membership entity.
func (Membership) TableName() string {
	return "room_members"
}

// Message is an immutable chat message. It can only be deleted.
type Message struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	RoomID    string    `gorm:"index;not null;type:text" json:"room_id"`
	UserID    string    `gorm:"index;not null;type:text" json:"user_id"`
	Content   string    `gorm:"not null;type:text" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// Author is the display identity attached to a message.
type Author struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// placeholderName is shown when an author's profile could not be resolved.
const placeholderName = "Unknown user"

// DisplayName prefers the full name, then the email.
func (a Author) DisplayName() string {
	switch {
	case a.FullName != "":
		return a.FullName
	case a.Email != "":
		return a.Email
	default:
		return placeholderName
	}
}

// AuthorFromProfile builds an Author from a stored profile.
func AuthorFromProfile(p *Profile) Author {
	if p == nil {
		return Author{Placeholder: true}
	}
	return Author{
		ID:       p.ID,
		Email:    p.Email,
		FullName: p.FullName,
	}
}

// PlaceholderAuthor is used when the author lookup fails.
func PlaceholderAuthor(userID string) Author {
	return Author{ID: userID, Placeholder: true}
}

// AuthoredMessage is a message annotated with its author's identity.
type AuthoredMessage struct {
	Message
	Author Author `json:"author"`
}
