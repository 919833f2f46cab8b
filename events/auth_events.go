package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserRegisteredEvent is emitted when an account signs up.
type UserRegisteredEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRegisteredV1 is consumed by the chat module to create the profile row.
var UserRegisteredV1 = helper.EventDefinition[UserRegisteredEvent](
	"auth",
	"UserRegistered",
	"v1",
)
