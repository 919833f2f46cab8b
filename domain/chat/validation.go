package chat

import (
	"strings"
	"unicode/utf8"

	nanoid "github.com/jaevor/go-nanoid"
)

// Validation constants
const (
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
	MaxGroupIDLength  = 64
)

// GroupIDLength is the length of minted group ids: 21 characters of a
// 64-symbol alphabet drawn from crypto/rand.
const GroupIDLength = 21

// ValidateRoomName trims name and validates it.
func ValidateRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrRoomNameEmpty
	}
	if !utf8.ValidString(name) {
		return "", ErrRoomNameInvalid
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return "", ErrRoomNameTooLong
	}
	return name, nil
}

// ValidateMessage trims content and validates it. Whitespace-only content is empty.
func ValidateMessage(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrMessageEmpty
	}
	if !utf8.ValidString(content) {
		return "", ErrMessageInvalid
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return content, nil
}

// NormalizeGroupID trims user input and checks it is a plausible group id.
// Older rooms carry UUID group ids, so hyphens are accepted.
func NormalizeGroupID(groupID string) (string, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return "", ErrGroupIDEmpty
	}
	if len(groupID) > MaxGroupIDLength {
		return "", ErrGroupIDInvalid
	}
	for _, c := range groupID {
		if !isGroupIDChar(c) {
			return "", ErrGroupIDInvalid
		}
	}
	return groupID, nil
}

func isGroupIDChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '-' || c == '_'
}

// NewGroupID mints a fresh group id.
func NewGroupID() (string, error) {
	gen, err := nanoid.Standard(GroupIDLength)
	if err != nil {
		return "", err
	}
	return gen(), nil
}
