package chat

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by the storage service, its adapter and the client core.
var (
	// ErrTransport is returned when a query, write or subscription could not complete.
	ErrTransport = errors.New("transport error")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember is returned when joining a room twice.
	ErrAlreadyMember = errors.New("already a member")
	// ErrUnauthorized is returned when the actor lacks the rights for a mutation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is returned for input rejected before any write.
	ErrValidation = errors.New("validation failed")
)

// Not found variants.
var (
	ErrRoomNotFound       = fmt.Errorf("room %w", ErrNotFound)
	ErrMessageNotFound    = fmt.Errorf("message %w", ErrNotFound)
	ErrProfileNotFound    = fmt.Errorf("profile %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("membership %w", ErrNotFound)
)

// Validation variants.
var (
	ErrRoomNameEmpty   = fmt.Errorf("%w: room name cannot be empty", ErrValidation)
	ErrRoomNameTooLong = fmt.Errorf("%w: room name exceeds maximum length", ErrValidation)
	ErrRoomNameInvalid = fmt.Errorf("%w: room name contains invalid characters", ErrValidation)
	ErrMessageEmpty    = fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	ErrMessageTooLong  = fmt.Errorf("%w: message exceeds maximum length", ErrValidation)
	ErrMessageInvalid  = fmt.Errorf("%w: message contains invalid characters", ErrValidation)
	ErrGroupIDEmpty    = fmt.Errorf("%w: group id cannot be empty", ErrValidation)
	ErrGroupIDInvalid  = fmt.Errorf("%w: group id contains invalid characters", ErrValidation)
	ErrRoleInvalid     = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrNoActiveRoom    = fmt.Errorf("%w: no active room", ErrValidation)
)

// Room creation is two writes. These report a creation that did not finish.
var (
	// ErrGroupIDTaken is returned by storage when a minted group id collides.
	ErrGroupIDTaken = errors.New("group id already in use")
	// ErrRoomCreateFailed means the admin membership could not be written and
	// the room insert was rolled back. The caller may retry.
	ErrRoomCreateFailed = errors.New("room creation did not complete")
	// ErrRoomOrphaned means the rollback failed too: the room exists without an admin.
	ErrRoomOrphaned = errors.New("room left without an admin")
)

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrRoomCreateFailed) ||
		errors.Is(err, ErrRoomOrphaned)
}

// known lists every sentinel in the order used to classify foreign errors.
// More specific messages come before the generic ones they contain.
var known = []error{
	ErrRoomNotFound,
	ErrMessageNotFound,
	ErrProfileNotFound,
	ErrMembershipNotFound,
	ErrRoomNameEmpty,
	ErrRoomNameTooLong,
	ErrRoomNameInvalid,
	ErrMessageEmpty,
	ErrMessageTooLong,
	ErrMessageInvalid,
	ErrGroupIDEmpty,
	ErrGroupIDInvalid,
	ErrRoleInvalid,
	ErrNoActiveRoom,
	ErrGroupIDTaken,
	ErrRoomCreateFailed,
	ErrRoomOrphaned,
	ErrAlreadyMember,
	ErrUnauthorized,
	ErrValidation,
	ErrNotFound,
	ErrTransport,
}

// Classify returns the taxonomy sentinel matching err, or nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range known {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// AsTransport wraps err in ErrTransport unless it already belongs to the taxonomy.
func AsTransport(err error) error {
	if err == nil {
		return nil
	}
	if Classify(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// FromMessage recovers a sentinel from an error message that crossed the
// service bus, where the original error value is lost.
func FromMessage(msg string) error {
	lower := strings.ToLower(msg)
	for _, sentinel := range known {
		if strings.Contains(lower, sentinel.Error()) {
			return sentinel
		}
	}
	return nil
}
