// Package authz answers role lookups and mutation authorization questions.
// Checks here are a latency optimization for the client; storage enforces
// the same rules again.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// RoleStore reads a single membership. It returns chat.ErrMembershipNotFound
// (or any error wrapping chat.ErrNotFound) when the row does not exist.
type RoleStore interface {
	GetMembership(ctx context.Context, roomID, userID string) (*chat.Membership, error)
}

// Authorizer looks up roles and decides on mutations.
type Authorizer struct {
	store RoleStore
}

// New creates an Authorizer backed by store.
func New(store RoleStore) *Authorizer {
	return &Authorizer{store: store}
}

// RoleOf fetches the role of userID in roomID. It always goes to the store
// since roles can change between visits. ok is false when there is no
// membership.
func (a *Authorizer) RoleOf(ctx context.Context, userID, roomID string) (chat.Role, bool, error) {
	m, err := a.store.GetMembership(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return "", false, nil
		}
		return "", false, chat.AsTransport(fmt.Errorf("get membership: %w", err))
	}
	if m == nil {
		return "", false, nil
	}
	if !m.Role.Valid() {
		return "", false, chat.ErrRoleInvalid
	}
	return m.Role, true, nil
}

// DisplayRole is the role shown for a room. Without a membership row the
// client view falls back to member.
func DisplayRole(role chat.Role, ok bool) chat.Role {
	if !ok {
		return chat.RoleMember
	}
	return role
}

// CanDelete reports whether userID may delete msg while holding role.
func CanDelete(userID string, msg chat.Message, role chat.Role) bool {
	if userID == "" {
		return false
	}
	return userID == msg.UserID || role == chat.RoleAdmin
}

// AuthorizeDelete fetches a fresh role and returns chat.ErrUnauthorized
// when the delete is not allowed.
func (a *Authorizer) AuthorizeDelete(ctx context.Context, userID string, msg chat.Message) error {
	if userID == msg.UserID && userID != "" {
		return nil
	}
	role, _, err := a.RoleOf(ctx, userID, msg.RoomID)
	if err != nil {
		return err
	}
	if !CanDelete(userID, msg, role) {
		return chat.ErrUnauthorized
	}
	return nil
}

// CanJoin validates a presented group id. Any identity holding a well formed
// group id may try to join; duplicates are rejected by storage.
func CanJoin(userID, groupID string) (string, error) {
	if userID == "" {
		return "", chat.ErrUnauthorized
	}
	return chat.NormalizeGroupID(groupID)
}
