// Package directory resolves the rooms an identity belongs to and the role
// it holds in each.
package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// MembershipStore is the slice of the storage collaborator the directory reads.
type MembershipStore interface {
	ListMemberships(ctx context.Context, userID string) ([]chat.Membership, error)
	ListRooms(ctx context.Context, roomIDs []string) ([]chat.Room, error)
}

// Entry is one room of the listing with the caller's role in it.
type Entry struct {
	Room chat.Room `json:"room"`
	Role chat.Role `json:"role"`
}

// Selection is the room chosen as active after a listing.
type Selection struct {
	RoomID string    `json:"room_id"`
	Role   chat.Role `json:"role"`
}

// Directory lists rooms by membership.
type Directory struct {
	store  MembershipStore
	logger *slog.Logger
}

// New creates a Directory backed by store.
func New(store MembershipStore, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{store: store, logger: logger}
}

// ListMyRooms returns the rooms userID is a member of, in the order the store
// returns them. An identity without memberships gets an empty slice. A failed
// query is reported as a transport error and never as a partial list.
func (d *Directory) ListMyRooms(ctx context.Context, userID string) ([]Entry, error) {
	memberships, err := d.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, chat.AsTransport(fmt.Errorf("list memberships: %w", err))
	}
	if len(memberships) == 0 {
		return []Entry{}, nil
	}

	roles := make(map[string]chat.Role, len(memberships))
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if _, seen := roles[m.RoomID]; seen {
			continue
		}
		roles[m.RoomID] = m.Role
		ids = append(ids, m.RoomID)
	}

	rooms, err := d.store.ListRooms(ctx, ids)
	if err != nil {
		return nil, chat.AsTransport(fmt.Errorf("list rooms: %w", err))
	}

	entries := make([]Entry, 0, len(rooms))
	for _, room := range rooms {
		role, ok := roles[room.ID]
		if !ok {
			// membership removed between the two reads
			continue
		}
		entries = append(entries, Entry{Room: room, Role: role})
	}

	d.logger.Debug("listed rooms", "user_id", userID, "memberships", len(memberships), "rooms", len(entries))
	return entries, nil
}

// DefaultSelection picks the room to activate after a listing. When a room is
// already active nothing is selected. Otherwise the first entry wins and its
// role comes from the listing, without a second lookup.
func DefaultSelection(entries []Entry, activeRoomID string) (Selection, bool) {
	if activeRoomID != "" || len(entries) == 0 {
		return Selection{}, false
	}
	first := entries[0]
	return Selection{RoomID: first.Room.ID, Role: first.Role}, true
}

// RoleIn returns the role recorded for roomID in entries.
func RoleIn(entries []Entry, roomID string) (chat.Role, bool) {
	for _, e := range entries {
		if e.Room.ID == roomID {
			return e.Role, true
		}
	}
	return "", false
}
