package directory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AtharvaShastrakar/orangeChat/core/directory"
	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListMemberships(ctx context.Context, userID string) ([]chat.Membership, error) {
	args := m.Called(ctx, userID)
	rows, _ := args.Get(0).([]chat.Membership)
	return rows, args.Error(1)
}

func (m *mockStore) ListRooms(ctx context.Context, roomIDs []string) ([]chat.Room, error) {
	args := m.Called(ctx, roomIDs)
	rows, _ := args.Get(0).([]chat.Room)
	return rows, args.Error(1)
}

func TestListMyRooms_PairsRoomsWithRoles(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()

	store.On("ListMemberships", ctx, "u1").Return([]chat.Membership{
		{RoomID: "r2", UserID: "u1", Role: chat.RoleMember},
		{RoomID: "r1", UserID: "u1", Role: chat.RoleAdmin},
	}, nil).Once()
	store.On("ListRooms", ctx, []string{"r2", "r1"}).Return([]chat.Room{
		{ID: "r1", Name: "Alpha"},
		{ID: "r2", Name: "Beta"},
	}, nil).Once()

	entries, err := directory.New(store, nil).ListMyRooms(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "r1", entries[0].Room.ID)
	assert.Equal(t, chat.RoleAdmin, entries[0].Role)
	assert.Equal(t, "r2", entries[1].Room.ID)
	assert.Equal(t, chat.RoleMember, entries[1].Role)
	store.AssertExpectations(t)
}

func TestListMyRooms_NoMembershipsIsEmpty(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()
	store.On("ListMemberships", ctx, "u1").Return([]chat.Membership{}, nil).Once()

	entries, err := directory.New(store, nil).ListMyRooms(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	store.AssertNotCalled(t, "ListRooms", mock.Anything, mock.Anything)
}

func TestListMyRooms_MembershipFailureIsTransport(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()
	store.On("ListMemberships", ctx, "u1").Return(nil, errors.New("connection reset")).Once()

	entries, err := directory.New(store, nil).ListMyRooms(ctx, "u1")
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, chat.ErrTransport)
}

func TestListMyRooms_RoomFailureReturnsNoPartialList(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()
	store.On("ListMemberships", ctx, "u1").Return([]chat.Membership{
		{RoomID: "r1", UserID: "u1", Role: chat.RoleAdmin},
	}, nil).Once()
	store.On("ListRooms", ctx, []string{"r1"}).Return(nil, errors.New("timeout")).Once()

	entries, err := directory.New(store, nil).ListMyRooms(ctx, "u1")
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, chat.ErrTransport)
}

func TestListMyRooms_SkipsRoomsWithoutMembership(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()
	store.On("ListMemberships", ctx, "u1").Return([]chat.Membership{
		{RoomID: "r1", UserID: "u1", Role: chat.RoleMember},
	}, nil).Once()
	store.On("ListRooms", ctx, []string{"r1"}).Return([]chat.Room{
		{ID: "r1"}, {ID: "stray"},
	}, nil).Once()

	entries, err := directory.New(store, nil).ListMyRooms(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].Room.ID)
}

func TestDefaultSelection(t *testing.T) {
	entries := []directory.Entry{
		{Room: chat.Room{ID: "r1"}, Role: chat.RoleMember},
		{Room: chat.Room{ID: "r2"}, Role: chat.RoleAdmin},
	}

	tests := []struct {
		name    string
		entries []directory.Entry
		active  string
		want    directory.Selection
		wantOK  bool
	}{
		{"first room when none active", entries, "", directory.Selection{RoomID: "r1", Role: chat.RoleMember}, true},
		{"keeps active room", entries, "r2", directory.Selection{}, false},
		{"empty listing", nil, "", directory.Selection{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := directory.DefaultSelection(tt.entries, tt.active)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleIn(t *testing.T) {
	entries := []directory.Entry{{Room: chat.Room{ID: "r1"}, Role: chat.RoleAdmin}}

	role, ok := directory.RoleIn(entries, "r1")
	assert.True(t, ok)
	assert.Equal(t, chat.RoleAdmin, role)

	_, ok = directory.RoleIn(entries, "missing")
	assert.False(t, ok)
}
