package chat

import (
	"context"

	"github.com/go-monolith/mono"
)

// Request-reply handlers. actor_id is set by the API module from a
// validated access token; every write is authorized against it.

func (m *Module) listMemberships(ctx context.Context, req ListMembershipsRequest, _ *mono.Msg) (ListMembershipsResponse, error) {
	rows, err := m.service.ListMemberships(ctx, req.ActorID)
	if err != nil {
		return ListMembershipsResponse{}, err
	}
	return ListMembershipsResponse{Memberships: rows}, nil
}

func (m *Module) listRooms(ctx context.Context, req ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.service.ListRooms(ctx, req.RoomIDs)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: rooms}, nil
}

func (m *Module) getMembership(ctx context.Context, req GetMembershipRequest, _ *mono.Msg) (MembershipResponse, error) {
	row, err := m.service.GetMembership(ctx, req.RoomID, req.UserID)
	if err != nil {
		return MembershipResponse{}, err
	}
	return MembershipResponse{Membership: row}, nil
}

func (m *Module) findRoomByGroup(ctx context.Context, req FindRoomByGroupRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.FindRoomByGroupID(ctx, req.GroupID)
	if err != nil {
		return RoomResponse{}, err
	}
	return RoomResponse{Room: room}, nil
}

func (m *Module) insertRoom(ctx context.Context, req InsertRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.InsertRoom(ctx, req.ActorID, req.Name, req.GroupID)
	if err != nil {
		return RoomResponse{}, err
	}
	return RoomResponse{Room: room}, nil
}

func (m *Module) insertMembership(ctx context.Context, req InsertMembershipRequest, _ *mono.Msg) (MembershipResponse, error) {
	row, err := m.service.InsertMembership(ctx, req.ActorID, req.RoomID, req.UserID, req.Role)
	if err != nil {
		return MembershipResponse{}, err
	}
	return MembershipResponse{Membership: row}, nil
}

func (m *Module) deleteRoom(ctx context.Context, req DeleteRoomRequest, _ *mono.Msg) (AckResponse, error) {
	if err := m.service.DeleteRoom(ctx, req.ActorID, req.RoomID); err != nil {
		return AckResponse{}, err
	}
	return AckResponse{OK: true}, nil
}

func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	msgs, err := m.service.ListMessages(ctx, req.ActorID, req.RoomID)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	return ListMessagesResponse{Messages: msgs}, nil
}

func (m *Module) insertMessage(ctx context.Context, req InsertMessageRequest, _ *mono.Msg) (MessageResponse, error) {
	msg, err := m.service.InsertMessage(ctx, req.ActorID, req.RoomID, req.Content)
	if err != nil {
		return MessageResponse{}, err
	}
	return MessageResponse{Message: msg}, nil
}

func (m *Module) deleteMessage(ctx context.Context, req DeleteMessageRequest, _ *mono.Msg) (AckResponse, error) {
	if err := m.service.DeleteMessage(ctx, req.ActorID, req.MessageID); err != nil {
		return AckResponse{}, err
	}
	return AckResponse{OK: true}, nil
}

func (m *Module) getProfile(ctx context.Context, req GetProfileRequest, _ *mono.Msg) (ProfileResponse, error) {
	p, err := m.service.GetProfile(ctx, req.UserID)
	if err != nil {
		return ProfileResponse{}, err
	}
	return ProfileResponse{Profile: p}, nil
}
