package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// Repository is the GORM storage for profiles, rooms, memberships and
// messages. Authorization rules for writes are enforced here as well as in
// the client core, since the client is not trusted.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the chat tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Profile{},
		&domain.Room{},
		&domain.Membership{},
		&domain.Message{},
	)
}

// UpsertProfile inserts or refreshes a profile row.
func (r *Repository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "avatar_url", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile of userID.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &p, nil
}

// ListMemberships returns every membership of userID in join order.
func (r *Repository) ListMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	var rows []domain.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return rows, nil
}

// ListRooms returns the rooms with the given ids in creation order.
func (r *Repository) ListRooms(ctx context.Context, ids []string) ([]domain.Room, error) {
	rooms := []domain.Room{}
	if len(ids) == 0 {
		return rooms, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// GetMembership returns the membership of userID in roomID.
func (r *Repository) GetMembership(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	return getMembership(r.db.WithContext(ctx), roomID, userID)
}

func getMembership(db *gorm.DB, roomID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	if err := db.First(&m, "room_id = ? AND user_id = ?", roomID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return &m, nil
}

// FindRoomByGroupID resolves a group id to its room.
func (r *Repository) FindRoomByGroupID(ctx context.Context, groupID string) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, "group_id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// InsertRoom saves a new room. A group id collision gives domain.ErrGroupIDTaken.
func (r *Repository) InsertRoom(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrGroupIDTaken
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// InsertMembership saves a membership written by actorID.
//
// Rules: a user can only add itself; the admin role is only granted to the
// room creator while the room has no admin; a second row for the same
// (room, user) is domain.ErrAlreadyMember.
func (r *Repository) InsertMembership(ctx context.Context, actorID string, m *domain.Membership) error {
	if actorID == "" || actorID != m.UserID {
		return domain.ErrUnauthorized
	}
	if !m.Role.Valid() {
		return domain.ErrRoleInvalid
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		if err := tx.First(&room, "id = ?", m.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRoomNotFound
			}
			return fmt.Errorf("failed to find room: %w", err)
		}

		if m.Role == domain.RoleAdmin {
			if room.CreatedBy != actorID {
				return domain.ErrUnauthorized
			}
			var admins int64
			if err := tx.Model(&domain.Membership{}).
				Where("room_id = ? AND role = ? AND user_id <> ?", m.RoomID, domain.RoleAdmin, actorID).
				Count(&admins).Error; err != nil {
				return fmt.Errorf("failed to count admins: %w", err)
			}
			if admins > 0 {
				return domain.ErrUnauthorized
			}
		}

		if err := tx.Create(m).Error; err != nil {
			if isDuplicate(err) {
				return domain.ErrAlreadyMember
			}
			return fmt.Errorf("failed to create membership: %w", err)
		}
		return nil
	})
}

// DeleteRoom removes a room created by actorID that nobody else has joined.
// It exists to roll back a half-finished room creation.
func (r *Repository) DeleteRoom(ctx context.Context, actorID, roomID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to find room: %w", err)
		}
		if room.CreatedBy != actorID {
			return domain.ErrUnauthorized
		}

		var others int64
		if err := tx.Model(&domain.Membership{}).
			Where("room_id = ? AND user_id <> ?", roomID, actorID).
			Count(&others).Error; err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if others > 0 {
			return domain.ErrUnauthorized
		}

		if err := tx.Where("room_id = ?", roomID).Delete(&domain.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.Membership{}).Error; err != nil {
			return fmt.Errorf("failed to delete memberships: %w", err)
		}
		if err := tx.Delete(&domain.Room{}, "id = ?", roomID).Error; err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
		return nil
	})
}

// messageRow is a message joined with its author's profile.
type messageRow struct {
	ID             string
	RoomID         string
	UserID         string
	Content        string
	CreatedAt      time.Time
	AuthorEmail    *string
	AuthorFullName *string
}

// ListMessages returns the messages of roomID in creation order, each with
// its author's display identity. Only members may read.
func (r *Repository) ListMessages(ctx context.Context, actorID, roomID string) ([]domain.AuthoredMessage, error) {
	db := r.db.WithContext(ctx)
	if err := requireMember(db, roomID, actorID); err != nil {
		return nil, err
	}

	var rows []messageRow
	err := db.Table("messages").
		Select("messages.id, messages.room_id, messages.user_id, messages.content, messages.created_at, " +
			"profiles.email AS author_email, profiles.full_name AS author_full_name").
		Joins("LEFT JOIN profiles ON profiles.id = messages.user_id").
		Where("messages.room_id = ?", roomID).
		Order("messages.created_at ASC, messages.rowid ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]domain.AuthoredMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAuthored())
	}
	return out, nil
}

func (row messageRow) toAuthored() domain.AuthoredMessage {
	author := domain.PlaceholderAuthor(row.UserID)
	if row.AuthorEmail != nil {
		author = domain.Author{ID: row.UserID, Email: *row.AuthorEmail}
		if row.AuthorFullName != nil {
			author.FullName = *row.AuthorFullName
		}
	}
	return domain.AuthoredMessage{
		Message: domain.Message{
			ID:        row.ID,
			RoomID:    row.RoomID,
			UserID:    row.UserID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		},
		Author: author,
	}
}

// InsertMessage saves a message written by actorID, who must be a member.
func (r *Repository) InsertMessage(ctx context.Context, actorID string, msg *domain.Message) error {
	if actorID == "" || actorID != msg.UserID {
		return domain.ErrUnauthorized
	}
	db := r.db.WithContext(ctx)
	if err := requireMember(db, msg.RoomID, actorID); err != nil {
		return err
	}
	if err := db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message on behalf of actorID, who must be its
// author or an admin of its room. It returns the deleted row.
func (r *Repository) DeleteMessage(ctx context.Context, actorID, messageID string) (*domain.Message, error) {
	var deleted domain.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&deleted, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMessageNotFound
			}
			return fmt.Errorf("failed to find message: %w", err)
		}

		if deleted.UserID != actorID {
			m, err := getMembership(tx, deleted.RoomID, actorID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ErrUnauthorized
				}
				return err
			}
			if m.Role != domain.RoleAdmin {
				return domain.ErrUnauthorized
			}
		}

		if err := tx.Delete(&domain.Message{}, "id = ?", messageID).Error; err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

func requireMember(db *gorm.DB, roomID, userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	var n int64
	if err := db.Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if n == 0 {
		return domain.ErrUnauthorized
	}
	return nil
}

// isDuplicate reports a unique constraint violation. TranslateError maps it
// to gorm.ErrDuplicatedKey; the message check covers drivers that don't.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
