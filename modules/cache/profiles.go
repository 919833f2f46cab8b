// Package cache keeps author profiles in Redis so message lists can name
// their authors without a database read per message.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-monolith/mono/pkg/storage"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// ProfileCache is the cache-aside store of author profiles, keyed by user id.
type ProfileCache interface {
	// GetProfile reports a miss for absent, expired and unreadable entries.
	GetProfile(ctx context.Context, userID string) (*chat.Profile, bool, error)

	// SetProfile stores p under its id with the cache TTL.
	SetProfile(ctx context.Context, p *chat.Profile) error

	// InvalidateProfile drops the entry of userID. Dropping a missing entry
	// is not an error.
	InvalidateProfile(ctx context.Context, userID string) error

	Close() error
}

// errNoProfileID rejects profiles that cannot be keyed.
var errNoProfileID = errors.New("profile has no id")

// entryVersion is bumped whenever the cached shape of a profile changes, so
// entries written by an older build read as misses.
const entryVersion = 1

type profileEntry struct {
	Version  int          `json:"v"`
	Profile  chat.Profile `json:"profile"`
	CachedAt time.Time    `json:"cached_at"`
}

type profileCache struct {
	store  storage.Storage
	prefix string
	ttl    time.Duration
}

// NewProfileCache creates a ProfileCache on store. Entries live under
// prefix followed by the user id.
func NewProfileCache(store storage.Storage, prefix string, ttl time.Duration) ProfileCache {
	return &profileCache{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *profileCache) key(userID string) string {
	return c.prefix + userID
}

func (c *profileCache) GetProfile(ctx context.Context, userID string) (*chat.Profile, bool, error) {
	if userID == "" {
		return nil, false, nil
	}

	data, err := c.store.GetWithContext(ctx, c.key(userID))
	if err != nil {
		return nil, false, fmt.Errorf("profile cache get %s: %w", userID, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}

	var entry profileEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Version != entryVersion || entry.Profile.ID != userID {
		// stale or foreign entry; the caller refills it from the database
		_ = c.store.DeleteWithContext(ctx, c.key(userID))
		return nil, false, nil
	}
	return &entry.Profile, true, nil
}

func (c *profileCache) SetProfile(ctx context.Context, p *chat.Profile) error {
	if p == nil || p.ID == "" {
		return errNoProfileID
	}

	data, err := json.Marshal(profileEntry{Version: entryVersion, Profile: *p, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("profile cache encode %s: %w", p.ID, err)
	}
	if err := c.store.SetWithContext(ctx, c.key(p.ID), data, c.ttl); err != nil {
		return fmt.Errorf("profile cache set %s: %w", p.ID, err)
	}
	return nil
}

func (c *profileCache) InvalidateProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := c.store.DeleteWithContext(ctx, c.key(userID)); err != nil {
		return fmt.Errorf("profile cache invalidate %s: %w", userID, err)
	}
	return nil
}

func (c *profileCache) Close() error {
	return c.store.Close()
}
