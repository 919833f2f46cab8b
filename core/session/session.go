// Package session holds the current identity of one client and keeps it in
// step with the session oracle's change stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotInitialized is returned when the state is used before Init.
var ErrNotInitialized = errors.New("session state not initialized")

// Identity is the authenticated account as reported by the oracle.
type Identity struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero: no expiry
}

// Expired reports whether the credential of id has lapsed at now.
func (id *Identity) Expired(now time.Time) bool {
	return id != nil && !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

// Status distinguishes the three session states routing cares about.
type Status int

const (
	StatusAnonymous Status = iota
	StatusUnverified
	StatusVerified
)

func (s Status) String() string {
	switch s {
	case StatusUnverified:
		return "unverified"
	case StatusVerified:
		return "verified"
	default:
		return "anonymous"
	}
}

// StatusOf returns the status of id. A nil identity is anonymous.
func StatusOf(id *Identity) Status {
	switch {
	case id == nil:
		return StatusAnonymous
	case !id.Verified:
		return StatusUnverified
	default:
		return StatusVerified
	}
}

// ChangeKind is the kind of session change pushed by the oracle.
type ChangeKind string

const (
	SignedIn       ChangeKind = "signed_in"
	SignedOut      ChangeKind = "signed_out"
	TokenRefreshed ChangeKind = "token_refreshed"
	Expired        ChangeKind = "expired"
)

// Change is one entry of the oracle's change stream.
type Change struct {
	Kind     ChangeKind
	Identity *Identity
	At       time.Time
}

// Oracle is the session collaborator. Changes returns a stream and a
// function that stops it; the stream is closed after stop returns.
type Oracle interface {
	Current(ctx context.Context) (*Identity, error)
	Changes() (<-chan Change, func())
}

// Snapshot is a copy of the state at one point in time.
type Snapshot struct {
	Identity *Identity
	Loading  bool
	Err      error
}

// Status returns the routing status of the snapshot.
func (s Snapshot) Status() Status {
	return StatusOf(s.Identity)
}

// State is the process-wide session state of one client. Create it with
// New, call Init once, and Teardown when the client goes away.
type State struct {
	oracle Oracle
	logger *slog.Logger

	mu       sync.RWMutex
	identity *Identity
	loading  bool
	err      error
	watchers map[int]chan Snapshot
	nextID   int
	started  bool

	stop func()
	done chan struct{}
}

// New creates an uninitialized state bound to oracle.
func New(oracle Oracle, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		oracle:   oracle,
		logger:   logger,
		loading:  true,
		watchers: make(map[int]chan Snapshot),
	}
}

// Init loads the current identity and starts following the change stream.
func (s *State) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	changes, stop := s.oracle.Changes()

	identity, err := s.oracle.Current(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = fmt.Errorf("load session: %w", err)
	} else {
		s.identity = cloneIdentity(identity)
	}
	s.stop = stop
	s.done = make(chan struct{})
	s.publishLocked()
	done := s.done
	s.mu.Unlock()

	go s.follow(changes, done)
	return err
}

// follow applies changes until the stream closes.
func (s *State) follow(changes <-chan Change, done chan struct{}) {
	defer close(done)
	for change := range changes {
		s.apply(change)
	}
}

func (s *State) apply(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch change.Kind {
	case SignedIn, TokenRefreshed:
		s.identity = cloneIdentity(change.Identity)
	case SignedOut, Expired:
		s.identity = nil
	default:
		s.logger.Warn("ignoring unknown session change", "kind", change.Kind)
		return
	}
	s.err = nil
	s.logger.Debug("session changed", "kind", change.Kind, "status", StatusOf(s.identity).String())
	s.publishLocked()
}

// Teardown stops following the oracle and closes all watchers.
func (s *State) Teardown() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	s.mu.Lock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Identity returns the current identity or ErrNotInitialized before Init.
// An identity whose credential has lapsed is reported as nil even before
// the oracle announces the expiry.
func (s *State) Identity() (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.loading {
		return nil, ErrNotInitialized
	}
	if s.identity.Expired(time.Now()) {
		return nil, nil
	}
	return cloneIdentity(s.identity), nil
}

// Watch returns a stream of snapshots taken after every change. Only the
// latest snapshot is kept for a slow reader. The returned function stops
// the stream.
func (s *State) Watch() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				close(w)
				delete(s.watchers, id)
			}
		})
	}
}

func (s *State) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Identity: cloneIdentity(s.identity),
		Loading:  s.loading,
		Err:      s.err,
	}
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
