// Package channel keeps a live, ordered message list for the one active
// room of a client. A bulk load is merged with pushed create and delete
// events; events seen while the load is in flight are buffered and
// reconciled by message id once it lands.
//
// Every attachment carries a generation number. Switching rooms tears the
// previous subscription down completely before the next one is opened, and
// any result tagged with an old generation is dropped.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AtharvaShastrakar/orangeChat/core/authz"
	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
)

// Store is the slice of the storage collaborator used by the channel.
type Store interface {
	ListMessages(ctx context.Context, actorID, roomID string) ([]chat.AuthoredMessage, error)
	GetProfile(ctx context.Context, userID string) (*chat.Profile, error)
	InsertMessage(ctx context.Context, actorID, roomID, content string) (*chat.Message, error)
	DeleteMessage(ctx context.Context, actorID, messageID string) error
}

// RoleLookup fetches a fresh role for delete authorization.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID, roomID string) (chat.Role, bool, error)
}

// Subscriber opens per-room push subscriptions.
type Subscriber interface {
	Subscribe(roomID string) (chat.Subscription, error)
}

// State is the attachment state of the channel.
type State int

const (
	Detached State = iota
	Loading
	Live
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	default:
		return "detached"
	}
}

// View is a copy of the channel contents.
type View struct {
	RoomID     string                 `json:"room_id"`
	State      State                  `json:"-"`
	Messages   []chat.AuthoredMessage `json:"messages"`
	Generation uint64                 `json:"generation"`
}

// ErrSuperseded is returned by Attach when another attachment replaced this
// one before its load finished.
var ErrSuperseded = errors.New("attachment superseded")

// Channel is the realtime message view of one client.
type Channel struct {
	store  Store
	roles  RoleLookup
	sub    Subscriber
	logger *slog.Logger

	onChange func(View)

	// attachMu serializes teardown of the old attachment with setup of the next.
	attachMu sync.Mutex
	resyncs  sync.WaitGroup

	mu         sync.Mutex
	gen        uint64
	cur        *attachment
	state      State
	messages   []chat.AuthoredMessage
	buffer     []chat.RowEvent
	tombstones map[string]struct{}
}

type attachment struct {
	gen     uint64
	roomID  string
	actorID string

	ctx    context.Context
	cancel context.CancelFunc
	sub    chat.Subscription
	done   chan struct{}
	once   sync.Once
}

// teardown stops the subscription and waits for the pump to exit. Concurrent
// callers block until the first one has finished.
func (a *attachment) teardown() {
	a.once.Do(func() {
		a.cancel()
		a.sub.Unsubscribe()
		<-a.done
	})
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// OnChange registers a callback invoked with a fresh view after every
// change. It runs with the channel lock held and must not block or call
// back into the channel.
func OnChange(fn func(View)) Option {
	return func(c *Channel) {
		c.onChange = fn
	}
}

// New creates a detached channel.
func New(store Store, roles RoleLookup, sub Subscriber, opts ...Option) *Channel {
	c := &Channel{
		store:  store,
		roles:  roles,
		sub:    sub,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach makes roomID the active room for actorID. The previous attachment
// is fully detached first. Attach returns once the bulk load has been merged
// and the channel is live, or with the load error, in which case the channel
// is left detached.
func (c *Channel) Attach(ctx context.Context, actorID, roomID string) error {
	if roomID == "" {
		return chat.ErrNoActiveRoom
	}

	c.attachMu.Lock()
	a, err := c.switchLocked(ctx, actorID, roomID)
	c.attachMu.Unlock()
	if err != nil {
		return err
	}

	return c.load(ctx, a)
}

// switchLocked tears down the current attachment and opens a new one in
// Loading state. attachMu must be held.
func (c *Channel) switchLocked(ctx context.Context, actorID, roomID string) (*attachment, error) {
	c.mu.Lock()
	old := c.cur
	c.gen++
	c.cur = nil
	c.resetLocked(Detached)
	c.mu.Unlock()

	if old != nil {
		old.teardown()
		c.logger.Debug("detached room", "room_id", old.roomID, "generation", old.gen)
	}

	sub, err := c.sub.Subscribe(roomID)
	if err != nil {
		c.mu.Lock()
		c.notifyLocked()
		c.mu.Unlock()
		return nil, chat.AsTransport(fmt.Errorf("subscribe: %w", err))
	}

	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	a := &attachment{
		gen:     c.gen,
		roomID:  roomID,
		actorID: actorID,
		ctx:     actx,
		cancel:  cancel,
		sub:     sub,
		done:    make(chan struct{}),
	}
	c.cur = a
	c.resetLocked(Loading)
	c.notifyLocked()
	c.mu.Unlock()

	go c.pump(a)
	return a, nil
}

// load fetches the baseline and goes live.
func (c *Channel) load(ctx context.Context, a *attachment) error {
	msgs, err := c.store.ListMessages(ctx, a.actorID, a.roomID)

	c.mu.Lock()
	if c.cur != a || c.gen != a.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale load", "room_id", a.roomID, "generation", a.gen)
		return ErrSuperseded
	}
	if err != nil {
		c.cur = nil
		c.resetLocked(Detached)
		c.notifyLocked()
		c.mu.Unlock()
		a.teardown()
		c.logger.Warn("message load failed", "room_id", a.roomID, "error", err)
		return chat.AsTransport(fmt.Errorf("list messages: %w", err))
	}

	c.messages = reconcile(msgs, c.buffer, c.tombstones)
	buffered := len(c.buffer)
	c.buffer = nil
	c.state = Live
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Debug("room live", "room_id", a.roomID, "loaded", len(msgs), "buffered", buffered)
	return nil
}

// pump delivers push events of one attachment.
func (c *Channel) pump(a *attachment) {
	defer close(a.done)
	events := a.sub.Events()

	for {
		select {
		case <-a.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if err := a.sub.Err(); err != nil && a.ctx.Err() == nil {
					c.logger.Warn("subscription lost, reloading room", "room_id", a.roomID, "error", err)
					c.resyncs.Add(1)
					go func() {
						defer c.resyncs.Done()
						c.resync(a)
					}()
				}
				return
			}
			if ev.Message.RoomID != a.roomID {
				continue
			}
			if ev.Kind == chat.EventCreated {
				ev.Author = c.lookupAuthor(a.ctx, ev.Message.UserID)
			}
			if !c.deliver(a, ev) {
				return
			}
		}
	}
}

// deliver buffers ev while loading and applies it while live. It returns
// false once the attachment is stale.
func (c *Channel) deliver(a *attachment, ev chat.RowEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != a || c.gen != a.gen {
		return false
	}
	switch c.state {
	case Loading:
		c.buffer = append(c.buffer, ev)
	case Live:
		c.messages = apply(c.messages, ev, c.tombstones)
		c.notifyLocked()
	}
	return true
}

// resync reopens the room after the push hub dropped the subscription.
func (c *Channel) resync(a *attachment) {
	c.attachMu.Lock()
	c.mu.Lock()
	stale := c.cur != a || c.gen != a.gen
	c.mu.Unlock()
	if stale {
		c.attachMu.Unlock()
		return
	}
	next, err := c.switchLocked(a.ctx, a.actorID, a.roomID)
	c.attachMu.Unlock()
	if err != nil {
		c.logger.Error("resync failed", "room_id", a.roomID, "error", err)
		return
	}
	if err := c.load(next.ctx, next); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Error("resync load failed", "room_id", a.roomID, "error", err)
	}
}

// lookupAuthor resolves the display identity of userID. Failures degrade to
// a placeholder; the message is never dropped.
func (c *Channel) lookupAuthor(ctx context.Context, userID string) *chat.Author {
	profile, err := c.store.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		if err != nil && ctx.Err() == nil {
			c.logger.Debug("author lookup failed", "user_id", userID, "error", err)
		}
		author := chat.PlaceholderAuthor(userID)
		return &author
	}
	author := chat.AuthorFromProfile(profile)
	return &author
}

// Detach leaves the active room.
func (c *Channel) Detach() {
	c.attachMu.Lock()
	defer c.attachMu.Unlock()

	c.mu.Lock()
	old := c.cur
	c.gen++
	c.cur = nil
	c.resetLocked(Detached)
	c.notifyLocked()
	c.mu.Unlock()

	if old != nil {
		old.teardown()
	}
}

// Close detaches the channel and waits for pending resyncs. It is safe to
// call more than once.
func (c *Channel) Close() {
	c.Detach()
	c.resyncs.Wait()
}

// View returns a copy of the current contents.
func (c *Channel) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// ActiveRoom returns the id of the attached room, or "".
func (c *Channel) ActiveRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.roomID
}

// SendMessage posts content to the active room. Blank content is rejected
// without a round trip. The list is updated by the push echo, not here.
func (c *Channel) SendMessage(ctx context.Context, content string) (*chat.Message, error) {
	content, err := chat.ValidateMessage(content)
	if err != nil {
		return nil, err
	}

	a, err := c.active()
	if err != nil {
		return nil, err
	}

	msg, err := c.store.InsertMessage(ctx, a.actorID, a.roomID, content)
	if err != nil {
		return nil, chat.AsTransport(fmt.Errorf("send message: %w", err))
	}
	return msg, nil
}

// DeleteMessage deletes messageID from the active room after checking the
// caller may do so. The list is updated by the push echo.
func (c *Channel) DeleteMessage(ctx context.Context, messageID string) error {
	a, err := c.active()
	if err != nil {
		return err
	}

	c.mu.Lock()
	msg, found := find(c.messages, messageID)
	c.mu.Unlock()
	if !found {
		return chat.ErrMessageNotFound
	}

	var role chat.Role
	if msg.UserID != a.actorID {
		role, _, err = c.roles.RoleOf(ctx, a.actorID, a.roomID)
		if err != nil {
			return err
		}
	}
	if !authz.CanDelete(a.actorID, msg.Message, role) {
		return chat.ErrUnauthorized
	}

	if err := c.store.DeleteMessage(ctx, a.actorID, messageID); err != nil {
		return chat.AsTransport(fmt.Errorf("delete message: %w", err))
	}
	return nil
}

func (c *Channel) active() (*attachment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.state == Detached {
		return nil, chat.ErrNoActiveRoom
	}
	return c.cur, nil
}

func (c *Channel) resetLocked(state State) {
	c.state = state
	c.messages = nil
	c.buffer = nil
	c.tombstones = make(map[string]struct{})
}

func (c *Channel) viewLocked() View {
	v := View{
		State:      c.state,
		Generation: c.gen,
		Messages:   make([]chat.AuthoredMessage, len(c.messages)),
	}
	if c.cur != nil {
		v.RoomID = c.cur.roomID
	}
	copy(v.Messages, c.messages)
	return v
}

func (c *Channel) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.viewLocked())
	}
}
