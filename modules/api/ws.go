package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/AtharvaShastrakar/orangeChat/core/authz"
	"github.com/AtharvaShastrakar/orangeChat/core/channel"
	"github.com/AtharvaShastrakar/orangeChat/core/directory"
	"github.com/AtharvaShastrakar/orangeChat/core/session"
	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

const (
	tokenLocalKey   = "access_token"
	outboundBuffer  = 32
	frameOpDeadline = 30 * time.Second
)

// RefreshTokenPayload hands a freshly issued access token to the socket.
type RefreshTokenPayload struct {
	AccessToken string `json:"access_token"`
}

// SendPayload posts a message to the active room.
type SendPayload struct {
	Content string `json:"content"`
}

// CreateRoomPayload creates a room.
type CreateRoomPayload struct {
	Name string `json:"name"`
}

// JoinRoomPayload joins a room by group id.
type JoinRoomPayload struct {
	GroupID string `json:"group_id"`
}

// wsUpgrade gates the socket: only verified identities may connect. The
// token comes from the query since browsers cannot set headers on upgrades.
func (m *APIModule) wsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		token = requestToken(c)
	}
	identity, err := resolveIdentity(c.UserContext(), m.authAdapter, token)
	if err != nil {
		return writeError(c, err)
	}

	switch RedirectFor(SurfaceChat, session.StatusOf(identity)) {
	case PathLogin:
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired token",
		})
	case PathVerifyEmail:
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "email_not_verified",
			Message: "Verify your email address first",
		})
	}

	c.Locals(tokenLocalKey, token)
	return c.Next()
}

// handleWebSocket handles WebSocket connections at /ws.
func (m *APIModule) handleWebSocket(conn *websocket.Conn) {
	token, _ := conn.Locals(tokenLocalKey).(string)

	client := m.newClient(token, func(b []byte) error {
		return conn.WriteMessage(websocket.TextMessage, b)
	}, func() {
		_ = conn.Close()
	})

	m.clients.Store(client.id, client)
	m.clientCount.Add(1)
	defer func() {
		client.close()
		m.clients.Delete(client.id)
		m.clientCount.Add(-1)
		log.Printf("[api] WebSocket client disconnected: %s", client.id)
	}()

	log.Printf("[api] WebSocket client connected: %s", client.id)
	client.start(m.clientsCtx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				client.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		client.handle(m.clientsCtx, data)
	}
}

// connOracle is the session oracle of one socket. The socket reports token
// refreshes and sign outs as frames; the lapse of the current access token is
// reported by a timer.
type connOracle struct {
	auth auth.AuthPort

	mu        sync.Mutex
	token     string
	changes   chan session.Change
	stopped   bool
	expiry    *time.Timer
	expiryGen uint64
}

var _ session.Oracle = (*connOracle)(nil)

func newConnOracle(authPort auth.AuthPort, token string) *connOracle {
	return &connOracle{
		auth:    authPort,
		token:   token,
		changes: make(chan session.Change, 4),
	}
}

// Current validates the token the socket was opened with.
func (o *connOracle) Current(ctx context.Context) (*session.Identity, error) {
	o.mu.Lock()
	token := o.token
	o.mu.Unlock()
	identity, err := resolveIdentity(ctx, o.auth, token)
	if err != nil {
		return nil, err
	}
	o.watchExpiry(identity)
	return identity, nil
}

// watchExpiry reports an Expired change once identity lapses. Each call
// replaces the previous timer.
func (o *connOracle) watchExpiry(identity *session.Identity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disarmLocked()
	if o.stopped || identity == nil || identity.ExpiresAt.IsZero() {
		return
	}
	gen := o.expiryGen
	o.expiry = time.AfterFunc(time.Until(identity.ExpiresAt), func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.stopped || gen != o.expiryGen {
			return
		}
		o.changes <- session.Change{Kind: session.Expired, At: time.Now()}
	})
}

// disarmLocked cancels the expiry timer. A callback already running sees the
// bumped generation and drops its change.
func (o *connOracle) disarmLocked() {
	o.expiryGen++
	if o.expiry != nil {
		o.expiry.Stop()
		o.expiry = nil
	}
}

// Changes returns the change stream. Every call returns the same stream.
func (o *connOracle) Changes() (<-chan session.Change, func()) {
	return o.changes, o.stop
}

func (o *connOracle) stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disarmLocked()
	if !o.stopped {
		o.stopped = true
		close(o.changes)
	}
}

func (o *connOracle) push(change session.Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.changes <- change
}

// refresh swaps in a new access token. It must belong to the same account.
func (o *connOracle) refresh(ctx context.Context, current *session.Identity, token string) error {
	identity, err := resolveIdentity(ctx, o.auth, token)
	if err != nil {
		return err
	}
	if identity == nil {
		return auth.ErrInvalidToken
	}
	if current != nil && current.UserID != identity.UserID {
		return domain.ErrUnauthorized
	}

	o.mu.Lock()
	o.token = token
	o.mu.Unlock()

	o.push(session.Change{Kind: session.TokenRefreshed, Identity: identity, At: time.Now()})
	o.watchExpiry(identity)
	return nil
}

func (o *connOracle) signOut() {
	o.mu.Lock()
	o.token = ""
	o.disarmLocked()
	o.mu.Unlock()
	o.push(session.Change{Kind: session.SignedOut, At: time.Now()})
}

// wsClient is the client runtime of one socket: its session state, its
// message channel and an outbound queue drained by a single writer.
type wsClient struct {
	id        string
	directory *directory.Directory
	roles     *authz.Authorizer
	rooms     roomManager
	oracle    *connOracle
	state     *session.State
	channel   *channel.Channel
	logger    *slog.Logger

	write  func([]byte) error
	hangup func()

	out       chan Frame
	viewMu    sync.Mutex
	view      *channel.View
	viewReady chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// roomManager is the lifecycle manager as used by a socket.
type roomManager interface {
	CreateRoom(ctx context.Context, actorID, name string) (*domain.Room, error)
	JoinRoom(ctx context.Context, actorID, groupID string) (*domain.Room, error)
}

func (m *APIModule) newClient(token string, write func([]byte) error, hangup func()) *wsClient {
	id := uuid.New().String()
	logger := m.logger.With("client_id", id)

	c := &wsClient{
		id:        id,
		directory: m.directory,
		roles:     m.roles,
		rooms:     m.rooms,
		oracle:    newConnOracle(m.authAdapter, token),
		logger:    logger,
		write:     write,
		out:       make(chan Frame, outboundBuffer),
		viewReady: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	var hangupOnce sync.Once
	c.hangup = func() { hangupOnce.Do(hangup) }

	c.state = session.New(c.oracle, logger)
	c.channel = channel.New(m.chatAdapter, m.roles, m.hub,
		channel.WithLogger(logger),
		channel.OnChange(c.onView),
	)
	return c
}

// start runs the writer, follows the session and sends the room listing.
func (c *wsClient) start(ctx context.Context) {
	c.wg.Add(2)
	go c.writeLoop()

	snapshots, _ := c.state.Watch()
	go c.watchSession(snapshots)

	ictx, cancel := context.WithTimeout(ctx, frameOpDeadline)
	defer cancel()
	if err := c.state.Init(ictx); err != nil {
		c.logger.Warn("session init failed", "error", err)
		return
	}
	if id, err := c.state.Identity(); err == nil && id != nil && id.Verified {
		c.sendRooms(ictx, true)
	}
}

// close tears the client down. The channel is detached before the session
// so no push lands after the identity is gone.
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.channel.Close()
		c.state.Teardown()
		close(c.done)
		c.wg.Wait()
	})
}

// onView runs under the channel lock; it only records the latest view.
func (c *wsClient) onView(v channel.View) {
	c.viewMu.Lock()
	c.view = &v
	c.viewMu.Unlock()
	select {
	case c.viewReady <- struct{}{}:
	default:
	}
}

func (c *wsClient) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.out:
			c.writeFrame(f)
		case <-c.viewReady:
			c.viewMu.Lock()
			v := c.view
			c.view = nil
			c.viewMu.Unlock()
			if v != nil {
				c.writeFrame(messagesFrame(*v))
			}
		}
	}
}

func (c *wsClient) writeFrame(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Error("failed to marshal frame", "type", f.Type, "error", err)
		return
	}
	if err := c.write(data); err != nil {
		c.logger.Warn("failed to write frame", "type", f.Type, "error", err)
		c.hangup()
	}
}

func messagesFrame(v channel.View) Frame {
	payload, _ := json.Marshal(MessagesPayload{
		RoomID:     v.RoomID,
		State:      v.State.String(),
		Generation: v.Generation,
		Messages:   toMessageResponses(v.Messages),
	})
	return Frame{Type: FrameMessages, Payload: payload}
}

// send queues a frame. It gives up once the client is closed.
func (c *wsClient) send(frameType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to marshal payload", "type", frameType, "error", err)
		return
	}
	select {
	case c.out <- Frame{Type: frameType, Payload: data}:
	case <-c.done:
	}
}

func (c *wsClient) sendProblem(p problem) {
	c.send(FrameError, p.response())
}

func (c *wsClient) sendError(err error) {
	c.sendProblem(classifyError(err))
}

// watchSession forwards session changes. Losing the verified identity ends
// the connection after the final session frame.
func (c *wsClient) watchSession(snapshots <-chan session.Snapshot) {
	defer c.wg.Done()
	for snap := range snapshots {
		if snap.Loading {
			continue
		}
		status := snap.Status()
		payload := SessionPayload{
			Status: status.String(),
			Next:   RedirectFor(SurfaceChat, status),
		}
		if snap.Identity != nil {
			payload.UserID = snap.Identity.UserID
			payload.Email = snap.Identity.Email
			payload.Verified = snap.Identity.Verified
		}
		c.send(FrameSession, payload)

		if payload.Next != "" {
			c.channel.Detach()
			c.hangup()
		}
	}
}

// actor returns the user id of the current verified identity.
func (c *wsClient) actor() (string, error) {
	id, err := c.state.Identity()
	if err != nil || id == nil || !id.Verified {
		return "", domain.ErrUnauthorized
	}
	return id.UserID, nil
}

// handle processes one client frame. Frames of one socket are handled in
// order.
func (c *wsClient) handle(ctx context.Context, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.sendProblem(problem{status: fiber.StatusBadRequest, code: "bad_request", message: "Invalid message format"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, frameOpDeadline)
	defer cancel()

	switch f.Type {
	case FrameSelectRoom:
		var p SelectRoomPayload
		if c.decode(f, &p) {
			c.selectRoom(ctx, p.RoomID)
		}
	case FrameSend:
		var p SendPayload
		if c.decode(f, &p) {
			c.sendMessage(ctx, p.Content)
		}
	case FrameDelete:
		var p DeletePayload
		if c.decode(f, &p) {
			c.deleteMessage(ctx, p.MessageID)
		}
	case FrameCreateRoom:
		var p CreateRoomPayload
		if c.decode(f, &p) {
			c.createRoom(ctx, p.Name)
		}
	case FrameJoinRoom:
		var p JoinRoomPayload
		if c.decode(f, &p) {
			c.joinRoom(ctx, p.GroupID)
		}
	case FrameListRooms:
		c.sendRooms(ctx, false)
	case FrameRefreshToken:
		var p RefreshTokenPayload
		if c.decode(f, &p) {
			c.refreshToken(ctx, p.AccessToken)
		}
	case FrameSignOut:
		c.oracle.signOut()
	default:
		c.sendProblem(problem{status: fiber.StatusBadRequest, code: "bad_request", message: "Unknown message type: " + f.Type})
	}
}

func (c *wsClient) decode(f Frame, v any) bool {
	if len(f.Payload) == 0 {
		c.sendProblem(problem{status: fiber.StatusBadRequest, code: "bad_request", message: "Missing payload for " + f.Type})
		return false
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		c.sendProblem(problem{status: fiber.StatusBadRequest, code: "bad_request", message: "Invalid payload for " + f.Type})
		return false
	}
	return true
}

// sendRooms lists the rooms of the identity. With autoSelect the default
// selection is attached when no room is active.
func (c *wsClient) sendRooms(ctx context.Context, autoSelect bool) {
	actorID, err := c.actor()
	if err != nil {
		c.sendError(err)
		return
	}

	entries, err := c.directory.ListMyRooms(ctx, actorID)
	if err != nil {
		c.sendError(err)
		return
	}

	payload := RoomsPayload{Rooms: toRoomResponses(entries)}
	sel, ok := directory.DefaultSelection(entries, c.channel.ActiveRoom())
	if ok {
		payload.Selection = &sel
	}
	c.send(FrameRooms, payload)

	if ok && autoSelect {
		for _, e := range entries {
			if e.Room.ID == sel.RoomID {
				c.attach(ctx, actorID, e.Room, sel.Role)
				return
			}
		}
	}
}

// selectRoom switches the active room. The role is always fetched again.
func (c *wsClient) selectRoom(ctx context.Context, roomID string) {
	actorID, err := c.actor()
	if err != nil {
		c.sendError(err)
		return
	}
	if roomID == "" {
		c.sendError(domain.ErrNoActiveRoom)
		return
	}

	role, ok, err := c.roles.RoleOf(ctx, actorID, roomID)
	if err != nil {
		c.sendError(err)
		return
	}
	if !ok {
		c.sendError(domain.ErrUnauthorized)
		return
	}

	entries, err := c.directory.ListMyRooms(ctx, actorID)
	if err != nil {
		c.sendError(err)
		return
	}
	for _, e := range entries {
		if e.Room.ID == roomID {
			c.attach(ctx, actorID, e.Room, authz.DisplayRole(role, ok))
			return
		}
	}
	c.sendError(domain.ErrRoomNotFound)
}

func (c *wsClient) attach(ctx context.Context, actorID string, room domain.Room, role domain.Role) {
	if err := c.channel.Attach(ctx, actorID, room.ID); err != nil {
		if errors.Is(err, channel.ErrSuperseded) {
			return
		}
		c.sendError(err)
		return
	}
	c.send(FrameRoomSelected, RoomSelectedPayload{Room: toRoomResponse(room, role)})
}

func (c *wsClient) sendMessage(ctx context.Context, content string) {
	if _, err := c.actor(); err != nil {
		c.sendError(err)
		return
	}
	if _, err := c.channel.SendMessage(ctx, content); err != nil {
		c.sendError(err)
	}
}

func (c *wsClient) deleteMessage(ctx context.Context, messageID string) {
	if _, err := c.actor(); err != nil {
		c.sendError(err)
		return
	}
	if err := c.channel.DeleteMessage(ctx, messageID); err != nil {
		c.sendError(err)
	}
}

// createRoom creates a room and makes it the active one.
func (c *wsClient) createRoom(ctx context.Context, name string) {
	actorID, err := c.actor()
	if err != nil {
		c.sendError(err)
		return
	}

	room, err := c.rooms.CreateRoom(ctx, actorID, name)
	if err != nil {
		c.sendError(err)
		return
	}
	c.send(FrameRoomCreated, RoomSelectedPayload{Room: toRoomResponse(*room, domain.RoleAdmin)})
	c.attach(ctx, actorID, *room, domain.RoleAdmin)
	c.sendRooms(ctx, false)
}

// joinRoom joins by group id and makes the room the active one.
func (c *wsClient) joinRoom(ctx context.Context, groupID string) {
	actorID, err := c.actor()
	if err != nil {
		c.sendError(err)
		return
	}

	room, err := c.rooms.JoinRoom(ctx, actorID, groupID)
	if err != nil {
		c.sendProblem(joinProblem(err))
		return
	}
	c.send(FrameRoomJoined, RoomSelectedPayload{Room: toRoomResponse(*room, domain.RoleMember)})
	c.attach(ctx, actorID, *room, domain.RoleMember)
	c.sendRooms(ctx, false)
}

func (c *wsClient) refreshToken(ctx context.Context, token string) {
	current, err := c.state.Identity()
	if err != nil {
		c.sendError(domain.ErrUnauthorized)
		return
	}
	if err := c.oracle.refresh(ctx, current, token); err != nil {
		c.sendError(err)
	}
}
