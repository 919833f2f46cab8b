package api

import (
	"log"
	"slices"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/AtharvaShastrakar/orangeChat/core/authz"
	"github.com/AtharvaShastrakar/orangeChat/core/directory"
	"github.com/AtharvaShastrakar/orangeChat/core/session"
	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/domain/user"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	// Auth surfaces
	guest := Gate(m.authAdapter, SurfaceGuest)
	app.Get(PathLogin, guest, m.surface("login"))
	app.Get(PathSignup, guest, m.surface("signup"))
	app.Post(PathLogin, guest, m.login)
	app.Post(PathSignup, guest, m.signup)
	app.Get(PathVerifyEmail, m.verifyEmailSurface)
	app.Post("/auth/verify-email", m.verifyEmail)
	app.Post("/auth/refresh", m.refresh)
	app.Post("/logout", m.logout)

	// Chat surface
	app.Get(PathDashboard, Gate(m.authAdapter, SurfaceChat), m.dashboard)

	// WebSocket endpoint
	app.Use("/ws", m.wsUpgrade)
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := app.Group("/api/v1", RequireVerified(m.authAdapter))
	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Post("/rooms/join", m.joinRoom)
	api.Get("/rooms/:id/role", m.getRole)
	api.Get("/rooms/:id/messages", m.listMessages)
	api.Post("/rooms/:id/messages", m.sendMessage)
	api.Delete("/rooms/:id/messages/:messageID", m.deleteMessage)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{
		"module":            "api",
		"connected_clients": m.clientCount.Load(),
	}
	if m.hub != nil {
		details["subscriptions"] = m.hub.SubscriptionCount()
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

func (m *APIModule) surface(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(SurfaceResponse{Surface: name})
	}
}

// signup handles POST /signup.
func (m *APIModule) signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := m.authAdapter.Signup(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return writeError(c, err)
	}

	log.Printf("[api] Account created for %s, verification pending", resp.Email)

	return c.Status(fiber.StatusCreated).JSON(SignupResponse{
		ID:        resp.ID,
		Email:     resp.Email,
		FullName:  resp.FullName,
		CreatedAt: resp.CreatedAt,
		Next:      PathVerifyEmail,
	})
}

// login handles POST /login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	pair, err := m.authAdapter.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return m.respondWithTokens(c, pair)
}

// refresh handles POST /auth/refresh.
func (m *APIModule) refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	pair, err := m.authAdapter.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return m.respondWithTokens(c, pair)
}

// verifyEmail handles POST /auth/verify-email.
func (m *APIModule) verifyEmail(c *fiber.Ctx) error {
	var req VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Token == "" {
		return badRequest(c, "Verification token is required")
	}

	pair, err := m.authAdapter.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return writeError(c, err)
	}
	return m.respondWithTokens(c, pair)
}

// verifyEmailSurface handles GET /verify-email. A token in the query is the
// emailed link and is redeemed right away; otherwise the verify gate applies.
func (m *APIModule) verifyEmailSurface(c *fiber.Ctx) error {
	if token := c.Query("token"); token != "" {
		pair, err := m.authAdapter.VerifyEmail(c.UserContext(), token)
		if err != nil {
			return writeError(c, err)
		}
		setSessionCookie(c, pair.AccessToken, pair.ExpiresIn)
		return c.Redirect(PathDashboard, fiber.StatusSeeOther)
	}

	identity, err := resolveIdentity(c.UserContext(), m.authAdapter, requestToken(c))
	if err != nil {
		return writeError(c, err)
	}
	if to := RedirectFor(SurfaceVerify, session.StatusOf(identity)); to != "" {
		return c.Redirect(to, fiber.StatusSeeOther)
	}
	return c.JSON(SurfaceResponse{Surface: "verify-email", Email: identity.Email})
}

// logout handles POST /logout.
func (m *APIModule) logout(c *fiber.Ctx) error {
	c.ClearCookie(accessTokenCookie)
	return c.Redirect(PathLogin, fiber.StatusSeeOther)
}

// respondWithTokens sets the session cookie and tells the client where to
// go next based on the verified flag of the new access token.
func (m *APIModule) respondWithTokens(c *fiber.Ctx, pair *user.TokenPair) error {
	identity, err := resolveIdentity(c.UserContext(), m.authAdapter, pair.AccessToken)
	if err != nil {
		return writeError(c, err)
	}
	if identity == nil {
		return writeError(c, auth.ErrInvalidToken)
	}

	setSessionCookie(c, pair.AccessToken, pair.ExpiresIn)
	return c.JSON(TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    pair.TokenType,
		Next:         nextFor(identity),
	})
}

func nextFor(identity *session.Identity) string {
	if to := RedirectFor(SurfaceChat, session.StatusOf(identity)); to != "" {
		return to
	}
	return PathDashboard
}

// dashboard handles GET /dashboard.
func (m *APIModule) dashboard(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	entries, err := m.directory.ListMyRooms(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}

	resp := DashboardResponse{
		Email: identity.Email,
		Rooms: toRoomResponses(entries),
	}
	if sel, ok := directory.DefaultSelection(entries, c.Query("room")); ok {
		resp.Selection = &sel
	}
	return c.JSON(resp)
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	entries, err := m.directory.ListMyRooms(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(RoomListResponse{Rooms: toRoomResponses(entries)})
}

// createRoom handles POST /api/v1/rooms.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	room, err := m.rooms.CreateRoom(c.UserContext(), identity.UserID, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRoomResponse(*room, domain.RoleAdmin))
}

// joinRoom handles POST /api/v1/rooms/join.
func (m *APIModule) joinRoom(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	var req JoinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	room, err := m.rooms.JoinRoom(c.UserContext(), identity.UserID, req.GroupID)
	if err != nil {
		return writeProblem(c, joinProblem(err))
	}
	return c.JSON(toRoomResponse(*room, domain.RoleMember))
}

// getRole handles GET /api/v1/rooms/:id/role.
func (m *APIModule) getRole(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)
	roomID := c.Params("id")

	role, ok, err := m.roles.RoleOf(c.UserContext(), identity.UserID, roomID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(RoleResponse{
		RoomID: roomID,
		Role:   authz.DisplayRole(role, ok),
		Member: ok,
	})
}

// listMessages handles GET /api/v1/rooms/:id/messages.
func (m *APIModule) listMessages(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)
	roomID := c.Params("id")

	msgs, err := m.chatAdapter.ListMessages(c.UserContext(), identity.UserID, roomID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(HistoryResponse{
		RoomID:   roomID,
		Messages: toMessageResponses(msgs),
	})
}

// sendMessage handles POST /api/v1/rooms/:id/messages.
func (m *APIModule) sendMessage(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	content, err := domain.ValidateMessage(req.Content)
	if err != nil {
		return writeError(c, err)
	}

	msg, err := m.chatAdapter.InsertMessage(c.UserContext(), identity.UserID, c.Params("id"), content)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(MessageResponse{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Author:    identity.Email,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
}

// deleteMessage handles DELETE /api/v1/rooms/:id/messages/:messageID.
// The message must belong to the room of the path; storage checks that the
// caller is the author or an admin of the room.
func (m *APIModule) deleteMessage(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)
	roomID, messageID := c.Params("id"), c.Params("messageID")

	msgs, err := m.chatAdapter.ListMessages(c.UserContext(), identity.UserID, roomID)
	if err != nil {
		return writeError(c, err)
	}
	if !slices.ContainsFunc(msgs, func(msg domain.AuthoredMessage) bool { return msg.ID == messageID }) {
		return writeError(c, domain.ErrMessageNotFound)
	}

	if err := m.chatAdapter.DeleteMessage(c.UserContext(), identity.UserID, messageID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
