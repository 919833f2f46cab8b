package api

import (
	"net/http"
	"strings"
	"testing"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/domain/user"
)

func TestRoutingGates(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name         string
		method       string
		path         string
		token        string
		body         any
		wantStatus   int
		wantLocation string
	}{
		{"dashboard without session", http.MethodGet, PathDashboard, "", nil, http.StatusSeeOther, PathLogin},
		{"dashboard with bad token", http.MethodGet, PathDashboard, "garbage", nil, http.StatusSeeOther, PathLogin},
		{"dashboard unverified", http.MethodGet, PathDashboard, "tok-w", nil, http.StatusSeeOther, PathVerifyEmail},
		{"dashboard verified", http.MethodGet, PathDashboard, "tok-u", nil, http.StatusOK, ""},
		{"login surface anonymous", http.MethodGet, PathLogin, "", nil, http.StatusOK, ""},
		{"login surface signed in", http.MethodGet, PathLogin, "tok-u", nil, http.StatusSeeOther, PathDashboard},
		{"signup surface unverified", http.MethodGet, PathSignup, "tok-w", nil, http.StatusSeeOther, PathDashboard},
		{"signup post signed in", http.MethodPost, PathSignup, "tok-u", SignupRequest{Email: "x@example.com", Password: "password123"}, http.StatusSeeOther, PathDashboard},
		{"verify surface anonymous", http.MethodGet, PathVerifyEmail, "", nil, http.StatusSeeOther, PathLogin},
		{"verify surface verified", http.MethodGet, PathVerifyEmail, "tok-u", nil, http.StatusSeeOther, PathDashboard},
		{"verify surface unverified", http.MethodGet, PathVerifyEmail, "tok-w", nil, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.token, tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestRequireVerified(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthorized"},
		{"basic auth", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "unauthorized"},
		{"unverified", "Bearer tok-w", http.StatusForbidden, "email_not_verified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, http.MethodGet, "/api/v1/rooms", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := env.module.app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body ErrorResponse
			decodeBody(t, resp, &body)
			if body.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}

	resp := env.do(t, http.MethodGet, "/api/v1/rooms", "tok-u", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verified status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var rooms RoomListResponse
	decodeBody(t, resp, &rooms)
	if rooms.Rooms == nil || len(rooms.Rooms) != 0 {
		t.Errorf("Rooms = %v, want empty list", rooms.Rooms)
	}
}

func TestRoomFlow(t *testing.T) {
	env := newTestEnv(t)

	// U creates Alpha.
	resp := env.do(t, http.MethodPost, "/api/v1/rooms", "tok-u", CreateRoomRequest{Name: "  Alpha "})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var alpha RoomResponse
	decodeBody(t, resp, &alpha)
	if alpha.Name != "Alpha" || alpha.Role != domain.RoleAdmin || alpha.GroupID == "" {
		t.Fatalf("created room = %+v", alpha)
	}

	// V joins by group id, twice.
	resp = env.do(t, http.MethodPost, "/api/v1/rooms/join", "tok-v", JoinRoomRequest{GroupID: " " + alpha.GroupID + " "})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var joined RoomResponse
	decodeBody(t, resp, &joined)
	if joined.ID != alpha.ID || joined.Role != domain.RoleMember {
		t.Errorf("joined room = %+v", joined)
	}
	if joined.GroupID != "" {
		t.Errorf("member sees group id %q", joined.GroupID)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/rooms/join", "tok-v", JoinRoomRequest{GroupID: alpha.GroupID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second join status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	var joinErr ErrorResponse
	decodeBody(t, resp, &joinErr)
	if joinErr.Message != joinFailedMessage {
		t.Errorf("join error message = %q, want %q", joinErr.Message, joinFailedMessage)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/rooms/join", "tok-v", JoinRoomRequest{GroupID: "doesnotexist"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown group status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()

	// Roles.
	roleTests := []struct {
		token      string
		wantRole   domain.Role
		wantMember bool
	}{
		{"tok-u", domain.RoleAdmin, true},
		{"tok-v", domain.RoleMember, true},
	}
	for _, tt := range roleTests {
		resp = env.do(t, http.MethodGet, "/api/v1/rooms/"+alpha.ID+"/role", tt.token, nil)
		var role RoleResponse
		decodeBody(t, resp, &role)
		if role.Role != tt.wantRole || role.Member != tt.wantMember {
			t.Errorf("role for %s = %+v, want %s member=%v", tt.token, role, tt.wantRole, tt.wantMember)
		}
	}

	// U says hi.
	resp = env.do(t, http.MethodPost, "/api/v1/rooms/"+alpha.ID+"/messages", "tok-u", SendMessageRequest{Content: "hi"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var sent MessageResponse
	decodeBody(t, resp, &sent)

	resp = env.do(t, http.MethodGet, "/api/v1/rooms/"+alpha.ID+"/messages", "tok-v", nil)
	var history HistoryResponse
	decodeBody(t, resp, &history)
	if len(history.Messages) != 1 || history.Messages[0].Author != "Una" || history.Messages[0].Content != "hi" {
		t.Fatalf("history = %+v", history.Messages)
	}

	// A message cannot be deleted through another room's path.
	resp = env.do(t, http.MethodPost, "/api/v1/rooms", "tok-u", CreateRoomRequest{Name: "Beta"})
	var beta RoomResponse
	decodeBody(t, resp, &beta)
	resp = env.do(t, http.MethodDelete, "/api/v1/rooms/"+beta.ID+"/messages/"+sent.ID, "tok-u", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-room delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
	resp = env.do(t, http.MethodGet, "/api/v1/rooms/"+alpha.ID+"/messages", "tok-u", nil)
	decodeBody(t, resp, &history)
	if len(history.Messages) != 1 {
		t.Fatalf("history after cross-room delete = %+v, want the message kept", history.Messages)
	}

	// V may not delete U's message.
	resp = env.do(t, http.MethodDelete, "/api/v1/rooms/"+alpha.ID+"/messages/"+sent.ID, "tok-v", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member delete status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, "/api/v1/rooms/"+alpha.ID+"/messages/"+sent.ID, "tok-u", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("author delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/rooms/"+alpha.ID+"/messages", "tok-u", nil)
	decodeBody(t, resp, &history)
	if len(history.Messages) != 0 {
		t.Errorf("history after delete = %+v, want empty", history.Messages)
	}

	// The dashboard selects Alpha with U's role.
	resp = env.do(t, http.MethodGet, PathDashboard, "tok-u", nil)
	var dash DashboardResponse
	decodeBody(t, resp, &dash)
	if dash.Selection == nil || dash.Selection.RoomID != alpha.ID || dash.Selection.Role != domain.RoleAdmin {
		t.Errorf("dashboard selection = %+v", dash.Selection)
	}
}

func TestRoomValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/rooms", "tok-u", CreateRoomRequest{Name: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/rooms/nope/messages", "tok-u", SendMessageRequest{Content: " \n "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank message status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/rooms/nope/messages", "tok-u", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non member read status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	resp.Body.Close()
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.auth.pairs["w@example.com"] = &user.TokenPair{AccessToken: "tok-w", RefreshToken: "ref-w", ExpiresIn: 900, TokenType: "Bearer"}
	env.auth.pairs["u@example.com"] = &user.TokenPair{AccessToken: "tok-u", RefreshToken: "ref-u", ExpiresIn: 900, TokenType: "Bearer"}

	tests := []struct {
		name       string
		email      string
		wantStatus int
		wantNext   string
	}{
		{"unverified goes to verify", "w@example.com", http.StatusOK, PathVerifyEmail},
		{"verified goes to dashboard", "u@example.com", http.StatusOK, PathDashboard},
		{"bad credentials", "x@example.com", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, PathLogin, "", LoginRequest{Email: tt.email, Password: "password123"})
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				resp.Body.Close()
				return
			}
			if cookie := resp.Header.Get("Set-Cookie"); !strings.Contains(cookie, accessTokenCookie+"=") {
				t.Errorf("Set-Cookie = %q, want session cookie", cookie)
			}
			var body TokenResponse
			decodeBody(t, resp, &body)
			if body.Next != tt.wantNext {
				t.Errorf("Next = %q, want %q", body.Next, tt.wantNext)
			}
		})
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, PathSignup, "", SignupRequest{Email: "new@example.com", Password: "password123", FullName: "New"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["next"] != PathVerifyEmail {
		t.Errorf("signup response = %+v", body)
	}
	if _, leaked := body["verification_token"]; leaked {
		t.Error("signup response must not carry the verification token")
	}

	resp = env.do(t, http.MethodPost, PathSignup, "", SignupRequest{Email: "new@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing password status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()
}

func TestVerifyEmailLink(t *testing.T) {
	env := newTestEnv(t)
	env.auth.pairs["verify-w"] = &user.TokenPair{AccessToken: "tok-u", RefreshToken: "ref", ExpiresIn: 900}

	resp := env.do(t, http.MethodGet, PathVerifyEmail+"?token=verify-w", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	if got := resp.Header.Get("Location"); got != PathDashboard {
		t.Errorf("Location = %q, want %q", got, PathDashboard)
	}

	bad := env.do(t, http.MethodPost, "/auth/verify-email", "", VerifyEmailRequest{Token: "nope"})
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want %d", bad.StatusCode, http.StatusUnauthorized)
	}
}

func TestRoomList_GroupIDForAdminsOnly(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/rooms", "tok-u", CreateRoomRequest{Name: "Alpha"})
	var alpha RoomResponse
	decodeBody(t, resp, &alpha)
	resp = env.do(t, http.MethodPost, "/api/v1/rooms/join", "tok-v", JoinRoomRequest{GroupID: alpha.GroupID})
	resp.Body.Close()

	tests := []struct {
		token   string
		wantGID string
	}{
		{"tok-u", alpha.GroupID},
		{"tok-v", ""},
	}
	for _, tt := range tests {
		resp = env.do(t, http.MethodGet, "/api/v1/rooms", tt.token, nil)
		var list map[string][]map[string]any
		decodeBody(t, resp, &list)
		if len(list["rooms"]) != 1 {
			t.Fatalf("rooms for %s = %v", tt.token, list["rooms"])
		}
		gid, _ := list["rooms"][0]["group_id"].(string)
		if gid != tt.wantGID {
			t.Errorf("group_id for %s = %q, want %q", tt.token, gid, tt.wantGID)
		}
	}
}
