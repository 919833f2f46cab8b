package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/domain/user"
	"github.com/AtharvaShastrakar/orangeChat/events"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
	"github.com/AtharvaShastrakar/orangeChat/modules/broadcast"
	"github.com/AtharvaShastrakar/orangeChat/modules/chat"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// hubPublisher forwards message events straight to the push hub.
type hubPublisher struct {
	hub *broadcast.Hub
}

func (p hubPublisher) PublishMessageCreated(e events.MessageCreatedEvent) error {
	p.hub.Publish(e.RoomID, broadcast.CreatedEvent(e))
	return nil
}

func (p hubPublisher) PublishMessageDeleted(e events.MessageDeletedEvent) error {
	p.hub.Publish(e.RoomID, broadcast.DeletedEvent(e))
	return nil
}

func (p hubPublisher) PublishRoomCreated(events.RoomCreatedEvent) error  { return nil }
func (p hubPublisher) PublishMemberJoined(events.MemberJoinedEvent) error { return nil }

// fakeAuth implements auth.AuthPort with a fixed token table.
type fakeAuth struct {
	mu      sync.Mutex
	tokens  map[string]*user.Claims
	pairs   map[string]*user.TokenPair // keyed by email or refresh token
	signup  *auth.SignupResponse
	failAll error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		tokens: make(map[string]*user.Claims),
		pairs:  make(map[string]*user.TokenPair),
	}
}

func (f *fakeAuth) addToken(token, userID, email string, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = &user.Claims{UserID: userID, Email: email, Verified: verified}
}

// addExpiringToken registers a verified token that lapses at expiresAt.
func (f *fakeAuth) addExpiringToken(token, userID, email string, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = &user.Claims{UserID: userID, Email: email, Verified: true, ExpiresAt: expiresAt}
}

func (f *fakeAuth) Signup(_ context.Context, email, _, fullName string) (*auth.SignupResponse, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	if f.signup != nil {
		return f.signup, nil
	}
	return &auth.SignupResponse{ID: "new", Email: email, FullName: fullName}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, _ string) (*user.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pair, ok := f.pairs[email]; ok {
		return pair, nil
	}
	return nil, auth.ErrInvalidCredentials
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (*user.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pair, ok := f.pairs[refreshToken]; ok {
		return pair, nil
	}
	return nil, auth.ErrInvalidToken
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*user.Claims, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	c := *claims
	return &c, nil
}

func (f *fakeAuth) VerifyEmail(_ context.Context, token string) (*user.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pair, ok := f.pairs[token]; ok {
		return pair, nil
	}
	return nil, auth.ErrInvalidToken
}

type testEnv struct {
	module *APIModule
	chat   *chat.Service
	auth   *fakeAuth
	hub    *broadcast.Hub
}

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := chat.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// newTestEnv wires the API module to a real chat service, a running hub
// and a fake session oracle. Users u and v are verified, w is not.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hub := broadcast.NewHub(0)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	svc := chat.NewService(chat.NewRepository(setupTestDB(t)), nil, hubPublisher{hub: hub}, &mockLogger{})
	for _, p := range []domain.Profile{
		{ID: "u", Email: "u@example.com", FullName: "Una"},
		{ID: "v", Email: "v@example.com"},
		{ID: "w", Email: "w@example.com"},
	} {
		p := p
		if err := svc.UpsertProfile(context.Background(), &p); err != nil {
			t.Fatalf("UpsertProfile() error = %v", err)
		}
	}

	fa := newFakeAuth()
	fa.addToken("tok-u", "u", "u@example.com", true)
	fa.addToken("tok-v", "v", "v@example.com", true)
	fa.addToken("tok-w", "w", "w@example.com", false)

	m := NewModule("0", "")
	m.chatAdapter = svc
	m.authAdapter = fa
	m.hub = hub
	m.init()
	m.app = m.newApp()
	t.Cleanup(m.cancelClients)

	return &testEnv{module: m, chat: svc, auth: fa, hub: hub}
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// do sends a request with an optional bearer token and JSON body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	req := newRequest(t, method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.module.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestNewModule_Defaults(t *testing.T) {
	m := NewModule("", "")
	if m.port != "3000" {
		t.Errorf("port = %q, want %q", m.port, "3000")
	}
	if m.corsOrigins == "" {
		t.Error("corsOrigins should have a default")
	}
	if got := m.Dependencies(); len(got) != 2 || got[0] != "auth" || got[1] != "chat" {
		t.Errorf("Dependencies() = %v", got)
	}
}

func TestStart_RequiresDependencies(t *testing.T) {
	m := NewModule("0", "")
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail without dependencies")
	}
	m.authAdapter = newFakeAuth()
	if err := m.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "chat") {
		t.Fatalf("Start() error = %v, want chat dependency error", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body HealthResponse
	decodeBody(t, resp, &body)
	if body.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", body.Status)
	}
}
