package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/AtharvaShastrakar/orangeChat/core/session"
	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantRetryable bool
	}{
		{"rate limited", errors.New("rate limit exceeded for service insert-message"), http.StatusTooManyRequests, "rate_limited", true},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", false},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "unauthorized", false},
		{"email taken", auth.ErrUserExists, http.StatusConflict, "conflict", false},
		{"weak password", auth.ErrWeakPassword, http.StatusBadRequest, "bad_request", false},
		{"room create failed", fmt.Errorf("%w: %w", domain.ErrRoomCreateFailed, domain.ErrTransport), http.StatusServiceUnavailable, "room_create_failed", true},
		{"room orphaned", domain.ErrRoomOrphaned, http.StatusServiceUnavailable, "room_create_failed", true},
		{"validation", domain.ErrRoomNameEmpty, http.StatusBadRequest, "validation_error", false},
		{"unauthorized", domain.ErrUnauthorized, http.StatusForbidden, "forbidden", false},
		{"room not found", domain.ErrRoomNotFound, http.StatusNotFound, "not_found", false},
		{"already member", domain.ErrAlreadyMember, http.StatusConflict, "already_member", false},
		{"transport", fmt.Errorf("%w: list-rooms: timeout", domain.ErrTransport), http.StatusServiceUnavailable, "unavailable", true},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if got.status != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.status, tt.wantStatus)
			}
			if got.code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.code, tt.wantCode)
			}
			if got.retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", got.retryable, tt.wantRetryable)
			}
		})
	}
}

func TestJoinProblem(t *testing.T) {
	for _, err := range []error{domain.ErrRoomNotFound, domain.ErrAlreadyMember, domain.ErrGroupIDInvalid} {
		if got := joinProblem(err).message; got != joinFailedMessage {
			t.Errorf("joinProblem(%v).message = %q, want %q", err, got, joinFailedMessage)
		}
	}
	if got := joinProblem(domain.ErrTransport); got.message == joinFailedMessage || !got.retryable {
		t.Errorf("joinProblem(transport) = %+v, want a retryable transport problem", got)
	}
}

func TestRedirectFor(t *testing.T) {
	tests := []struct {
		surface Surface
		status  session.Status
		want    string
	}{
		{SurfaceChat, session.StatusAnonymous, PathLogin},
		{SurfaceChat, session.StatusUnverified, PathVerifyEmail},
		{SurfaceChat, session.StatusVerified, ""},
		{SurfaceGuest, session.StatusAnonymous, ""},
		{SurfaceGuest, session.StatusUnverified, PathDashboard},
		{SurfaceGuest, session.StatusVerified, PathDashboard},
		{SurfaceVerify, session.StatusAnonymous, PathLogin},
		{SurfaceVerify, session.StatusUnverified, ""},
		{SurfaceVerify, session.StatusVerified, PathDashboard},
	}

	for _, tt := range tests {
		if got := RedirectFor(tt.surface, tt.status); got != tt.want {
			t.Errorf("RedirectFor(%d, %s) = %q, want %q", tt.surface, tt.status, got, tt.want)
		}
	}
}
