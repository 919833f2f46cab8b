package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/AtharvaShastrakar/orangeChat/core/session"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

// Surface paths.
const (
	PathLogin       = "/login"
	PathSignup      = "/signup"
	PathVerifyEmail = "/verify-email"
	PathDashboard   = "/dashboard"
)

// accessTokenCookie carries the access token for browser surfaces.
const accessTokenCookie = "access_token"

// Surface is a class of pages with the same routing rule.
type Surface int

const (
	// SurfaceChat requires a verified identity.
	SurfaceChat Surface = iota
	// SurfaceGuest is only for visitors without a session.
	SurfaceGuest
	// SurfaceVerify is for signed in accounts that are not verified yet.
	SurfaceVerify
)

// RedirectFor returns where a visitor with status must go instead of
// surface, or "" when it may stay.
func RedirectFor(surface Surface, status session.Status) string {
	switch surface {
	case SurfaceChat:
		switch status {
		case session.StatusAnonymous:
			return PathLogin
		case session.StatusUnverified:
			return PathVerifyEmail
		}
	case SurfaceGuest:
		if status != session.StatusAnonymous {
			return PathDashboard
		}
	case SurfaceVerify:
		switch status {
		case session.StatusAnonymous:
			return PathLogin
		case session.StatusVerified:
			return PathDashboard
		}
	}
	return ""
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// requestToken prefers the Authorization header over the cookie.
func requestToken(c *fiber.Ctx) string {
	if token, ok := bearerToken(c); ok {
		return token
	}
	return c.Cookies(accessTokenCookie)
}

// resolveIdentity validates token. An empty or rejected token is anonymous;
// only transport failures are returned as errors.
func resolveIdentity(ctx context.Context, authPort auth.AuthPort, token string) (*session.Identity, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := authPort.ValidateToken(ctx, token)
	if err != nil {
		if auth.IsClientError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &session.Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Verified:  claims.Verified,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Gate redirects requests that do not belong on surface with 303 See Other.
// The resolved identity, if any, is stored under IdentityKey.
func Gate(authPort auth.AuthPort, surface Surface) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := resolveIdentity(c.UserContext(), authPort, requestToken(c))
		if err != nil {
			return writeError(c, err)
		}
		if to := RedirectFor(surface, session.StatusOf(identity)); to != "" {
			return c.Redirect(to, fiber.StatusSeeOther)
		}
		if identity != nil {
			c.Locals(IdentityKey, identity)
		}
		return c.Next()
	}
}

func setSessionCookie(c *fiber.Ctx, accessToken string, expiresIn int64) {
	c.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(expiresIn),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
