package api

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/AtharvaShastrakar/orangeChat/core/session"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

// IdentityKey is the key used to store the caller's identity in the Fiber context.
const IdentityKey = "identity"

// RequireVerified validates the bearer token and rejects accounts whose
// email is not verified yet.
func RequireVerified(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		identity, err := resolveIdentity(c.UserContext(), authPort, token)
		if err != nil {
			return writeError(c, err)
		}
		if identity == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}
		if !identity.Verified {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Error:   "email_not_verified",
				Message: "Verify your email address first",
			})
		}

		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

// identityFrom returns the identity stored by RequireVerified or Gate.
func identityFrom(c *fiber.Ctx) (*session.Identity, bool) {
	identity, ok := c.Locals(IdentityKey).(*session.Identity)
	return identity, ok && identity != nil
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// upgrades are logged by the socket handler
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
