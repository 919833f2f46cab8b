package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/chat"
	"github.com/AtharvaShastrakar/orangeChat/middleware/ratelimit"
	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

// joinFailedMessage is shown for every join rejection the user can fix.
const joinFailedMessage = "Invalid group ID or already a member"

// problem is the client facing form of an error.
type problem struct {
	status    int
	code      string
	message   string
	retryable bool
}

// classifyError maps an error from the auth or chat collaborators to a
// status code and a safe message.
func classifyError(err error) problem {
	switch {
	case ratelimit.IsRateLimited(err):
		return problem{fiber.StatusTooManyRequests, "rate_limited", "Too many requests, please slow down", true}

	case errors.Is(err, auth.ErrInvalidCredentials):
		return problem{fiber.StatusUnauthorized, "unauthorized", "Invalid email or password", false}
	case errors.Is(err, auth.ErrExpiredToken), errors.Is(err, auth.ErrInvalidToken):
		return problem{fiber.StatusUnauthorized, "unauthorized", "Invalid or expired token", false}
	case errors.Is(err, auth.ErrUserExists):
		return problem{fiber.StatusConflict, "conflict", "User with this email already exists", false}
	case auth.IsClientError(err):
		return problem{fiber.StatusBadRequest, "bad_request", err.Error(), false}

	case errors.Is(err, domain.ErrRoomCreateFailed), errors.Is(err, domain.ErrRoomOrphaned):
		return problem{fiber.StatusServiceUnavailable, "room_create_failed", "Room could not be created, please try again", true}
	case errors.Is(err, domain.ErrValidation):
		return problem{fiber.StatusBadRequest, "validation_error", validationMessage(err), false}
	case errors.Is(err, domain.ErrUnauthorized):
		return problem{fiber.StatusForbidden, "forbidden", "You are not allowed to do that", false}
	case errors.Is(err, domain.ErrNotFound):
		return problem{fiber.StatusNotFound, "not_found", notFoundMessage(err), false}
	case errors.Is(err, domain.ErrAlreadyMember):
		return problem{fiber.StatusConflict, "already_member", "You are already a member of this room", false}
	case errors.Is(err, domain.ErrTransport):
		return problem{fiber.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable", true}
	}

	log.Printf("[api] Internal error: %v", err)
	return problem{fiber.StatusInternalServerError, "internal_error", "An internal error occurred", false}
}

// joinProblem collapses the user fixable join failures into one message.
func joinProblem(err error) problem {
	p := classifyError(err)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyMember) || errors.Is(err, domain.ErrValidation) {
		p.message = joinFailedMessage
	}
	return p
}

func validationMessage(err error) string {
	if sentinel := domain.Classify(err); sentinel != nil && sentinel != domain.ErrValidation {
		return sentinel.Error()
	}
	return "Invalid request"
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, domain.ErrMessageNotFound):
		return "Message not found"
	default:
		return "Not found"
	}
}

func (p problem) response() ErrorResponse {
	return ErrorResponse{Error: p.code, Message: p.message, Retryable: p.retryable}
}

func writeProblem(c *fiber.Ctx, p problem) error {
	return c.Status(p.status).JSON(p.response())
}

func writeError(c *fiber.Ctx, err error) error {
	return writeProblem(c, classifyError(err))
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
