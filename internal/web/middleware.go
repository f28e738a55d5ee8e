package web

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LoggingMiddleware logs every request in a structured format, escalating
// the level with the response status.
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		attrs := []any{
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if memberID := MemberID(c); memberID != "" {
			attrs = append(attrs, slog.String("member_id", memberID))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		slog.Log(c.UserContext(), level, "HTTP request", attrs...)
		return err
	}
}

// AdminRequired guards the admin surface with a static bearer token. An
// empty configured token rejects everything.
func AdminRequired(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return fiber.NewError(fiber.StatusForbidden, "admin API is disabled")
		}

		header := c.Get(fiber.HeaderAuthorization)
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || presented != token {
			slog.Warn("Rejected admin request",
				slog.String("path", c.Path()),
				slog.String("ip", c.IP()))
			return fiber.NewError(fiber.StatusUnauthorized, "invalid admin token")
		}
		return c.Next()
	}
}

// ErrorHandler renders uncaught errors as the standard JSON error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"code":    errorCodeForStatus(code),
		"message": message,
	})
}

func errorCodeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}

// MemberID identifies the requesting member. There is no account system on
// this surface; the gateway in front of it injects the header.
func MemberID(c *fiber.Ctx) string {
	if id := c.Get("X-Member-ID"); id != "" {
		return id
	}
	return c.Query("memberId")
}
