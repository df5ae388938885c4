package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestContext bounds each request's user context by timeout
func RequestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
