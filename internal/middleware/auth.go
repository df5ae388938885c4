package middleware

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

const actorKey = "actorId"

// Provisioner maps a session identity onto a local user
type Provisioner interface {
	Provision(ctx context.Context, su *services.SessionUser) (*models.User, error)
}

// Auth validates the Authorizer session cookie, provisions the local user
// and stores its id for the handlers.
type Auth struct {
	Sessions services.SessionValidator
	Users    Provisioner
}

// AuthAdmin validates that the request has admin role authorization
func (a *Auth) AuthAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return a.authorize(c, []string{models.RoleAdmin}, "data.authorization.admin")
	}
}

// AuthUser validates that the request has user role authorization
func (a *Auth) AuthUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return a.authorize(c, []string{models.RoleUser}, "data.authorization.user")
	}
}

// authorize performs the authorization check
func (a *Auth) authorize(c *fiber.Ctx, roles []string, errorType string) error {
	// Get session cookie
	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	su, err := a.Sessions.ValidateSession(session, roles, c.Protocol(), c.Hostname())
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	user, err := a.Users.Provision(c.UserContext(), su)
	if types.Is(err, types.KindNotFound) {
		return &types.CustomError{
			Code:    fiber.StatusNotFound,
			Message: fmt.Sprintf("No user for session: %v", err),
			Type:    errorType,
		}
	}
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusInternalServerError,
			Message: fmt.Sprintf("Could not load user for session: %v", err),
			Type:    errorType,
		}
	}

	SetActor(c, user.ID)
	return c.Next()
}

// SetActor records the authenticated user id on the request
func SetActor(c *fiber.Ctx, userID string) {
	c.Locals(actorKey, userID)
}

// ActorID returns the authenticated user id, empty when unauthenticated
func ActorID(c *fiber.Ctx) string {
	id, _ := c.Locals(actorKey).(string)
	return id
}
