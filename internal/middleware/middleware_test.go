package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	user  *services.SessionUser
	roles []string
}

func (s *stubSessions) ValidateSession(cookie string, roles []string, _, _ string) (*services.SessionUser, error) {
	s.roles = roles
	if cookie != "good" {
		return nil, errors.New("session is not valid")
	}
	return s.user, nil
}

type stubUsers struct {
	err error
}

func (s *stubUsers) Provision(_ context.Context, su *services.SessionUser) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: su.ID, Username: su.DisplayName()}, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	var ce *types.CustomError
	if errors.As(err, &ce) {
		return c.Status(ce.Code).SendString(ce.Type)
	}
	return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
}

func newApp(auth *Auth) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(VersionMiddleware())
	app.Get("/me", auth.AuthUser(), func(c *fiber.Ctx) error {
		return c.SendString(ActorID(c))
	})
	app.Get("/admin", auth.AuthAdmin(), func(c *fiber.Ctx) error {
		return c.SendString(ActorID(c))
	})
	return app
}

func do(t *testing.T, app *fiber.App, path, cookie string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if cookie != "" {
		req.Header.Set("Cookie", "cookie_session="+cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthUser(t *testing.T) {
	sessions := &stubSessions{user: &services.SessionUser{ID: "u1", Email: "dana@example.com"}}
	app := newApp(&Auth{Sessions: sessions, Users: &stubUsers{}})

	status, body := do(t, app, "/me", "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "data.authorization.user", body)

	status, _ = do(t, app, "/me", "bad", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = do(t, app, "/me", "good", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body)
	assert.Equal(t, []string{models.RoleUser}, sessions.roles)

	status, body = do(t, app, "/admin", "good", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body)
	assert.Equal(t, []string{models.RoleAdmin}, sessions.roles)
}

func TestAuthProvisionFailure(t *testing.T) {
	sessions := &stubSessions{user: &services.SessionUser{ID: "u1"}}
	app := newApp(&Auth{Sessions: sessions, Users: &stubUsers{err: errors.New("db down")}})

	status, _ := do(t, app, "/me", "good", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestAuthDeletedUser(t *testing.T) {
	sessions := &stubSessions{user: &services.SessionUser{ID: "u1"}}
	gone := types.NotFound("provision", "user u1 was deleted")
	app := newApp(&Auth{Sessions: sessions, Users: &stubUsers{err: gone}})

	status, body := do(t, app, "/me", "good", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "data.authorization.user", body)
}

func TestVersionMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(VersionMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("apiVersion").(string))
	})

	for header, want := range map[string]string{"": APIVersion, "1.0": APIVersion, "v1": APIVersion, "1.2.0": "1.2.0"} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("X-Api-Version", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, want, string(body), header)
		assert.Equal(t, want, resp.Header.Get("X-Api-Version"))
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Api-Version", "2.0.0")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRequestContext(t *testing.T) {
	app := fiber.New()
	app.Use(RequestContext(time.Minute))
	app.Get("/", func(c *fiber.Ctx) error {
		deadline, ok := c.UserContext().Deadline()
		if !ok {
			return c.SendString("none")
		}
		return c.SendString(time.Until(deadline).Round(time.Minute).String())
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "1m0s", string(body))
}
