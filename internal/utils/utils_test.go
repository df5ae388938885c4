package utils

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingService(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx := context.Background()
	assert.NoError(t, PingService(ctx, "http://"+ln.Addr().String(), time.Second))
	assert.NoError(t, PingAuthorizer(ctx, "http://"+ln.Addr().String()))

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	assert.Error(t, PingService(ctx, "http://"+addr, 200*time.Millisecond))

	assert.ErrorContains(t, PingService(ctx, "not a url", time.Second), "no host")
	assert.Error(t, PingService(ctx, "http://%zz", time.Second))
}

func TestErrorResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return ErrorResponse(c, "drift", fiber.StatusConflict, "conflict")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom?x=1", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var body ErrorResponseStruct
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Ok)
	assert.Equal(t, "drift", body.Message)
	assert.Equal(t, "conflict", body.Type)
	assert.Equal(t, "/boom?x=1", body.URL)
}

func TestPartialFailureResponse(t *testing.T) {
	app := fiber.New()
	app.Delete("/users", func(c *fiber.Ctx) error {
		return PartialFailureResponse(c, "1 id(s) failed", []string{"u2"})
	})

	resp, err := app.Test(httptest.NewRequest("DELETE", "/users", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)

	var body ErrorResponseStruct
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "partial", body.Type)
	assert.Equal(t, []string{"u2"}, body.FailedIDs)
}
