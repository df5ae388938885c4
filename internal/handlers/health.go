package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports service health
type HealthHandler struct {
	Cfg    *config.Config
	DB     *gorm.DB
	Probes []services.Probe
}

// Health handles GET /health
// @Summary Service health
// @Description Check the database, the Authorizer and the blob and search stores
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(c.UserContext(), h.Cfg, h.DB, h.Probes...)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
