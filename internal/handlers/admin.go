package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/middleware"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
)

// AdminHandler handles admin user-management routes
type AdminHandler struct {
	Svc *services.Service
}

// UpdateUsersRequest is the updateUsersAccounts body. Users accepts a single
// id or a list; only the fields present are changed.
type UpdateUsersRequest struct {
	Users    types.FlexList[string] `json:"users" swaggertype:"array,string"`
	UserType *string                `json:"userType,omitempty"`
	Status   *string                `json:"status,omitempty"`
	Username *string                `json:"username,omitempty"`
}

// DeleteUsersRequest is the admin delete body
type DeleteUsersRequest struct {
	Users types.FlexList[string] `json:"users" swaggertype:"array,string"`
}

// UpdateUsersAccounts handles PATCH /api/admin/updateUsersAccounts
// @Summary Update user accounts
// @Description Set role, status or username on every listed user. Responds 207 with failedIds when some users could not be updated.
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body UpdateUsersRequest true "Users and fields"
// @Success 200 {object} utils.MessageResponseStruct
// @Success 207 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/updateUsersAccounts [patch]
func (h *AdminHandler) UpdateUsersAccounts(c *fiber.Ctx) error {
	var req UpdateUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid users body: "+err.Error())
	}
	users := cleanList(req.Users.Slice())
	if len(users) == 0 {
		return validationError(c, "At least one user is required")
	}

	fields := store.UserFields{Role: req.UserType, Status: req.Status}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if !lengthBetween(username, 3, 25) {
			return validationError(c, "Username must be 3 to 25 characters")
		}
		fields.Username = &username
	}
	if fields.Empty() {
		return validationError(c, "No account property to update")
	}

	if err := h.Svc.BulkUpdateUsers(c.UserContext(), middleware.ActorID(c), users, fields); err != nil {
		return respondError(c, "bulkUpdateUsers", err)
	}
	return utils.MessageResponse(c, "Users updated successfully", fiber.StatusOK)
}

// DeleteUsers handles DELETE /api/admin/delete
// @Summary Delete users
// @Description Delete every listed user with their collections, items and likes. Responds 207 with failedIds when some users could not be deleted.
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body DeleteUsersRequest true "Users"
// @Success 200 {object} utils.MessageResponseStruct
// @Success 207 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/delete [delete]
func (h *AdminHandler) DeleteUsers(c *fiber.Ctx) error {
	var req DeleteUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid users body: "+err.Error())
	}
	users := cleanList(req.Users.Slice())
	if len(users) == 0 {
		return validationError(c, "At least one user is required")
	}

	if err := h.Svc.DeleteUsers(c.UserContext(), middleware.ActorID(c), users); err != nil {
		return respondError(c, "deleteUsers", err)
	}
	return utils.MessageResponse(c, "Users deleted successfully", fiber.StatusOK)
}

// ListUsers handles POST /api/admin/users
// @Summary List users
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string][]models.User
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/users [post]
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Svc.ListUsers(c.UserContext(), middleware.ActorID(c))
	if err != nil {
		return respondError(c, "listUsers", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"users": users}, fiber.StatusOK)
}
