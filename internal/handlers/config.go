package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/middleware"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
)

// ConfigHandler handles topic and tag routes
type ConfigHandler struct {
	Svc *services.Service
}

// TopicRequest is the createtopic body
type TopicRequest struct {
	Topic string `json:"topic"`
}

// TagRequest is the createtag body
type TagRequest struct {
	Tag string `json:"tag"`
}

// CreateTopic handles POST /api/config/createtopic
// @Summary Create a topic
// @Tags Config
// @Accept json
// @Produce json
// @Param body body TopicRequest true "Topic"
// @Success 201 {object} map[string]models.Topic
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /config/createtopic [post]
func (h *ConfigHandler) CreateTopic(c *fiber.Ctx) error {
	var req TopicRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid topic body: "+err.Error())
	}
	if !lengthBetween(req.Topic, 1, 255) {
		return validationError(c, "Topic must be 1 to 255 characters")
	}

	topic, err := h.Svc.CreateTopic(c.UserContext(), middleware.ActorID(c), strings.TrimSpace(req.Topic))
	if err != nil {
		return respondError(c, "createTopic", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"topic": topic}, fiber.StatusCreated)
}

// CreateTag handles POST /api/config/createtag
// @Summary Create a tag
// @Tags Config
// @Accept json
// @Produce json
// @Param body body TagRequest true "Tag"
// @Success 201 {object} map[string]models.Tag
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /config/createtag [post]
func (h *ConfigHandler) CreateTag(c *fiber.Ctx) error {
	var req TagRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid tag body: "+err.Error())
	}
	if !lengthBetween(req.Tag, 1, 255) {
		return validationError(c, "Tag must be 1 to 255 characters")
	}

	tag, err := h.Svc.CreateTag(c.UserContext(), middleware.ActorID(c), strings.TrimSpace(req.Tag))
	if err != nil {
		return respondError(c, "createTag", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"tag": tag}, fiber.StatusCreated)
}

// GetTopics handles GET /api/config/topics
// @Summary List topics
// @Tags Config
// @Produce json
// @Success 200 {object} map[string][]models.Topic
// @Router /config/topics [get]
func (h *ConfigHandler) GetTopics(c *fiber.Ctx) error {
	topics, err := h.Svc.Topics(c.UserContext())
	if err != nil {
		return respondError(c, "getTopics", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"topics": topics}, fiber.StatusOK)
}

// GetTags handles GET /api/config/tags/:query
// @Summary Search tags
// @Tags Config
// @Produce json
// @Param query path string true "Substring of the tag title"
// @Success 200 {object} map[string][]models.Tag
// @Router /config/tags/{query} [get]
func (h *ConfigHandler) GetTags(c *fiber.Ctx) error {
	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		return validationError(c, "Invalid tag query")
	}
	tags, err := h.Svc.Tags(c.UserContext(), strings.TrimSpace(query))
	if err != nil {
		return respondError(c, "getTags", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"tags": tags}, fiber.StatusOK)
}
