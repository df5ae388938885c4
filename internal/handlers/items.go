package handlers

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/middleware"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
)

// ItemsHandler handles item routes
type ItemsHandler struct {
	Svc *services.Service
}

// ItemRequest is the createItem and editItem body. Keys other than name,
// tags and itemData are custom field values.
type ItemRequest struct {
	Name     string                 `json:"name"`
	Tags     []string               `json:"tags"`
	ItemData map[string]interface{} `json:"itemData"`
}

// CommentRequest is the addComment body
type CommentRequest struct {
	Comment string `json:"comment"`
	Author  string `json:"author"`
}

// parseItemRequest reads an item body where custom field values are either
// nested under itemData or spread at the top level
func parseItemRequest(body []byte) (*ItemRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	req := &ItemRequest{ItemData: map[string]interface{}{}}
	for key, value := range raw {
		switch key {
		case "name":
			if err := json.Unmarshal(value, &req.Name); err != nil {
				return nil, err
			}
		case "tags":
			var tags types.FlexList[string]
			if err := json.Unmarshal(value, &tags); err != nil {
				return nil, err
			}
			req.Tags = cleanList(tags.Slice())
		case "itemData":
			var nested map[string]interface{}
			if err := json.Unmarshal(value, &nested); err != nil {
				return nil, err
			}
			for k, v := range nested {
				req.ItemData[k] = v
			}
		default:
			var v interface{}
			if err := json.Unmarshal(value, &v); err != nil {
				return nil, err
			}
			req.ItemData[key] = v
		}
	}
	return req, nil
}

// CreateItem handles POST /api/items/:collectionId/createItem
// @Summary Create an item
// @Description Create an item in a collection. Custom field values must be declared by the collection schema.
// @Tags Items
// @Accept json
// @Produce json
// @Param collectionId path string true "Collection ID"
// @Param body body ItemRequest true "Item"
// @Success 201 {object} CreatedResponse
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /items/{collectionId}/createItem [post]
func (h *ItemsHandler) CreateItem(c *fiber.Ctx) error {
	req, err := parseItemRequest(c.Body())
	if err != nil {
		return validationError(c, "Invalid item body: "+err.Error())
	}
	if !lengthBetween(req.Name, 3, 25) {
		return validationError(c, "Item name must be 3 to 25 characters")
	}
	if len(req.Tags) == 0 {
		return validationError(c, "At least one tag is required")
	}

	item, err := h.Svc.CreateItem(c.UserContext(), middleware.ActorID(c), c.Params("collectionId"), cascade.ItemSpec{
		Name:     strings.TrimSpace(req.Name),
		Tags:     req.Tags,
		ItemData: req.ItemData,
	})
	if err != nil {
		return respondError(c, "createItem", err)
	}

	return utils.SuccessResponse(c, CreatedResponse{
		Message: "Item created successfully",
		ID:      item.ID,
	}, fiber.StatusCreated)
}

// EditItem handles PATCH /api/items/:itemId/editItem
// @Summary Edit an item
// @Description Replace an item's name and tags, and its data when any custom field is given
// @Tags Items
// @Accept json
// @Produce json
// @Param itemId path string true "Item ID"
// @Param body body ItemRequest true "Item"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /items/{itemId}/editItem [patch]
func (h *ItemsHandler) EditItem(c *fiber.Ctx) error {
	req, err := parseItemRequest(c.Body())
	if err != nil {
		return validationError(c, "Invalid item body: "+err.Error())
	}
	if !lengthBetween(req.Name, 3, 25) {
		return validationError(c, "Item name must be 3 to 25 characters")
	}
	if len(req.Tags) == 0 {
		return validationError(c, "At least one tag is required")
	}

	name := strings.TrimSpace(req.Name)
	fields := store.ItemFields{Name: &name, Tags: req.Tags}
	if len(req.ItemData) > 0 {
		fields.ItemData = req.ItemData
	}
	if err := h.Svc.EditItem(c.UserContext(), middleware.ActorID(c), c.Params("itemId"), fields); err != nil {
		return respondError(c, "editItem", err)
	}

	return utils.MessageResponse(c, "Item updated successfully", fiber.StatusOK)
}

// DeleteItem handles DELETE /api/items/:itemId/deleteItem
// @Summary Delete an item
// @Description Delete an item, detaching it from its collection and removing its likes
// @Tags Items
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /items/{itemId}/deleteItem [delete]
func (h *ItemsHandler) DeleteItem(c *fiber.Ctx) error {
	if err := h.Svc.DeleteItem(c.UserContext(), middleware.ActorID(c), c.Params("itemId")); err != nil {
		return respondError(c, "deleteItem", err)
	}
	return utils.MessageResponse(c, "Item deleted successfully", fiber.StatusOK)
}

// AddComment handles POST /api/items/:itemId/addComment
// @Summary Comment on an item
// @Description The author must be the authenticated user's own username
// @Tags Items
// @Accept json
// @Produce json
// @Param itemId path string true "Item ID"
// @Param body body CommentRequest true "Comment"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /items/{itemId}/addComment [post]
func (h *ItemsHandler) AddComment(c *fiber.Ctx) error {
	var req CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid comment body: "+err.Error())
	}
	if !lengthBetween(req.Comment, 1, 300) {
		return validationError(c, "Comment must be 1 to 300 characters")
	}
	if !lengthBetween(req.Author, 3, 25) {
		return validationError(c, "Author must be 3 to 25 characters")
	}

	_, err := h.Svc.AddComment(c.UserContext(), middleware.ActorID(c), c.Params("itemId"),
		strings.TrimSpace(req.Comment), strings.TrimSpace(req.Author))
	if err != nil {
		return respondError(c, "addComment", err)
	}
	return utils.MessageResponse(c, "Comment added successfully", fiber.StatusOK)
}

// LikeItem handles PATCH /api/items/:itemId/likeItem
// @Summary Like an item
// @Tags Items
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 201 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /items/{itemId}/likeItem [patch]
func (h *ItemsHandler) LikeItem(c *fiber.Ctx) error {
	if err := h.Svc.Like(c.UserContext(), middleware.ActorID(c), c.Params("itemId")); err != nil {
		return respondError(c, "like", err)
	}
	return utils.MessageResponse(c, "Item liked successfully", fiber.StatusCreated)
}

// RemoveLike handles PATCH /api/items/:itemId/removeLike
// @Summary Remove a like
// @Tags Items
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 201 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /items/{itemId}/removeLike [patch]
func (h *ItemsHandler) RemoveLike(c *fiber.Ctx) error {
	if err := h.Svc.Unlike(c.UserContext(), middleware.ActorID(c), c.Params("itemId")); err != nil {
		return respondError(c, "unlike", err)
	}
	return utils.MessageResponse(c, "Like removed successfully", fiber.StatusCreated)
}

// GetItem handles GET /api/items/item/:itemId
// @Summary Get an item
// @Description Get an item with its comments and likes
// @Tags Items
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} map[string]services.ItemDetail
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /items/item/{itemId} [get]
func (h *ItemsHandler) GetItem(c *fiber.Ctx) error {
	result, err := h.Svc.GetItem(c.UserContext(), c.Params("itemId"))
	if err != nil {
		return respondError(c, "getItem", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"item": result}, fiber.StatusOK)
}

// GetLatestItems handles GET /api/items/getLatestItems
// @Summary Get the latest items
// @Tags Items
// @Produce json
// @Success 200 {object} map[string][]services.ItemSummary
// @Router /items/getLatestItems [get]
func (h *ItemsHandler) GetLatestItems(c *fiber.Ctx) error {
	result, err := h.Svc.LatestItems(c.UserContext())
	if err != nil {
		return respondError(c, "latestItems", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"latestItems": result}, fiber.StatusOK)
}

// Search handles GET /api/items/getFullTextSearchResults/:query
// @Summary Full-text item search
// @Tags Items
// @Produce json
// @Param query path string true "Search text"
// @Success 200 {object} map[string][]search.Match
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /items/getFullTextSearchResults/{query} [get]
func (h *ItemsHandler) Search(c *fiber.Ctx) error {
	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		return validationError(c, "Invalid search query")
	}
	if query = strings.TrimSpace(query); query == "" {
		return validationError(c, "Search query is required")
	}
	result, err := h.Svc.SearchItems(c.UserContext(), query)
	if err != nil {
		return respondError(c, "searchItems", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"results": result}, fiber.StatusOK)
}
