// collections.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/middleware"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
)

// MaxImageBytes bounds an uploaded collection image
const MaxImageBytes = 5 << 20

// ImageStore keeps uploaded collection images
type ImageStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// CollectionsHandler handles collection routes
type CollectionsHandler struct {
	Svc    *services.Service
	Images ImageStore
}

// CreateCollectionRequest is the createCollection body. Custom field names
// accept a single name or a list.
type CreateCollectionRequest struct {
	CollectionName                 string                 `json:"collectionName"`
	CollectionDescription          string                 `json:"collectionDescription"`
	CollectionTopic                string                 `json:"collectionTopic"`
	CustomTextFieldsNames          types.FlexList[string] `json:"customTextFieldsNames" swaggertype:"array,string"`
	CustomNumberFieldsNames        types.FlexList[string] `json:"customNumberFieldsNames" swaggertype:"array,string"`
	CustomMultilineTextFieldsNames types.FlexList[string] `json:"customMultilineTextFieldsNames" swaggertype:"array,string"`
	CustomDateFieldsNames          types.FlexList[string] `json:"customDateFieldsNames" swaggertype:"array,string"`
	CustomBooleanFieldsNames       types.FlexList[string] `json:"customBooleanFieldsNames" swaggertype:"array,string"`
}

// EditCollectionRequest is the editCollection body
type EditCollectionRequest struct {
	CollectionName        string `json:"collectionName"`
	CollectionDescription string `json:"collectionDescription"`
	CollectionTopic       string `json:"collectionTopic"`
}

// CreatedResponse acknowledges a created record
type CreatedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (r *CreateCollectionRequest) schema() models.FieldSchema {
	return models.FieldSchema{
		TextFields:          cleanList(r.CustomTextFieldsNames.Slice()),
		NumberFields:        cleanList(r.CustomNumberFieldsNames.Slice()),
		MultilineTextFields: cleanList(r.CustomMultilineTextFieldsNames.Slice()),
		DateFields:          cleanList(r.CustomDateFieldsNames.Slice()),
		BooleanFields:       cleanList(r.CustomBooleanFieldsNames.Slice()),
	}
}

func validateCollectionFields(name, description, topic string) string {
	switch {
	case !lengthBetween(name, 3, 25):
		return "Collection name must be 3 to 25 characters"
	case !lengthBetween(description, 1, 300):
		return "Collection description must be 1 to 300 characters"
	case strings.TrimSpace(topic) == "":
		return "Collection topic is required"
	}
	return ""
}

// parseCreateCollection reads a JSON or multipart createCollection body
func parseCreateCollection(c *fiber.Ctx) (*CreateCollectionRequest, *multipart.FileHeader, error) {
	req := &CreateCollectionRequest{}
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return req, nil, c.BodyParser(req)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, err
	}
	first := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	req.CollectionName = first("collectionName")
	req.CollectionDescription = first("collectionDescription")
	req.CollectionTopic = first("collectionTopic")
	req.CustomTextFieldsNames = types.FormList(form.Value["customTextFieldsNames"])
	req.CustomNumberFieldsNames = types.FormList(form.Value["customNumberFieldsNames"])
	req.CustomMultilineTextFieldsNames = types.FormList(form.Value["customMultilineTextFieldsNames"])
	req.CustomDateFieldsNames = types.FormList(form.Value["customDateFieldsNames"])
	req.CustomBooleanFieldsNames = types.FormList(form.Value["customBooleanFieldsNames"])

	var image *multipart.FileHeader
	if files := form.File["image"]; len(files) > 0 {
		image = files[0]
	}
	return req, image, nil
}

// storeImage saves an uploaded image and returns its reference
func (h *CollectionsHandler) storeImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", types.InvalidState("createCollection", "image must be an image, got %q", contentType)
	}
	if fh.Size > MaxImageBytes {
		return "", types.InvalidState("createCollection", "image exceeds %d bytes", MaxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return "", types.Upstream("createCollection", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return "", types.Upstream("createCollection", err)
	}
	if len(data) > MaxImageBytes {
		return "", types.InvalidState("createCollection", "image exceeds %d bytes", MaxImageBytes)
	}
	ref, err := h.Images.Put(ctx, data, contentType)
	if err != nil {
		return "", types.Upstream("createCollection", fmt.Errorf("failed to store image: %w", err))
	}
	return ref, nil
}

// CreateCollection handles POST /api/collections/:userId/createCollection
// @Summary Create a collection
// @Description Create a collection for a user with its custom field schema and an optional image
// @Tags Collections
// @Accept json,mpfd
// @Produce json
// @Param userId path string true "Owner user ID"
// @Param body body CreateCollectionRequest true "Collection"
// @Success 201 {object} CreatedResponse
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{userId}/createCollection [post]
func (h *CollectionsHandler) CreateCollection(c *fiber.Ctx) error {
	userID := c.Params("userId")
	req, image, err := parseCreateCollection(c)
	if err != nil {
		return validationError(c, "Invalid collection body: "+err.Error())
	}
	if msg := validateCollectionFields(req.CollectionName, req.CollectionDescription, req.CollectionTopic); msg != "" {
		return validationError(c, msg)
	}

	ctx := c.UserContext()
	spec := cascade.CollectionSpec{
		Name:        strings.TrimSpace(req.CollectionName),
		Description: strings.TrimSpace(req.CollectionDescription),
		Topic:       strings.TrimSpace(req.CollectionTopic),
		Schema:      req.schema(),
	}
	if image != nil {
		if h.Images == nil {
			return validationError(c, "Image uploads are not enabled")
		}
		if err := h.Svc.AuthorizeCreateCollection(ctx, middleware.ActorID(c), userID); err != nil {
			return respondError(c, "createCollection", err)
		}
		if spec.Image, err = h.storeImage(ctx, image); err != nil {
			return respondError(c, "createCollection", err)
		}
	}

	collection, err := h.Svc.CreateCollection(ctx, middleware.ActorID(c), userID, spec)
	if err != nil {
		if spec.Image != "" {
			// Release is idempotent when the engine already compensated
			if delErr := h.Images.Delete(context.WithoutCancel(ctx), spec.Image); delErr != nil {
				log.Printf("createCollection: failed to release image %s: %v", spec.Image, delErr)
			}
		}
		return respondError(c, "createCollection", err)
	}

	return utils.SuccessResponse(c, CreatedResponse{
		Message: "Collection created successfully",
		ID:      collection.ID,
	}, fiber.StatusCreated)
}

// EditCollection handles PATCH /api/collections/:collectionId/editCollection
// @Summary Edit a collection
// @Tags Collections
// @Accept json
// @Produce json
// @Param collectionId path string true "Collection ID"
// @Param body body EditCollectionRequest true "Collection fields"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{collectionId}/editCollection [patch]
func (h *CollectionsHandler) EditCollection(c *fiber.Ctx) error {
	var req EditCollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid collection body: "+err.Error())
	}
	if msg := validateCollectionFields(req.CollectionName, req.CollectionDescription, req.CollectionTopic); msg != "" {
		return validationError(c, msg)
	}

	name := strings.TrimSpace(req.CollectionName)
	description := strings.TrimSpace(req.CollectionDescription)
	topic := strings.TrimSpace(req.CollectionTopic)
	err := h.Svc.EditCollection(c.UserContext(), middleware.ActorID(c), c.Params("collectionId"), store.CollectionFields{
		Name:        &name,
		Description: &description,
		Topic:       &topic,
	})
	if err != nil {
		return respondError(c, "editCollection", err)
	}

	return utils.MessageResponse(c, "Collection updated successfully", fiber.StatusOK)
}

// DeleteCollection handles DELETE /api/collections/:collectionId/deleteCollection
// @Summary Delete a collection
// @Description Delete a collection with all of its items, comments and likes
// @Tags Collections
// @Produce json
// @Param collectionId path string true "Collection ID"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{collectionId}/deleteCollection [delete]
func (h *CollectionsHandler) DeleteCollection(c *fiber.Ctx) error {
	if err := h.Svc.DeleteCollection(c.UserContext(), middleware.ActorID(c), c.Params("collectionId")); err != nil {
		return respondError(c, "deleteCollection", err)
	}
	return utils.MessageResponse(c, "Collection deleted successfully", fiber.StatusOK)
}

// GetUserCollections handles GET /api/collections/user/:userId
// @Summary Get a user's collections
// @Tags Collections
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} services.UserCollections
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/user/{userId} [get]
func (h *CollectionsHandler) GetUserCollections(c *fiber.Ctx) error {
	result, err := h.Svc.CollectionsForUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, "collectionsForUser", err)
	}
	return utils.SuccessResponse(c, result, fiber.StatusOK)
}

// GetCollection handles GET /api/collections/collection/:collectionId
// @Summary Get a collection
// @Description Get a collection's schema with all of its items
// @Tags Collections
// @Produce json
// @Param collectionId path string true "Collection ID"
// @Success 200 {object} map[string]services.CollectionDetail
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/collection/{collectionId} [get]
func (h *CollectionsHandler) GetCollection(c *fiber.Ctx) error {
	result, err := h.Svc.CollectionDetail(c.UserContext(), c.Params("collectionId"))
	if err != nil {
		return respondError(c, "collectionDetail", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"collection": result}, fiber.StatusOK)
}

// GetLargestCollections handles GET /api/collections/getLargestCollections
// @Summary Get the largest collections
// @Tags Collections
// @Produce json
// @Success 200 {object} map[string][]services.RankedCollection
// @Router /collections/getLargestCollections [get]
func (h *CollectionsHandler) GetLargestCollections(c *fiber.Ctx) error {
	result, err := h.Svc.LargestCollections(c.UserContext())
	if err != nil {
		return respondError(c, "largestCollections", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"largestCollections": result}, fiber.StatusOK)
}
