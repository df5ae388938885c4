package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/services"
)

// Handlers groups the route handlers of the API
type Handlers struct {
	Collections *CollectionsHandler
	Items       *ItemsHandler
	Admin       *AdminHandler
	Config      *ConfigHandler
}

// New creates the handlers over svc. images may be nil to refuse uploads.
func New(svc *services.Service, images ImageStore) *Handlers {
	return &Handlers{
		Collections: &CollectionsHandler{Svc: svc, Images: images},
		Items:       &ItemsHandler{Svc: svc},
		Admin:       &AdminHandler{Svc: svc},
		Config:      &ConfigHandler{Svc: svc},
	}
}

// Register mounts the API routes. Reads are public; mutations require
// authUser, and the admin group requires authAdmin.
func (h *Handlers) Register(api fiber.Router, authUser, authAdmin fiber.Handler) {
	collections := api.Group("/collections")
	collections.Get("/user/:userId", h.Collections.GetUserCollections)
	collections.Get("/getLargestCollections", h.Collections.GetLargestCollections)
	collections.Get("/collection/:collectionId", h.Collections.GetCollection)
	collections.Post("/:userId/createCollection", authUser, h.Collections.CreateCollection)
	collections.Patch("/:collectionId/editCollection", authUser, h.Collections.EditCollection)
	collections.Delete("/:collectionId/deleteCollection", authUser, h.Collections.DeleteCollection)

	items := api.Group("/items")
	items.Get("/item/:itemId", h.Items.GetItem)
	items.Get("/getLatestItems", h.Items.GetLatestItems)
	items.Get("/getFullTextSearchResults/:query", h.Items.Search)
	items.Post("/:collectionId/createItem", authUser, h.Items.CreateItem)
	items.Post("/:itemId/addComment", authUser, h.Items.AddComment)
	items.Patch("/:itemId/likeItem", authUser, h.Items.LikeItem)
	items.Patch("/:itemId/removeLike", authUser, h.Items.RemoveLike)
	items.Patch("/:itemId/editItem", authUser, h.Items.EditItem)
	items.Delete("/:itemId/deleteItem", authUser, h.Items.DeleteItem)

	admin := api.Group("/admin", authAdmin)
	admin.Patch("/updateUsersAccounts", h.Admin.UpdateUsersAccounts)
	admin.Delete("/delete", h.Admin.DeleteUsers)
	admin.Post("/users", h.Admin.ListUsers)

	cfg := api.Group("/config")
	cfg.Get("/topics", h.Config.GetTopics)
	cfg.Get("/tags/:query", h.Config.GetTags)
	cfg.Post("/createtopic", authUser, h.Config.CreateTopic)
	cfg.Post("/createtag", authUser, h.Config.CreateTag)
}
