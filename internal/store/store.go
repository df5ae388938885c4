// Package store holds the Identity and Catalog store contracts and their
// GORM implementation. Relations are id sets kept on both sides of each edge;
// the cascade engine is the only caller that mutates more than one of them.
package store

import (
	"context"
	"time"

	"github.com/localnerve/jam-build-cmdb/internal/models"
)

// UserFields is a partial user update; nil fields are left unchanged
type UserFields struct {
	Username *string
	Role     *string
	Status   *string
}

// Empty reports whether no field is set
func (f UserFields) Empty() bool {
	return f.Username == nil && f.Role == nil && f.Status == nil
}

// CollectionFields is a partial collection update
type CollectionFields struct {
	Name        *string
	Description *string
	Topic       *string
	Image       *string
	Schema      *models.FieldSchema
}

// ItemFields is a partial item update; nil slices and maps are left unchanged
type ItemFields struct {
	Name     *string
	Tags     []string
	ItemData map[string]interface{}
}

// DetachResult reports what DetachItem changed
type DetachResult struct {
	// Removed is false when the item was not in the set
	Removed bool
	// Drift is true when the decrement had to be clamped at zero
	Drift bool
}

// LikeEdge is one (user, item) like reference
type LikeEdge struct {
	UserID string `json:"userId"`
	ItemID string `json:"itemId"`
}

// Identity holds users and their owned-collection and liked-item sets
type Identity interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) ([]models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// CreateUser fails with NotFound for an id that DeleteUser removed
	CreateUser(ctx context.Context, user *models.User) error
	// RestoreUser recreates a deleted user from its snapshot
	RestoreUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id string, fields UserFields) error
	TouchUser(ctx context.Context, id string, at time.Time) error
	// DeleteUser removes the user and its sets and records the id as deleted
	DeleteUser(ctx context.Context, id string) error
	UserDeleted(ctx context.Context, id string) (bool, error)

	AddOwnedCollection(ctx context.Context, userID, collectionID string) error
	RemoveOwnedCollection(ctx context.Context, userID, collectionID string) error
	OwnedCollections(ctx context.Context, userID string) ([]string, error)

	// AddUserLike inserts the edge if absent and reports whether it did
	AddUserLike(ctx context.Context, userID, itemID string) (bool, error)
	// RemoveUserLike removes the edge if present and reports whether it did
	RemoveUserLike(ctx context.Context, userID, itemID string) (bool, error)
	LikedItems(ctx context.Context, userID string) ([]string, error)
	HasUserLike(ctx context.Context, userID, itemID string) (bool, error)
	UsersLiking(ctx context.Context, itemID string) ([]string, error)
}

// Catalog holds collections, items, their relation sets, comments, topics and tags
type Catalog interface {
	CreateCollection(ctx context.Context, c *models.Collection) error
	GetCollection(ctx context.Context, id string) (*models.Collection, error)
	UpdateCollection(ctx context.Context, id string, fields CollectionFields) error
	DeleteCollection(ctx context.Context, id string) error
	CollectionIDs(ctx context.Context) ([]string, error)
	// CollectionsAuthoredBy looks collections up by their author back-reference
	CollectionsAuthoredBy(ctx context.Context, userID string) ([]string, error)

	// AttachItem appends to the item set and increments numberOfItems as one unit
	AttachItem(ctx context.Context, collectionID, itemID string) error
	// DetachItem removes from the item set and decrements numberOfItems as one
	// unit. The decrement is clamped at zero.
	DetachItem(ctx context.Context, collectionID, itemID string) (DetachResult, error)
	ItemIDs(ctx context.Context, collectionID string) ([]string, error)
	// ItemsReferencing looks items up by their collection back-reference
	ItemsReferencing(ctx context.Context, collectionID string) ([]string, error)
	SetItemCount(ctx context.Context, collectionID string, n int64) error

	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, fields ItemFields) error
	DeleteItem(ctx context.Context, id string) error

	AddComment(ctx context.Context, comment *models.Comment) error
	Comments(ctx context.Context, itemID string) ([]models.Comment, error)

	AddItemLike(ctx context.Context, itemID, userID string) (bool, error)
	RemoveItemLike(ctx context.Context, itemID, userID string) (bool, error)
	LikingUsers(ctx context.Context, itemID string) ([]string, error)
	// ItemLikesBy is the reverse lookup of the item-side sets
	ItemLikesBy(ctx context.Context, userID string) ([]string, error)

	CreateTopic(ctx context.Context, title string) (*models.Topic, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)
	CreateTag(ctx context.Context, title string) (*models.Tag, error)
	SearchTags(ctx context.Context, query string) ([]models.Tag, error)
}

// Repairer finds relation drift for the reconciliation pass
type Repairer interface {
	// UserSideOnlyLikes returns edges present on the user side only
	UserSideOnlyLikes(ctx context.Context) ([]LikeEdge, error)
	// ItemSideOnlyLikes returns edges present on the item side only
	ItemSideOnlyLikes(ctx context.Context) ([]LikeEdge, error)
}

// Store is the durable store the cascade engine drives
type Store interface {
	Identity
	Catalog
	Repairer

	// Transaction runs fn against a store bound to one transactional unit.
	// Returning an error from fn rolls the unit back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
