// gorm.go
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

package store

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// GormStore implements Store over a *gorm.DB
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps the read-write application connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Transaction implements Store
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// unit runs fn as one local transaction, nested as a savepoint inside an open one
func (s *GormStore) unit(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// read tags a query with its operation name, and keeps record-not-found
// noise out of the log.
func (s *GormStore) read(ctx context.Context, op string) *gorm.DB {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{Logger: s.db.Logger.LogMode(logger.Silent)}).
		Clauses(hints.Comment("select", "cmdb:"+op))
}

func (s *GormStore) write(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// wrap converts a driver error into a typed error
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *types.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFound(op, "record not found")
	}
	return types.Upstream(op, err)
}

func (s *GormStore) exists(ctx context.Context, op string, model interface{}, id string) error {
	var n int64
	if err := s.read(ctx, op).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return types.Upstream(op, err)
	}
	if n == 0 {
		return types.NotFound(op, "%s not found", id)
	}
	return nil
}

// insertIfAbsent inserts row, reporting false when the key already existed
func insertIfAbsent(tx *gorm.DB, row interface{}) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// insertLike adds a (user, item) row to a like table only while the item
// exists, reporting false when the item is gone or the edge was present.
// The item row is read under a shared lock where the dialect has one, so the
// insert either lands before DeleteItem's unit or sees the item gone.
func insertLike(tx *gorm.DB, table, userID, itemID string) (bool, error) {
	verb, from, lock, conflict := "INSERT", "items", "", ""
	switch tx.Dialector.Name() {
	case "mysql":
		verb, lock = "INSERT IGNORE", " LOCK IN SHARE MODE"
	case "postgres":
		lock, conflict = " FOR SHARE", " ON CONFLICT DO NOTHING"
	case "sqlite":
		conflict = " ON CONFLICT DO NOTHING"
	case "sqlserver":
		from = "items WITH (HOLDLOCK, ROWLOCK)"
	}
	sql := verb + " INTO " + table + " (user_id, item_id, created_at) " +
		"SELECT ?, id, ? FROM " + from + " WHERE id = ? " +
		"AND NOT EXISTS (SELECT 1 FROM " + table + " WHERE user_id = ? AND item_id = ?)" +
		lock + conflict

	res := tx.Exec(sql, userID, time.Now().UTC(), itemID, userID, itemID)
	if res.Error != nil {
		// A concurrent insert of the same edge lost the key race
		var n int64
		if tx.Table(table).Where("user_id = ? AND item_id = ?", userID, itemID).Count(&n).Error == nil && n > 0 {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func pluck(q *gorm.DB, column string) ([]string, error) {
	ids := []string{}
	err := q.Pluck(column, &ids).Error
	return ids, err
}

// ---- Identity ----

// GetUser implements Identity
func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.read(ctx, "getUser").Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("getUser", "user %s not found", id)
		}
		return nil, types.Upstream("getUser", err)
	}
	return &u, nil
}

// GetUsers implements Identity; unknown ids are omitted
func (s *GormStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := s.read(ctx, "getUsers").Where("id IN ?", ids).Order("username").Find(&users).Error
	return users, wrap("getUsers", err)
}

// FindUserByEmail implements Identity
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.read(ctx, "findUserByEmail").Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("findUserByEmail", "user %s not found", email)
		}
		return nil, types.Upstream("findUserByEmail", err)
	}
	return &u, nil
}

// ListUsers implements Identity
func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.read(ctx, "listUsers").Order("registration_time, id").Find(&users).Error
	return users, wrap("listUsers", err)
}

// CreateUser implements Identity
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.RegistrationTime.IsZero() {
		user.RegistrationTime = now
	}
	if user.LastLoginTime.IsZero() {
		user.LastLoginTime = now
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	return wrap("createUser", s.unit(ctx, func(tx *gorm.DB) error {
		var deleted int64
		if err := tx.Model(&models.DeletedUser{}).Where("user_id = ?", user.ID).Count(&deleted).Error; err != nil {
			return err
		}
		if deleted > 0 {
			return types.NotFound("createUser", "user %s was deleted", user.ID)
		}
		return tx.Create(user).Error
	}))
}

// RestoreUser implements Identity
func (s *GormStore) RestoreUser(ctx context.Context, user *models.User) error {
	return wrap("restoreUser", s.unit(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.DeletedUser{}).Error; err != nil {
			return err
		}
		return tx.Create(user).Error
	}))
}

// UserDeleted implements Identity
func (s *GormStore) UserDeleted(ctx context.Context, id string) (bool, error) {
	var n int64
	err := s.read(ctx, "userDeleted").Model(&models.DeletedUser{}).Where("user_id = ?", id).Count(&n).Error
	return n > 0, wrap("userDeleted", err)
}

// UpdateUser implements Identity
func (s *GormStore) UpdateUser(ctx context.Context, id string, fields UserFields) error {
	if err := s.exists(ctx, "updateUser", &models.User{}, id); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if fields.Username != nil {
		updates["username"] = *fields.Username
	}
	if fields.Role != nil {
		updates["role"] = *fields.Role
	}
	if fields.Status != nil {
		updates["status"] = *fields.Status
	}
	if len(updates) == 0 {
		return nil
	}
	return wrap("updateUser", s.write(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error)
}

// TouchUser implements Identity
func (s *GormStore) TouchUser(ctx context.Context, id string, at time.Time) error {
	err := s.write(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_time", at.UTC()).Error
	return wrap("touchUser", err)
}

// DeleteUser removes the user record with its relation sets
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return wrap("deleteUser", s.unit(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserCollection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFound("deleteUser", "user %s not found", id)
		}
		_, err := insertIfAbsent(tx, &models.DeletedUser{UserID: id, DeletedAt: time.Now().UTC()})
		return err
	}))
}

// AddOwnedCollection implements Identity; adding a present id is a no-op
func (s *GormStore) AddOwnedCollection(ctx context.Context, userID, collectionID string) error {
	if err := s.exists(ctx, "addOwnedCollection", &models.User{}, userID); err != nil {
		return err
	}
	_, err := insertIfAbsent(s.write(ctx), &models.UserCollection{UserID: userID, CollectionID: collectionID})
	return wrap("addOwnedCollection", err)
}

// RemoveOwnedCollection implements Identity; removing an absent id is a no-op
func (s *GormStore) RemoveOwnedCollection(ctx context.Context, userID, collectionID string) error {
	err := s.write(ctx).Where("user_id = ? AND collection_id = ?", userID, collectionID).
		Delete(&models.UserCollection{}).Error
	return wrap("removeOwnedCollection", err)
}

// OwnedCollections implements Identity
func (s *GormStore) OwnedCollections(ctx context.Context, userID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "ownedCollections").Model(&models.UserCollection{}).
		Where("user_id = ?", userID).Order("collection_id"), "collection_id")
	return ids, wrap("ownedCollections", err)
}

// AddUserLike implements Identity. Nothing is added for a missing item.
func (s *GormStore) AddUserLike(ctx context.Context, userID, itemID string) (bool, error) {
	added, err := insertLike(s.write(ctx), models.UserLike{}.TableName(), userID, itemID)
	return added, wrap("addUserLike", err)
}

// RemoveUserLike implements Identity
func (s *GormStore) RemoveUserLike(ctx context.Context, userID, itemID string) (bool, error) {
	res := s.write(ctx).Where("user_id = ? AND item_id = ?", userID, itemID).Delete(&models.UserLike{})
	return res.RowsAffected > 0, wrap("removeUserLike", res.Error)
}

// LikedItems implements Identity
func (s *GormStore) LikedItems(ctx context.Context, userID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "likedItems").Model(&models.UserLike{}).
		Where("user_id = ?", userID).Order("item_id"), "item_id")
	return ids, wrap("likedItems", err)
}

// HasUserLike implements Identity
func (s *GormStore) HasUserLike(ctx context.Context, userID, itemID string) (bool, error) {
	var n int64
	err := s.read(ctx, "hasUserLike").Model(&models.UserLike{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).Count(&n).Error
	return n > 0, wrap("hasUserLike", err)
}

// UsersLiking implements Identity with a reverse lookup of the user-side sets
func (s *GormStore) UsersLiking(ctx context.Context, itemID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "usersLiking").Model(&models.UserLike{}).
		Where("item_id = ?", itemID).Order("user_id"), "user_id")
	return ids, wrap("usersLiking", err)
}

// ---- Catalog ----

// CreateCollection implements Catalog with an empty item set
func (s *GormStore) CreateCollection(ctx context.Context, c *models.Collection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.NumberOfItems = 0
	return wrap("createCollection", s.unit(ctx, func(tx *gorm.DB) error {
		next := models.CollectionSeq{}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}
		c.Seq = next.Seq
		return tx.Create(c).Error
	}))
}

// GetCollection implements Catalog
func (s *GormStore) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	var c models.Collection
	if err := s.read(ctx, "getCollection").Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("getCollection", "collection %s not found", id)
		}
		return nil, types.Upstream("getCollection", err)
	}
	return &c, nil
}

// UpdateCollection implements Catalog
func (s *GormStore) UpdateCollection(ctx context.Context, id string, fields CollectionFields) error {
	if err := s.exists(ctx, "updateCollection", &models.Collection{}, id); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if fields.Name != nil {
		updates["name"] = *fields.Name
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Topic != nil {
		updates["topic"] = *fields.Topic
	}
	if fields.Image != nil {
		updates["image"] = *fields.Image
	}
	if fields.Schema != nil {
		updates["field_schema"] = datatypes.NewJSONType(*fields.Schema)
	}
	if len(updates) == 0 {
		return nil
	}
	return wrap("updateCollection", s.write(ctx).Model(&models.Collection{}).Where("id = ?", id).Updates(updates).Error)
}

// DeleteCollection removes the record and its item set
func (s *GormStore) DeleteCollection(ctx context.Context, id string) error {
	return wrap("deleteCollection", s.unit(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Collection{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFound("deleteCollection", "collection %s not found", id)
		}
		return nil
	}))
}

// CollectionIDs implements Catalog
func (s *GormStore) CollectionIDs(ctx context.Context) ([]string, error) {
	ids, err := pluck(s.read(ctx, "collectionIds").Model(&models.Collection{}).Order("id"), "id")
	return ids, wrap("collectionIds", err)
}

// CollectionsAuthoredBy implements Catalog
func (s *GormStore) CollectionsAuthoredBy(ctx context.Context, userID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "collectionsAuthoredBy").Model(&models.Collection{}).
		Where("author_id = ?", userID).Order("id"), "id")
	return ids, wrap("collectionsAuthoredBy", err)
}

// AttachItem implements Catalog. Attaching an already-attached item changes nothing.
func (s *GormStore) AttachItem(ctx context.Context, collectionID, itemID string) error {
	return wrap("attachItem", s.unit(ctx, func(tx *gorm.DB) error {
		added, err := insertIfAbsent(tx, &models.CollectionItem{CollectionID: collectionID, ItemID: itemID})
		if err != nil || !added {
			return err
		}
		res := tx.Model(&models.Collection{}).Where("id = ?", collectionID).
			UpdateColumn("number_of_items", gorm.Expr("number_of_items + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFound("attachItem", "collection %s not found", collectionID)
		}
		return nil
	}))
}

// DetachItem implements Catalog
func (s *GormStore) DetachItem(ctx context.Context, collectionID, itemID string) (DetachResult, error) {
	var result DetachResult
	err := s.unit(ctx, func(tx *gorm.DB) error {
		result = DetachResult{}
		res := tx.Where("collection_id = ? AND item_id = ?", collectionID, itemID).Delete(&models.CollectionItem{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		result.Removed = true
		res = tx.Model(&models.Collection{}).Where("id = ? AND number_of_items > ?", collectionID, 0).
			UpdateColumn("number_of_items", gorm.Expr("number_of_items - ?", 1))
		if res.Error != nil {
			return res.Error
		}
		result.Drift = res.RowsAffected == 0
		return nil
	})
	if err != nil {
		return DetachResult{}, wrap("detachItem", err)
	}
	if result.Drift {
		log.Printf("internal error: numberOfItems drift on collection %s, decrement clamped at 0 (item %s)", collectionID, itemID)
	}
	return result, nil
}

// ItemIDs implements Catalog
func (s *GormStore) ItemIDs(ctx context.Context, collectionID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "itemIds").Model(&models.CollectionItem{}).
		Where("collection_id = ?", collectionID).Order("item_id"), "item_id")
	return ids, wrap("itemIds", err)
}

// ItemsReferencing implements Catalog
func (s *GormStore) ItemsReferencing(ctx context.Context, collectionID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "itemsReferencing").Model(&models.Item{}).
		Where("collection_id = ?", collectionID).Order("id"), "id")
	return ids, wrap("itemsReferencing", err)
}

// SetItemCount overwrites numberOfItems; only the repair pass calls it
func (s *GormStore) SetItemCount(ctx context.Context, collectionID string, n int64) error {
	err := s.write(ctx).Model(&models.Collection{}).Where("id = ?", collectionID).
		UpdateColumn("number_of_items", n).Error
	return wrap("setItemCount", err)
}

// CreateItem implements Catalog. The item is not attached to its collection.
func (s *GormStore) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Tags == nil {
		item.Tags = datatypes.JSONSlice[string]{}
	}
	return wrap("createItem", s.write(ctx).Create(item).Error)
}

// GetItem implements Catalog
func (s *GormStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := s.read(ctx, "getItem").Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("getItem", "item %s not found", id)
		}
		return nil, types.Upstream("getItem", err)
	}
	return &item, nil
}

// UpdateItem implements Catalog
func (s *GormStore) UpdateItem(ctx context.Context, id string, fields ItemFields) error {
	if err := s.exists(ctx, "updateItem", &models.Item{}, id); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if fields.Name != nil {
		updates["name"] = *fields.Name
	}
	if fields.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](fields.Tags)
	}
	if fields.ItemData != nil {
		data, err := models.NewJSON(fields.ItemData)
		if err != nil {
			return types.InvalidState("updateItem", "item data: %v", err)
		}
		updates["item_data"] = data
	}
	if len(updates) == 0 {
		return nil
	}
	return wrap("updateItem", s.write(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(updates).Error)
}

// DeleteItem removes the item record with its comments and every like edge
// still naming it. The record goes first so a like racing the delete either
// commits before the sweep or finds the item gone.
func (s *GormStore) DeleteItem(ctx context.Context, id string) error {
	return wrap("deleteItem", s.unit(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Item{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFound("deleteItem", "item %s not found", id)
		}
		for _, model := range []interface{}{&models.Comment{}, &models.ItemLike{}, &models.UserLike{}} {
			if err := tx.Where("item_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// AddComment implements Catalog
func (s *GormStore) AddComment(ctx context.Context, comment *models.Comment) error {
	if err := s.exists(ctx, "addComment", &models.Item{}, comment.ItemID); err != nil {
		return err
	}
	return wrap("addComment", s.write(ctx).Create(comment).Error)
}

// Comments implements Catalog, oldest first
func (s *GormStore) Comments(ctx context.Context, itemID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.read(ctx, "comments").Where("item_id = ?", itemID).Order("comment_id").Find(&comments).Error
	return comments, wrap("comments", err)
}

// AddItemLike implements Catalog. Nothing is added for a missing item.
func (s *GormStore) AddItemLike(ctx context.Context, itemID, userID string) (bool, error) {
	added, err := insertLike(s.write(ctx), models.ItemLike{}.TableName(), userID, itemID)
	return added, wrap("addItemLike", err)
}

// RemoveItemLike implements Catalog
func (s *GormStore) RemoveItemLike(ctx context.Context, itemID, userID string) (bool, error) {
	res := s.write(ctx).Where("item_id = ? AND user_id = ?", itemID, userID).Delete(&models.ItemLike{})
	return res.RowsAffected > 0, wrap("removeItemLike", res.Error)
}

// LikingUsers implements Catalog
func (s *GormStore) LikingUsers(ctx context.Context, itemID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "likingUsers").Model(&models.ItemLike{}).
		Where("item_id = ?", itemID).Order("user_id"), "user_id")
	return ids, wrap("likingUsers", err)
}

// ItemLikesBy implements Catalog
func (s *GormStore) ItemLikesBy(ctx context.Context, userID string) ([]string, error) {
	ids, err := pluck(s.read(ctx, "itemLikesBy").Model(&models.ItemLike{}).
		Where("user_id = ?", userID).Order("item_id"), "item_id")
	return ids, wrap("itemLikesBy", err)
}

// CreateTopic implements Catalog
func (s *GormStore) CreateTopic(ctx context.Context, title string) (*models.Topic, error) {
	topic := &models.Topic{Title: strings.TrimSpace(title)}
	added, err := insertIfAbsent(s.write(ctx), topic)
	if err != nil {
		return nil, wrap("createTopic", err)
	}
	if !added {
		return nil, types.InvalidState("createTopic", "topic %q already exists", topic.Title)
	}
	return topic, nil
}

// ListTopics implements Catalog
func (s *GormStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	topics := []models.Topic{}
	err := s.read(ctx, "listTopics").Order("title").Find(&topics).Error
	return topics, wrap("listTopics", err)
}

// CreateTag implements Catalog
func (s *GormStore) CreateTag(ctx context.Context, title string) (*models.Tag, error) {
	tag := &models.Tag{Title: strings.TrimSpace(title)}
	added, err := insertIfAbsent(s.write(ctx), tag)
	if err != nil {
		return nil, wrap("createTag", err)
	}
	if !added {
		return nil, types.InvalidState("createTag", "tag %q already exists", tag.Title)
	}
	return tag, nil
}

// SearchTags returns tags whose title contains query, case-insensitively
func (s *GormStore) SearchTags(ctx context.Context, query string) ([]models.Tag, error) {
	tags := []models.Tag{}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := s.read(ctx, "searchTags").Where("LOWER(title) LIKE ?", pattern).Order("title").Limit(50).Find(&tags).Error
	return tags, wrap("searchTags", err)
}

// ---- Repairer ----

// UserSideOnlyLikes implements Repairer
func (s *GormStore) UserSideOnlyLikes(ctx context.Context) ([]LikeEdge, error) {
	edges := []LikeEdge{}
	err := s.read(ctx, "userSideOnlyLikes").
		Table("user_likes AS ul").
		Select("ul.user_id AS user_id, ul.item_id AS item_id").
		Joins("LEFT JOIN item_likes AS il ON il.item_id = ul.item_id AND il.user_id = ul.user_id").
		Where("il.item_id IS NULL").
		Order("ul.user_id, ul.item_id").
		Scan(&edges).Error
	return edges, wrap("userSideOnlyLikes", err)
}

// ItemSideOnlyLikes implements Repairer
func (s *GormStore) ItemSideOnlyLikes(ctx context.Context) ([]LikeEdge, error) {
	edges := []LikeEdge{}
	err := s.read(ctx, "itemSideOnlyLikes").
		Table("item_likes AS il").
		Select("il.user_id AS user_id, il.item_id AS item_id").
		Joins("LEFT JOIN user_likes AS ul ON ul.item_id = il.item_id AND ul.user_id = il.user_id").
		Where("ul.item_id IS NULL").
		Order("il.user_id, il.item_id").
		Scan(&edges).Error
	return edges, wrap("itemSideOnlyLikes", err)
}
