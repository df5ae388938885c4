package models

import (
	"time"

	"gorm.io/datatypes"
)

// FieldSchema is the custom-field schema of a collection, partitioned by type
type FieldSchema struct {
	TextFields          []string `json:"textFields"`
	NumberFields        []string `json:"numberFields"`
	MultilineTextFields []string `json:"multilineTextFields"`
	DateFields          []string `json:"dateFields"`
	BooleanFields       []string `json:"booleanFields"`
}

// Has reports whether field is declared in any of the schema lists
func (s FieldSchema) Has(field string) bool {
	for _, list := range [][]string{s.TextFields, s.NumberFields, s.MultilineTextFields, s.DateFields, s.BooleanFields} {
		for _, f := range list {
			if f == field {
				return true
			}
		}
	}
	return false
}

// Collection is a schema-bearing group of items owned by one user.
// NumberOfItems mirrors the cardinality of the CollectionItem set.
type Collection struct {
	ID            string                          `gorm:"type:char(36);primaryKey" json:"id"`
	AuthorID      string                          `gorm:"type:char(36);not null;index" json:"author"`
	Name          string                          `gorm:"size:255;not null" json:"collectionName"`
	Description   string                          `gorm:"size:1024;not null" json:"collectionDescription"`
	Topic         string                          `gorm:"size:255;not null" json:"collectionTopic"`
	Schema        datatypes.JSONType[FieldSchema] `gorm:"column:field_schema" json:"collectionCustomItem"`
	Image         string                          `gorm:"size:1024" json:"collectionImage"`
	NumberOfItems int64                           `gorm:"not null;default:0;index:idx_collections_number_of_items" json:"numberOfItems"`
	Seq           uint64                          `gorm:"not null;default:0;index" json:"-"`
	CreatedAt     time.Time                       `gorm:"index" json:"-"`
	UpdatedAt     time.Time                       `json:"-"`
}

// CollectionSeq hands out the insertion sequence stored on Collection.Seq
type CollectionSeq struct {
	Seq uint64 `gorm:"primaryKey;autoIncrement"`
}

// TableName overrides the table name for CollectionSeq
func (CollectionSeq) TableName() string {
	return "collection_seq"
}

// CollectionItem is one entry of a collection's item set
type CollectionItem struct {
	CollectionID string `gorm:"type:char(36);primaryKey"`
	ItemID       string `gorm:"type:char(36);primaryKey;index"`
}

// Item is a record conforming to its collection's schema
type Item struct {
	ID           string                      `gorm:"type:char(36);primaryKey" json:"id"`
	CollectionID string                      `gorm:"type:char(36);not null;index" json:"belongsToCollection"`
	Name         string                      `gorm:"size:255;not null" json:"name"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	ItemData     JSON                        `json:"itemData"`
	CreatedAt    time.Time                   `gorm:"index:idx_items_created_at" json:"-"`
	UpdatedAt    time.Time                   `json:"-"`
}

// ItemLike is one entry of an item's like set
type ItemLike struct {
	ItemID    string `gorm:"type:char(36);primaryKey"`
	UserID    string `gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time
}

// Comment is owned by its item and deleted with it
type Comment struct {
	CommentID uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ItemID    string    `gorm:"type:char(36);not null;index" json:"-"`
	Author    string    `gorm:"size:64;not null" json:"author"`
	Body      string    `gorm:"size:1024;not null" json:"comment"`
	CreatedAt time.Time `json:"-"`
}

// Topic is a selectable collection topic
type Topic struct {
	TopicID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Title   string `gorm:"size:255;not null;uniqueIndex" json:"title"`
}

// Tag is a reusable item tag
type Tag struct {
	TagID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Title string `gorm:"size:255;not null;uniqueIndex" json:"title"`
}

// TableName overrides the table name for Collection
func (Collection) TableName() string {
	return "collections"
}

// TableName overrides the table name for CollectionItem
func (CollectionItem) TableName() string {
	return "collection_items"
}

// TableName overrides the table name for Item
func (Item) TableName() string {
	return "items"
}

// TableName overrides the table name for ItemLike
func (ItemLike) TableName() string {
	return "item_likes"
}

// TableName overrides the table name for Comment
func (Comment) TableName() string {
	return "item_comments"
}

// TableName overrides the table name for Topic
func (Topic) TableName() string {
	return "topics"
}

// TableName overrides the table name for Tag
func (Tag) TableName() string {
	return "tags"
}

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserCollection{},
		&UserLike{},
		&DeletedUser{},
		&Collection{},
		&CollectionSeq{},
		&CollectionItem{},
		&Item{},
		&ItemLike{},
		&Comment{},
		&Topic{},
		&Tag{},
	}
}
