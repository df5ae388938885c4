package models

import (
	"time"
)

// Roles and statuses stored on User
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// User is the identity root. Owned collections and liked items are kept as
// id sets in UserCollection and UserLike.
type User struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	Username         string    `gorm:"size:64;not null;index" json:"username"`
	Email            string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role             string    `gorm:"size:16;not null;default:user" json:"userType"`
	Status           string    `gorm:"size:16;not null;default:active" json:"status"`
	RegistrationTime time.Time `gorm:"not null" json:"registrationTime"`
	LastLoginTime    time.Time `gorm:"not null" json:"lastLoginTime"`
}

// UserCollection is one entry of a user's owned-collection set
type UserCollection struct {
	UserID       string `gorm:"type:char(36);primaryKey"`
	CollectionID string `gorm:"type:char(36);primaryKey;index"`
}

// UserLike is one entry of a user's liked-item set
type UserLike struct {
	UserID    string `gorm:"type:char(36);primaryKey"`
	ItemID    string `gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time
}

// DeletedUser records an id removed by an admin. Sessions naming it are not
// provisioned again.
type DeletedUser struct {
	UserID    string    `gorm:"type:char(36);primaryKey"`
	DeletedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// TableName overrides the table name for UserCollection
func (UserCollection) TableName() string {
	return "user_collections"
}

// TableName overrides the table name for UserLike
func (UserLike) TableName() string {
	return "user_likes"
}

// TableName overrides the table name for DeletedUser
func (DeletedUser) TableName() string {
	return "deleted_users"
}
