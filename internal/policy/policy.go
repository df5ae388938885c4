// policy.go
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

// Package policy decides whether an actor may perform an action on a target.
// Decide is pure: callers resolve the actor and the target's ownership chain
// from the stores first and pass plain values in.
package policy

import (
	"strings"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

// Action is the kind of operation being authorized
type Action string

const (
	ActionRead            Action = "read"
	ActionCreateChild     Action = "create-child"
	ActionEdit            Action = "edit"
	ActionDelete          Action = "delete"
	ActionAdminBulkEdit   Action = "admin-bulk-edit"
	ActionAdminBulkDelete Action = "admin-bulk-delete"
	ActionAdminList       Action = "admin-list"
	ActionLike            Action = "like"
	ActionUnlike          Action = "unlike"
	ActionComment         Action = "comment"
	// ActionConfigure adds shared topics and tags
	ActionConfigure Action = "configure"
)

// Mutating reports whether the action changes state
func (a Action) Mutating() bool {
	return a != ActionRead && a != ActionAdminList
}

func (a Action) adminOnly() bool {
	switch a {
	case ActionAdminBulkEdit, ActionAdminBulkDelete, ActionAdminList:
		return true
	}
	return false
}

// ownerScoped actions need the actor to own the target or be an admin.
// Likes and comments are open to every active user.
func (a Action) ownerScoped() bool {
	switch a {
	case ActionCreateChild, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// Actor is the authenticated user as seen by the policy
type Actor struct {
	ID       string
	Username string
	Role     string
	Status   string
}

// ActorFromUser builds an Actor from a stored user, nil for a missing user
func ActorFromUser(u *models.User) *Actor {
	if u == nil {
		return nil
	}
	return &Actor{ID: u.ID, Username: u.Username, Role: u.Role, Status: u.Status}
}

// IsAdmin reports whether the actor holds the admin role
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == models.RoleAdmin
}

// Blocked reports whether the actor is blocked
func (a *Actor) Blocked() bool {
	return a != nil && a.Status == models.StatusBlocked
}

// Target describes the resource an action applies to.
//
// OwnerID is the direct author of a Collection, the author of the owning
// Collection for an Item, or the user id a new Collection is created for.
type Target struct {
	ID      string
	OwnerID string
	Missing bool

	// Liked is whether the actor's like edge on the Item is already present
	Liked bool

	// DisplayName is the author name supplied with a comment
	DisplayName string
}

// Decision is the outcome of Decide. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  types.Kind
	Message string
}

var allow = Decision{Allowed: true}

func deny(kind types.Kind, msg string) Decision {
	return Decision{Reason: kind, Message: msg}
}

// Err converts a denial into a typed error, nil when allowed
func (d Decision) Err(op string) error {
	if d.Allowed {
		return nil
	}
	return &types.Error{Kind: d.Reason, Op: op, Message: d.Message}
}

// Decide applies the authorization rules in precedence order; the first
// matching denial wins.
func Decide(actor *Actor, action Action, target Target) Decision {
	// 1. The actor must exist
	if actor == nil {
		return deny(types.KindNotFound, "actor not found")
	}

	// 2. Blocked actors may only read
	if actor.Blocked() && action.Mutating() {
		return deny(types.KindBlocked, "actor is blocked")
	}

	// 3. Admin-only actions
	if action.adminOnly() {
		if !actor.IsAdmin() {
			return deny(types.KindForbidden, "admin role required")
		}
		return allow
	}

	if action == ActionRead {
		return allow
	}

	if target.Missing {
		return deny(types.KindNotFound, "target "+target.ID+" not found")
	}

	// 4. Resource-scoped mutations need ownership or admin
	if action.ownerScoped() && target.OwnerID != actor.ID && !actor.IsAdmin() {
		return deny(types.KindForbidden, "actor does not own "+target.ID)
	}

	switch action {
	case ActionComment:
		// 5. Comment authorship must match the actor
		if !strings.EqualFold(strings.TrimSpace(target.DisplayName), actor.Username) {
			return deny(types.KindIdentityMismatch, "comment author does not match actor")
		}
	case ActionLike:
		// 6. A like must not already be present; unlike is always safe
		if target.Liked {
			return deny(types.KindAlreadyLiked, "item "+target.ID+" already liked")
		}
	}

	return allow
}
