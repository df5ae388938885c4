package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/policy"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

// BulkUpdateUsers applies fields to every listed user. Failed ids are
// reported in a PartialFailure.
func (s *Service) BulkUpdateUsers(ctx context.Context, actorID string, userIDs []string, fields store.UserFields) error {
	if err := s.authorize(ctx, "bulkUpdateUsers", actorID, policy.ActionAdminBulkEdit, nil); err != nil {
		return err
	}
	if fields.Role != nil && *fields.Role != models.RoleUser && *fields.Role != models.RoleAdmin {
		return types.InvalidState("bulkUpdateUsers", "unknown role %q", *fields.Role)
	}
	if fields.Status != nil && *fields.Status != models.StatusActive && *fields.Status != models.StatusBlocked {
		return types.InvalidState("bulkUpdateUsers", "unknown status %q", *fields.Status)
	}
	return s.engine.BulkUpdateUsers(ctx, userIDs, fields)
}

// DeleteUsers deletes every listed user with their collections, items and likes
func (s *Service) DeleteUsers(ctx context.Context, actorID string, userIDs []string) error {
	if err := s.authorize(ctx, "deleteUsers", actorID, policy.ActionAdminBulkDelete, nil); err != nil {
		return err
	}
	return s.engine.DeleteUsers(ctx, userIDs)
}

// ListUsers returns every user
func (s *Service) ListUsers(ctx context.Context, actorID string) ([]models.User, error) {
	if err := s.authorize(ctx, "listUsers", actorID, policy.ActionAdminList, nil); err != nil {
		return nil, err
	}
	return s.readers.ListUsers(ctx)
}

// Provision returns the local user for an authenticated session, creating
// it on first sight and recording the login time otherwise. A user deleted
// by an admin stays deleted: its session gets NotFound.
func (s *Service) Provision(ctx context.Context, su *SessionUser) (*models.User, error) {
	const op = "provision"
	if su == nil || su.ID == "" {
		return nil, types.NotFound(op, "session carries no user")
	}

	u, err := s.writer.GetUser(ctx, su.ID)
	if err == nil {
		if err := s.writer.TouchUser(ctx, u.ID, time.Now().UTC()); err != nil {
			log.Printf("%s: failed to record login of %s: %v", op, u.ID, err)
		}
		return u, nil
	}
	if !types.Is(err, types.KindNotFound) {
		return nil, err
	}
	deleted, err := s.writer.UserDeleted(ctx, su.ID)
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, types.NotFound(op, "user %s was deleted", su.ID)
	}

	u = &models.User{
		ID:       su.ID,
		Username: su.DisplayName(),
		Email:    su.Email,
		Role:     models.RoleUser,
		Status:   models.StatusActive,
	}
	if su.HasRole(models.RoleAdmin) {
		u.Role = models.RoleAdmin
	}
	if err := s.writer.CreateUser(ctx, u); err != nil {
		// A concurrent first request may have provisioned the user already
		if existing, getErr := s.writer.GetUser(ctx, su.ID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	log.Printf("%s: created user %s (%s)", op, u.ID, u.Username)
	return u, nil
}

// DisplayName is the preferred username, else the nickname, else the
// local part of the email address.
func (su *SessionUser) DisplayName() string {
	for _, name := range []string{su.PreferredUsername, su.Nickname} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	local, _, _ := strings.Cut(su.Email, "@")
	return local
}

// HasRole reports whether the session grants role
func (su *SessionUser) HasRole(role string) bool {
	for _, r := range su.Roles {
		if r == role {
			return true
		}
	}
	return false
}
