package cascade

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

// DeleteUser deletes every collection the user owns (with their items),
// strips the user's remaining like edges and deletes the user record.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	const op = "deleteUser"
	fx := &effects{}
	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return nil, err
		}
		*fx = effects{}

		owned, err := s.OwnedCollections(ctx, userID)
		if err != nil {
			return nil, err
		}
		authored, err := s.CollectionsAuthoredBy(ctx, userID)
		if err != nil {
			return nil, err
		}

		steps := []Step{}
		purged := map[string]struct{}{}
		for _, collectionID := range union(owned, authored) {
			c, err := s.GetCollection(ctx, collectionID)
			if err != nil {
				if types.Is(err, types.KindNotFound) {
					// Stale owned-set entry, dropped with the user record
					continue
				}
				return nil, err
			}
			collectionSteps, itemIDs, err := collectionDeletionSteps(ctx, s, c)
			if err != nil {
				return nil, err
			}
			steps = append(steps, collectionSteps...)
			for _, id := range itemIDs {
				purged[id] = struct{}{}
			}
			fx.unindex = append(fx.unindex, itemIDs...)
			if c.Image != "" {
				fx.blobs = append(fx.blobs, c.Image)
			}
		}

		userSide, err := s.LikedItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		itemSide, err := s.ItemLikesBy(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, itemID := range union(userSide, itemSide) {
			if _, ok := purged[itemID]; ok {
				continue
			}
			steps = append(steps, stripLikeSteps(userID, itemID)...)
		}

		var snapshot *models.User
		steps = append(steps, Step{
			Name: "delete user " + userID,
			Do: func(ctx context.Context, s store.Store) error {
				u, err := s.GetUser(ctx, userID)
				if err != nil {
					return err
				}
				snapshot = u
				return s.DeleteUser(ctx, userID)
			},
			Undo: func(ctx context.Context, s store.Store) error {
				restored := *snapshot
				return s.RestoreUser(ctx, &restored)
			},
			Refs: func() []string { return []string{userID} },
		})
		return steps, nil
	})
	if err != nil {
		return err
	}
	e.apply(ctx, fx)
	return nil
}

// DeleteUsers runs DeleteUser for every id. A failure on one id does not
// stop the rest; failed ids are reported in a PartialFailure.
func (e *Engine) DeleteUsers(ctx context.Context, userIDs []string) error {
	return e.forEachUser(ctx, "deleteUsers", userIDs, e.DeleteUser)
}

// BulkUpdateUsers applies the same field update to every id
func (e *Engine) BulkUpdateUsers(ctx context.Context, userIDs []string, fields store.UserFields) error {
	if fields.Empty() {
		return types.InvalidState("bulkUpdateUsers", "no fields to update")
	}
	return e.forEachUser(ctx, "bulkUpdateUsers", userIDs, func(ctx context.Context, userID string) error {
		return e.execute(ctx, "updateUser", func(ctx context.Context, s store.Store) ([]Step, error) {
			return []Step{{
				Name: "update user " + userID,
				Do: func(ctx context.Context, s store.Store) error {
					return s.UpdateUser(ctx, userID, fields)
				},
			}}, nil
		})
	})
}

func (e *Engine) forEachUser(ctx context.Context, op string, userIDs []string, fn func(context.Context, string) error) error {
	var (
		failed []string
		errs   []error
	)
	for _, id := range union(userIDs) {
		if err := fn(ctx, id); err != nil {
			if types.Is(err, types.KindConflict) {
				log.Printf("%s: user %s: %v", op, id, err)
			}
			failed = append(failed, id)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if len(failed) > 0 {
		return types.PartialFailure(op, failed, errors.Join(errs...))
	}
	return nil
}
