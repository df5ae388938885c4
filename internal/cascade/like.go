package cascade

import (
	"context"

	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

// Like adds the edge on both sides. The user-side insert is the atomic
// add-if-absent primitive: when it inserts nothing the item was already
// liked and the operation fails with AlreadyLiked. Both inserts require the
// item to exist, so a like racing DeleteItem fails with NotFound.
func (e *Engine) Like(ctx context.Context, userID, itemID string) error {
	const op = "like"
	return e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return nil, err
		}
		var itemAdded bool
		return []Step{{
			Name: "add user-side like",
			Do: func(ctx context.Context, s store.Store) error {
				added, err := s.AddUserLike(ctx, userID, itemID)
				if err != nil {
					return err
				}
				if !added {
					if _, err := s.GetItem(ctx, itemID); err != nil {
						return err
					}
					return types.AlreadyLiked(op, "item %s already liked by %s", itemID, userID)
				}
				return nil
			},
			Undo: func(ctx context.Context, s store.Store) error {
				_, err := s.RemoveUserLike(ctx, userID, itemID)
				return err
			},
			Refs: func() []string { return []string{userID, itemID} },
		}, {
			Name: "add item-side like",
			Do: func(ctx context.Context, s store.Store) (err error) {
				if itemAdded, err = s.AddItemLike(ctx, itemID, userID); err != nil || itemAdded {
					return err
				}
				// The edge was already there, or the item was deleted since
				// the user side landed
				_, err = s.GetItem(ctx, itemID)
				return err
			},
			Undo: func(ctx context.Context, s store.Store) error {
				if !itemAdded {
					return nil
				}
				_, err := s.RemoveItemLike(ctx, itemID, userID)
				return err
			},
			Refs: func() []string { return []string{userID, itemID} },
		}}, nil
	})
}

// Unlike removes the edge from both sides. Removing an absent edge is a no-op.
func (e *Engine) Unlike(ctx context.Context, userID, itemID string) error {
	const op = "unlike"
	return e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return nil, err
		}
		return stripLikeSteps(userID, itemID), nil
	})
}
