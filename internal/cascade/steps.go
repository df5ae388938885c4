package cascade

import (
	"context"
	"fmt"
	"sort"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

// effects are applied once a unit has committed
type effects struct {
	blobs   []string
	index   []search.Document
	unindex []string
}

func (e *Engine) apply(ctx context.Context, fx *effects) {
	for _, ref := range fx.blobs {
		e.releaseBlob(ctx, ref)
	}
	for _, doc := range fx.index {
		e.indexItem(ctx, doc)
	}
	e.unindexItems(ctx, fx.unindex)
}

// union merges id lists, sorted and without duplicates
func union(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// stripLikeSteps remove one like edge, user side first. Each compensation
// restores only what its step actually removed.
func stripLikeSteps(userID, itemID string) []Step {
	var userRemoved, itemRemoved bool
	refs := func() []string { return []string{userID, itemID} }
	return []Step{{
		Name: fmt.Sprintf("strip user-side like %s/%s", userID, itemID),
		Do: func(ctx context.Context, s store.Store) (err error) {
			userRemoved, err = s.RemoveUserLike(ctx, userID, itemID)
			return err
		},
		Undo: func(ctx context.Context, s store.Store) error {
			if !userRemoved {
				return nil
			}
			_, err := s.AddUserLike(ctx, userID, itemID)
			return err
		},
		Refs: refs,
	}, {
		Name: fmt.Sprintf("strip item-side like %s/%s", userID, itemID),
		Do: func(ctx context.Context, s store.Store) (err error) {
			itemRemoved, err = s.RemoveItemLike(ctx, itemID, userID)
			return err
		},
		Undo: func(ctx context.Context, s store.Store) error {
			if !itemRemoved {
				return nil
			}
			_, err := s.AddItemLike(ctx, itemID, userID)
			return err
		},
		Refs: refs,
	}}
}

// itemLikers is every user holding a like edge on the item, from either side
func itemLikers(ctx context.Context, s store.Store, itemID string) ([]string, error) {
	itemSide, err := s.LikingUsers(ctx, itemID)
	if err != nil {
		return nil, err
	}
	userSide, err := s.UsersLiking(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return union(itemSide, userSide), nil
}

// deleteItemRecordStep deletes the item with its comments. The compensation
// recreates both from a snapshot taken just before the delete.
func deleteItemRecordStep(itemID string) Step {
	var (
		snapshot *models.Item
		comments []models.Comment
	)
	return Step{
		Name: "delete item " + itemID,
		Do: func(ctx context.Context, s store.Store) error {
			item, err := s.GetItem(ctx, itemID)
			if err != nil {
				return err
			}
			if comments, err = s.Comments(ctx, itemID); err != nil {
				return err
			}
			snapshot = item
			return s.DeleteItem(ctx, itemID)
		},
		Undo: func(ctx context.Context, s store.Store) error {
			restored := *snapshot
			if err := s.CreateItem(ctx, &restored); err != nil {
				return err
			}
			for _, c := range comments {
				c.CommentID = 0
				if err := s.AddComment(ctx, &c); err != nil {
					return err
				}
			}
			return nil
		},
		Refs: func() []string { return []string{itemID} },
	}
}

// itemDeletionSteps strips every like edge of the item and then deletes it.
// The collection's item set is not touched.
func itemDeletionSteps(ctx context.Context, s store.Store, itemID string) ([]Step, error) {
	likers, err := itemLikers(ctx, s, itemID)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, 2*len(likers)+1)
	for _, userID := range likers {
		steps = append(steps, stripLikeSteps(userID, itemID)...)
	}
	return append(steps, deleteItemRecordStep(itemID)), nil
}

// collectionDeletionSteps purges every item of the collection, removes the
// collection from its author's owned set and then deletes the record.
// Item ids are returned for the post-commit index removal.
func collectionDeletionSteps(ctx context.Context, s store.Store, c *models.Collection) ([]Step, []string, error) {
	inSet, err := s.ItemIDs(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	referencing, err := s.ItemsReferencing(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	itemIDs := union(inSet, referencing)

	steps := []Step{}
	for _, itemID := range itemIDs {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			if !types.Is(err, types.KindNotFound) {
				return nil, nil, err
			}
			// Dangling set entry; only its like edges remain to strip
			likers, err := itemLikers(ctx, s, itemID)
			if err != nil {
				return nil, nil, err
			}
			for _, userID := range likers {
				steps = append(steps, stripLikeSteps(userID, itemID)...)
			}
			continue
		}
		itemSteps, err := itemDeletionSteps(ctx, s, itemID)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, itemSteps...)
	}

	authorID, collectionID := c.AuthorID, c.ID
	steps = append(steps, Step{
		Name: "remove owned collection " + collectionID,
		Do: func(ctx context.Context, s store.Store) error {
			return s.RemoveOwnedCollection(ctx, authorID, collectionID)
		},
		Undo: func(ctx context.Context, s store.Store) error {
			return s.AddOwnedCollection(ctx, authorID, collectionID)
		},
		Refs: func() []string { return []string{authorID, collectionID} },
	})

	var (
		snapshot *models.Collection
		setIDs   []string
	)
	steps = append(steps, Step{
		Name: "delete collection " + collectionID,
		Do: func(ctx context.Context, s store.Store) error {
			current, err := s.GetCollection(ctx, collectionID)
			if err != nil {
				return err
			}
			if setIDs, err = s.ItemIDs(ctx, collectionID); err != nil {
				return err
			}
			snapshot = current
			return s.DeleteCollection(ctx, collectionID)
		},
		Undo: func(ctx context.Context, s store.Store) error {
			restored := *snapshot
			if err := s.CreateCollection(ctx, &restored); err != nil {
				return err
			}
			for _, itemID := range setIDs {
				if err := s.AttachItem(ctx, collectionID, itemID); err != nil {
					return err
				}
			}
			return nil
		},
		Refs: func() []string { return []string{collectionID} },
	})

	return steps, itemIDs, nil
}
