package cascade

import (
	"context"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"gorm.io/datatypes"
)

// CollectionSpec is the content of a new collection
type CollectionSpec struct {
	Name        string
	Description string
	Topic       string
	Image       string
	Schema      models.FieldSchema
}

// CreateCollection creates an empty collection and adds it to the author's
// owned set. If the second write fails the collection is removed again; if
// that removal fails too the orphan's id is reported in a Conflict.
func (e *Engine) CreateCollection(ctx context.Context, authorID string, spec CollectionSpec) (*models.Collection, error) {
	const op = "createCollection"
	collection := &models.Collection{
		AuthorID:    authorID,
		Name:        spec.Name,
		Description: spec.Description,
		Topic:       spec.Topic,
		Image:       spec.Image,
		Schema:      datatypes.NewJSONType(spec.Schema),
	}

	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		author, err := s.GetUser(ctx, authorID)
		if err != nil {
			return nil, err
		}
		if author.Status == models.StatusBlocked {
			return nil, types.Blocked(op, "author %s is blocked", authorID)
		}
		collection.ID = ""
		return []Step{{
			Name: "create collection",
			Do: func(ctx context.Context, s store.Store) error {
				return s.CreateCollection(ctx, collection)
			},
			Undo: func(ctx context.Context, s store.Store) error {
				return s.DeleteCollection(ctx, collection.ID)
			},
			Refs: func() []string { return []string{collection.ID} },
		}, {
			Name: "add owned collection",
			Do: func(ctx context.Context, s store.Store) error {
				return s.AddOwnedCollection(ctx, authorID, collection.ID)
			},
			Undo: func(ctx context.Context, s store.Store) error {
				return s.RemoveOwnedCollection(ctx, authorID, collection.ID)
			},
			Refs: func() []string { return []string{authorID, collection.ID} },
		}}, nil
	})
	if err != nil {
		// The uploaded image is no longer referenced
		e.releaseBlob(ctx, spec.Image)
		return nil, err
	}
	return collection, nil
}

// EditCollection updates collection fields. A replaced image is released
// after the update commits.
func (e *Engine) EditCollection(ctx context.Context, collectionID string, fields store.CollectionFields) error {
	const op = "editCollection"
	fx := &effects{}
	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		current, err := s.GetCollection(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		*fx = effects{}
		if fields.Image != nil && current.Image != "" && *fields.Image != current.Image {
			fx.blobs = append(fx.blobs, current.Image)
		}
		return []Step{{
			Name: "update collection",
			Do: func(ctx context.Context, s store.Store) error {
				return s.UpdateCollection(ctx, collectionID, fields)
			},
		}}, nil
	})
	if err != nil {
		return err
	}
	e.apply(ctx, fx)
	return nil
}

// DeleteCollection deletes every item of the collection (stripping their
// like edges), removes the collection from its author's owned set, deletes
// the record and finally releases its image.
func (e *Engine) DeleteCollection(ctx context.Context, collectionID string) error {
	const op = "deleteCollection"
	fx := &effects{}
	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		c, err := s.GetCollection(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		steps, itemIDs, err := collectionDeletionSteps(ctx, s, c)
		if err != nil {
			return nil, err
		}
		*fx = effects{unindex: itemIDs}
		if c.Image != "" {
			fx.blobs = []string{c.Image}
		}
		return steps, nil
	})
	if err != nil {
		return err
	}
	e.apply(ctx, fx)
	return nil
}
