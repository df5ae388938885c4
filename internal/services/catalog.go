package services

import (
	"context"

	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/policy"
	"github.com/localnerve/jam-build-cmdb/internal/store"
)

// CreateCollection creates a collection owned by userID on behalf of actorID
func (s *Service) CreateCollection(ctx context.Context, actorID, userID string, spec cascade.CollectionSpec) (*models.Collection, error) {
	if err := s.AuthorizeCreateCollection(ctx, actorID, userID); err != nil {
		return nil, err
	}
	return s.engine.CreateCollection(ctx, userID, spec)
}

// AuthorizeCreateCollection applies the create-collection policy alone, so
// uploads can be refused before anything is stored.
func (s *Service) AuthorizeCreateCollection(ctx context.Context, actorID, userID string) error {
	return s.authorize(ctx, "createCollection", actorID, policy.ActionCreateChild, func(*policy.Actor) (policy.Target, error) {
		return s.userTarget(ctx, userID)
	})
}

// EditCollection updates name, description, topic or image
func (s *Service) EditCollection(ctx context.Context, actorID, collectionID string, fields store.CollectionFields) error {
	err := s.authorize(ctx, "editCollection", actorID, policy.ActionEdit, func(*policy.Actor) (policy.Target, error) {
		return s.collectionTarget(ctx, collectionID)
	})
	if err != nil {
		return err
	}
	return s.engine.EditCollection(ctx, collectionID, fields)
}

// DeleteCollection deletes a collection with its items
func (s *Service) DeleteCollection(ctx context.Context, actorID, collectionID string) error {
	err := s.authorize(ctx, "deleteCollection", actorID, policy.ActionDelete, func(*policy.Actor) (policy.Target, error) {
		return s.collectionTarget(ctx, collectionID)
	})
	if err != nil {
		return err
	}
	return s.engine.DeleteCollection(ctx, collectionID)
}

// CreateItem creates an item in a collection the actor owns
func (s *Service) CreateItem(ctx context.Context, actorID, collectionID string, spec cascade.ItemSpec) (*models.Item, error) {
	err := s.authorize(ctx, "createItem", actorID, policy.ActionCreateChild, func(*policy.Actor) (policy.Target, error) {
		return s.collectionTarget(ctx, collectionID)
	})
	if err != nil {
		return nil, err
	}
	return s.engine.CreateItem(ctx, collectionID, spec)
}

// EditItem updates an item's name, tags or data
func (s *Service) EditItem(ctx context.Context, actorID, itemID string, fields store.ItemFields) error {
	err := s.authorize(ctx, "editItem", actorID, policy.ActionEdit, func(*policy.Actor) (policy.Target, error) {
		return s.itemTarget(ctx, itemID)
	})
	if err != nil {
		return err
	}
	return s.engine.EditItem(ctx, itemID, fields)
}

// DeleteItem deletes an item, stripping its likes
func (s *Service) DeleteItem(ctx context.Context, actorID, itemID string) error {
	err := s.authorize(ctx, "deleteItem", actorID, policy.ActionDelete, func(*policy.Actor) (policy.Target, error) {
		return s.itemTarget(ctx, itemID)
	})
	if err != nil {
		return err
	}
	return s.engine.DeleteItem(ctx, itemID)
}

// AddComment appends a comment. displayName must be the actor's own username.
func (s *Service) AddComment(ctx context.Context, actorID, itemID, body, displayName string) (*models.Comment, error) {
	err := s.authorize(ctx, "addComment", actorID, policy.ActionComment, func(*policy.Actor) (policy.Target, error) {
		t, err := s.itemTarget(ctx, itemID)
		t.DisplayName = displayName
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return s.engine.AddComment(ctx, itemID, displayName, body)
}

// Like adds the actor's like to an item
func (s *Service) Like(ctx context.Context, actorID, itemID string) error {
	err := s.authorize(ctx, "like", actorID, policy.ActionLike, func(actor *policy.Actor) (policy.Target, error) {
		t, err := s.itemTarget(ctx, itemID)
		if err != nil || t.Missing {
			return t, err
		}
		t.Liked, err = s.writer.HasUserLike(ctx, actor.ID, itemID)
		return t, err
	})
	if err != nil {
		return err
	}
	// The engine repeats the check atomically for concurrent likes
	return s.engine.Like(ctx, actorID, itemID)
}

// Unlike removes the actor's like; removing an absent like succeeds
func (s *Service) Unlike(ctx context.Context, actorID, itemID string) error {
	err := s.authorize(ctx, "unlike", actorID, policy.ActionUnlike, func(*policy.Actor) (policy.Target, error) {
		return s.itemTarget(ctx, itemID)
	})
	if err != nil {
		return err
	}
	return s.engine.Unlike(ctx, actorID, itemID)
}

// CreateTopic adds a shared collection topic
func (s *Service) CreateTopic(ctx context.Context, actorID, title string) (*models.Topic, error) {
	if err := s.authorize(ctx, "createTopic", actorID, policy.ActionConfigure, nil); err != nil {
		return nil, err
	}
	return s.writer.CreateTopic(ctx, title)
}

// CreateTag adds a shared item tag
func (s *Service) CreateTag(ctx context.Context, actorID, title string) (*models.Tag, error) {
	if err := s.authorize(ctx, "createTag", actorID, policy.ActionConfigure, nil); err != nil {
		return nil, err
	}
	return s.writer.CreateTag(ctx, title)
}
