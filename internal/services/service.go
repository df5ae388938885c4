package services

import (
	"context"
	"errors"
	"log"

	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/policy"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"gorm.io/gorm"
)

var errNoSearch = errors.New("search index not configured")

// Searcher answers full-text item queries
type Searcher interface {
	Query(ctx context.Context, text string, limit int) ([]search.Match, error)
}

// Service is the use-case layer between the HTTP handlers and the core.
// Mutations resolve the actor and target, ask the policy, and run the
// cascade; reads go to the reader pool.
type Service struct {
	engine  *cascade.Engine
	writer  store.Store
	reader  *gorm.DB
	readers store.Store
	search  Searcher
}

// New creates a Service. reader may be the same handle the engine's store
// writes through; search may be nil.
func New(engine *cascade.Engine, reader *gorm.DB, search Searcher) *Service {
	return &Service{
		engine:  engine,
		writer:  engine.Store(),
		reader:  reader,
		readers: store.NewGormStore(reader),
		search:  search,
	}
}

// Engine returns the cascade engine
func (s *Service) Engine() *cascade.Engine {
	return s.engine
}

// actor resolves the acting user. A missing user yields a nil actor, which
// the policy denies with NotFound.
func (s *Service) actor(ctx context.Context, actorID string) (*policy.Actor, error) {
	if actorID == "" {
		return nil, nil
	}
	u, err := s.writer.GetUser(ctx, actorID)
	if err != nil {
		if types.Is(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return policy.ActorFromUser(u), nil
}

// authorize resolves the actor, builds the target and applies the policy
func (s *Service) authorize(ctx context.Context, op, actorID string, action policy.Action, target func(*policy.Actor) (policy.Target, error)) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	var t policy.Target
	if actor != nil && target != nil {
		if t, err = target(actor); err != nil {
			return err
		}
	}
	if err := policy.Decide(actor, action, t).Err(op); err != nil {
		log.Printf("%s denied for actor %q on %q: %v", op, actorID, t.ID, err)
		return err
	}
	return nil
}

// userTarget is a user that a new collection is created for
func (s *Service) userTarget(ctx context.Context, userID string) (policy.Target, error) {
	t := policy.Target{ID: userID, OwnerID: userID}
	if _, err := s.writer.GetUser(ctx, userID); err != nil {
		if !types.Is(err, types.KindNotFound) {
			return t, err
		}
		t.Missing = true
	}
	return t, nil
}

func (s *Service) collectionTarget(ctx context.Context, collectionID string) (policy.Target, error) {
	t := policy.Target{ID: collectionID}
	c, err := s.writer.GetCollection(ctx, collectionID)
	if err != nil {
		if !types.Is(err, types.KindNotFound) {
			return t, err
		}
		t.Missing = true
		return t, nil
	}
	t.OwnerID = c.AuthorID
	return t, nil
}

// itemTarget is owned by the author of the item's collection. An item whose
// collection is gone has no owner, so only admins pass rule 4.
func (s *Service) itemTarget(ctx context.Context, itemID string) (policy.Target, error) {
	t := policy.Target{ID: itemID}
	item, err := s.writer.GetItem(ctx, itemID)
	if err != nil {
		if !types.Is(err, types.KindNotFound) {
			return t, err
		}
		t.Missing = true
		return t, nil
	}
	c, err := s.writer.GetCollection(ctx, item.CollectionID)
	if err != nil {
		if !types.Is(err, types.KindNotFound) {
			return t, err
		}
		return t, nil
	}
	t.OwnerID = c.AuthorID
	return t, nil
}
