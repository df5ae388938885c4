package cascade_test

import (
	"context"
	"sync"
	"testing"

	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/store/storetest"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modes = []cascade.Mode{cascade.ModeTransaction, cascade.ModeSaga}

type fakeBlobs struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeBlobs) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]search.Document
	removed []string
}

func (f *fakeIndex) Index(_ context.Context, doc search.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.docs, id)
	}
	f.removed = append(f.removed, ids...)
	return nil
}

type fixture struct {
	engine *cascade.Engine
	store  *storetest.Faulty
	blobs  *fakeBlobs
	index  *fakeIndex
}

func newFixture(t *testing.T, mode cascade.Mode) *fixture {
	f := &fixture{
		store: storetest.NewFaulty(storetest.NewStore(t)),
		blobs: &fakeBlobs{},
		index: &fakeIndex{docs: map[string]search.Document{}},
	}
	f.engine = cascade.New(f.store, mode, cascade.Collaborators{Blobs: f.blobs, Index: f.index})
	return f
}

var titleSchema = models.FieldSchema{TextFields: []string{"title"}}

func (f *fixture) collection(t *testing.T, authorID string) *models.Collection {
	t.Helper()
	c, err := f.engine.CreateCollection(context.Background(), authorID, cascade.CollectionSpec{
		Name: "C1", Description: "d", Topic: "Books", Schema: titleSchema,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) item(t *testing.T, collectionID string) *models.Item {
	t.Helper()
	item, err := f.engine.CreateItem(context.Background(), collectionID, cascade.ItemSpec{
		Name: "I1", Tags: []string{"t"}, ItemData: map[string]interface{}{"title": "x"},
	})
	require.NoError(t, err)
	return item
}

// assertInvariants checks every collection counter and every like edge
func assertInvariants(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	ids, err := s.CollectionIDs(ctx)
	require.NoError(t, err)
	for _, id := range ids {
		c, err := s.GetCollection(ctx, id)
		require.NoError(t, err)
		items, err := s.ItemIDs(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(len(items)), c.NumberOfItems, "numberOfItems of %s", id)
	}
	userOnly, err := s.UserSideOnlyLikes(ctx)
	require.NoError(t, err)
	assert.Empty(t, userOnly, "user-side-only like edges")
	itemOnly, err := s.ItemSideOnlyLikes(ctx)
	require.NoError(t, err)
	assert.Empty(t, itemOnly, "item-side-only like edges")
}

func numberOfItems(t *testing.T, s store.Store, id string) int64 {
	t.Helper()
	c, err := s.GetCollection(context.Background(), id)
	require.NoError(t, err)
	return c.NumberOfItems
}

func TestCreateLikeDeleteScenario(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			b := storetest.SeedUser(t, f.store, "b", models.RoleUser)

			c1 := f.collection(t, a.ID)
			owned, err := f.store.OwnedCollections(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{c1.ID}, owned)

			i1 := f.item(t, c1.ID)
			assert.Equal(t, int64(1), numberOfItems(t, f.store, c1.ID))
			assert.Contains(t, f.index.docs, i1.ID)

			require.NoError(t, f.engine.Like(ctx, b.ID, i1.ID))
			liked, err := f.store.LikedItems(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{i1.ID}, liked)
			likers, err := f.store.LikingUsers(ctx, i1.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{b.ID}, likers)

			require.NoError(t, f.engine.DeleteItem(ctx, i1.ID))
			liked, err = f.store.LikedItems(ctx, b.ID)
			require.NoError(t, err)
			assert.Empty(t, liked)
			assert.Equal(t, int64(0), numberOfItems(t, f.store, c1.ID))
			assert.NotContains(t, f.index.docs, i1.ID)

			assertInvariants(t, f.store)
		})
	}
}

func TestLikeIsAddIfAbsent(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			item := f.item(t, f.collection(t, a.ID).ID)

			require.NoError(t, f.engine.Like(ctx, a.ID, item.ID))
			err := f.engine.Like(ctx, a.ID, item.ID)
			assert.True(t, types.Is(err, types.KindAlreadyLiked), "got %v", err)

			likers, err := f.store.LikingUsers(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{a.ID}, likers)

			assert.True(t, types.Is(f.engine.Like(ctx, a.ID, "missing"), types.KindNotFound))
			assertInvariants(t, f.store)
		})
	}
}

func TestConcurrentLikesInsertOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeSaga)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	item := f.item(t, f.collection(t, a.ID).ID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dupe int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.engine.Like(ctx, a.ID, item.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if types.Is(err, types.KindAlreadyLiked) {
				dupe++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, dupe)
	assertInvariants(t, f.store)
}

func TestUnlikeIsIdempotent(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			item := f.item(t, f.collection(t, a.ID).ID)
			require.NoError(t, f.engine.Like(ctx, a.ID, item.ID))

			require.NoError(t, f.engine.Unlike(ctx, a.ID, item.ID))
			require.NoError(t, f.engine.Unlike(ctx, a.ID, item.ID))

			liked, err := f.store.LikedItems(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, liked)
			assertInvariants(t, f.store)
		})
	}
}

func TestLikeCompensatesUserSide(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			item := f.item(t, f.collection(t, a.ID).ID)

			f.store.Fail("AddItemLike", nil)
			err := f.engine.Like(ctx, a.ID, item.ID)
			assert.ErrorIs(t, err, storetest.ErrInjected)
			f.store.Clear()

			liked, err := f.store.LikedItems(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, liked, "no one-sided like after failure")
			assertInvariants(t, f.store)
		})
	}
}

func TestCreateCollectionRollsBackOrphan(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)

			f.store.Fail("AddOwnedCollection", nil)
			_, err := f.engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C", Image: "img.png"})
			assert.ErrorIs(t, err, storetest.ErrInjected)

			ids, err := f.store.CollectionIDs(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids, "orphan collection removed")
			assert.Equal(t, []string{"img.png"}, f.blobs.deleted, "unreferenced upload released")
		})
	}
}

func TestCompensationFailureEscalatesToConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeSaga)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)

	f.store.Fail("AddOwnedCollection", nil).Fail("DeleteCollection", nil)
	_, err := f.engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C"})
	require.True(t, types.Is(err, types.KindConflict), "got %v", err)
	assert.ErrorIs(t, err, storetest.ErrInjected)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	ids, err := f.store.CollectionIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Contains(t, typed.IDs, ids[0], "conflict names the orphan")
}

func TestCreateItemValidatesSchema(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeTransaction)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	c := f.collection(t, a.ID)

	_, err := f.engine.CreateItem(ctx, c.ID, cascade.ItemSpec{
		Name: "bad", ItemData: map[string]interface{}{"title": "x", "price": 3},
	})
	assert.True(t, types.Is(err, types.KindInvalidState))
	assert.Contains(t, err.Error(), "price")

	_, err = f.engine.CreateItem(ctx, "missing", cascade.ItemSpec{Name: "x"})
	assert.True(t, types.Is(err, types.KindNotFound))
	assert.Equal(t, int64(0), numberOfItems(t, f.store, c.ID))
}

func TestCreateItemCompensatesFailedAttach(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			c := f.collection(t, a.ID)

			f.store.Fail("AttachItem", nil)
			_, err := f.engine.CreateItem(ctx, c.ID, cascade.ItemSpec{Name: "x"})
			assert.ErrorIs(t, err, storetest.ErrInjected)
			f.store.Clear()

			ids, err := f.store.ItemsReferencing(ctx, c.ID)
			require.NoError(t, err)
			assert.Empty(t, ids)
			assert.Empty(t, f.index.docs, "nothing indexed for a failed create")
			assertInvariants(t, f.store)
		})
	}
}

func TestDeleteItemStopsOnPartialLikeCleanup(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			b := storetest.SeedUser(t, f.store, "b", models.RoleUser)
			c := storetest.SeedUser(t, f.store, "c", models.RoleUser)
			col := f.collection(t, a.ID)
			item := f.item(t, col.ID)
			require.NoError(t, f.engine.Like(ctx, b.ID, item.ID))
			require.NoError(t, f.engine.Like(ctx, c.ID, item.ID))

			f.store.FailAfter("RemoveItemLike", 1, nil)
			err := f.engine.DeleteItem(ctx, item.ID)
			assert.ErrorIs(t, err, storetest.ErrInjected)
			f.store.Clear()

			_, err = f.store.GetItem(ctx, item.ID)
			require.NoError(t, err, "item survives")
			assert.Equal(t, int64(1), numberOfItems(t, f.store, col.ID))
			likers, err := f.store.LikingUsers(ctx, item.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{b.ID, c.ID}, likers)
			assertInvariants(t, f.store)

			// Retry succeeds
			require.NoError(t, f.engine.DeleteItem(ctx, item.ID))
			assertInvariants(t, f.store)
		})
	}
}

func TestDeleteItemCompensatesDetach(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeSaga)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	col := f.collection(t, a.ID)
	item := f.item(t, col.ID)
	_, err := f.engine.AddComment(ctx, item.ID, "a", "hello")
	require.NoError(t, err)

	f.store.Fail("DeleteItem", nil)
	err = f.engine.DeleteItem(ctx, item.ID)
	assert.ErrorIs(t, err, storetest.ErrInjected)
	f.store.Clear()

	comments, err := f.store.Comments(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, int64(1), numberOfItems(t, f.store, col.ID), "detach compensated")
	assertInvariants(t, f.store)
}

func TestDeleteCollection(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			b := storetest.SeedUser(t, f.store, "b", models.RoleUser)
			col, err := f.engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C", Image: "c.png", Schema: titleSchema})
			require.NoError(t, err)
			i1 := f.item(t, col.ID)
			i2 := f.item(t, col.ID)
			require.NoError(t, f.engine.Like(ctx, b.ID, i1.ID))
			require.NoError(t, f.engine.Like(ctx, a.ID, i2.ID))

			require.NoError(t, f.engine.DeleteCollection(ctx, col.ID))

			_, err = f.store.GetCollection(ctx, col.ID)
			assert.True(t, types.Is(err, types.KindNotFound))
			for _, id := range []string{i1.ID, i2.ID} {
				_, err = f.store.GetItem(ctx, id)
				assert.True(t, types.Is(err, types.KindNotFound))
			}
			owned, err := f.store.OwnedCollections(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, owned)
			for _, u := range []string{a.ID, b.ID} {
				liked, err := f.store.LikedItems(ctx, u)
				require.NoError(t, err)
				assert.Empty(t, liked)
			}
			assert.Equal(t, []string{"c.png"}, f.blobs.deleted)
			assert.ElementsMatch(t, []string{i1.ID, i2.ID}, f.index.removed)
			assertInvariants(t, f.store)
		})
	}
}

func TestDeleteCollectionCompensatesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeSaga)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	b := storetest.SeedUser(t, f.store, "b", models.RoleUser)
	col, err := f.engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C", Image: "c.png", Schema: titleSchema})
	require.NoError(t, err)
	i1 := f.item(t, col.ID)
	f.item(t, col.ID)
	require.NoError(t, f.engine.Like(ctx, b.ID, i1.ID))
	_, err = f.engine.AddComment(ctx, i1.ID, "b", "first")
	require.NoError(t, err)

	f.store.Fail("DeleteCollection", nil)
	err = f.engine.DeleteCollection(ctx, col.ID)
	assert.ErrorIs(t, err, storetest.ErrInjected)
	f.store.Clear()

	assert.Equal(t, int64(2), numberOfItems(t, f.store, col.ID))
	_, err = f.store.GetItem(ctx, i1.ID)
	require.NoError(t, err, "deleted items restored")
	comments, err := f.store.Comments(ctx, i1.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "first", comments[0].Body)
	liked, err := f.store.LikedItems(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{i1.ID}, liked)
	owned, err := f.store.OwnedCollections(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{col.ID}, owned)
	assert.Empty(t, f.blobs.deleted, "no blob released for a failed delete")
	assertInvariants(t, f.store)
}

func TestBulkDeleteUsersCascadeCompleteness(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			b := storetest.SeedUser(t, f.store, "b", models.RoleUser)
			other := storetest.SeedUser(t, f.store, "other", models.RoleUser)

			blocked := models.StatusBlocked
			require.NoError(t, f.store.UpdateUser(ctx, a.ID, store.UserFields{Status: &blocked}))

			var bItems []string
			for n := 0; n < 2; n++ {
				col := f.collection(t, b.ID)
				for m := 0; m < 3; m++ {
					item := f.item(t, col.ID)
					bItems = append(bItems, item.ID)
				}
			}
			otherItem := f.item(t, f.collection(t, other.ID).ID)
			require.NoError(t, f.engine.Like(ctx, other.ID, bItems[0]))
			require.NoError(t, f.engine.Like(ctx, other.ID, bItems[4]))
			require.NoError(t, f.engine.Like(ctx, b.ID, otherItem.ID))
			require.NoError(t, f.engine.Like(ctx, b.ID, bItems[1]))

			require.NoError(t, f.engine.DeleteUsers(ctx, []string{a.ID, b.ID}))

			for _, id := range []string{a.ID, b.ID} {
				_, err := f.store.GetUser(ctx, id)
				assert.True(t, types.Is(err, types.KindNotFound))
				authored, err := f.store.CollectionsAuthoredBy(ctx, id)
				require.NoError(t, err)
				assert.Empty(t, authored)
			}
			for _, id := range bItems {
				_, err := f.store.GetItem(ctx, id)
				assert.True(t, types.Is(err, types.KindNotFound))
				likers, err := f.store.UsersLiking(ctx, id)
				require.NoError(t, err)
				assert.Empty(t, likers)
			}
			liked, err := f.store.LikedItems(ctx, other.ID)
			require.NoError(t, err)
			assert.Empty(t, liked)
			likers, err := f.store.LikingUsers(ctx, otherItem.ID)
			require.NoError(t, err)
			assert.Empty(t, likers, "deleted user's likes stripped from surviving items")

			ids, err := f.store.CollectionIDs(ctx)
			require.NoError(t, err)
			assert.Len(t, ids, 1)
			assertInvariants(t, f.store)
		})
	}
}

func TestBulkDeleteReportsFailedIDs(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
			b := storetest.SeedUser(t, f.store, "b", models.RoleUser)
			f.collection(t, b.ID)

			err := f.engine.DeleteUsers(ctx, []string{a.ID, "missing", b.ID})
			require.True(t, types.Is(err, types.KindPartialFailure), "got %v", err)
			assert.Equal(t, []string{"missing"}, types.FailedIDs(err))

			for _, id := range []string{a.ID, b.ID} {
				_, err := f.store.GetUser(ctx, id)
				assert.True(t, types.Is(err, types.KindNotFound), "user %s not skipped", id)
			}
		})
	}
}

func TestBulkDeleteContinuesAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeSaga)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	b := storetest.SeedUser(t, f.store, "b", models.RoleUser)
	f.collection(t, a.ID)
	f.collection(t, b.ID)

	f.store.FailAfter("DeleteUser", 1, nil)
	err := f.engine.DeleteUsers(ctx, []string{a.ID, b.ID})
	f.store.Clear()
	require.True(t, types.Is(err, types.KindPartialFailure))
	failed := types.FailedIDs(err)
	require.Len(t, failed, 1)

	// The failed user is fully restored
	_, err = f.store.GetUser(ctx, failed[0])
	require.NoError(t, err)
	owned, err := f.store.OwnedCollections(ctx, failed[0])
	require.NoError(t, err)
	assert.Len(t, owned, 1)
	assertInvariants(t, f.store)
}

func TestBulkUpdateUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeTransaction)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	b := storetest.SeedUser(t, f.store, "b", models.RoleUser)

	role := models.RoleAdmin
	require.NoError(t, f.engine.BulkUpdateUsers(ctx, []string{a.ID, b.ID}, store.UserFields{Role: &role}))
	for _, id := range []string{a.ID, b.ID} {
		u, err := f.store.GetUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, u.Role)
	}

	err := f.engine.BulkUpdateUsers(ctx, []string{a.ID, "ghost"}, store.UserFields{Role: &role})
	assert.Equal(t, []string{"ghost"}, types.FailedIDs(err))

	err = f.engine.BulkUpdateUsers(ctx, []string{a.ID}, store.UserFields{})
	assert.True(t, types.Is(err, types.KindInvalidState))
}

func TestCancelledContextAbandonsAtStepBoundary(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t, mode)
			a := storetest.SeedUser(t, f.store, "a", models.RoleUser)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := f.engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C"})
			require.Error(t, err)

			ids, err := f.store.CollectionIDs(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestAddCommentAndEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeTransaction)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	col, err := f.engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C", Image: "old.png", Schema: titleSchema})
	require.NoError(t, err)
	item := f.item(t, col.ID)

	comment, err := f.engine.AddComment(ctx, item.ID, "a", "nice")
	require.NoError(t, err)
	assert.NotZero(t, comment.CommentID)
	_, err = f.engine.AddComment(ctx, "missing", "a", "nice")
	assert.True(t, types.Is(err, types.KindNotFound))

	img := "new.png"
	require.NoError(t, f.engine.EditCollection(ctx, col.ID, store.CollectionFields{Image: &img}))
	assert.Equal(t, []string{"old.png"}, f.blobs.deleted)

	name := "Renamed"
	require.NoError(t, f.engine.EditItem(ctx, item.ID, store.ItemFields{Name: &name}))
	assert.Equal(t, "Renamed", f.index.docs[item.ID].Name)

	err = f.engine.EditItem(ctx, item.ID, store.ItemFields{ItemData: map[string]interface{}{"nope": 1}})
	assert.True(t, types.Is(err, types.KindInvalidState))
}

func TestRepair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cascade.ModeTransaction)
	a := storetest.SeedUser(t, f.store, "a", models.RoleUser)
	col := f.collection(t, a.ID)
	item := f.item(t, col.ID)
	other := f.item(t, col.ID)

	require.NoError(t, f.store.SetItemCount(ctx, col.ID, 7))
	_, err := f.store.AddUserLike(ctx, a.ID, item.ID)
	require.NoError(t, err)
	_, err = f.store.AddItemLike(ctx, other.ID, a.ID)
	require.NoError(t, err)

	report, err := f.engine.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CollectionsChecked)
	assert.Equal(t, []cascade.CountFix{{CollectionID: col.ID, Was: 7, Now: 2}}, report.CountsFixed)
	assert.Len(t, report.UserSideRemoved, 1)
	assert.Len(t, report.ItemSideRemoved, 1)
	assertInvariants(t, f.store)

	report, err = f.engine.Repair(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.CountsFixed, "second pass finds nothing")
}

// racingStore lets another request run just before chosen calls reach the store
type racingStore struct {
	store.Store
	beforeDeleteItem  func()
	beforeAddUserLike func()
}

func (r *racingStore) DeleteItem(ctx context.Context, id string) error {
	if fn := r.beforeDeleteItem; fn != nil {
		r.beforeDeleteItem = nil
		fn()
	}
	return r.Store.DeleteItem(ctx, id)
}

func (r *racingStore) AddUserLike(ctx context.Context, userID, itemID string) (bool, error) {
	if fn := r.beforeAddUserLike; fn != nil {
		r.beforeAddUserLike = nil
		fn()
	}
	return r.Store.AddUserLike(ctx, userID, itemID)
}

func TestLikeRacingItemDeleteLeavesNoEdge(t *testing.T) {
	ctx := context.Background()
	inner := storetest.NewStore(t)
	racing := &racingStore{Store: inner}
	engine := cascade.New(racing, cascade.ModeSaga, cascade.Collaborators{})
	concurrent := cascade.New(inner, cascade.ModeSaga, cascade.Collaborators{})

	a := storetest.SeedUser(t, inner, "a", models.RoleUser)
	b := storetest.SeedUser(t, inner, "b", models.RoleUser)
	col, err := engine.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C1", Topic: "Books", Schema: titleSchema})
	require.NoError(t, err)
	item, err := engine.CreateItem(ctx, col.ID, cascade.ItemSpec{Name: "I1", ItemData: map[string]interface{}{"title": "x"}})
	require.NoError(t, err)

	// The like lands after the liker snapshot, before the record goes
	var likeErr error
	racing.beforeDeleteItem = func() { likeErr = concurrent.Like(ctx, b.ID, item.ID) }
	require.NoError(t, engine.DeleteItem(ctx, item.ID))
	require.NoError(t, likeErr)

	liked, err := inner.LikedItems(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, liked)
	likers, err := inner.LikingUsers(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, likers)
	assertInvariants(t, inner)
}

func TestLikeOfItemDeletedMidPlanIsNotFound(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			inner := storetest.NewStore(t)
			racing := &racingStore{Store: inner}
			engine := cascade.New(racing, cascade.ModeSaga, cascade.Collaborators{})
			concurrent := cascade.New(inner, mode, cascade.Collaborators{})

			a := storetest.SeedUser(t, inner, "a", models.RoleUser)
			b := storetest.SeedUser(t, inner, "b", models.RoleUser)
			col, err := concurrent.CreateCollection(ctx, a.ID, cascade.CollectionSpec{Name: "C1", Topic: "Books", Schema: titleSchema})
			require.NoError(t, err)
			item, err := concurrent.CreateItem(ctx, col.ID, cascade.ItemSpec{Name: "I1", ItemData: map[string]interface{}{"title": "x"}})
			require.NoError(t, err)

			racing.beforeAddUserLike = func() { require.NoError(t, concurrent.DeleteItem(ctx, item.ID)) }
			err = engine.Like(ctx, b.ID, item.ID)
			assert.True(t, types.Is(err, types.KindNotFound), "got %v", err)

			liked, err := inner.LikedItems(ctx, b.ID)
			require.NoError(t, err)
			assert.Empty(t, liked)
			assertInvariants(t, inner)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := cascade.ParseMode("SAGA")
	require.NoError(t, err)
	assert.Equal(t, cascade.ModeSaga, m)

	m, err = cascade.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, cascade.ModeTransaction, m)

	_, err = cascade.ParseMode("eventual")
	assert.Error(t, err)
}

func TestDocumentIndexesEveryValueAndComments(t *testing.T) {
	data, err := models.NewJSON(map[string]interface{}{
		"title": "Les Paul", "year": 1962, "price": 2499.5, "relic": true, "bought": "2020-05-01", "notes": nil,
	})
	require.NoError(t, err)
	item := &models.Item{ID: "i1", CollectionID: "c1", Name: "Guitar", ItemData: data}

	doc := cascade.Document(item, []models.Comment{{Body: "Sunburst finish"}, {Body: "  "}})
	assert.Equal(t, "2020-05-01\n2499.5\ntrue\nLes Paul\n1962\nSunburst finish", doc.Text)
	assert.Equal(t, "c1", doc.CollectionID)
}

func TestAddCommentReindexesItem(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []cascade.Mode{cascade.ModeTransaction, cascade.ModeSaga} {
		f := newFixture(t, mode)
		u := storetest.SeedUser(t, f.store, "alice", models.RoleUser)
		c := f.collection(t, u.ID)
		item := f.item(t, c.ID)
		assert.Equal(t, "x", f.index.docs[item.ID].Text)

		_, err := f.engine.AddComment(ctx, item.ID, "alice", "Sunburst finish")
		require.NoError(t, err)
		assert.Equal(t, "x\nSunburst finish", f.index.docs[item.ID].Text)

		title := map[string]interface{}{"title": "y"}
		require.NoError(t, f.engine.EditItem(ctx, item.ID, store.ItemFields{ItemData: title}))
		assert.Equal(t, "y\nSunburst finish", f.index.docs[item.ID].Text, "edits keep comment text")
	}
}
