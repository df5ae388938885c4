// Package storetest provides an in-memory store and a fault-injecting
// wrapper for exercising compensation paths.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrInjected is the default injected failure
var ErrInjected = errors.New("injected failure")

// NewDB opens a migrated in-memory SQLite database
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	// One connection keeps every statement on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// NewStore returns a GormStore over NewDB
func NewStore(t testing.TB) *store.GormStore {
	return store.NewGormStore(NewDB(t))
}

// SeedUser creates an active user
func SeedUser(t testing.TB, s store.Store, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Role: role}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return u
}

// Faulty wraps a Store and fails chosen methods
type Faulty struct {
	store.Store
	faults *faults
}

type fault struct {
	after int
	err   error
}

type faults struct {
	mu    sync.Mutex
	rules map[string]*fault
	calls map[string]int
}

// NewFaulty wraps inner with no faults armed
func NewFaulty(inner store.Store) *Faulty {
	return &Faulty{Store: inner, faults: &faults{rules: map[string]*fault{}, calls: map[string]int{}}}
}

// Fail makes method fail on every call with err (ErrInjected when nil)
func (f *Faulty) Fail(method string, err error) *Faulty {
	return f.FailAfter(method, 0, err)
}

// FailAfter lets method succeed n times and then fail with err
func (f *Faulty) FailAfter(method string, n int, err error) *Faulty {
	if err == nil {
		err = ErrInjected
	}
	f.faults.mu.Lock()
	defer f.faults.mu.Unlock()
	f.faults.rules[method] = &fault{after: n, err: err}
	f.faults.calls[method] = 0
	return f
}

// Clear disarms every fault
func (f *Faulty) Clear() {
	f.faults.mu.Lock()
	defer f.faults.mu.Unlock()
	f.faults.rules = map[string]*fault{}
}

// Calls returns how many times method was invoked
func (f *Faulty) Calls(method string) int {
	f.faults.mu.Lock()
	defer f.faults.mu.Unlock()
	return f.faults.calls[method]
}

func (f *Faulty) check(method string) error {
	f.faults.mu.Lock()
	defer f.faults.mu.Unlock()
	f.faults.calls[method]++
	rule, ok := f.faults.rules[method]
	if !ok {
		return nil
	}
	if f.faults.calls[method] > rule.after {
		return rule.err
	}
	return nil
}

// Transaction keeps the faults armed inside the unit
func (f *Faulty) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(&Faulty{Store: tx, faults: f.faults})
	})
}

func (f *Faulty) CreateUser(ctx context.Context, u *models.User) error {
	if err := f.check("CreateUser"); err != nil {
		return err
	}
	return f.Store.CreateUser(ctx, u)
}

func (f *Faulty) RestoreUser(ctx context.Context, u *models.User) error {
	if err := f.check("RestoreUser"); err != nil {
		return err
	}
	return f.Store.RestoreUser(ctx, u)
}

func (f *Faulty) UpdateUser(ctx context.Context, id string, fields store.UserFields) error {
	if err := f.check("UpdateUser"); err != nil {
		return err
	}
	return f.Store.UpdateUser(ctx, id, fields)
}

func (f *Faulty) DeleteUser(ctx context.Context, id string) error {
	if err := f.check("DeleteUser"); err != nil {
		return err
	}
	return f.Store.DeleteUser(ctx, id)
}

func (f *Faulty) AddOwnedCollection(ctx context.Context, userID, collectionID string) error {
	if err := f.check("AddOwnedCollection"); err != nil {
		return err
	}
	return f.Store.AddOwnedCollection(ctx, userID, collectionID)
}

func (f *Faulty) RemoveOwnedCollection(ctx context.Context, userID, collectionID string) error {
	if err := f.check("RemoveOwnedCollection"); err != nil {
		return err
	}
	return f.Store.RemoveOwnedCollection(ctx, userID, collectionID)
}

func (f *Faulty) AddUserLike(ctx context.Context, userID, itemID string) (bool, error) {
	if err := f.check("AddUserLike"); err != nil {
		return false, err
	}
	return f.Store.AddUserLike(ctx, userID, itemID)
}

func (f *Faulty) RemoveUserLike(ctx context.Context, userID, itemID string) (bool, error) {
	if err := f.check("RemoveUserLike"); err != nil {
		return false, err
	}
	return f.Store.RemoveUserLike(ctx, userID, itemID)
}

func (f *Faulty) CreateCollection(ctx context.Context, c *models.Collection) error {
	if err := f.check("CreateCollection"); err != nil {
		return err
	}
	return f.Store.CreateCollection(ctx, c)
}

func (f *Faulty) DeleteCollection(ctx context.Context, id string) error {
	if err := f.check("DeleteCollection"); err != nil {
		return err
	}
	return f.Store.DeleteCollection(ctx, id)
}

func (f *Faulty) AttachItem(ctx context.Context, collectionID, itemID string) error {
	if err := f.check("AttachItem"); err != nil {
		return err
	}
	return f.Store.AttachItem(ctx, collectionID, itemID)
}

func (f *Faulty) DetachItem(ctx context.Context, collectionID, itemID string) (store.DetachResult, error) {
	if err := f.check("DetachItem"); err != nil {
		return store.DetachResult{}, err
	}
	return f.Store.DetachItem(ctx, collectionID, itemID)
}

func (f *Faulty) CreateItem(ctx context.Context, item *models.Item) error {
	if err := f.check("CreateItem"); err != nil {
		return err
	}
	return f.Store.CreateItem(ctx, item)
}

func (f *Faulty) DeleteItem(ctx context.Context, id string) error {
	if err := f.check("DeleteItem"); err != nil {
		return err
	}
	return f.Store.DeleteItem(ctx, id)
}

func (f *Faulty) AddItemLike(ctx context.Context, itemID, userID string) (bool, error) {
	if err := f.check("AddItemLike"); err != nil {
		return false, err
	}
	return f.Store.AddItemLike(ctx, itemID, userID)
}

func (f *Faulty) RemoveItemLike(ctx context.Context, itemID, userID string) (bool, error) {
	if err := f.check("RemoveItemLike"); err != nil {
		return false, err
	}
	return f.Store.RemoveItemLike(ctx, itemID, userID)
}
