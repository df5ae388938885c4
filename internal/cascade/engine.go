// engine.go
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

// Package cascade applies multi-record mutations over the User, Collection,
// Item and Like graph so that item counters and like edges stay consistent,
// including after a mid-sequence failure.
package cascade

import (
	"context"
	"log"
	"time"

	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/store"
)

// BlobReleaser deletes stored blobs by reference
type BlobReleaser interface {
	Delete(ctx context.Context, ref string) error
}

// Indexer keeps the item search index in step with the catalog
type Indexer interface {
	Index(ctx context.Context, doc search.Document) error
	Remove(ctx context.Context, ids ...string) error
}

// Collaborators are the external services touched after a unit commits.
// Either may be nil.
type Collaborators struct {
	Blobs BlobReleaser
	Index Indexer
}

// Engine runs cascade operations against a store
type Engine struct {
	store store.Store
	mode  Mode
	ext   Collaborators
	now   func() time.Time
}

// New creates an Engine
func New(s store.Store, mode Mode, ext Collaborators) *Engine {
	return &Engine{
		store: s,
		mode:  mode,
		ext:   ext,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Mode returns the engine's mode
func (e *Engine) Mode() Mode {
	return e.mode
}

// Store returns the engine's store
func (e *Engine) Store() store.Store {
	return e.store
}

// releaseBlob runs after commit; a failure leaves an unreferenced blob only
func (e *Engine) releaseBlob(ctx context.Context, ref string) {
	if e.ext.Blobs == nil || ref == "" {
		return
	}
	if err := e.ext.Blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		log.Printf("blob release %s failed: %v", ref, err)
	}
}

func (e *Engine) indexItem(ctx context.Context, doc search.Document) {
	if e.ext.Index == nil {
		return
	}
	if err := e.ext.Index.Index(context.WithoutCancel(ctx), doc); err != nil {
		log.Printf("search index update for item %s failed: %v", doc.ID, err)
	}
}

// reindexItem rebuilds an item's document from committed state
func (e *Engine) reindexItem(ctx context.Context, itemID string) {
	if e.ext.Index == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		log.Printf("search reindex of item %s skipped: %v", itemID, err)
		return
	}
	comments, err := e.store.Comments(ctx, itemID)
	if err != nil {
		log.Printf("search reindex of item %s skipped: %v", itemID, err)
		return
	}
	e.indexItem(ctx, Document(item, comments))
}

func (e *Engine) unindexItems(ctx context.Context, ids []string) {
	if e.ext.Index == nil || len(ids) == 0 {
		return
	}
	if err := e.ext.Index.Remove(context.WithoutCancel(ctx), ids...); err != nil {
		log.Printf("search index removal of %d item(s) failed: %v", len(ids), err)
	}
}
