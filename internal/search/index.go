// index.go
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

// Package search keeps a full-text index of catalog items in a SQLite FTS5
// table, separate from the catalog database.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
)

// Document is the indexed view of one item
type Document struct {
	ID           string
	CollectionID string
	Name         string
	Tags         []string
	Text         string
}

// Match is one search hit, best first
type Match struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Rank float64 `json:"-"`
}

// Index is an FTS5 item index
type Index struct {
	db *sql.DB
}

// Open opens (creating if needed) the index at path. ":memory:" keeps it in process.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	// FTS writes serialize on the file lock anyway
	db.SetMaxOpenConns(1)

	stmts := []string{
		`PRAGMA busy_timeout=5000;`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS item_fts
			USING fts5(item_id UNINDEXED, collection_id UNINDEXED, name, tags, body);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize search index: %w", err)
		}
	}
	return &Index{db: db}, nil
}

// Close closes the index
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Ping checks the index connection
func (ix *Index) Ping(ctx context.Context) error {
	return ix.db.PingContext(ctx)
}

// Index replaces the entry of doc
func (ix *Index) Index(ctx context.Context, doc Document) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_fts WHERE item_id = ?`, doc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO item_fts (item_id, collection_id, name, tags, body) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.CollectionID, doc.Name, strings.Join(doc.Tags, " "), doc.Text,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Remove drops the entries of ids
func (ix *Index) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := ix.db.ExecContext(ctx, `DELETE FROM item_fts WHERE item_id IN (`+placeholders+`)`, args...)
	return err
}

// Query returns up to limit items matching every term of text, as prefixes
func (ix *Index) Query(ctx context.Context, text string, limit int) ([]Match, error) {
	expr := matchExpr(text)
	matches := []Match{}
	if expr == "" {
		return matches, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT item_id, name, rank
		FROM item_fts
		WHERE item_fts MATCH ?
		ORDER BY rank LIMIT ?`, expr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Name, &m.Rank); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// matchExpr turns free text into an FTS5 expression of quoted prefix terms,
// so user input never reaches the query syntax.
func matchExpr(text string) string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, `"`+t+`"*`)
	}
	return strings.Join(parts, " ")
}
