// blob.go
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

// Package blob stores uploaded collection images on the local filesystem
// and hands out references to them.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidRef is returned for references that do not name a stored blob
var ErrInvalidRef = errors.New("invalid blob reference")

// Store is a directory of blobs named by reference
type Store struct {
	dir string
}

// New creates the blob directory if needed
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the blob directory
func (s *Store) Dir() string {
	return s.dir
}

// Put stores data and returns its reference. The extension follows contentType.
func (s *Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := ""
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[0]
	}
	ref := uuid.NewString() + ext

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, ref)); err != nil {
		return "", err
	}
	return ref, nil
}

// Path resolves a reference to its file path
func (s *Store) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.dir, ref), nil
}

// Delete removes a blob; deleting a missing blob is not an error
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Writable checks that the directory accepts new files
func (s *Store) Writable() error {
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
