// Package filedb implements the persistence facade on a directory tree of
// pretty-printed JSON documents, one file per entity:
//
//	users/<handle>.json
//	posts/<authorHandle>/<id>.json
//	chats/<id>.json
//	messages/<chatId>/<id>.json
//
// User identifiers are handles; post, chat and message identifiers are
// generated UUIDs. Every write is a whole-file read-modify-write with no
// locking: concurrent writers to the same entity race and the last write
// wins at file granularity.
//
// The filesystem is an afero.Fs so tests run against an in-memory tree.
package filedb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"github.com/spf13/afero"
)

// errMalformed marks a stored document that failed to decode. Listing paths
// skip such documents; single-record user reads repair them.
var errMalformed = errors.New("malformed stored document")

type db struct {
	fs   afero.Fs
	root string
	log  *observability.StoreLogger
}

// Open prepares the directory tree under root and returns the three
// file-backed repositories.
func Open(fsys afero.Fs, root string) (*repository.Store, error) {
	d := &db{fs: fsys, root: root, log: observability.NewStoreLogger("file")}
	for _, dir := range []string{"users", "posts", "chats", "messages"} {
		if err := fsys.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}
	users := &userStore{db: d}
	posts := &postStore{db: d, users: users}
	chats := &chatStore{db: d, users: users}
	return &repository.Store{Users: users, Posts: posts, Chats: chats}, nil
}

func (d *db) path(parts ...string) string {
	return filepath.Join(append([]string{d.root}, parts...)...)
}

// readJSON decodes the document at path into v. A missing file is reported
// as os.ErrNotExist; a decode failure as errMalformed.
func (d *db) readJSON(path string, v any) error {
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// writeJSON persists v at path as an indented JSON document, creating the
// parent directory as needed.
func (d *db) writeJSON(path string, v any) error {
	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(d.fs, path, data, 0o644)
}

// listDocs returns the names (without extension) of the JSON documents in
// dir, sorted for deterministic iteration. A missing directory is an empty
// listing.
func (d *db) listDocs(dir string) ([]string, error) {
	infos, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(info.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// listDirs returns the subdirectory names of dir, sorted. A missing
// directory is an empty listing.
func (d *db) listDirs(dir string) ([]string, error) {
	infos, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// contains reports whether set holds v.
func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// without returns set with every occurrence of v removed.
func without(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
