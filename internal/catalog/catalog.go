// Package catalog enumerates a software catalog stored as a git checkout: a
// settings file at the root and one metadata JSON file per repository under
// <database>/<host>/<owner>/<repo>/.
package catalog

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rseng/rseng-activity/internal/model"
)

// Filesystem is a catalog backed by a directory tree.
type Filesystem struct {
	root     string
	database string
	metaFile string
}

// Open loads the settings file and checks that the database directory exists.
func Open(settingsPath string) (*Filesystem, error) {
	abs, err := filepath.Abs(settingsPath)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: resolve settings path")
	}
	s, err := LoadSettings(abs)
	if err != nil {
		return nil, err
	}

	root := filepath.Dir(abs)
	database := s.Database
	if !filepath.IsAbs(database) {
		database = filepath.Join(root, database)
	}
	info, err := os.Stat(database)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: database %s", database)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("catalog: database %s is not a directory", database)
	}

	return &Filesystem{root: root, database: database, metaFile: s.MetadataFile}, nil
}

// Root returns the directory holding the settings file. History queries for
// entry metadata files run against this checkout.
func (c *Filesystem) Root() string {
	return c.root
}

// List returns entry identifiers in lexical order.
func (c *Filesystem) List(ctx context.Context) ([]string, error) {
	var uids []string
	err := filepath.WalkDir(c.database, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || d.Name() != c.metaFile {
			return nil
		}
		rel, err := filepath.Rel(c.database, filepath.Dir(path))
		if err != nil {
			return err
		}
		uids = append(uids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: walk database")
	}
	sort.Strings(uids)
	return uids, nil
}

// Get reads one entry's metadata.
func (c *Filesystem) Get(_ context.Context, uid string) (*model.CatalogEntry, error) {
	path := filepath.Join(c.database, filepath.FromSlash(uid), c.metaFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read entry %s", uid)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrapf(err, "catalog: decode entry %s", uid)
	}

	entry := &model.CatalogEntry{UID: uid, Filename: path, Data: data}
	if u, ok := data["url"].(string); ok {
		entry.URL = u
	}
	if id, ok := data["uid"].(string); ok && id != "" {
		entry.UID = id
	}
	return entry, nil
}
