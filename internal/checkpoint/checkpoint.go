// Package checkpoint persists the collection stores: JSON objects keyed by
// repository URL, rewritten in full after every processed entry so an
// interrupted run loses at most the entry in flight.
package checkpoint

import "github.com/rotisserie/eris"

// Store file names inside a run directory.
const (
	ActivityFile = "last-commit-times.json"
	DatesFile    = "rsepedia-times.json"
	ResultsFile  = "results.json"
)

// Store is an in-memory map mirrored to a JSON file. It is not safe for
// concurrent use; one collection process owns a run directory.
type Store[V any] struct {
	path    string
	entries map[string]V
}

// Open loads the store at path. A missing file is an empty store.
func Open[V any](path string) (*Store[V], error) {
	entries := make(map[string]V)
	found, err := ReadJSON(path, &entries)
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: open %s", path)
	}
	if !found || entries == nil {
		entries = make(map[string]V)
	}
	return &Store[V]{path: path, entries: entries}, nil
}

// Has reports whether url is present.
func (s *Store[V]) Has(url string) bool {
	_, ok := s.entries[url]
	return ok
}

// Put sets the value for url. It does not write to disk.
func (s *Store[V]) Put(url string, v V) {
	s.entries[url] = v
}

// Len returns the number of entries.
func (s *Store[V]) Len() int { return len(s.entries) }

// Snapshot returns a copy of the entries.
func (s *Store[V]) Snapshot() map[string]V {
	out := make(map[string]V, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Flush rewrites the whole file.
func (s *Store[V]) Flush() error {
	return eris.Wrapf(WriteJSON(s.path, s.entries), "checkpoint: flush %s", s.path)
}
