// Package state persists the seen-set: a per-bucket record of item ids
// already processed on previous runs. It is a single flat JSON file,
// loaded once per run and saved with an atomic replace.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultCap bounds each bucket to the highest-sorting N ids.
const DefaultCap = 2000

// Store is the in-memory seen-set. Buckets hold ascending-sorted id
// lists; MarkSeen enforces the cap on every write.
type Store struct {
	seen map[string][]string
	cap  int
}

// fileFormat is the persisted shape. Unknown top-level keys in an
// existing file are ignored on load.
type fileFormat struct {
	SeenIDs map[string][]string `json:"seen_ids"`
}

// New returns an empty store with the given bucket cap; cap <= 0 selects
// DefaultCap.
func New(capN int) *Store {
	if capN <= 0 {
		capN = DefaultCap
	}
	return &Store{seen: make(map[string][]string), cap: capN}
}

// Load reads the seen-set at path. A missing file yields an empty store;
// a file that exists but cannot be parsed is an error, because silently
// starting over would re-notify on every previously seen item.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(0), nil
		}
		return nil, fmt.Errorf("state: failed to read %s: %w", path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("state: failed to parse %s: %w", path, err)
	}

	s := New(0)
	for bucket, ids := range ff.SeenIDs {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		s.seen[bucket] = sorted
	}
	return s, nil
}

// HasSeen reports whether id was recorded in bucket. Pure lookup.
func (s *Store) HasSeen(bucket, id string) bool {
	ids := s.seen[bucket]
	i := sort.SearchStrings(ids, id)
	return i < len(ids) && ids[i] == id
}

// MarkSeen adds ids to bucket and truncates the bucket to the cap,
// keeping the highest-sorting ids. Sorting opaque ids is only a proxy
// for recency, but the truncation rule is load-bearing for dedup
// stability and must not change.
func (s *Store) MarkSeen(bucket string, ids []string) {
	if len(ids) == 0 {
		return
	}
	set := make(map[string]struct{}, len(s.seen[bucket])+len(ids))
	for _, id := range s.seen[bucket] {
		set[id] = struct{}{}
	}
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}

	merged := make([]string, 0, len(set))
	for id := range set {
		merged = append(merged, id)
	}
	sort.Strings(merged)
	if len(merged) > s.cap {
		merged = merged[len(merged)-s.cap:]
	}
	s.seen[bucket] = merged
}

// Bucket returns a copy of the ids recorded for bucket, sorted.
func (s *Store) Bucket(bucket string) []string {
	return append([]string(nil), s.seen[bucket]...)
}

// Save writes the seen-set to path via a temp file and rename, so a
// crash mid-write never truncates the canonical file.
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("state: failed to create %s: %w", filepath.Dir(path), err)
	}

	out, err := json.MarshalIndent(fileFormat{SeenIDs: s.seen}, "", "  ")
	if err != nil {
		return fmt.Errorf("state: failed to encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("state: failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("state: failed to replace %s: %w", path, err)
	}
	return nil
}
