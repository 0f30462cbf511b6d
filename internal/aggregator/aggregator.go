// Package aggregator orchestrates the source adapters over the
// configured source list and owns the seen-set for the duration of a
// run: adapters only read it, the aggregator (or its caller, in
// deferred mode) commits new ids and persists.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/extract"
	"github.com/skawahara/update-agent/internal/feed"
	"github.com/skawahara/update-agent/internal/httpx"
	"github.com/skawahara/update-agent/internal/source"
	"github.com/skawahara/update-agent/internal/state"
)

// CommitMode selects when newly collected item ids are marked seen.
type CommitMode int

const (
	// CommitImmediate marks each source's new ids as seen right after
	// that source returns, and persists once at the end of Collect.
	// Items that are then lost downstream are skipped on the next run;
	// that is the accepted tradeoff of this mode.
	CommitImmediate CommitMode = iota
	// CommitDeferred leaves the seen-set untouched during collection.
	// The caller marks the subset it actually delivered and saves; a
	// crash before that re-fetches the same items next run.
	CommitDeferred
)

const stateFileName = "state.json"

// Result is the outcome of one collection pass.
type Result struct {
	Items      []feed.Item
	Store      *state.Store
	StatePath  string
	StorageDir string
}

type Aggregator struct {
	cfg     *config.Config
	sources []source.Source
}

// New builds an aggregator over an explicit source list, in order.
func New(cfg *config.Config, sources []source.Source) *Aggregator {
	return &Aggregator{cfg: cfg, sources: sources}
}

// BuildSources constructs the configured adapters in config order:
// blogs, then YouTube channels, then bioRxiv queries.
func BuildSources(cfg *config.Config, client *httpx.Client, extractor extract.Extractor) []source.Source {
	var sources []source.Source
	for _, e := range cfg.Sources.Blogs {
		sources = append(sources, source.NewBlog(e, client, extractor))
	}
	for _, e := range cfg.Sources.YouTube {
		sources = append(sources, source.NewYouTube(e, client))
	}
	for _, e := range cfg.Sources.BioRxiv {
		sources = append(sources, source.NewBioRxiv(e, client))
	}
	return sources
}

// Collect loads the seen-set, runs every source adapter, and merges the
// new items into one sequence. A failing source is logged and skipped;
// only a corrupt or unwritable seen-set aborts the run. Collect applies
// no ordering or caps of its own.
func (a *Aggregator) Collect(ctx context.Context, mode CommitMode) (*Result, error) {
	storageDir, err := a.cfg.ResolvedStorageDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("aggregator: failed to create storage dir: %w", err)
	}

	statePath := filepath.Join(storageDir, stateFileName)
	store, err := state.Load(statePath)
	if err != nil {
		return nil, err
	}

	var items []feed.Item
	for _, src := range a.sources {
		newItems, err := src.FetchNew(ctx, store)
		if err != nil {
			log.Printf("[%s] Fetch failed: %v", src.Key(), err)
			continue
		}
		if mode == CommitImmediate {
			ids := make([]string, 0, len(newItems))
			for _, it := range newItems {
				ids = append(ids, it.ID)
			}
			store.MarkSeen(src.Key(), ids)
		}
		items = append(items, newItems...)
	}

	if mode == CommitImmediate {
		if err := store.Save(statePath); err != nil {
			return nil, err
		}
	}

	return &Result{
		Items:      items,
		Store:      store,
		StatePath:  statePath,
		StorageDir: storageDir,
	}, nil
}
