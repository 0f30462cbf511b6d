// Package runner orchestrates one digest run: collect new items with
// deferred seen-set commit, summarize, render, deliver, and only then
// mark the rendered items seen. A crash before the commit means the
// next run fetches the same items again instead of silently dropping
// them.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skawahara/update-agent/internal/aggregator"
	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/deliver"
	"github.com/skawahara/update-agent/internal/feed"
	"github.com/skawahara/update-agent/internal/render"
)

// Collector produces the run's new items; satisfied by the aggregator.
type Collector interface {
	Collect(ctx context.Context, mode aggregator.CommitMode) (*aggregator.Result, error)
}

// Summarizer maps one item to its digest summary; satisfied by the
// summarizer router.
type Summarizer interface {
	Summarize(ctx context.Context, item feed.Item) string
}

type Runner struct {
	cfg        *config.Config
	collector  Collector
	summarizer Summarizer
	deliverers []deliver.Deliverer
}

func New(cfg *config.Config, c Collector, s Summarizer, deliverers []deliver.Deliverer) *Runner {
	return &Runner{cfg: cfg, collector: c, summarizer: s, deliverers: deliverers}
}

// Run executes the full pipeline once.
func (r *Runner) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	log.Printf("[run %s] Collecting from configured sources...", runID)

	res, err := r.collector.Collect(ctx, aggregator.CommitDeferred)
	if err != nil {
		return fmt.Errorf("runner: collect failed: %w", err)
	}
	log.Printf("[run %s] Collected %d new items", runID, len(res.Items))

	// Newest first, capped by the run limit. The published strings are
	// source-provided and compared as-is.
	items := append([]feed.Item(nil), res.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published > items[j].Published
	})
	if r.cfg.Limit > 0 && len(items) > r.cfg.Limit {
		items = items[:r.cfg.Limit]
	}

	if len(items) == 0 {
		log.Printf("[run %s] No new posts found.", runID)
		return nil
	}

	entries := make([]render.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, render.Entry{
			Item:    it,
			Summary: r.summarizer.Summarize(ctx, it),
		})
	}

	baseDir := res.StorageDir
	if r.cfg.Output.SaveDir != "" {
		baseDir = r.cfg.Output.SaveDir
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("runner: failed to create output dir: %w", err)
	}

	out, err := render.New(baseDir, r.cfg.Output.Formats).WriteDigest(entries)
	if err != nil {
		return fmt.Errorf("runner: render failed: %w", err)
	}
	if out.MarkdownPath != "" {
		log.Printf("[run %s] Wrote md: %s", runID, out.MarkdownPath)
	}
	if out.HTMLPath != "" {
		log.Printf("[run %s] Wrote html: %s", runID, out.HTMLPath)
	}

	if out.HTMLPath != "" {
		date := time.Now().Format("2006-01-02")
		for _, d := range r.deliverers {
			if err := d.Deliver(ctx, out.HTMLPath, date); err != nil {
				log.Printf("[run %s] WARNING: %s delivery failed: %v", runID, d.Name(), err)
			} else {
				log.Printf("[run %s] Delivered via %s", runID, d.Name())
			}
		}
	}

	// Deferred commit: only what was actually rendered becomes seen.
	perBucket := make(map[string][]string)
	for _, it := range items {
		perBucket[it.SourceKey] = append(perBucket[it.SourceKey], it.ID)
	}
	for bucket, ids := range perBucket {
		res.Store.MarkSeen(bucket, ids)
	}
	if err := res.Store.Save(res.StatePath); err != nil {
		return fmt.Errorf("runner: %w", err)
	}

	log.Printf("[run %s] Done: %d items digested", runID, len(items))
	return nil
}
