// Package source implements the per-source-type adapters: each fetches
// from one external source, normalizes entries into feed.Item records,
// and filters out items already present in the seen-set. Adapters never
// mutate the seen-set; committing new ids is the aggregator's job.
package source

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/skawahara/update-agent/internal/feed"
	"github.com/skawahara/update-agent/internal/httpx"
)

// Seen is the read-only view of the seen-set that adapters dedup against.
type Seen interface {
	HasSeen(bucket, id string) bool
}

// Source is one configured source adapter. FetchNew returns only items
// whose ids are absent from the seen-set snapshot; a disabled or
// unresolvable source yields an empty result, not an error.
type Source interface {
	Key() string
	FetchNew(ctx context.Context, seen Seen) ([]feed.Item, error)
}

func newFeedParser(client *httpx.Client) *gofeed.Parser {
	p := gofeed.NewParser()
	p.Client = client.HTTPClient()
	return p
}

// entryTime returns the best-available timestamp for ordering feed
// entries; entries without one sort as the epoch.
func entryTime(e *gofeed.Item) time.Time {
	if e.PublishedParsed != nil {
		return *e.PublishedParsed
	}
	if e.UpdatedParsed != nil {
		return *e.UpdatedParsed
	}
	return time.Time{}
}

// entryPublished returns the entry's raw timestamp string, preferring
// published over updated.
func entryPublished(e *gofeed.Item) string {
	if e.Published != "" {
		return e.Published
	}
	return e.Updated
}

// entryID picks the dedup id: the feed-assigned id when present, else
// the entry link.
func entryID(e *gofeed.Item) string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.Link
}
