package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/extract"
	"github.com/skawahara/update-agent/internal/feed"
	"github.com/skawahara/update-agent/internal/httpx"
)

// Blog fetches new posts from an RSS/Atom feed, resolving the feed URL
// from the configured locator when no explicit feed is given, and runs
// each new post through the content extractor.
type Blog struct {
	entry     config.SourceEntry
	client    *httpx.Client
	parser    *gofeed.Parser
	extractor extract.Extractor
}

func NewBlog(entry config.SourceEntry, client *httpx.Client, extractor extract.Extractor) *Blog {
	return &Blog{
		entry:     entry,
		client:    client,
		parser:    newFeedParser(client),
		extractor: extractor,
	}
}

func (b *Blog) Key() string { return b.entry.Key }

func (b *Blog) FetchNew(ctx context.Context, seen Seen) ([]feed.Item, error) {
	if !b.entry.IsEnabled() {
		return nil, nil
	}

	feedURL := b.resolveFeedURL(ctx)
	if feedURL == "" {
		log.Printf("[%s] No feed found; skipping", b.entry.Key)
		return nil, nil
	}

	f, err := b.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("blog %s: failed to parse feed %s: %w", b.entry.Key, feedURL, err)
	}

	entries := append([]*gofeed.Item(nil), f.Items...)
	// Oldest first, so anything written incrementally downstream stays
	// in causal order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entryTime(entries[i]).Before(entryTime(entries[j]))
	})

	var items []feed.Item
	for _, e := range entries {
		id := entryID(e)
		if id == "" || seen.HasSeen(b.entry.Key, id) {
			continue
		}

		title := e.Title
		if title == "" {
			title = "Untitled"
		}

		// Extraction failure still yields the item with empty text; it
		// must register as seen either way.
		var text string
		if e.Link != "" && b.extractor != nil {
			md, err := b.extractor.Extract(ctx, e.Link)
			if err != nil {
				log.Printf("[%s] Extraction failed for %s: %v", b.entry.Key, e.Link, err)
			} else {
				text = md
			}
		}

		items = append(items, feed.Item{
			ID:        id,
			Kind:      feed.KindBlog,
			SourceKey: b.entry.Key,
			Title:     title,
			URL:       e.Link,
			Published: entryPublished(e),
			Text:      text,
			Metadata: map[string]any{
				"display_name": displayName(b.entry),
			},
		})
	}
	return items, nil
}

// resolveFeedURL tries, in order: the explicit feed URL, a Substack-style
// "<home>/feed", autodiscovery from the homepage's link tags, and finally
// common platform feed paths probed with lightweight requests.
func (b *Blog) resolveFeedURL(ctx context.Context) string {
	if b.entry.Feed != "" {
		return b.entry.Feed
	}
	if b.entry.Substack != "" {
		return strings.TrimRight(b.entry.Substack, "/") + "/feed"
	}
	homepage := b.entry.Homepage
	if homepage == "" {
		return ""
	}
	if strings.Contains(homepage, ".substack.com") {
		return strings.TrimRight(homepage, "/") + "/feed"
	}
	if u := b.discoverFeed(ctx, homepage); u != "" {
		return u
	}
	return b.probeFeedPaths(ctx, homepage)
}

// discoverFeed scans the homepage for <link rel="alternate"> tags
// pointing at an RSS/Atom document.
func (b *Blog) discoverFeed(ctx context.Context, homepage string) string {
	resp, err := b.client.Get(ctx, homepage, "text/html;q=0.9, */*;q=0.8")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	base, err := url.Parse(homepage)
	if err != nil {
		return ""
	}

	var found string
	doc.Find(`link[rel=alternate]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(s.AttrOr("type", ""))
		if !strings.Contains(t, "rss") && !strings.Contains(t, "xml") && !strings.Contains(t, "atom") {
			return true
		}
		href := s.AttrOr("href", "")
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		found = base.ResolveReference(ref).String()
		return false
	})
	return found
}

// Common WordPress-style feed locations.
var feedPathCandidates = []string{"feed/", "?feed=rss2", "rss.xml", "atom.xml"}

// probeFeedPaths checks well-known feed paths under the homepage,
// accepting the first that answers with an XML content type.
func (b *Blog) probeFeedPaths(ctx context.Context, homepage string) string {
	root := strings.TrimRight(homepage, "/") + "/"
	for _, candidate := range feedPathCandidates {
		resp, err := b.client.Head(ctx, root+candidate)
		if err != nil {
			continue
		}
		ct := strings.ToLower(resp.Header.Get("Content-Type"))
		final := resp.Request.URL.String()
		resp.Body.Close()
		if resp.StatusCode < 300 && strings.Contains(ct, "xml") {
			return final
		}
	}
	return ""
}

func displayName(entry config.SourceEntry) string {
	if entry.DisplayName != "" {
		return entry.DisplayName
	}
	return entry.Key
}
