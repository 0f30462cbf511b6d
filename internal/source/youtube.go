package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mmcdole/gofeed"

	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/feed"
	"github.com/skawahara/update-agent/internal/httpx"
)

const youtubeFeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

// YouTube fetches new videos from a channel's Atom feed and cleans the
// noisy video description down to a short paragraph.
type YouTube struct {
	entry    config.SourceEntry
	parser   *gofeed.Parser
	feedBase string
}

func NewYouTube(entry config.SourceEntry, client *httpx.Client) *YouTube {
	return &YouTube{
		entry:    entry,
		parser:   newFeedParser(client),
		feedBase: youtubeFeedBase,
	}
}

func (y *YouTube) Key() string { return y.entry.Key }

func (y *YouTube) FetchNew(ctx context.Context, seen Seen) ([]feed.Item, error) {
	if !y.entry.IsEnabled() {
		return nil, nil
	}

	feedURL := y.entry.Feed
	if feedURL == "" && y.entry.ChannelID != "" {
		feedURL = y.feedBase + y.entry.ChannelID
	}
	if feedURL == "" {
		// Nothing to do without a feed or a channel id.
		return nil, nil
	}

	f, err := y.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube %s: failed to parse feed %s: %w", y.entry.Key, feedURL, err)
	}

	digestMode := y.entry.DigestMode
	if digestMode == "" {
		digestMode = "title_plus_description"
	}

	var items []feed.Item
	for _, e := range f.Items {
		vid := videoID(e)
		if vid == "" || seen.HasSeen(y.entry.Key, vid) {
			continue
		}

		title := e.Title
		if title == "" {
			title = "Untitled"
		}
		var author string
		if e.Author != nil {
			author = e.Author.Name
		}

		items = append(items, feed.Item{
			ID:        vid,
			Kind:      feed.KindVideo,
			SourceKey: y.entry.Key,
			Title:     title,
			URL:       e.Link,
			Published: entryPublished(e),
			Author:    author,
			Text:      CleanDescription(videoDescription(e)),
			Metadata: map[string]any{
				"display_name": displayName(y.entry),
				"digest_mode":  digestMode,
			},
		})
	}
	return items, nil
}

// videoID prefers the yt:videoId extension over the generic entry id.
func videoID(e *gofeed.Item) string {
	if exts, ok := e.Extensions["yt"]; ok {
		if vals, ok := exts["videoId"]; ok && len(vals) > 0 && vals[0].Value != "" {
			return vals[0].Value
		}
	}
	return entryID(e)
}

// videoDescription digs out media:group/media:description, where YouTube
// puts the full description, falling back to the entry description.
func videoDescription(e *gofeed.Item) string {
	if exts, ok := e.Extensions["media"]; ok {
		for _, group := range exts["group"] {
			for _, desc := range group.Children["description"] {
				if desc.Value != "" {
					return desc.Value
				}
			}
		}
	}
	return e.Description
}

// Line-level noise classifiers for video descriptions.
var (
	promoHints = []string{
		"sponsor", "sponsored", "subscribe", "newsletter", "discord", "patreon",
		"inquiries", "media/sponsorship", "affiliate", "promo", "my links", "links:",
	}
	socialHints = []string{
		"x.com", "twitter.com", "instagram.com", "tiktok.com",
		"discord.gg", "discord.com", "linktr.ee", "bit.ly",
	}
	urlRe       = regexp.MustCompile(`https?://\S+`)
	urlOnlyRe   = regexp.MustCompile(`^https?://\S+$`)
	timestampRe = regexp.MustCompile(`^\s*\d{1,2}:\d{2}(?::\d{2})?\b`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
)

const descriptionBudget = 350

// CleanDescription reduces a raw video description to one short
// paragraph: link dumps, sponsor and social lines go; chapter timestamps
// stay because their labels hint at the content.
func CleanDescription(desc string) string {
	if desc == "" {
		return ""
	}

	var lines []string
	for _, ln := range strings.Split(desc, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}

	var cleaned []string
	skipBlock := false
	for _, ln := range lines {
		low := strings.ToLower(ln)

		// A "Links:" header opens a block that is skipped for as long
		// as the lines stay link-shaped.
		if strings.HasPrefix(low, "links:") || low == "links" {
			skipBlock = true
			continue
		}
		if skipBlock {
			if urlRe.MatchString(ln) || containsAny(low, socialHints) {
				continue
			}
			skipBlock = false
		}

		if urlOnlyRe.MatchString(ln) {
			continue
		}
		if urlRe.MatchString(ln) {
			if strings.TrimSpace(urlRe.ReplaceAllString(ln, "")) == "" {
				continue
			}
		}

		if containsAny(low, promoHints) || containsAny(low, socialHints) {
			continue
		}

		if timestampRe.MatchString(ln) {
			// Chapter labels like "10:20 Google AI Voice Assistant".
			cleaned = append(cleaned, ln)
			continue
		}

		cleaned = append(cleaned, ln)
	}

	// A leading "12,345 views  Sep 1, 2025" style header carries nothing.
	if len(cleaned) > 0 && looksLikeViewHeader(cleaned[0]) {
		cleaned = cleaned[1:]
	}

	paragraph := strings.Join(cleaned, " ")
	paragraph = urlRe.ReplaceAllString(paragraph, "")
	paragraph = strings.TrimSpace(multiSpace.ReplaceAllString(paragraph, " "))

	return truncateRunes(paragraph, descriptionBudget)
}

func looksLikeViewHeader(ln string) bool {
	if !strings.Contains(strings.ToLower(ln), "views") {
		return false
	}
	return strings.ContainsFunc(ln, unicode.IsDigit)
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
