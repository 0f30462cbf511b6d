package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/feed"
	"github.com/skawahara/update-agent/internal/httpx"
)

const (
	biorxivAPIBase     = "https://api.biorxiv.org/details/biorxiv"
	biorxivContentBase = "https://www.biorxiv.org/content/"

	defaultDays       = 3
	defaultMaxResults = 200
	defaultMaxKeep    = 10
)

// BioRxiv queries the bioRxiv details API for a recent day window and
// filters the result locally by keyword. The API pages at 100 records;
// only the first page is requested, bounded by max_results.
type BioRxiv struct {
	entry   config.SourceEntry
	client  *httpx.Client
	baseURL string
	now     func() time.Time
}

func NewBioRxiv(entry config.SourceEntry, client *httpx.Client) *BioRxiv {
	return &BioRxiv{
		entry:   entry,
		client:  client,
		baseURL: biorxivAPIBase,
		now:     time.Now,
	}
}

func (b *BioRxiv) Key() string { return b.entry.Key }

type biorxivResponse struct {
	Collection []biorxivRecord `json:"collection"`
}

type biorxivRecord struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Date     string `json:"date"`
	Authors  string `json:"authors"`
}

func (b *BioRxiv) FetchNew(ctx context.Context, seen Seen) ([]feed.Item, error) {
	if !b.entry.IsEnabled() {
		return nil, nil
	}

	days := b.entry.Days
	if days == 0 {
		days = defaultDays
	}
	if days < 1 {
		days = 1
	}
	maxResults := b.entry.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	maxKeep := b.entry.MaxKeep
	if maxKeep <= 0 {
		maxKeep = defaultMaxKeep
	}

	to := b.now()
	from := to.AddDate(0, 0, -days)
	url := fmt.Sprintf("%s/%s/%s/0", b.baseURL, from.Format("2006-01-02"), to.Format("2006-01-02"))

	records, err := b.fetchWindow(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("biorxiv %s: %w", b.entry.Key, err)
	}
	log.Printf("[%s] API window %s..%s returned %d records (first page)",
		b.entry.Key, from.Format("2006-01-02"), to.Format("2006-01-02"), len(records))

	if len(records) > maxResults {
		records = records[:maxResults]
	}

	keywords := b.entry.Keywords
	var candidates []biorxivRecord
	for _, rec := range records {
		if rec.DOI == "" || seen.HasSeen(b.entry.Key, rec.DOI) {
			continue
		}
		if !matchKeywords(rec.Title, keywords) && !matchKeywords(rec.Abstract, keywords) {
			continue
		}
		candidates = append(candidates, rec)
	}

	matchedTotal := len(candidates)

	// Two-stage cap: count all keyword matches first, then keep only the
	// newest max_keep. Both numbers surface in the digest.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date > candidates[j].Date
	})
	kept := candidates
	if len(kept) > maxKeep {
		kept = kept[:maxKeep]
	}

	digestMode := b.entry.DigestMode
	if digestMode == "" {
		digestMode = "abstract_only"
	}

	items := make([]feed.Item, 0, len(kept))
	for i, rec := range kept {
		title := rec.Title
		if title == "" {
			title = "Untitled"
		}
		items = append(items, feed.Item{
			ID:        rec.DOI,
			Kind:      feed.KindPaper,
			SourceKey: b.entry.Key,
			Title:     title,
			URL:       biorxivContentBase + rec.DOI,
			Published: rec.Date,
			Text:      strings.TrimSpace(rec.Abstract),
			Metadata: map[string]any{
				"display_name":  displayName(b.entry),
				"digest_mode":   digestMode,
				"query":         strings.Join(keywords, " "),
				"matched_total": matchedTotal,
				"kept_index":    i + 1,
				"kept_total":    len(kept),
				"max_keep":      maxKeep,
			},
		})
	}

	log.Printf("[%s] matched %d; keeping %d (cap=%d)", b.entry.Key, matchedTotal, len(kept), maxKeep)
	return items, nil
}

func (b *BioRxiv) fetchWindow(ctx context.Context, url string) ([]biorxivRecord, error) {
	resp, err := b.client.Get(ctx, url, "application/json")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed biorxivResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return parsed.Collection, nil
}

// matchKeywords reports whether any keyword occurs in txt,
// case-insensitively. An empty keyword list matches everything.
func matchKeywords(txt string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	t := strings.ToLower(txt)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" && strings.Contains(t, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
