package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/state"
)

// windowRecords builds 50 records dated across January 2025; every
// fourth one (12 total) mentions the keyword in its abstract.
func windowRecords() []map[string]string {
	var records []map[string]string
	for i := 0; i < 50; i++ {
		abstract := "A study of protein folding."
		if i%4 == 0 && i < 48 {
			abstract = "A transformer model for sequence analysis."
		}
		records = append(records, map[string]string{
			"doi":      fmt.Sprintf("10.1101/2025.01.%02d.%06d", i%28+1, i),
			"title":    fmt.Sprintf("Paper %d", i),
			"abstract": abstract,
			"date":     fmt.Sprintf("2025-01-%02d", i%28+1),
		})
	}
	return records
}

func newBioRxivServer(t *testing.T, records []map[string]string) (*httptest.Server, *string) {
	t.Helper()
	var requestedPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"collection": records})
	}))
	return ts, &requestedPath
}

func TestBioRxivKeywordFilterAndTwoStageCap(t *testing.T) {
	ts, requestedPath := newBioRxivServer(t, windowRecords())
	defer ts.Close()

	b := NewBioRxiv(config.SourceEntry{
		Key:      "biopapers",
		Keywords: []string{"transformer"},
		MaxKeep:  5,
	}, testClient())
	b.baseURL = ts.URL
	b.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }

	items, err := b.FetchNew(context.Background(), state.New(0))
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}

	// Default window is 3 days back from "now", cursor 0.
	if *requestedPath != "/2025-01-29/2025-02-01/0" {
		t.Errorf("Unexpected API path: %q", *requestedPath)
	}

	if len(items) != 5 {
		t.Fatalf("Expected 5 kept items, got %d", len(items))
	}
	for i, it := range items {
		if mt, _ := it.MetaInt("matched_total"); mt != 12 {
			t.Errorf("Item %d: expected matched_total 12, got %d", i, mt)
		}
		if mk, _ := it.MetaInt("max_keep"); mk != 5 {
			t.Errorf("Item %d: expected max_keep 5, got %d", i, mk)
		}
		if kt, _ := it.MetaInt("kept_total"); kt != 5 {
			t.Errorf("Item %d: expected kept_total 5, got %d", i, kt)
		}
		if ki, _ := it.MetaInt("kept_index"); ki != i+1 {
			t.Errorf("Item %d: expected kept_index %d, got %d", i, i+1, ki)
		}
		if it.Kind != "paper" {
			t.Errorf("Item %d: expected kind paper, got %q", i, it.Kind)
		}
		if !strings.HasPrefix(it.URL, "https://www.biorxiv.org/content/10.1101/") {
			t.Errorf("Item %d: unexpected URL %q", i, it.URL)
		}
	}

	// Newest first among the keyword matches.
	for i := 1; i < len(items); i++ {
		if items[i-1].Published < items[i].Published {
			t.Errorf("Expected newest-first order, got %q before %q",
				items[i-1].Published, items[i].Published)
		}
	}
}

func TestBioRxivSkipsSeenDOIs(t *testing.T) {
	records := []map[string]string{
		{"doi": "10.1101/seen", "title": "Seen paper", "abstract": "transformer", "date": "2025-01-10"},
		{"doi": "10.1101/new", "title": "New paper", "abstract": "transformer", "date": "2025-01-11"},
	}
	ts, _ := newBioRxivServer(t, records)
	defer ts.Close()

	store := state.New(0)
	store.MarkSeen("biopapers", []string{"10.1101/seen"})

	b := NewBioRxiv(config.SourceEntry{Key: "biopapers", Keywords: []string{"transformer"}}, testClient())
	b.baseURL = ts.URL

	items, err := b.FetchNew(context.Background(), store)
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "10.1101/new" {
		t.Fatalf("Expected only the unseen DOI, got %+v", items)
	}
	if mt, _ := items[0].MetaInt("matched_total"); mt != 1 {
		t.Errorf("Seen records must not count toward matched_total, got %d", mt)
	}
}

func TestBioRxivEmptyKeywordsMatchEverything(t *testing.T) {
	records := []map[string]string{
		{"doi": "10.1101/a", "title": "Anything", "abstract": "whatever", "date": "2025-01-10"},
	}
	ts, _ := newBioRxivServer(t, records)
	defer ts.Close()

	b := NewBioRxiv(config.SourceEntry{Key: "biopapers"}, testClient())
	b.baseURL = ts.URL

	items, err := b.FetchNew(context.Background(), state.New(0))
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected empty keyword list to match all records, got %d items", len(items))
	}
}

func TestBioRxivBoundsToMaxResults(t *testing.T) {
	ts, _ := newBioRxivServer(t, windowRecords())
	defer ts.Close()

	b := NewBioRxiv(config.SourceEntry{
		Key:        "biopapers",
		MaxResults: 10,
		MaxKeep:    50,
	}, testClient())
	b.baseURL = ts.URL

	items, err := b.FetchNew(context.Background(), state.New(0))
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}
	if len(items) != 10 {
		t.Fatalf("Expected max_results to bound the window to 10, got %d", len(items))
	}
}

func TestBioRxivAPIErrorPropagates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	b := NewBioRxiv(config.SourceEntry{Key: "biopapers"}, testClient())
	b.baseURL = ts.URL

	if _, err := b.FetchNew(context.Background(), state.New(0)); err == nil {
		t.Fatal("Expected error for upstream failure")
	}
}
