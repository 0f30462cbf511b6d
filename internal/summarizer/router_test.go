package summarizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skawahara/update-agent/internal/feed"
)

type fakeRemote struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
	lastInput  string
	calls      int
}

func (f *fakeRemote) Complete(_ context.Context, system, user, input string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	f.lastInput = input
	return f.reply, f.err
}

func writePrompts(t *testing.T, kind string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, kind+"_system.txt"),
		[]byte("You summarize "+kind+" posts."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, kind+"_user.txt"),
		[]byte("Reader interests: {interests}"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRouterAbstractOnlyPaperSkipsRemote(t *testing.T) {
	remote := &fakeRemote{reply: "should not be used"}
	r := NewRouter(remote, "", "")

	item := feed.Item{
		Kind:     feed.KindPaper,
		Text:     "  An abstract about cell signalling.  ",
		Metadata: map[string]any{"digest_mode": "abstract_only"},
	}
	got := r.Summarize(context.Background(), item)
	if got != "An abstract about cell signalling." {
		t.Errorf("Expected trimmed abstract, got %q", got)
	}
	if remote.calls != 0 {
		t.Errorf("Expected no remote calls, got %d", remote.calls)
	}
}

func TestRouterAbstractOnlyTruncates(t *testing.T) {
	r := NewRouter(nil, "", "")
	item := feed.Item{
		Kind:     feed.KindPaper,
		Text:     strings.Repeat("a", 2000),
		Metadata: map[string]any{"digest_mode": "abstract_only"},
	}
	if got := r.Summarize(context.Background(), item); len(got) != 1200 {
		t.Errorf("Expected abstract truncated to 1200 chars, got %d", len(got))
	}
}

func TestRouterVideoTitleOnly(t *testing.T) {
	r := NewRouter(nil, "", "")
	item := feed.Item{
		Kind:     feed.KindVideo,
		Text:     "Some description",
		Metadata: map[string]any{"digest_mode": "title_only"},
	}
	if got := r.Summarize(context.Background(), item); got != "A new video is available." {
		t.Errorf("Expected stock video summary, got %q", got)
	}
}

func TestRouterVideoDescriptionRule(t *testing.T) {
	r := NewRouter(nil, "", "")
	item := feed.Item{
		Kind: feed.KindVideo,
		Text: "We compare three inference engines.\nSubscribe for more!\nhttps://example.com/promo",
		Metadata: map[string]any{"digest_mode": "title_plus_description"},
	}
	got := r.Summarize(context.Background(), item)
	if !strings.Contains(got, "three inference engines") {
		t.Errorf("Expected content kept, got %q", got)
	}
	if strings.Contains(got, "Subscribe") || strings.Contains(got, "https://") {
		t.Errorf("Expected promo and link lines dropped, got %q", got)
	}
}

func TestRouterVideoEmptyDescriptionFallsBackToStockLine(t *testing.T) {
	r := NewRouter(nil, "", "")
	item := feed.Item{
		Kind:     feed.KindVideo,
		Metadata: map[string]any{"digest_mode": "title_plus_description"},
	}
	if got := r.Summarize(context.Background(), item); got != "A new video is available." {
		t.Errorf("Expected stock video summary for empty description, got %q", got)
	}
}

func TestRouterRemotePathSubstitutesInterests(t *testing.T) {
	remote := &fakeRemote{reply: "A crisp summary."}
	r := NewRouter(remote, writePrompts(t, "blog"), "distributed systems")

	item := feed.Item{
		Kind:  feed.KindBlog,
		Title: "On Raft",
		URL:   "https://example.com/raft",
		Text:  "Consensus is hard.",
	}
	got := r.Summarize(context.Background(), item)
	if got != "A crisp summary." {
		t.Errorf("Expected remote summary, got %q", got)
	}
	if remote.lastSystem != "You summarize blog posts." {
		t.Errorf("Unexpected system prompt: %q", remote.lastSystem)
	}
	if remote.lastUser != "Reader interests: distributed systems" {
		t.Errorf("Expected interests substituted, got %q", remote.lastUser)
	}
	if !strings.Contains(remote.lastInput, "Title: On Raft") ||
		!strings.Contains(remote.lastInput, "Consensus is hard.") {
		t.Errorf("Expected header and body in input, got %q", remote.lastInput)
	}
}

func TestRouterRemoteFailureUsesFallback(t *testing.T) {
	remote := &fakeRemote{err: errors.New("api down")}
	r := NewRouter(remote, writePrompts(t, "blog"), "")

	item := feed.Item{
		Kind: feed.KindBlog,
		Text: "First paragraph survives.\n\nSecond paragraph does not.",
	}
	if got := r.Summarize(context.Background(), item); got != "First paragraph survives." {
		t.Errorf("Expected first-paragraph fallback, got %q", got)
	}
}

func TestRouterMissingPromptsUsesFallback(t *testing.T) {
	remote := &fakeRemote{reply: "unused"}
	r := NewRouter(remote, t.TempDir(), "")

	item := feed.Item{Kind: feed.KindBlog, Title: "A Post", URL: "https://example.com/p"}
	if got := r.Summarize(context.Background(), item); got != "A Post\nhttps://example.com/p" {
		t.Errorf("Expected title+url fallback, got %q", got)
	}
	if remote.calls != 0 {
		t.Errorf("Expected no remote call without prompts, got %d", remote.calls)
	}
}

func TestRouterNilRemoteUsesFallback(t *testing.T) {
	r := NewRouter(nil, "", "")
	item := feed.Item{Kind: feed.KindBlog}
	if got := r.Summarize(context.Background(), item); got != "Summary unavailable." {
		t.Errorf("Expected unavailable marker, got %q", got)
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		item feed.Item
		want string
	}{
		{"first paragraph", feed.Item{Text: "Para one.\n\nPara two."}, "Para one."},
		{"title and url", feed.Item{Title: "T", URL: "https://u"}, "T\nhttps://u"},
		{"title only", feed.Item{Title: "T"}, "T"},
		{"url only", feed.Item{URL: "https://u"}, "https://u"},
		{"nothing", feed.Item{}, "Summary unavailable."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fallback(tt.item); got != tt.want {
				t.Errorf("Fallback() = %q, want %q", got, tt.want)
			}
		})
	}
}
