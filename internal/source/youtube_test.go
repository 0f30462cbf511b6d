package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skawahara/update-agent/internal/config"
	"github.com/skawahara/update-agent/internal/state"
)

const sampleYouTubeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:yt="http://www.youtube.com/xml/schemas/2015"
      xmlns:media="http://search.yahoo.com/mrss/">
  <title>Some Channel</title>
  <entry>
    <id>yt:video:abc123</id>
    <yt:videoId>abc123</yt:videoId>
    <title>Building an Agent</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=abc123"/>
    <author><name>Some Creator</name></author>
    <published>2025-01-15T12:00:00+00:00</published>
    <media:group>
      <media:description>In this video we build an agent from scratch.
Sponsor: Acme Corp
https://linktr.ee/somecreator
10:20 The architecture</media:description>
    </media:group>
  </entry>
  <entry>
    <id>yt:video:def456</id>
    <yt:videoId>def456</yt:videoId>
    <title>Old Video</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=def456"/>
    <author><name>Some Creator</name></author>
    <published>2025-01-10T12:00:00+00:00</published>
    <media:group>
      <media:description>Already seen.</media:description>
    </media:group>
  </entry>
</feed>`

func TestYouTubeFetchNewFromChannelID(t *testing.T) {
	var requested string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.String()
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, sampleYouTubeFeed)
	}))
	defer ts.Close()

	store := state.New(0)
	store.MarkSeen("somechannel", []string{"def456"})

	y := NewYouTube(config.SourceEntry{
		Key:        "somechannel",
		ChannelID:  "UCtestchannel",
		DigestMode: "title_plus_description",
	}, testClient())
	y.feedBase = ts.URL + "/feeds/videos.xml?channel_id="

	items, err := y.FetchNew(context.Background(), store)
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}

	if !strings.Contains(requested, "channel_id=UCtestchannel") {
		t.Errorf("Expected channel id templated into feed URL, got %q", requested)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 new item (1 of 2 already seen), got %d", len(items))
	}

	it := items[0]
	if it.ID != "abc123" {
		t.Errorf("Expected yt:videoId as item id, got %q", it.ID)
	}
	if it.Kind != "video" {
		t.Errorf("Expected kind video, got %q", it.Kind)
	}
	if it.Author != "Some Creator" {
		t.Errorf("Expected author, got %q", it.Author)
	}
	if !strings.Contains(it.Text, "build an agent from scratch") {
		t.Errorf("Expected cleaned description to keep content, got %q", it.Text)
	}
	if strings.Contains(it.Text, "Acme") || strings.Contains(it.Text, "linktr.ee") {
		t.Errorf("Expected sponsor/link lines stripped, got %q", it.Text)
	}
	if !strings.Contains(it.Text, "10:20 The architecture") {
		t.Errorf("Expected chapter timestamp kept, got %q", it.Text)
	}
	if it.MetaString("digest_mode") != "title_plus_description" {
		t.Errorf("Expected digest_mode metadata, got %q", it.MetaString("digest_mode"))
	}
}

func TestYouTubeNoFeedOrChannelReturnsEmpty(t *testing.T) {
	y := NewYouTube(config.SourceEntry{Key: "bare"}, testClient())
	items, err := y.FetchNew(context.Background(), state.New(0))
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items without feed or channel id, got %d", len(items))
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "sponsor links and promo stripped, timestamp kept",
			in:   "Sponsor: Acme\nhttps://x.com/y\n10:20 Great topic\nSubscribe now!",
			want: "10:20 Great topic",
		},
		{
			name: "links block skipped until non-link line",
			in:   "Intro paragraph.\nLinks:\nhttps://example.com/a\nhttps://discord.gg/xyz\nReal closing thought.",
			want: "Intro paragraph. Real closing thought.",
		},
		{
			name: "inline url stripped from mixed line",
			in:   "Read the paper at https://example.com/paper for details.",
			want: "Read the paper at for details.",
		},
		{
			name: "pure url line dropped",
			in:   "First line.\nhttps://example.com/only-a-link\nSecond line.",
			want: "First line. Second line.",
		},
		{
			name: "view count header dropped",
			in:   "12,345 views Sep 1 2025\nActual description.",
			want: "Actual description.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanDescription(tt.in); got != tt.want {
				t.Errorf("CleanDescription(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanDescriptionTruncates(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := CleanDescription(long)
	if len([]rune(got)) > 350 {
		t.Errorf("Expected description capped at 350 chars, got %d", len([]rune(got)))
	}
}
