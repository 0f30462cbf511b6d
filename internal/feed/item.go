package feed

// Kind discriminates downstream summarization policy.
type Kind string

const (
	KindBlog  Kind = "blog"
	KindVideo Kind = "video"
	KindPaper Kind = "paper"
)

// Item is the normalized unit of content shared by all source adapters.
// An Item is built once by an adapter and never mutated afterwards; only
// its ID outlives the run, inside the seen-set. Any field may be empty,
// and consumers treat absence as "unknown" rather than as an error.
type Item struct {
	// ID is the stable external identifier (feed entry id or link, DOI,
	// or video id). It is the dedup key within the item's source bucket.
	ID        string
	Kind      Kind
	SourceKey string
	Title     string
	URL       string
	// Published is the source's timestamp string, best-effort; adapters
	// pass it through without normalizing beyond trimming.
	Published string
	Author    string
	// Text is the extracted body, abstract, or cleaned description.
	// Empty when extraction failed; the item still counts as seen.
	Text string
	// Metadata carries source-specific policy and provenance. The
	// aggregator passes it through untouched; adapters write it and the
	// renderer and summarizer router read it.
	Metadata map[string]any
}

// MetaString returns the metadata value for key if it is a string.
func (it Item) MetaString(key string) string {
	if s, ok := it.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// MetaInt returns the metadata value for key if it is an int.
func (it Item) MetaInt(key string) (int, bool) {
	n, ok := it.Metadata[key].(int)
	return n, ok
}

// DisplayName returns the configured display name, falling back to the
// source key.
func (it Item) DisplayName() string {
	if name := it.MetaString("display_name"); name != "" {
		return name
	}
	return it.SourceKey
}
