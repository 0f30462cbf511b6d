package summarizer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/skawahara/update-agent/internal/feed"
)

const (
	abstractBudget    = 1200
	descriptionBudget = 500
	fallbackBudget    = 1200
	inputBudget       = 80_000
)

// Router routes each item to a deterministic rule summary or to the
// remote summarizer, depending on the item's digest mode. Its Summarize
// never returns an error: remote failures fall back to a local summary.
type Router struct {
	remote     Remote
	promptsDir string
	interests  string
}

// NewRouter creates a router. remote may be nil, in which case every
// LLM-path item gets the local fallback.
func NewRouter(remote Remote, promptsDir, interests string) *Router {
	return &Router{remote: remote, promptsDir: promptsDir, interests: interests}
}

func (r *Router) Summarize(ctx context.Context, item feed.Item) string {
	mode := item.MetaString("digest_mode")

	if item.Kind == feed.KindPaper && mode == "abstract_only" {
		return truncate(strings.TrimSpace(item.Text), abstractBudget)
	}

	if item.Kind == feed.KindVideo && (mode == "title_only" || mode == "title_plus_description") {
		desc := strings.TrimSpace(item.Text)
		if mode == "title_only" || desc == "" {
			return "A new video is available."
		}
		return ruleVideoSummary(desc)
	}

	if r.remote == nil {
		return Fallback(item)
	}

	summary, err := r.summarizeRemote(ctx, item)
	if err != nil {
		ident := item.URL
		if ident == "" {
			ident = item.ID
		}
		if ident == "" {
			ident = item.Title
		}
		log.Printf("LLM summarization failed for %s; using fallback content: %v", ident, err)
		return Fallback(item)
	}
	return summary
}

func (r *Router) summarizeRemote(ctx context.Context, item feed.Item) (string, error) {
	system, user, err := r.loadPrompts(string(item.Kind))
	if err != nil {
		return "", err
	}

	header := fmt.Sprintf("Title: %s\nURL: %s\n\n", item.Title, item.URL)
	input := truncate(header+item.Text, inputBudget)

	return r.remote.Complete(ctx, system, user, input)
}

// loadPrompts reads the per-kind prompt pair from the prompts dir and
// substitutes {interests} into the user template.
func (r *Router) loadPrompts(kind string) (system, user string, err error) {
	sys, err := os.ReadFile(filepath.Join(r.promptsDir, kind+"_system.txt"))
	if err != nil {
		return "", "", fmt.Errorf("summarizer: failed to load system prompt for %s: %w", kind, err)
	}
	tmpl, err := os.ReadFile(filepath.Join(r.promptsDir, kind+"_user.txt"))
	if err != nil {
		return "", "", fmt.Errorf("summarizer: failed to load user prompt for %s: %w", kind, err)
	}
	user = strings.ReplaceAll(string(tmpl), "{interests}", r.interests)
	return string(sys), user, nil
}

// ruleVideoSummary compacts an already-cleaned description, dropping
// any residual link or promo lines, down to a short paragraph.
func ruleVideoSummary(desc string) string {
	var keep []string
	for _, ln := range strings.Split(desc, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		low := strings.ToLower(ln)
		if strings.HasPrefix(low, "http://") || strings.HasPrefix(low, "https://") {
			continue
		}
		if strings.Contains(low, "sponsor") || strings.Contains(low, "discord") ||
			strings.Contains(low, "newsletter") || strings.Contains(low, "subscribe") ||
			strings.Contains(low, "links:") || strings.Contains(low, "my links") {
			continue
		}
		keep = append(keep, ln)
	}
	return truncate(strings.Join(keep, " "), descriptionBudget)
}

// Fallback derives a summary from the item itself: its first paragraph,
// else title and URL.
func Fallback(item feed.Item) string {
	for _, p := range strings.Split(item.Text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			return truncate(p, fallbackBudget)
		}
	}
	switch {
	case item.Title != "" && item.URL != "":
		return item.Title + "\n" + item.URL
	case item.Title != "":
		return item.Title
	case item.URL != "":
		return item.URL
	}
	return "Summary unavailable."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
