// Package extract turns an article URL into readable text. It is the
// content-extraction boundary of the pipeline: the blog adapter depends
// only on the Extractor interface and treats failure as "no text", never
// as a reason to drop the item.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/skawahara/update-agent/internal/httpx"
)

// Extractor fetches a page and converts it to markdown-ish plain text.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Readability is the default Extractor. It fetches the page and pulls
// headings, paragraphs, list items and code blocks out of the main
// content container.
type Readability struct {
	client *httpx.Client
}

func NewReadability(client *httpx.Client) *Readability {
	return &Readability{client: client}
}

// chrome that never carries article text.
var strippedSelectors = "script, style, noscript, nav, header, footer, aside, form"

func (r *Readability) Extract(ctx context.Context, url string) (string, error) {
	resp, err := r.client.Get(ctx, url, "text/html, application/xhtml+xml;q=0.9, */*;q=0.8")
	if err != nil {
		return "", fmt.Errorf("extract: fetch %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extract: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("extract: parse %s failed: %w", url, err)
	}
	doc.Find(strippedSelectors).Remove()

	root := mainContainer(doc)
	text := renderBlocks(root)
	if text == "" {
		return "", fmt.Errorf("extract: no readable content at %s", url)
	}
	return text, nil
}

// mainContainer prefers semantic article containers over the whole body.
func mainContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"article", "main", "[role=main]", "#content", ".post-content"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return doc.Find("body")
}

func renderBlocks(root *goquery.Selection) string {
	var blocks []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Skip nodes whose text is fully covered by a nested block
		// element, so list items with paragraphs inside do not repeat.
		if s.Is("li") && s.Find("p").Length() > 0 {
			return
		}
		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			text = "# " + text
		case "h2":
			text = "## " + text
		case "h3", "h4", "h5", "h6":
			text = "### " + text
		case "li":
			text = "- " + text
		case "blockquote":
			text = "> " + text
		}
		blocks = append(blocks, text)
	})
	return strings.Join(blocks, "\n\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
