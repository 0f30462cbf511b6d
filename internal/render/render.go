// Package render turns summarized items into the dated digest
// documents: a markdown file and an HTML report, plus per-group
// coverage statistics so capped sources stay honest about what was
// left out.
package render

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"

	"github.com/skawahara/update-agent/internal/feed"
)

// Entry pairs an item with its summary.
type Entry struct {
	Item    feed.Item
	Summary string
}

// GroupStat is the coverage line for one (kind, source) group.
// MatchedTotal and Cap are -1 when the source did not report them.
type GroupStat struct {
	Kind         string
	Name         string
	Shown        int
	MatchedTotal int
	Cap          int
}

// Output reports where the digest files were written; empty paths mean
// the format was not requested.
type Output struct {
	MarkdownPath string
	HTMLPath     string
}

// Renderer writes digest documents. BaseDir is the storage dir, or the
// caller's output-dir override.
type Renderer struct {
	BaseDir string
	Formats []string
	now     func() time.Time
}

func New(baseDir string, formats []string) *Renderer {
	return &Renderer{BaseDir: baseDir, Formats: formats, now: time.Now}
}

// Stats groups entries by (kind, display name) in first-seen order and
// carries over matched_total/max_keep metadata when any group member
// has it.
func Stats(entries []Entry) []GroupStat {
	type groupKey struct{ kind, name string }
	index := make(map[groupKey]int)
	var stats []GroupStat

	for _, e := range entries {
		key := groupKey{string(e.Item.Kind), e.Item.DisplayName()}
		i, ok := index[key]
		if !ok {
			i = len(stats)
			index[key] = i
			stats = append(stats, GroupStat{
				Kind:         key.kind,
				Name:         key.name,
				MatchedTotal: -1,
				Cap:          -1,
			})
		}
		stats[i].Shown++
		if mt, ok := e.Item.MetaInt("matched_total"); ok {
			stats[i].MatchedTotal = mt
		}
		if keep, ok := e.Item.MetaInt("max_keep"); ok {
			stats[i].Cap = keep
		}
	}
	return stats
}

// WriteDigest renders the requested formats for today and returns the
// written paths.
func (r *Renderer) WriteDigest(entries []Entry) (*Output, error) {
	date := r.now().Format("2006-01-02")
	stats := Stats(entries)
	out := &Output{}

	if r.wants("md") {
		path := filepath.Join(r.BaseDir, fmt.Sprintf("digest-%s.md", date))
		if err := r.writeMarkdown(path, date, entries, stats); err != nil {
			return nil, err
		}
		out.MarkdownPath = path
	}

	if r.wants("html") {
		dir := filepath.Join(r.BaseDir, "reports")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("render: failed to create %s: %w", dir, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("digest-%s.html", date))
		if err := r.writeHTML(path, date, entries, stats); err != nil {
			return nil, err
		}
		out.HTMLPath = path
	}

	return out, nil
}

func (r *Renderer) wants(format string) bool {
	for _, f := range r.Formats {
		if f == format {
			return true
		}
	}
	return false
}

const markdownTemplate = `# Daily Digest - {{.Date}}

## Coverage

{{range .Stats}}- **{{.Name}}** ({{.Kind}}): {{.Shown}} shown{{if ge .MatchedTotal 0}} of {{.MatchedTotal}} matched{{end}}{{if ge .Cap 0}} (cap {{.Cap}}){{end}}
{{end}}
{{range .Entries}}## [{{.Item.Title}}]({{.Item.URL}})

*{{.Item.DisplayName}}{{if .Item.Published}} - {{.Item.Published}}{{end}}*

{{.Summary}}

{{end}}`

var mdTmpl = texttemplate.Must(texttemplate.New("digest.md").Parse(markdownTemplate))

func (r *Renderer) writeMarkdown(path, date string, entries []Entry, stats []GroupStat) error {
	var buf bytes.Buffer
	data := struct {
		Date    string
		Entries []Entry
		Stats   []GroupStat
	}{date, entries, stats}
	if err := mdTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render: markdown template failed: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render: failed to write %s: %w", path, err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Daily Digest - {{.Date}}</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 42em; margin: 2em auto; padding: 0 1em; line-height: 1.5; }
h1 { border-bottom: 2px solid #ddd; padding-bottom: 0.3em; }
.meta { color: #666; font-size: 0.9em; }
.item { margin-bottom: 2em; }
.coverage li { font-size: 0.9em; color: #444; }
</style>
</head>
<body>
<h1>Daily Digest - {{.Date}}</h1>
<ul class="coverage">
{{range .Stats}}<li><strong>{{.Name}}</strong> ({{.Kind}}): {{.Shown}} shown{{if ge .MatchedTotal 0}} of {{.MatchedTotal}} matched{{end}}{{if ge .Cap 0}} (cap {{.Cap}}){{end}}</li>
{{end}}</ul>
{{range .Entries}}<div class="item">
<h2><a href="{{.Item.URL}}">{{.Item.Title}}</a></h2>
<p class="meta">{{.Item.DisplayName}}{{if .Item.Published}} &middot; {{.Item.Published}}{{end}}</p>
{{.SummaryHTML}}
</div>
{{end}}</body>
</html>
`

var htmlTmpl = htmltemplate.Must(htmltemplate.New("digest.html").Parse(htmlTemplate))

type htmlEntry struct {
	Item        feed.Item
	SummaryHTML htmltemplate.HTML
}

func (r *Renderer) writeHTML(path, date string, entries []Entry, stats []GroupStat) error {
	md := goldmark.New()

	htmlEntries := make([]htmlEntry, 0, len(entries))
	for _, e := range entries {
		var body bytes.Buffer
		if err := md.Convert([]byte(e.Summary), &body); err != nil {
			// Fall back to the raw summary as a paragraph.
			body.Reset()
			body.WriteString("<p>" + htmltemplate.HTMLEscapeString(e.Summary) + "</p>")
		}
		htmlEntries = append(htmlEntries, htmlEntry{
			Item:        e.Item,
			SummaryHTML: htmltemplate.HTML(strings.TrimSpace(body.String())),
		})
	}

	var buf bytes.Buffer
	data := struct {
		Date    string
		Entries []htmlEntry
		Stats   []GroupStat
	}{date, htmlEntries, stats}
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render: html template failed: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render: failed to write %s: %w", path, err)
	}
	return nil
}
