package config

import "strings"

// Overrides carries the command-line layer of the configuration.
// Zero/nil fields mean "not set on the command line".
type Overrides struct {
	PromptsDir string
	Limit      *int
	OutDir     string
	// Formats is a comma-separated list, e.g. "html,md".
	Formats    string
	SyncFolder *bool
	Notes      *bool
	NotesTitle string
}

var validFormats = map[string]bool{"html": true, "md": true}

// Resolve layers defaults, file config, and command-line overrides into
// one effective configuration, evaluated once per run. The input config
// is not modified; callers treat the result as immutable.
func Resolve(cfg *Config, ov Overrides) *Config {
	eff := *cfg
	eff.Output.Formats = append([]string(nil), cfg.Output.Formats...)

	if ov.PromptsDir != "" {
		eff.PromptsDir = ov.PromptsDir
	}
	if ov.Limit != nil {
		eff.Limit = *ov.Limit
	}
	if ov.OutDir != "" {
		eff.Output.SaveDir = ov.OutDir
	}
	if ov.Formats != "" {
		var formats []string
		for _, f := range strings.Split(ov.Formats, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
		eff.Output.Formats = formats
	}
	if ov.SyncFolder != nil {
		eff.Output.SyncFolder.Enabled = *ov.SyncFolder
	}
	if ov.Notes != nil {
		eff.Output.Notes.Enabled = *ov.Notes
	}
	if ov.NotesTitle != "" {
		eff.Output.Notes.TitleTemplate = ov.NotesTitle
	}

	eff.Output.Formats = sanitizeFormats(eff.Output.Formats)
	return &eff
}

// sanitizeFormats lowercases, deduplicates, and drops unknown formats,
// falling back to html when nothing valid remains.
func sanitizeFormats(formats []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if validFormats[f] && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		out = []string{"html"}
	}
	return out
}

// WantsFormat reports whether the effective format set includes format.
func (c *Config) WantsFormat(format string) bool {
	for _, f := range c.Output.Formats {
		if f == format {
			return true
		}
	}
	return false
}
