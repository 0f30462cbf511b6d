package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	StorageDir string `yaml:"storage_dir"`
	UserAgent  string `yaml:"user_agent"`
	Interests  string `yaml:"interests"`
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"run_on_start"`
	// Limit caps how many posts are summarized per run, newest first.
	Limit      int              `yaml:"limit"`
	PromptsDir string           `yaml:"prompts_dir"`
	Sources    SourcesConfig    `yaml:"sources"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Output     OutputConfig     `yaml:"output"`
}

type SourcesConfig struct {
	Blogs   []SourceEntry `yaml:"blogs"`
	YouTube []SourceEntry `yaml:"youtube"`
	BioRxiv []SourceEntry `yaml:"biorxiv"`
}

// SourceEntry is one configured source. Key partitions the seen-set;
// the locator fields are per-source-type (feed/homepage/substack for
// blogs, id for YouTube channels, keywords/days for bioRxiv).
type SourceEntry struct {
	Key         string   `yaml:"key"`
	Enabled     *bool    `yaml:"enabled"`
	Feed        string   `yaml:"feed"`
	Homepage    string   `yaml:"homepage"`
	Substack    string   `yaml:"substack"`
	ChannelID   string   `yaml:"id"`
	Keywords    []string `yaml:"keywords"`
	Days        int      `yaml:"days"`
	MaxResults  int      `yaml:"max_results"`
	MaxKeep     int      `yaml:"max_keep"`
	DigestMode  string   `yaml:"digest_mode"`
	DisplayName string   `yaml:"display_name"`
}

// IsEnabled treats an absent enabled field as true.
func (e SourceEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

type SummarizerConfig struct {
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

type OutputConfig struct {
	SaveDir    string           `yaml:"save_dir"`
	Formats    []string         `yaml:"formats"`
	SyncFolder SyncFolderConfig `yaml:"sync_folder"`
	Notes      NotesConfig      `yaml:"notes"`
}

type SyncFolderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Folder  string `yaml:"folder"`
}

type NotesConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TitleTemplate string `yaml:"title_template"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./data"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "UpdateAgent/0.1"
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 8 * * *"
	}
	if cfg.Limit == 0 {
		cfg.Limit = 1
	}
	if cfg.PromptsDir == "" {
		cfg.PromptsDir = "prompts"
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 1024
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"html"}
	}
	if cfg.Output.SyncFolder.Folder == "" {
		cfg.Output.SyncFolder.Folder = "BlogDigest"
	}
	if cfg.Output.Notes.TitleTemplate == "" {
		cfg.Output.Notes.TitleTemplate = "Daily Digest - {date}"
	}
}

func validate(cfg *Config) error {
	keys := make(map[string]string)
	check := func(group string, entries []SourceEntry) error {
		for _, e := range entries {
			if e.Key == "" {
				return fmt.Errorf("config: sources.%s entry is missing a key", group)
			}
			if prev, dup := keys[e.Key]; dup {
				return fmt.Errorf("config: duplicate source key %q (in %s and %s)", e.Key, prev, group)
			}
			keys[e.Key] = group
		}
		return nil
	}
	if err := check("blogs", cfg.Sources.Blogs); err != nil {
		return err
	}
	if err := check("youtube", cfg.Sources.YouTube); err != nil {
		return err
	}
	if err := check("biorxiv", cfg.Sources.BioRxiv); err != nil {
		return err
	}
	if cfg.Limit < 0 {
		return fmt.Errorf("config: limit must be non-negative, got %d", cfg.Limit)
	}
	return nil
}

// Load reads the config file, expands environment variables, applies
// defaults, and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolvedStorageDir expands "~" and makes the storage dir absolute
// relative to the current working directory.
func (c *Config) ResolvedStorageDir() (string, error) {
	dir := c.StorageDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: cannot expand %q: %w", dir, err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("config: cannot resolve storage dir %q: %w", dir, err)
	}
	return abs, nil
}
