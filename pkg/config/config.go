package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultProvider    = "openai"
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultTimezone    = "America/New_York"
	DefaultTimestampID = "last-updated"
	DefaultBeginMarker = "<!-- BEGIN_EDITABLE -->"
	DefaultEndMarker   = "<!-- END_EDITABLE -->"

	DefaultPagePath   = "docs/index.html"
	DefaultStatePath  = ".pagetender/state.db"
	DefaultRunLogDir  = "agent-reasoning"
	DefaultLogDir     = ".pagetender/logs"
	DefaultPromptPath = "agents/prompts/webmaster.md"

	DefaultCommitAuthor   = "pagetender"
	DefaultCommitEmail    = "pagetender@localhost"
	DefaultCommitTemplate = "site: refresh editable region (%s)"

	DefaultRequestTimeout = 120 * time.Second
)

// DefaultFallbackSnippet is the known-safe snippet substituted when a
// candidate fails validation. It must itself pass validation.
const DefaultFallbackSnippet = `<p style="font-style: italic;">pagetender is resting.</p><span id="last-updated"></span>`

// defaultForbiddenTags lists tags rejected in candidate snippets:
// script execution plus anything that loads external resources. Only
// inline markup and styling is permitted in the editable region.
var defaultForbiddenTags = []string{
	"script", "iframe", "object", "embed", "applet",
	"link", "meta", "base", "form", "frame", "frameset",
	"img", "audio", "video", "source", "track",
}

// Config represents the complete pagetender configuration
type Config struct {
	Page      PageConfig      `yaml:"page"`
	Model     ModelConfig     `yaml:"model"`
	Validator ValidatorConfig `yaml:"validator"`
	Generator GeneratorConfig `yaml:"generator"`
	Commit    CommitConfig    `yaml:"commit"`
	Paths     PathsConfig     `yaml:"paths"`
}

// PageConfig describes the page file and its editable-region contract
type PageConfig struct {
	Path        string `yaml:"path"`
	BeginMarker string `yaml:"begin_marker"`
	EndMarker   string `yaml:"end_marker"`
	TimestampID string `yaml:"timestamp_id"`
	Timezone    string `yaml:"timezone"`
}

// ModelConfig defines provider and generation parameters
type ModelConfig struct {
	Provider       string        `yaml:"provider"`
	ID             string        `yaml:"id"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	APIKey         string        `yaml:"-"` // env only, never persisted
	BaseURL        string        `yaml:"base_url"`
}

// ValidatorConfig configures the snippet validator
type ValidatorConfig struct {
	ForbiddenTags []string `yaml:"forbidden_tags"`
}

// GeneratorConfig configures snippet generation
type GeneratorConfig struct {
	FallbackSnippet string `yaml:"fallback_snippet"`
	PromptPath      string `yaml:"prompt_path"`
}

// CommitConfig configures the commit collaborator
type CommitConfig struct {
	Enabled         bool   `yaml:"enabled"`
	RepoPath        string `yaml:"repo_path"`
	AuthorName      string `yaml:"author_name"`
	AuthorEmail     string `yaml:"author_email"`
	MessageTemplate string `yaml:"message_template"`
}

// PathsConfig locates the state store and run records
type PathsConfig struct {
	StateDB   string `yaml:"state_db"`
	RunLogDir string `yaml:"run_log_dir"`
	LogDir    string `yaml:"log_dir"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Page: PageConfig{
			Path:        DefaultPagePath,
			BeginMarker: DefaultBeginMarker,
			EndMarker:   DefaultEndMarker,
			TimestampID: DefaultTimestampID,
			Timezone:    DefaultTimezone,
		},
		Model: ModelConfig{
			Provider:       DefaultProvider,
			ID:             DefaultModel,
			Temperature:    DefaultTemperature,
			MaxTokens:      DefaultMaxTokens,
			RequestTimeout: DefaultRequestTimeout,
		},
		Validator: ValidatorConfig{
			ForbiddenTags: append([]string(nil), defaultForbiddenTags...),
		},
		Generator: GeneratorConfig{
			FallbackSnippet: DefaultFallbackSnippet,
			PromptPath:      DefaultPromptPath,
		},
		Commit: CommitConfig{
			Enabled:         true,
			RepoPath:        ".",
			AuthorName:      DefaultCommitAuthor,
			AuthorEmail:     DefaultCommitEmail,
			MessageTemplate: DefaultCommitTemplate,
		},
		Paths: PathsConfig{
			StateDB:   DefaultStatePath,
			RunLogDir: DefaultRunLogDir,
			LogDir:    DefaultLogDir,
		},
	}
}

// Load builds the effective configuration: defaults, then the user
// config (~/.pagetender/config.yaml), then the project config
// (./.pagetender/config.yaml), then environment overrides. An explicit
// path skips the hierarchy and loads only that file over the defaults.
func Load(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	if explicitPath != "" {
		if err := loadAndMerge(cfg, explicitPath); err != nil {
			return nil, pterrors.Wrap(err, pterrors.ErrCodeConfigLoad, "loading config").
				WithContext("path", explicitPath)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(home, ".pagetender", "config.yaml")
			if _, err := os.Stat(userPath); err == nil {
				if err := loadAndMerge(cfg, userPath); err != nil {
					return nil, pterrors.Wrap(err, pterrors.ErrCodeConfigLoad, "loading user config").
						WithContext("path", userPath)
				}
			}
		}
		projectPath := filepath.Join(".", ".pagetender", "config.yaml")
		if _, err := os.Stat(projectPath); err == nil {
			if err := loadAndMerge(cfg, projectPath); err != nil {
				return nil, pterrors.Wrap(err, pterrors.ErrCodeConfigLoad, "loading project config").
					WithContext("path", projectPath)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAndMerge loads a YAML file and merges the set fields into cfg.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base, field by field. Zero values
// never clobber existing settings; booleans consult the raw document so
// an explicit `enabled: false` still lands.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Page.Path != "" {
		base.Page.Path = override.Page.Path
	}
	if override.Page.BeginMarker != "" {
		base.Page.BeginMarker = override.Page.BeginMarker
	}
	if override.Page.EndMarker != "" {
		base.Page.EndMarker = override.Page.EndMarker
	}
	if override.Page.TimestampID != "" {
		base.Page.TimestampID = override.Page.TimestampID
	}
	if override.Page.Timezone != "" {
		base.Page.Timezone = override.Page.Timezone
	}

	if override.Model.Provider != "" {
		base.Model.Provider = override.Model.Provider
	}
	if override.Model.ID != "" {
		base.Model.ID = override.Model.ID
	}
	if fieldSet(raw, "model", "temperature") {
		base.Model.Temperature = override.Model.Temperature
	}
	if override.Model.MaxTokens > 0 {
		base.Model.MaxTokens = override.Model.MaxTokens
	}
	if override.Model.RequestTimeout > 0 {
		base.Model.RequestTimeout = override.Model.RequestTimeout
	}
	if override.Model.BaseURL != "" {
		base.Model.BaseURL = override.Model.BaseURL
	}

	if len(override.Validator.ForbiddenTags) > 0 {
		base.Validator.ForbiddenTags = override.Validator.ForbiddenTags
	}

	if override.Generator.FallbackSnippet != "" {
		base.Generator.FallbackSnippet = override.Generator.FallbackSnippet
	}
	if override.Generator.PromptPath != "" {
		base.Generator.PromptPath = override.Generator.PromptPath
	}

	if fieldSet(raw, "commit", "enabled") {
		base.Commit.Enabled = override.Commit.Enabled
	}
	if override.Commit.RepoPath != "" {
		base.Commit.RepoPath = override.Commit.RepoPath
	}
	if override.Commit.AuthorName != "" {
		base.Commit.AuthorName = override.Commit.AuthorName
	}
	if override.Commit.AuthorEmail != "" {
		base.Commit.AuthorEmail = override.Commit.AuthorEmail
	}
	if override.Commit.MessageTemplate != "" {
		base.Commit.MessageTemplate = override.Commit.MessageTemplate
	}

	if override.Paths.StateDB != "" {
		base.Paths.StateDB = override.Paths.StateDB
	}
	if override.Paths.RunLogDir != "" {
		base.Paths.RunLogDir = override.Paths.RunLogDir
	}
	if override.Paths.LogDir != "" {
		base.Paths.LogDir = override.Paths.LogDir
	}
}

// fieldSet reports whether a nested key was explicitly present in the
// raw YAML document.
func fieldSet(raw map[string]any, path ...string) bool {
	current := raw
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// applyEnvOverrides applies environment variables over the file config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAGETENDER_MODEL"); v != "" {
		cfg.Model.ID = v
	}
	if v := os.Getenv("PAGETENDER_PAGE"); v != "" {
		cfg.Page.Path = v
	}
	if v := os.Getenv("PAGETENDER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.Temperature = f
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Page.Path == "" {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "page.path must be set")
	}
	if c.Page.BeginMarker == "" || c.Page.EndMarker == "" {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "page markers must be set")
	}
	if c.Page.BeginMarker == c.Page.EndMarker {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "begin and end markers must differ")
	}
	if c.Page.TimestampID == "" {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "page.timestamp_id must be set")
	}
	if _, err := time.LoadLocation(c.Page.Timezone); err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeConfigInvalid, "unknown timezone").
			WithContext("timezone", c.Page.Timezone)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "model.temperature must be in [0, 2]").
			WithContext("temperature", c.Model.Temperature)
	}
	if c.Model.MaxTokens <= 0 {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "model.max_tokens must be positive")
	}
	if strings.TrimSpace(c.Generator.FallbackSnippet) == "" {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "generator.fallback_snippet must be set")
	}
	if c.Commit.Enabled && c.Commit.MessageTemplate == "" {
		return pterrors.New(pterrors.ErrCodeConfigInvalid, "commit.message_template must be set when commits are enabled")
	}
	return nil
}

// Location resolves the configured display timezone. Validate has
// already confirmed it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Page.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
