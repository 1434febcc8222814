// Package internal provides the application configuration and runtime
// wiring.
package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/akida/ankitex/internal/anki"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Anki     AnkiConfig        `yaml:"anki"`
	Document DocumentConfig    `yaml:"document"`
	Cache    CacheConfig       `yaml:"cache"`
	Tags     TagsConfig        `yaml:"tags"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Anki.Validate(); err != nil {
		return err
	}
	return c.Document.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level   `yaml:"log_level"`
	Status   StatusConfig `yaml:"status"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.Status.Validate()
}

// StatusConfig configures the optional status HTTP surface of the watch
// daemon. Port 0 disables it.
type StatusConfig struct {
	Port int `yaml:"port"`
}

// Enabled reports whether the status server should run.
func (c *StatusConfig) Enabled() bool {
	return c.Port > 0
}

// Address returns the status server listen address.
func (c *StatusConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the status configuration.
func (c *StatusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// AnkiConfig holds the remote note-store endpoint.
type AnkiConfig struct {
	URL string `yaml:"url"`
}

// Validate validates the remote store configuration.
func (c *AnkiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
	)
}

// DocumentConfig holds the document path, the framing template overrides,
// and the include/exclude path rules.
type DocumentConfig struct {
	Path       string   `yaml:"path"`
	HeaderFile string   `yaml:"header_file"`
	FooterFile string   `yaml:"footer_file"`
	Include    []string `yaml:"include"`
	Exclude    []string `yaml:"exclude"`
}

// Validate validates the document configuration, including that every
// include/exclude pattern compiles.
func (c *DocumentConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return err
	}
	_, _, err := c.CompileRules()
	return err
}

// CompileRules compiles the include and exclude patterns.
func (c *DocumentConfig) CompileRules() (include, exclude []*regexp.Regexp, err error) {
	for _, p := range c.Include {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("document: invalid include pattern %q: %w", p, err)
		}
		include = append(include, re)
	}
	for _, p := range c.Exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("document: invalid exclude pattern %q: %w", p, err)
		}
		exclude = append(exclude, re)
	}
	return include, exclude, nil
}

// CacheConfig holds the local sync-state database path. Empty disables
// the cache.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// TagsConfig controls the tags stamped onto every created note.
type TagsConfig struct {
	AddGenerated      bool `yaml:"add_generated"`
	AddGenerationDate bool `yaml:"add_generation_date"`
}

// Extra returns the tags to append to every surviving note.
func (c *TagsConfig) Extra(now time.Time) []string {
	var tags []string
	if c.AddGenerated {
		tags = append(tags, "generated")
	}
	if c.AddGenerationDate {
		tags = append(tags, now.Format("2006-01-02"))
	}
	return tags
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Anki: AnkiConfig{
			URL: anki.DefaultURL,
		},
		Document: DocumentConfig{
			Path: "anki.tex",
		},
		Tags: TagsConfig{
			AddGenerated:      true,
			AddGenerationDate: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file with environment
// variable expansion, on top of the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(filename string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
