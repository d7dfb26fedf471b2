package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".kbmigrate"

//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/articles.yaml
var defaultDefinitions string

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ConfigOverrides allows overriding the default config file locations
type ConfigOverrides struct {
	SettingsPath    *string
	DefinitionsPath *string
}

// Settings represents the YAML configuration structure
type Settings struct {
	SourceDirectory   string         `yaml:"source_directory"`
	PublicDirectory   string         `yaml:"public_directory"`
	ArticlesPath      string         `yaml:"articles_path"`
	ImageRoot         string         `yaml:"image_root"`
	DeadLinkHost      string         `yaml:"dead_link_host"`
	LegacyPrefixes    []string       `yaml:"legacy_prefixes"`
	DesignatedArticle string         `yaml:"designated_article"`
	Folders           FolderMap      `yaml:"folders"`
	Injection         AssetInjection `yaml:"injection"`
	Extract           struct {
		Sanitize bool `yaml:"sanitize"`
	} `yaml:"extract"`
	Export struct {
		Format          string `yaml:"format"`
		OutputDirectory string `yaml:"output_directory"`
	} `yaml:"export"`
}

// Config holds loaded settings and the overrides they came from
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig loads settings, writing the embedded defaults on first run
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	var settings *Settings
	var err error

	if overrides != nil && overrides.SettingsPath != nil {
		// Explicit settings file must exist
		settings, err = loadSettingsRequired(*overrides.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("loading settings %s: %w", *overrides.SettingsPath, err)
		}
	} else {
		if err := ensureConfigExists(); err != nil {
			return nil, fmt.Errorf("ensuring config files exist: %w", err)
		}
		settings, err = loadSettingsRequired(getConfigPath("settings.yaml"))
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
	}

	applyDefaults(settings)

	return &Config{
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// DefinitionsPath returns the article definitions file in use. With an
// explicit settings file the definitions are looked up next to it.
func (c *Config) DefinitionsPath() string {
	if c.Overrides != nil && c.Overrides.DefinitionsPath != nil {
		return *c.Overrides.DefinitionsPath
	}
	if c.Overrides != nil && c.Overrides.SettingsPath != nil {
		return filepath.Join(filepath.Dir(*c.Overrides.SettingsPath), "articles.yaml")
	}
	return getConfigPath("articles.yaml")
}

// LoadDefinitions reads and validates the article definitions file. When no
// definitions file was named and none exists, the embedded defaults are used.
func (c *Config) LoadDefinitions() (*Definitions, error) {
	path := c.DefinitionsPath()
	explicit := c.Overrides != nil && c.Overrides.DefinitionsPath != nil

	if _, err := os.Stat(path); !explicit && os.IsNotExist(err) {
		log.Printf("No definitions at %s, using built-in defaults", path)
		return parseDefinitions([]byte(defaultDefinitions), "built-in definitions")
	}
	return loadDefinitions(path)
}

func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}

	return &settings, nil
}

func applyDefaults(s *Settings) {
	if s.PublicDirectory == "" {
		s.PublicDirectory = "public"
	}
	if s.ArticlesPath == "" {
		s.ArticlesPath = filepath.Join("data", "articles.json")
	}
	if s.ImageRoot == "" {
		s.ImageRoot = "/images"
	}
	s.ImageRoot = "/" + strings.Trim(s.ImageRoot, "/")
	if len(s.LegacyPrefixes) == 0 {
		s.LegacyPrefixes = []string{s.ImageRoot + "/import/", s.ImageRoot + "/qu/"}
	}
	if s.Export.Format == "" {
		s.Export.Format = "yaml"
	}
	if s.Export.OutputDirectory == "" {
		s.Export.OutputDirectory = "export"
	}
	if s.Folders == nil {
		s.Folders = FolderMap{}
	}
}

func loadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions %s: %w", path, err)
	}
	return parseDefinitions(data, path)
}

func parseDefinitions(data []byte, source string) (*Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing definitions YAML: %w", err)
	}

	if err := defs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definitions %s: %w", source, err)
	}

	return &defs, nil
}

// Validate checks the definitions list is structurally usable
func (d Definitions) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Articles, validation.Required),
	)
}

// Validate checks a single definition and, through Children, its sub-articles
func (d ArticleDefinition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required, validation.Match(slugPattern)),
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.File, validation.Required),
		validation.Field(&d.Children, validation.By(childrenAreLeaves)),
	)
}

// childrenAreLeaves enforces the two-level hierarchy: children carry no
// icon, category or children of their own.
func childrenAreLeaves(value interface{}) error {
	children, _ := value.([]ArticleDefinition)
	for _, c := range children {
		if len(c.Children) > 0 {
			return fmt.Errorf("child %q cannot have children", c.ID)
		}
		if c.Icon != "" || c.Category != "" {
			return fmt.Errorf("child %q cannot set icon or category", c.ID)
		}
	}
	return nil
}

// getConfigPath returns the path to a config file in the config directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and default files if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaults := map[string]string{
		"settings.yaml": defaultSettings,
		"articles.yaml": defaultDefinitions,
	}
	for name, content := range defaults {
		path := getConfigPath(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", name, err)
			}
			log.Printf("Wrote default %s", path)
		}
	}

	return nil
}
