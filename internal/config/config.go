// Package config loads the ulinject.yaml tool settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/AntoineGS/ulinject/internal/entitlements"
	"github.com/AntoineGS/ulinject/internal/manifest"
	"github.com/AntoineGS/ulinject/internal/resolve"
	"github.com/AntoineGS/ulinject/internal/source"
)

// FileName is the settings file looked up in the project root.
const FileName = "ulinject.yaml"

// CurrentVersion is the only settings version understood.
const CurrentVersion = 1

// Config is the main configuration structure
type Config struct {
	Defaults     map[string]any     `yaml:"defaults,omitempty"`
	Search       SearchConfig       `yaml:"search"`
	Manifest     ManifestConfig     `yaml:"manifest"`
	Entitlements EntitlementsConfig `yaml:"entitlements"`
	Descriptor   DescriptorConfig   `yaml:"descriptor"`
	History      HistoryConfig      `yaml:"history"`
	Version      int                `yaml:"version"`
}

// SearchConfig controls plugin options discovery.
type SearchConfig struct {
	StructuredFiles []string `yaml:"structured_files,omitempty"`
	ScriptFiles     []string `yaml:"script_files,omitempty"`
	ProjectDepth    int      `yaml:"project_depth"`
	PluginDepth     int      `yaml:"plugin_depth"`
}

// ManifestConfig locates the application manifest and selects how the
// fragment is merged into it.
type ManifestConfig struct {
	Path         string `yaml:"path"`
	RootTag      string `yaml:"root_tag"`
	Strategy     string `yaml:"strategy"`
	BackupSuffix string `yaml:"backup_suffix"`
	Template     string `yaml:"template,omitempty"` // Fragment template file, text strategy only
}

// EntitlementsConfig controls the iOS associated-domains step.
type EntitlementsConfig struct {
	Key      string   `yaml:"key"`
	Prefix   string   `yaml:"prefix"`
	Files    []string `yaml:"files,omitempty"` // Relative to platforms/ios; {app} is the Xcode project name
	Disabled bool     `yaml:"disabled"`
}

// DescriptorConfig controls placeholder substitution in the plugin descriptor.
type DescriptorConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Path    string `yaml:"path"`
	Keep    int    `yaml:"keep"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the built-in settings.
func Default() *Config {
	search := source.DefaultSearchOptions()

	defaults := make(map[string]any)
	for k, v := range resolve.DefaultValues() {
		defaults[k] = v
	}

	return &Config{
		Version:  CurrentVersion,
		Defaults: defaults,
		Search: SearchConfig{
			StructuredFiles: search.StructuredFiles,
			ScriptFiles:     search.ScriptFiles,
			ProjectDepth:    search.ProjectDepth,
			PluginDepth:     search.PluginDepth,
		},
		Manifest: ManifestConfig{
			Path:         "config.xml",
			RootTag:      manifest.DefaultRootTag,
			Strategy:     string(manifest.StrategyTree),
			BackupSuffix: manifest.DefaultBackupSuffix,
		},
		Entitlements: EntitlementsConfig{
			Key:    entitlements.DefaultKey,
			Prefix: entitlements.DefaultPrefix,
			Files:  entitlements.DefaultFiles(),
		},
		Descriptor: DescriptorConfig{
			Path: "plugin.xml",
		},
		History: HistoryConfig{
			Path: filepath.Join(".ulinject", "history.db"),
			Keep: 20,
		},
	}
}

// Load reads the settings file at path. Settings missing from the file keep
// their built-in values. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from user config, intentional
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes settings from YAML and layers them over Default.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("%w %d (expected %d)", ErrUnsupportedVersion, cfg.Version, CurrentVersion)
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Find returns the settings file to load. An explicit path must exist.
// Otherwise FileName in projectRoot is used when present, and "" is returned
// when there is none.
func Find(explicit, projectRoot string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
			}
			return "", fmt.Errorf("checking config file: %w", err)
		}
		return explicit, nil
	}

	if projectRoot == "" {
		return "", nil
	}

	candidate := filepath.Join(projectRoot, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	return "", nil
}

// LoadOrDefault loads the file chosen by Find, or returns Default when there
// is none. The returned path is empty in that case.
func LoadOrDefault(explicit, projectRoot string) (*Config, string, error) {
	path, err := Find(explicit, projectRoot)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		return Default(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// SearchOptions converts the search section for source.Discover.
func (c *Config) SearchOptions() source.SearchOptions {
	return source.SearchOptions{
		StructuredFiles: c.Search.StructuredFiles,
		ScriptFiles:     c.Search.ScriptFiles,
		ProjectDepth:    c.Search.ProjectDepth,
		PluginDepth:     c.Search.PluginDepth,
	}
}

// ResolveDefaults returns the configured fallback values.
func (c *Config) ResolveDefaults() resolve.Defaults {
	d := make(resolve.Defaults, len(c.Defaults))
	for k, v := range c.Defaults {
		d[k] = v
	}
	return d
}

// ProjectPath expands path and anchors it at root when it is relative.
func ProjectPath(root, path string) string {
	path = ExpandPath(path, nil)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ExpandPath expands ~ and environment variables in a single path.
func ExpandPath(path string, envVars map[string]string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	for key, value := range envVars {
		path = strings.ReplaceAll(path, "$"+key, value)
	}

	path = os.ExpandEnv(path)

	return path
}

// Save writes the config to the specified file path
func Save(cfg *Config, path string) error {
	data, err := marshalYAML(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// WriteDefault writes the built-in settings to FileName in dir with a header
// comment. An existing file is never overwritten.
func WriteDefault(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	data, err := marshalYAML(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	content := fmt.Sprintf("# ulinject settings\n# Values under defaults apply when no invocation variable, options file or\n# environment variable provides one.\n\n%s", string(data))

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	return path, nil
}

// marshalYAML encodes a value to YAML with 2-space indentation.
func marshalYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
