// Package hook describes the invocation context a build host hands to a run.
//
// The shape mirrors the options object Cordova passes to plugin hooks
// (context.opts): the requested platforms, the project root, and the plugin
// variables supplied at install time. A context is either assembled from CLI
// flags or read from a JSON or YAML file dumped by the host.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/AntoineGS/ulinject/internal/platform"
)

// ErrNoProjectRoot is returned when a context does not name a project root.
var ErrNoProjectRoot = errors.New("project root not set")

// PluginInfo is the plugin block of the host context.
type PluginInfo struct {
	Variables map[string]any `json:"variables" yaml:"variables"`
	ID        string         `json:"id" yaml:"id"`
	Dir       string         `json:"dir" yaml:"dir"`
}

// Context is the read-only input of one run.
type Context struct {
	PluginVariables map[string]any
	Plugin          *PluginInfo
	ProjectRoot     string
	Platforms       platform.Set
}

// options is the on-disk form of Context. Hosts dump either the opts object
// itself or the whole hook context with opts nested inside.
type options struct {
	PluginVariables map[string]any `json:"pluginVariables" yaml:"pluginVariables"`
	Plugin          *PluginInfo    `json:"plugin" yaml:"plugin"`
	ProjectRoot     string         `json:"projectRoot" yaml:"projectRoot"`
	Platforms       []string       `json:"platforms" yaml:"platforms"`
}

type contextFile struct {
	Opts    *options `json:"opts" yaml:"opts"`
	options `yaml:",inline"`
}

// Variables returns the invocation-supplied variables. pluginVariables wins;
// the plugin's own variables block is the fallback. Nil when neither is set.
func (c Context) Variables() map[string]any {
	if c.PluginVariables != nil {
		return c.PluginVariables
	}

	if c.Plugin != nil {
		return c.Plugin.Variables
	}

	return nil
}

// PluginDir returns the plugin installation root, or "" when unknown.
func (c Context) PluginDir() string {
	if c.Plugin == nil {
		return ""
	}

	return c.Plugin.Dir
}

// Validate checks that the context can drive a run.
func (c Context) Validate() error {
	if strings.TrimSpace(c.ProjectRoot) == "" {
		return ErrNoProjectRoot
	}

	if !filepath.IsAbs(c.ProjectRoot) {
		return fmt.Errorf("project root must be absolute: %s", c.ProjectRoot)
	}

	return nil
}

// Load reads a context file. Files ending in .json are parsed as JSON (with
// comments tolerated); anything else is parsed as YAML.
func Load(path string) (Context, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the build host
	if err != nil {
		return Context{}, fmt.Errorf("reading context file: %w", err)
	}

	var file contextFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return Context{}, fmt.Errorf("parsing context file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Context{}, fmt.Errorf("parsing context file: %w", err)
		}
	}

	opts := file.options
	if file.Opts != nil {
		opts = *file.Opts
	}

	return Context{
		Platforms:       platform.NewSet(opts.Platforms...),
		ProjectRoot:     opts.ProjectRoot,
		PluginVariables: opts.PluginVariables,
		Plugin:          opts.Plugin,
	}, nil
}
