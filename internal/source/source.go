// Package source loads plugin option files into plain key/value mappings.
//
// Two shapes are understood. Structured data files (JSON, YAML, TOML) are
// parsed directly. Script files exporting an object literal
// (module.exports = {...}; or export default {...}) have the export
// boilerplate stripped and the remainder parsed as JSON, or failing that as
// an object literal with bare keys and single-quoted strings. Scripts are never
// evaluated: anything that is not plain data fails to parse.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/AntoineGS/ulinject/internal/locator"
)

// Sentinel errors for source loading
var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrUnparsable        = errors.New("unparsable source")
	ErrNotMapping        = errors.New("source is not a mapping")
)

// Format identifies how a source file is parsed.
type Format string

// Supported formats.
const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatTOML   Format = "toml"
	FormatScript Format = "script"
)

// Mapping is the parsed content of a source file.
type Mapping map[string]any

var (
	exportPrefix  = regexp.MustCompile(`^\s*(?:module\.exports\s*=|export\s+default\b)\s*`)
	trailingSemis = regexp.MustCompile(`;\s*$`)
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".js", ".cjs", ".mjs":
		return FormatScript, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Load reads and parses the file at path.
func Load(path string) (Mapping, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from a bounded project search
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// LoadOptional is Load for callers that fall through to other configuration
// tiers: any failure is logged as a warning and a nil mapping is returned.
func LoadOptional(path string, logger *slog.Logger) Mapping {
	m, err := Load(path)
	if err != nil {
		logger.Warn("ignoring plugin options file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}

	return m
}

// Parse decodes data in the given format. The top-level value must be a
// mapping.
func Parse(data []byte, format Format) (Mapping, error) {
	var (
		raw any
		err error
	)

	switch format {
	case FormatJSON:
		raw, err = parseJSON(data)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		raw = m
	case FormatScript:
		raw, err = parseScript(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %T", ErrNotMapping, raw)
	}

	return Mapping(m), nil
}

func parseJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(jsonc.ToJSON(data), &v); err != nil {
		return nil, err
	}

	return v, nil
}

// parseScript strips the export assignment and the trailing semicolon and
// parses what is left as JSON. A file without the export prefix is still
// tried as plain JSON. When that fails the body is read as an object literal.
func parseScript(data []byte) (any, error) {
	body := bytes.TrimSpace(data)
	body = exportPrefix.ReplaceAll(body, nil)
	body = trailingSemis.ReplaceAll(body, nil)

	v, err := parseJSON(body)
	if err == nil {
		return v, nil
	}

	if v, litErr := parseObjectLiteral(body); litErr == nil {
		return v, nil
	}

	return nil, err
}

// parseObjectLiteral reads a JavaScript object literal that holds only data.
// Keys may be bare identifiers and strings may be single quoted. A bare word
// in value position is an expression and fails the parse.
func parseObjectLiteral(body []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(jsonc.ToJSON(body), &doc); err != nil {
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return nil, err
		}
	}

	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode || doc.Content[0].Style&yaml.FlowStyle == 0 {
		return nil, errors.New("not an object literal")
	}

	if err := checkLiteral(doc.Content[0], false); err != nil {
		return nil, err
	}

	var v any
	if err := doc.Content[0].Decode(&v); err != nil {
		return nil, err
	}

	return v, nil
}

func checkLiteral(n *yaml.Node, key bool) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i, c := range n.Content {
			if err := checkLiteral(c, i%2 == 0); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if err := checkLiteral(c, false); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		quoted := n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
		if !key && !quoted && n.Tag == "!!str" {
			return fmt.Errorf("line %d: %q is not a literal value", n.Line, n.Value)
		}
	default:
		return fmt.Errorf("line %d: unsupported construct", n.Line)
	}

	return nil
}

// SearchOptions controls Discover.
type SearchOptions struct {
	StructuredFiles []string
	ScriptFiles     []string
	ProjectDepth    int
	PluginDepth     int
}

// DefaultSearchOptions returns the stock file names and depth bounds.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		StructuredFiles: []string{"plugin_options.json", "plugin_options.yaml", "plugin_options.yml", "plugin_options.toml"},
		ScriptFiles:     []string{"plugin_options.js"},
		ProjectDepth:    locator.DefaultMaxDepth,
		PluginDepth:     locator.PluginMaxDepth,
	}
}

// Discover finds the plugin options file. Structured data names are tried
// first under the project root and then the plugin root; script names are
// only considered when no structured file exists in either tree.
func Discover(projectRoot, pluginRoot string, opts SearchOptions) (locator.Match, bool) {
	roots := []locator.Root{
		{Dir: projectRoot, MaxDepth: opts.ProjectDepth},
		{Dir: pluginRoot, MaxDepth: opts.PluginDepth},
	}

	if m, ok := locator.LocateAny(roots, opts.StructuredFiles...); ok {
		return m, true
	}

	return locator.LocateAny(roots, opts.ScriptFiles...)
}
