package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/AntoineGS/ulinject/internal/manifest"
	"github.com/AntoineGS/ulinject/internal/resolve"
)

var (
	errRequired      = errors.New("value is required")
	errNegative      = errors.New("must not be negative")
	errNotBaseName   = errors.New("must be a file name without directories")
	errUnknownOption = errors.New("unknown value")
)

// Validate checks every setting and reports all problems at once.
func Validate(cfg *Config) error {
	errs := &ValidationErrors{}

	if cfg.Search.ProjectDepth < 0 {
		errs.Add(NewFieldError("search", "project_depth", strconv.Itoa(cfg.Search.ProjectDepth), errNegative))
	}
	if cfg.Search.PluginDepth < 0 {
		errs.Add(NewFieldError("search", "plugin_depth", strconv.Itoa(cfg.Search.PluginDepth), errNegative))
	}
	validateNames(errs, "structured_files", cfg.Search.StructuredFiles)
	validateNames(errs, "script_files", cfg.Search.ScriptFiles)

	for name := range cfg.Defaults {
		if !slices.Contains(resolve.Names, name) {
			errs.Add(NewFieldError("defaults", name, fmt.Sprint(cfg.Defaults[name]), errUnknownOption))
		}
	}

	switch manifest.Strategy(cfg.Manifest.Strategy) {
	case manifest.StrategyTree, manifest.StrategyText:
	default:
		errs.Add(NewFieldError("manifest", "strategy", cfg.Manifest.Strategy, errUnknownOption))
	}
	if strings.TrimSpace(cfg.Manifest.Path) == "" {
		errs.Add(NewFieldError("manifest", "path", cfg.Manifest.Path, errRequired))
	}
	if strings.TrimSpace(cfg.Manifest.RootTag) == "" {
		errs.Add(NewFieldError("manifest", "root_tag", cfg.Manifest.RootTag, errRequired))
	}

	if !cfg.Entitlements.Disabled {
		if strings.TrimSpace(cfg.Entitlements.Key) == "" {
			errs.Add(NewFieldError("entitlements", "key", cfg.Entitlements.Key, errRequired))
		}
		for _, f := range cfg.Entitlements.Files {
			if strings.TrimSpace(f) == "" {
				errs.Add(NewFieldError("entitlements", "files", f, errRequired))
			}
		}
	}

	if cfg.History.Keep < 0 {
		errs.Add(NewFieldError("history", "keep", strconv.Itoa(cfg.History.Keep), errNegative))
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		errs.Add(NewFieldError("history", "path", cfg.History.Path, errRequired))
	}

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}

	return nil
}

func validateNames(errs *ValidationErrors, field string, names []string) {
	for _, n := range names {
		switch {
		case strings.TrimSpace(n) == "":
			errs.Add(NewFieldError("search", field, n, errRequired))
		case filepath.Base(n) != n:
			errs.Add(NewFieldError("search", field, n, errNotBaseName))
		}
	}
}
