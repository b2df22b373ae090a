// Package resolve computes the effective universal-link settings for a run.
//
// Each variable is looked up through a fixed chain of tiers, highest first:
// invocation variables, the nested "options" block of the invocation
// variables, the plugin options file, the environment, and finally a
// default. A value counts as set as soon as it is present and non-nil, so an
// empty string or a zero overrides the tiers below it.
package resolve

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
)

// Recognized variable names.
const (
	VarHost   = "UL_HOST"
	VarScheme = "UL_SCHEME"
	VarEvent  = "UL_EVENT"
	VarPaths  = "UL_PATHS"
)

// Names lists the recognized variables in resolution order.
var Names = []string{VarHost, VarScheme, VarEvent, VarPaths}

const optionsKey = "options"

// Tier identifies where a resolved value came from.
type Tier int

// Tiers from lowest to highest precedence.
const (
	TierDefault Tier = iota
	TierEnv
	TierSource
	TierOptions
	TierInvocation
)

func (t Tier) String() string {
	switch t {
	case TierDefault:
		return "default"
	case TierEnv:
		return "env"
	case TierSource:
		return "source"
	case TierOptions:
		return "options"
	case TierInvocation:
		return "invocation"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// EnvFunc looks up an environment variable. os.LookupEnv satisfies it.
type EnvFunc func(key string) (string, bool)

// NoEnv is an EnvFunc that never finds anything.
func NoEnv(string) (string, bool) { return "", false }

// OSEnv reads the process environment.
var OSEnv EnvFunc = os.LookupEnv

// Defaults maps variable names to their fallback values.
type Defaults map[string]any

// Built-in fallback values.
const (
	DefaultHost   = "myapu-dev.apus.edu"
	DefaultScheme = "https"
	DefaultEvent  = "ul_deeplink"
)

// DefaultPaths returns the built-in path patterns.
func DefaultPaths() []string {
	return []string{"/campaign/*", "/campaign"}
}

// DefaultValues returns the built-in defaults for every recognized variable.
func DefaultValues() Defaults {
	return Defaults{
		VarHost:   DefaultHost,
		VarScheme: DefaultScheme,
		VarEvent:  DefaultEvent,
		VarPaths:  DefaultPaths(),
	}
}

// Vars is the resolved variable set.
type Vars struct {
	Tiers    map[string]Tier
	Host     string
	Scheme   string
	Event    string
	Paths    []string
	Warnings []error
}

// Placeholders returns the scalar values keyed by variable name.
func (v Vars) Placeholders() map[string]string {
	return map[string]string{
		VarHost:   v.Host,
		VarScheme: v.Scheme,
		VarEvent:  v.Event,
	}
}

// Resolver looks variables up through the precedence tiers. It holds no
// process state: the environment is injected.
type Resolver struct {
	vars   map[string]any
	source map[string]any
	env    EnvFunc
}

// New creates a Resolver. Any argument may be nil.
func New(vars, source map[string]any, env EnvFunc) *Resolver {
	if env == nil {
		env = NoEnv
	}

	return &Resolver{vars: vars, source: source, env: env}
}

// Lookup returns the effective value of name and the tier it came from.
func (r *Resolver) Lookup(name string, def any) (any, Tier) {
	if v, ok := r.vars[name]; ok && v != nil {
		return v, TierInvocation
	}

	if opts, ok := r.vars[optionsKey].(map[string]any); ok {
		if v, ok := opts[name]; ok && v != nil {
			return v, TierOptions
		}
	}

	if v, ok := r.source[name]; ok && v != nil {
		return v, TierSource
	}

	if v, ok := r.env(name); ok {
		return v, TierEnv
	}

	return def, TierDefault
}

// Resolve resolves every recognized variable. Values from d override the
// built-in defaults. The result is always complete: a value that cannot be
// used is replaced by its default and the problem is added to Warnings.
func (r *Resolver) Resolve(d Defaults) Vars {
	builtin := DefaultValues()

	vars := Vars{Tiers: make(map[string]Tier, len(Names))}

	vars.Host = r.resolveString(&vars, VarHost, d, builtin)
	vars.Scheme = r.resolveString(&vars, VarScheme, d, builtin)
	vars.Event = r.resolveString(&vars, VarEvent, d, builtin)
	vars.Paths = r.resolvePaths(&vars, d)

	return vars
}

func defaultFor(name string, d, builtin Defaults) any {
	if v, ok := d[name]; ok && v != nil {
		return v
	}

	return builtin[name]
}

func (r *Resolver) resolveString(vars *Vars, name string, d, builtin Defaults) string {
	raw, tier := r.Lookup(name, defaultFor(name, d, builtin))
	vars.Tiers[name] = tier

	s, err := cast.ToStringE(raw)
	if err == nil {
		return s
	}

	vars.Warnings = append(vars.Warnings, fmt.Errorf("%s from %s: %w", name, tier, err))
	vars.Tiers[name] = TierDefault

	if s, err := cast.ToStringE(defaultFor(name, d, builtin)); err == nil {
		return s
	}

	return cast.ToString(builtin[name])
}

func (r *Resolver) resolvePaths(vars *Vars, d Defaults) []string {
	raw, tier := r.Lookup(VarPaths, defaultFor(VarPaths, d, nil))
	vars.Tiers[VarPaths] = tier

	if raw != nil {
		paths, err := NormalizePaths(raw)
		if err == nil {
			return paths
		}

		vars.Warnings = append(vars.Warnings, fmt.Errorf("%s from %s: %w", VarPaths, tier, err))
	}

	vars.Tiers[VarPaths] = TierDefault

	return DefaultPaths()
}
