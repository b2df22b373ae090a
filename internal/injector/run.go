package injector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AntoineGS/ulinject/internal/config"
	"github.com/AntoineGS/ulinject/internal/entitlements"
	"github.com/AntoineGS/ulinject/internal/hook"
	"github.com/AntoineGS/ulinject/internal/manifest"
	"github.com/AntoineGS/ulinject/internal/platform"
	"github.com/AntoineGS/ulinject/internal/resolve"
	"github.com/AntoineGS/ulinject/internal/source"
	"github.com/AntoineGS/ulinject/internal/state"
	"github.com/AntoineGS/ulinject/internal/textdiff"
)

// Skip reasons reported in Change.Skipped and Report.Skipped.
const (
	skipNoLinkPlatform = "no link platform requested"
	skipNotFound       = "not found"
	skipMalformed      = "malformed document"
	skipNoProject      = "no Xcode project"
	skipNoPlaceholder  = "no placeholders"
)

// RunWithContext runs the injection with context support
func (inj *Injector) RunWithContext(ctx context.Context, hc hook.Context) (*Report, error) {
	inj = inj.WithContext(ctx)
	return inj.Run(hc)
}

// Run resolves the link variables for hc and merges them into every target
// document. Skipped targets are not errors. Errors from independent targets
// are joined.
func (inj *Injector) Run(hc hook.Context) (*Report, error) {
	if err := inj.checkContext(); err != nil {
		return nil, err
	}

	if err := hc.Validate(); err != nil {
		return nil, err
	}

	report := &Report{RunID: inj.newID(), DryRun: inj.DryRun}
	logger := inj.logger.With(slog.String("run", report.RunID))

	if !hc.Platforms.WantsLinks() {
		logger.Info("skipping run",
			slog.String("platforms", hc.Platforms.String()),
			slog.String("reason", skipNoLinkPlatform))
		report.Skipped = skipNoLinkPlatform
		return report, nil
	}

	vars, src := inj.resolve(logger, hc)
	report.Vars = vars
	report.Source = src

	var errs []error

	steps := []func(*slog.Logger, hook.Context, resolve.Vars) (Change, error){
		inj.patchManifest,
		inj.patchDescriptor,
	}

	for _, step := range steps {
		if err := inj.checkContext(); err != nil {
			return report, err
		}

		change, err := step(logger, hc, vars)
		if err != nil {
			errs = append(errs, err)
		}
		if change.Kind != "" {
			report.Changes = append(report.Changes, change)
		}
	}

	if err := inj.checkContext(); err != nil {
		return report, err
	}

	changes, err := inj.patchEntitlements(logger, hc, vars)
	report.Changes = append(report.Changes, changes...)
	if err != nil {
		errs = append(errs, err)
	}

	if err := inj.recordHistory(logger, report); err != nil {
		errs = append(errs, err)
	}

	return report, errors.Join(errs...)
}

// Resolve returns the variable set for hc without touching any document,
// along with the plugin options file it came from.
func (inj *Injector) Resolve(hc hook.Context) (resolve.Vars, string, error) {
	if err := hc.Validate(); err != nil {
		return resolve.Vars{}, "", err
	}

	vars, src := inj.resolve(inj.logger, hc)
	return vars, src, nil
}

func (inj *Injector) resolve(logger *slog.Logger, hc hook.Context) (resolve.Vars, string) {
	var (
		mapping source.Mapping
		srcPath string
	)

	match, found := source.Discover(hc.ProjectRoot, hc.PluginDir(), inj.Config.SearchOptions())
	if found {
		srcPath = match.Path
		logger.Info("using plugin options", slog.String("source", srcPath))
		mapping = source.LoadOptional(srcPath, logger)
	} else {
		logger.Info("no plugin options file found", slog.String("root", hc.ProjectRoot))
	}

	r := resolve.New(hc.Variables(), mapping, inj.env)
	vars := r.Resolve(inj.Config.ResolveDefaults())

	for _, w := range vars.Warnings {
		logger.Warn("ignoring variable value", slog.String("error", w.Error()))
	}

	logger.Info("resolved variables",
		slog.String("host", vars.Host),
		slog.String("scheme", vars.Scheme),
		slog.String("event", vars.Event),
		slog.Any("paths", vars.Paths))

	for _, name := range resolve.Names {
		logger.Debug("variable tier", slog.String("name", name), slog.String("tier", vars.Tiers[name].String()))
	}

	return vars, srcPath
}

func (inj *Injector) patchManifest(logger *slog.Logger, hc hook.Context, vars resolve.Vars) (Change, error) {
	cfg := inj.Config.Manifest
	path := config.ProjectPath(hc.ProjectRoot, cfg.Path)
	change := Change{Kind: KindManifest, Path: path}

	renderer, err := inj.fragmentRenderer(hc.ProjectRoot)
	if err != nil {
		logger.Error("loading fragment template", slog.String("error", err.Error()))
		return change, err
	}

	res, err := manifest.Patch(path, fragmentOf(vars), manifest.PatchOptions{
		MergeOptions: manifest.MergeOptions{
			Strategy: manifest.Strategy(cfg.Strategy),
			RootTag:  cfg.RootTag,
			Renderer: renderer,
		},
		BackupSuffix: cfg.BackupSuffix,
		DryRun:       inj.DryRun,
	})

	return inj.finish(logger, change, patchOutcome(res), err, "patch manifest")
}

func (inj *Injector) patchDescriptor(logger *slog.Logger, hc hook.Context, vars resolve.Vars) (Change, error) {
	if inj.Config.Descriptor.Disabled || hc.PluginDir() == "" {
		return Change{}, nil
	}

	path := config.ProjectPath(hc.PluginDir(), inj.Config.Descriptor.Path)
	change := Change{Kind: KindDescriptor, Path: path}

	res, err := manifest.PatchPlaceholders(path, vars.Placeholders(), manifest.PatchOptions{
		BackupSuffix: inj.Config.Manifest.BackupSuffix,
		DryRun:       inj.DryRun,
	})
	if err == nil && res.Action == manifest.ActionUnchanged {
		logger.Info("skipping target",
			slog.String("kind", KindDescriptor),
			slog.String("path", path),
			slog.String("reason", skipNoPlaceholder))
		change.Skipped = skipNoPlaceholder
		return change, nil
	}

	return inj.finish(logger, change, patchOutcome(res), err, "patch descriptor")
}

func (inj *Injector) patchEntitlements(logger *slog.Logger, hc hook.Context, vars resolve.Vars) ([]Change, error) {
	cfg := inj.Config.Entitlements
	if cfg.Disabled || !hc.Platforms.Has(platform.IOS) {
		return nil, nil
	}

	iosDir := filepath.Join(hc.ProjectRoot, "platforms", "ios")

	app, err := entitlements.AppName(iosDir)
	if errors.Is(err, entitlements.ErrNoProject) {
		logger.Info("skipping target",
			slog.String("kind", KindEntitlements),
			slog.String("path", iosDir),
			slog.String("reason", skipNoProject))
		return []Change{{Kind: KindEntitlements, Path: iosDir, Skipped: skipNoProject}}, nil
	}
	if err != nil {
		logger.Error("finding Xcode project", slog.String("path", iosDir), slog.String("error", err.Error()))
		return nil, NewPathError("find app", iosDir, err)
	}

	entry := entitlements.Entry(cfg.Prefix, vars.Host)

	var (
		changes []Change
		errs    []error
	)

	for _, path := range entitlements.TargetPaths(iosDir, app, cfg.Files) {
		if err := inj.checkContext(); err != nil {
			return changes, err
		}

		res, err := entitlements.Patch(path, entitlements.Options{Key: cfg.Key, Entry: entry, DryRun: inj.DryRun})

		out := outcome{before: res.Before, after: res.After, changed: res.Changed, action: string(manifest.ActionUnchanged)}
		if res.Changed {
			out.action = string(manifest.ActionAppended)
		}
		if res.Created {
			out.action = "created"
		}

		change, err := inj.finish(logger, Change{Kind: KindEntitlements, Path: path}, out, err, "patch entitlements")
		changes = append(changes, change)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return changes, errors.Join(errs...)
}

// outcome is the common part of the per-kind patch results.
type outcome struct {
	action        string
	before        []byte
	after         []byte
	changed       bool
	backupCreated bool
}

func patchOutcome(res manifest.PatchResult) outcome {
	return outcome{
		action:        string(res.Action),
		before:        res.Before,
		after:         res.After,
		changed:       res.Changed,
		backupCreated: res.BackupCreated,
	}
}

// finish turns a patch result into a Change, logging the decision. Missing
// and malformed documents become skips; any other error is wrapped.
func (inj *Injector) finish(logger *slog.Logger, change Change, out outcome, err error, op string) (Change, error) {
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		change.Skipped = skipNotFound
	case errors.Is(err, manifest.ErrMalformedDocument):
		change.Skipped = skipMalformed
	case err != nil:
		logger.Error("patch failed",
			slog.String("kind", change.Kind),
			slog.String("path", change.Path),
			slog.String("error", err.Error()))
		return change, NewPathError(op, change.Path, err)
	}

	if change.Skipped != "" {
		logger.Info("skipping target",
			slog.String("kind", change.Kind),
			slog.String("path", change.Path),
			slog.String("reason", change.Skipped))
		return change, nil
	}

	change.Action = out.action
	change.Before = out.before
	change.After = out.after
	change.Changed = out.changed
	change.BackupCreated = out.backupCreated

	if inj.DryRun && change.Changed {
		change.Diff = textdiff.Unified(change.Path, change.Before, change.After)
	}

	logger.Info("target processed",
		slog.String("kind", change.Kind),
		slog.String("path", change.Path),
		slog.String("action", change.Action),
		slog.Bool("changed", change.Changed),
		slog.Bool("dry_run", inj.DryRun))

	if change.BackupCreated {
		logger.Info("backup created", slog.String("path", change.Path+inj.Config.Manifest.BackupSuffix))
	}

	return change, nil
}

func (inj *Injector) fragmentRenderer(projectRoot string) (*manifest.Renderer, error) {
	tmplPath := inj.Config.Manifest.Template
	if tmplPath == "" {
		return nil, nil //nolint:nilnil // nil renderer selects the default template
	}

	path := config.ProjectPath(projectRoot, tmplPath)

	data, err := os.ReadFile(path) //nolint:gosec // path comes from project settings
	if err != nil {
		return nil, NewPathError("read template", path, err)
	}

	r, err := manifest.NewRenderer(string(data))
	if err != nil {
		return nil, NewPathError("parse template", path, err)
	}

	return r, nil
}

func (inj *Injector) recordHistory(logger *slog.Logger, report *Report) error {
	if inj.history == nil || inj.DryRun || report.Written() == 0 {
		return nil
	}

	store, err := inj.history.open()
	if err != nil {
		logger.Warn("run history unavailable", slog.String("error", err.Error()))
		return nil
	}

	var errs []error

	for _, c := range report.Changes {
		if !c.Changed {
			continue
		}

		if last, err := store.LatestRun(c.Path); err == nil && last != nil && last.Digest != state.Digest(c.Before) {
			logger.Info("target changed outside ulinject since last run",
				slog.String("path", c.Path),
				slog.String("last_run", last.RunID))
		}

		err := store.RecordRun(state.Run{
			RunID:  report.RunID,
			Target: c.Path,
			Kind:   c.Kind,
			Action: c.Action,
			Digest: state.Digest(c.After),
			Host:   report.Vars.Host,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := store.Prune(inj.Config.History.Keep); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("recording history", slog.String("error", err.Error()))
		return fmt.Errorf("recording history: %w", err)
	}

	return nil
}

func fragmentOf(vars resolve.Vars) manifest.Fragment {
	return manifest.Fragment{
		Host:   vars.Host,
		Scheme: vars.Scheme,
		Event:  vars.Event,
		Paths:  vars.Paths,
	}
}
