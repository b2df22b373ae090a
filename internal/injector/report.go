package injector

import (
	"github.com/AntoineGS/ulinject/internal/resolve"
)

// Kinds of target document.
const (
	KindManifest     = "manifest"
	KindDescriptor   = "descriptor"
	KindEntitlements = "entitlements"
)

// Change is the outcome for one target document.
type Change struct {
	Kind          string
	Path          string
	Action        string
	Skipped       string // Reason the target was left alone, empty otherwise
	Diff          string // Pending changes, dry-run only
	Before        []byte
	After         []byte
	Changed       bool
	BackupCreated bool
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Source  string // Plugin options file used, empty when none was found
	Skipped string // Reason the whole run was skipped, empty otherwise
	Vars    resolve.Vars
	Changes []Change
	DryRun  bool
}

// Written returns the number of documents written, or that would be written
// in dry-run mode.
func (r *Report) Written() int {
	n := 0
	for _, c := range r.Changes {
		if c.Changed {
			n++
		}
	}
	return n
}
