package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DefaultBackupSuffix is appended to a document path to name its backup.
const DefaultBackupSuffix = ".bak"

// PatchOptions configures Patch.
type PatchOptions struct {
	MergeOptions
	BackupSuffix string
	DryRun       bool
}

// PatchResult describes what Patch did, or would do in dry-run mode, to a
// document on disk.
type PatchResult struct {
	Path          string
	BackupPath    string
	Action        Action
	Before        []byte
	After         []byte
	Changed       bool
	BackupCreated bool
}

// Patch merges frag into the document at path. The file is written only when
// the merged bytes differ from what is on disk; before that first write a
// backup copy is created unless one already exists.
func Patch(path string, frag Fragment, opts PatchOptions) (PatchResult, error) {
	before, mode, err := readDocument(path)
	if err != nil {
		return PatchResult{Path: path}, err
	}

	res, err := Merge(before, frag, opts.MergeOptions)
	if err != nil {
		return PatchResult{Path: path, Before: before}, err
	}

	out := PatchResult{
		Path:    path,
		Action:  res.Action,
		Before:  before,
		After:   res.Data,
		Changed: res.Changed,
	}

	if !res.Changed || opts.DryRun {
		return out, nil
	}

	out.BackupPath, out.BackupCreated, err = writeWithBackup(path, before, res.Data, mode, opts.BackupSuffix)

	return out, err
}

func readDocument(path string) ([]byte, fs.FileMode, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from project settings
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, info.Mode().Perm(), nil
}

// writeWithBackup saves the original bytes to path+suffix when no backup
// exists yet, then replaces path with data.
func writeWithBackup(path string, original, data []byte, mode fs.FileMode, suffix string) (string, bool, error) {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	backup := path + suffix

	created := false
	if _, err := os.Stat(backup); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(backup, original, mode); err != nil {
			return backup, false, fmt.Errorf("writing backup %s: %w", backup, err)
		}
		created = true
	} else if err != nil {
		return backup, false, fmt.Errorf("stat %s: %w", backup, err)
	}

	if err := os.WriteFile(path, data, mode); err != nil {
		return backup, created, fmt.Errorf("writing %s: %w", path, err)
	}

	return backup, created, nil
}
