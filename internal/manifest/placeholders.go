package manifest

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// SubstitutePlaceholders replaces every $NAME in doc whose NAME is a key of
// values. Longer names win over names they start with. Substituted text is
// not scanned again. It returns the new bytes and the number of replacements.
func SubstitutePlaceholders(doc []byte, values map[string]string) ([]byte, int) {
	names := make([]string, 0, len(values))
	for name := range values {
		if name != "" {
			names = append(names, regexp.QuoteMeta(name))
		}
	}
	if len(names) == 0 {
		return doc, 0
	}

	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})

	re := regexp.MustCompile(`\$(` + strings.Join(names, "|") + `)`)

	n := 0
	out := re.ReplaceAllFunc(doc, func(m []byte) []byte {
		n++
		return []byte(values[string(m[1:])])
	})

	return out, n
}

// PatchPlaceholders substitutes placeholders in the document at path, with
// the same backup-once and dry-run behavior as Patch. A document without any
// placeholder is left untouched and reported as ActionUnchanged.
func PatchPlaceholders(path string, values map[string]string, opts PatchOptions) (PatchResult, error) {
	before, mode, err := readDocument(path)
	if err != nil {
		return PatchResult{Path: path}, err
	}

	after, n := SubstitutePlaceholders(before, values)

	out := PatchResult{
		Path:   path,
		Action: ActionUnchanged,
		Before: before,
		After:  after,
	}
	if n == 0 {
		return out, nil
	}

	out.Action = ActionSubstituted
	out.Changed = true

	if opts.DryRun {
		return out, nil
	}

	out.BackupPath, out.BackupCreated, err = writeWithBackup(path, before, after, mode, opts.BackupSuffix)

	return out, err
}
