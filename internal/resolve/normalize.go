package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Sentinel errors for path normalization
var (
	ErrNoPaths          = errors.New("no path patterns")
	ErrUnsupportedPaths = errors.New("unsupported path value")
)

// pathElement marks a value pasted as manifest markup rather than a list.
const pathElement = "<path"

// urlAttr only understands url='...' and url="..."; other attribute shapes
// are unsupported input and yield no paths.
var urlAttr = regexp.MustCompile(`url\s*=\s*['"]([^'"]+)['"]`)

// NormalizePaths converts the raw UL_PATHS value into an ordered list of
// patterns. Lists are taken element by element, strings holding <path>
// markup contribute their url attributes in order, other strings are split on
// commas, and any other scalar becomes a one-element list. Patterns are not
// validated or deduplicated.
func NormalizePaths(raw any) ([]string, error) {
	var out []string

	switch v := raw.(type) {
	case nil:
		return nil, ErrNoPaths
	case []string:
		out = append(out, v...)
	case []any:
		for i, item := range v {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, fmt.Errorf("%w: element %d is %T", ErrUnsupportedPaths, i, item)
			}
			out = append(out, s)
		}
	case string:
		if strings.Contains(v, pathElement) {
			out = extractURLs(v)
		} else {
			out = splitCSV(v)
		}
	case map[string]any, map[any]any:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPaths, raw)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedPaths, raw)
		}
		out = []string{s}
	}

	if len(out) == 0 {
		return nil, ErrNoPaths
	}

	return out, nil
}

func extractURLs(markup string) []string {
	matches := urlAttr.FindAllStringSubmatch(markup, -1)
	out := make([]string, 0, len(matches))

	for _, m := range matches {
		out = append(out, m[1])
	}

	return out
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
