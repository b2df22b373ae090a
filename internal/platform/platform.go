// Package platform names the build targets a hook run can be asked to prepare.
package platform

import (
	"slices"
	"strings"
)

// Platform identifiers as passed by the build host.
const (
	// IOS is the Apple iOS platform
	IOS = "ios"
	// Android is the Android platform
	Android = "android"
	// Windows is the Windows (UWP) platform
	Windows = "windows"
	// Browser is the browser platform
	Browser = "browser"
	// Electron is the desktop Electron platform
	Electron = "electron"
)

// LinkTargets are the platforms that consume universal-link configuration.
// A run whose platform set contains none of them does nothing.
var LinkTargets = []string{IOS, Android}

// Set holds the platform identifiers requested for one run.
// The zero value is an empty set.
type Set struct {
	ids []string
}

// NewSet builds a Set from identifiers, lower-casing and trimming each one.
// Empty and duplicate identifiers are dropped; first-seen order is kept.
func NewSet(ids ...string) Set {
	s := Set{ids: make([]string, 0, len(ids))}

	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || slices.Contains(s.ids, id) {
			continue
		}

		s.ids = append(s.ids, id)
	}

	return s
}

// Parse reads a comma separated platform list such as the value of
// CORDOVA_PLATFORMS ("ios,android").
func Parse(list string) Set {
	return NewSet(strings.Split(list, ",")...)
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	return slices.Contains(s.ids, strings.ToLower(id))
}

// Any reports whether at least one of ids is in the set.
func (s Set) Any(ids ...string) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}

	return false
}

// Empty reports whether the set has no identifiers.
func (s Set) Empty() bool {
	return len(s.ids) == 0
}

// List returns a copy of the identifiers in insertion order.
func (s Set) List() []string {
	return slices.Clone(s.ids)
}

func (s Set) String() string {
	return strings.Join(s.ids, ",")
}

// WantsLinks reports whether the set contains a platform that consumes
// universal-link configuration.
func (s Set) WantsLinks() bool {
	return s.Any(LinkTargets...)
}
