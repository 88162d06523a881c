package source

import (
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"

	"github.com/yourorg/release-tracker/internal/release"
)

// DefaultUnstableKeywords are tokens that mark a release as not stable
var DefaultUnstableKeywords = []string{
	"alpha", "beta", "rc", "preview", "pre",
	"dev", "nightly", "snapshot", "test",
}

// Filter is the exclusion policy applied before records leave an adapter.
// It is a pure predicate over identifier and title.
type Filter struct {
	ExcludePrereleases bool
	Keywords           []string
}

// DefaultFilter excludes pre-releases using the default keyword list
func DefaultFilter() Filter {
	return Filter{ExcludePrereleases: true, Keywords: DefaultUnstableKeywords}
}

// Excluded reports whether a release must never reach the version store
func (f Filter) Excluded(identifier, title string) bool {
	if !f.ExcludePrereleases {
		return false
	}
	if isSemverPrerelease(identifier) {
		return true
	}

	keywords := make(map[string]bool, len(f.Keywords))
	for _, k := range f.Keywords {
		keywords[strings.ToLower(k)] = true
	}
	for _, tok := range tokens(identifier + " " + title) {
		if keywords[tok] {
			return true
		}
	}
	return false
}

// isSemverPrerelease strips tag prefixes like "v" or "rust-v" and checks
// the pre-release component of the remaining semantic version.
func isSemverPrerelease(identifier string) bool {
	i := strings.IndexFunc(identifier, unicode.IsDigit)
	if i < 0 {
		return false
	}
	v, err := semver.NewVersion(identifier[i:])
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}

// tokens splits s into lowercase runs of letters or digits,
// so "1.0.0-rc1" yields 1 0 0 rc 1.
func tokens(s string) []string {
	var out []string
	var cur []rune
	kind := 0 // 1 letter, 2 digit

	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r):
			if kind != 1 {
				flush()
			}
			kind = 1
			cur = append(cur, r)
		case unicode.IsDigit(r):
			if kind != 2 {
				flush()
			}
			kind = 2
			cur = append(cur, r)
		default:
			flush()
			kind = 0
		}
	}
	flush()
	return out
}

// Apply returns the releases that pass the filter, preserving order
func (f Filter) Apply(in []release.Release) []release.Release {
	out := make([]release.Release, 0, len(in))
	for _, r := range in {
		if !f.Excluded(r.Identifier, r.Title) {
			out = append(out, r)
		}
	}
	return out
}
