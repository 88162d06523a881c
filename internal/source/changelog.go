package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/yourorg/release-tracker/internal/release"
)

// DefaultVersionHeading matches "## 1.2.3", "## [v1.2.3] - 2024-01-01" and
// pre-release forms like "## 2.0.0-beta.1". The first group is the version.
const DefaultVersionHeading = `^##\s+\[?v?(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)\]?`

// Changelog is a source backed by a markdown changelog with one
// "## <version>" section per release, newest at the top.
type Changelog struct {
	fetcher *Fetcher
	url     string
	heading *regexp.Regexp
	filter  Filter
}

// NewChangelog creates a changelog source. An empty pattern selects DefaultVersionHeading.
func NewChangelog(fetcher *Fetcher, url, pattern string, filter Filter) (*Changelog, error) {
	if pattern == "" {
		pattern = DefaultVersionHeading
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid version heading pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("version heading pattern %q needs a capture group", pattern)
	}
	return &Changelog{fetcher: fetcher, url: url, heading: re, filter: filter}, nil
}

// Fetch implements the source contract
func (c *Changelog) Fetch(ctx context.Context) ([]release.Release, error) {
	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		return nil, err
	}

	all := ParseChangelog(string(body), c.heading)
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no version sections found in %s", release.ErrParseFailed, c.url)
	}
	return c.filter.Apply(all), nil
}

// ParseChangelog splits a changelog into releases in document order.
// The heading line itself is not part of the body.
func ParseChangelog(text string, heading *regexp.Regexp) []release.Release {
	var (
		releases []release.Release
		current  *release.Release
		lines    []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(lines, "\n"))
		releases = append(releases, *current)
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := heading.FindStringSubmatch(line); m != nil {
			flush()
			current = &release.Release{Identifier: m[1], Title: m[1]}
			lines = lines[:0]
			continue
		}
		if current != nil {
			lines = append(lines, line)
		}
	}
	flush()

	return releases
}
