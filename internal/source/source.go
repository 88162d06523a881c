package source

import (
	"context"
	"fmt"

	"github.com/yourorg/release-tracker/internal/release"
)

// Kinds of source documents
const (
	KindChangelog = "changelog"
	KindAtom      = "atom"
	KindGitHub    = "github"
)

// Source yields release records newest first
type Source interface {
	Fetch(ctx context.Context) ([]release.Release, error)
}

// Options describes one project's source document
type Options struct {
	Kind            string
	URL             string
	Repo            string
	Pattern         string
	Verify          bool
	Clean           bool
	Pages           int
	IncludeUnstable bool
}

// New builds the adapter for opts. The GitHub client is shared so that a
// single token and retry policy cover every project.
func New(opts Options, fetcher *Fetcher, gh *GitHub) (Source, error) {
	filter := DefaultFilter()
	if opts.IncludeUnstable {
		filter.ExcludePrereleases = false
	}

	switch opts.Kind {
	case KindChangelog, "":
		return NewChangelog(fetcher, opts.URL, opts.Pattern, filter)
	case KindAtom:
		a := NewAtom(fetcher, opts.URL, filter, opts.Clean)
		if opts.Verify {
			a.WithVerification(gh, opts.Repo)
		}
		return a, nil
	case KindGitHub:
		return NewGitHubReleases(gh, opts.Repo, opts.Pages, filter, opts.Clean), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", opts.Kind)
	}
}
