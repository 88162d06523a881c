package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/release-tracker/internal/release"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubRelease represents a GitHub release as returned by the REST API
type GitHubRelease struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// TagStatus describes what the GitHub API knows about a tag
type TagStatus int

const (
	TagStable TagStatus = iota
	TagOnly
	TagDraft
	TagPrerelease
)

func (s TagStatus) String() string {
	switch s {
	case TagStable:
		return "stable"
	case TagOnly:
		return "tag_only"
	case TagDraft:
		return "draft"
	case TagPrerelease:
		return "prerelease"
	default:
		return "unknown"
	}
}

// GitHub provides GitHub releases API functionality
type GitHub struct {
	fetcher *Fetcher
	baseURL string
}

// NewGitHub creates a GitHub API client on top of a fetcher
func NewGitHub(fetcher *Fetcher) *GitHub {
	return &GitHub{fetcher: fetcher, baseURL: defaultGitHubAPI}
}

// WithBaseURL points the client at another API root
func (g *GitHub) WithBaseURL(baseURL string) *GitHub {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

func (g *GitHub) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	if g.fetcher.token != "" {
		h.Set("Authorization", "Bearer "+g.fetcher.token)
	}
	return h
}

// ListReleases fetches up to pages*perPage releases in API order (newest first)
func (g *GitHub) ListReleases(ctx context.Context, repo string, perPage, pages int) ([]GitHubRelease, error) {
	if perPage <= 0 {
		perPage = 30
	}
	if pages <= 0 {
		pages = 1
	}

	var all []GitHubRelease
	for page := 1; page <= pages; page++ {
		u := fmt.Sprintf("%s/repos/%s/releases?per_page=%d&page=%d", g.baseURL, repo, perPage, page)
		status, body, err := g.fetcher.get(ctx, u, g.headers())
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: github api error: %d %s", release.ErrSourceUnavailable, status, truncate(string(body), 200))
		}

		var releases []GitHubRelease
		if err := json.Unmarshal(body, &releases); err != nil {
			return nil, fmt.Errorf("%w: failed to decode releases: %v", release.ErrParseFailed, err)
		}
		all = append(all, releases...)
		if len(releases) < perPage {
			break
		}
	}
	return all, nil
}

// ReleaseByTag looks a tag up and reports whether it is a stable release.
// Rate limiting, server and auth errors are returned as release.ErrSourceUnavailable.
func (g *GitHub) ReleaseByTag(ctx context.Context, repo, tag string) (GitHubRelease, TagStatus, error) {
	u := fmt.Sprintf("%s/repos/%s/releases/tags/%s", g.baseURL, repo, url.PathEscape(tag))
	status, body, err := g.fetcher.get(ctx, u, g.headers())
	if err != nil {
		return GitHubRelease{}, 0, err
	}

	switch {
	case status == http.StatusNotFound:
		return GitHubRelease{}, TagOnly, nil
	case status == http.StatusUnauthorized:
		return GitHubRelease{}, 0, fmt.Errorf("%w: github authentication failed (token invalid or expired)", release.ErrSourceUnavailable)
	case status == http.StatusForbidden:
		return GitHubRelease{}, 0, fmt.Errorf("%w: github api rate limited", release.ErrSourceUnavailable)
	case status != http.StatusOK:
		return GitHubRelease{}, 0, fmt.Errorf("%w: github api error: %d", release.ErrSourceUnavailable, status)
	}

	var r GitHubRelease
	if err := json.Unmarshal(body, &r); err != nil {
		return GitHubRelease{}, 0, fmt.Errorf("%w: failed to decode release: %v", release.ErrParseFailed, err)
	}
	if r.Draft {
		return r, TagDraft, nil
	}
	if r.Prerelease {
		return r, TagPrerelease, nil
	}
	return r, TagStable, nil
}

// GitHubReleases is a source backed by the GitHub releases API
type GitHubReleases struct {
	client  *GitHub
	repo    string
	pages   int
	filter  Filter
	cleaner func(string) string
}

// NewGitHubReleases creates a GitHub releases source for owner/name
func NewGitHubReleases(client *GitHub, repo string, pages int, filter Filter, clean bool) *GitHubReleases {
	s := &GitHubReleases{client: client, repo: repo, pages: pages, filter: filter}
	if clean {
		s.cleaner = CleanBody
	}
	return s
}

// Fetch implements the source contract
func (s *GitHubReleases) Fetch(ctx context.Context) ([]release.Release, error) {
	raw, err := s.client.ListReleases(ctx, s.repo, 100, s.pages)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no releases found for %s", release.ErrParseFailed, s.repo)
	}

	filtered := FilterAndSortReleases(raw, s.filter)

	out := make([]release.Release, 0, len(filtered))
	for _, r := range filtered {
		body := r.Body
		if s.cleaner != nil {
			body = s.cleaner(body)
		}
		title := r.Name
		if title == "" {
			title = r.TagName
		}
		out = append(out, release.Release{
			Identifier:  r.TagName,
			Title:       title,
			Body:        body,
			URL:         r.HTMLURL,
			PublishedAt: r.PublishedAt,
		})
	}
	return out, nil
}

// FilterAndSortReleases drops drafts, undated and excluded releases and sorts newest first
func FilterAndSortReleases(releases []GitHubRelease, filter Filter) []GitHubRelease {
	var filtered []GitHubRelease

	for _, r := range releases {
		// Skip drafts
		if r.Draft {
			continue
		}

		// Skip prereleases unless the project tracks them
		if r.Prerelease && filter.ExcludePrereleases {
			continue
		}

		// Skip releases without published date
		if r.PublishedAt.IsZero() {
			continue
		}

		if filter.Excluded(r.TagName, r.Name) {
			continue
		}

		filtered = append(filtered, r)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PublishedAt.After(filtered[j].PublishedAt)
	})

	return filtered
}
