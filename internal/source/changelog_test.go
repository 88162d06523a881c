package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/yourorg/release-tracker/internal/release"
)

const sampleChangelog = `# Changelog

## 1.0.2

- Fix crash
- Better logs

## 1.0.1-beta.1

- Beta thing

## [v1.0.0] - 2024-01-01

Initial release

`

func testFetcher() *Fetcher {
	return NewFetcher(2*time.Second, "").WithRetry(0, 0)
}

func TestParseChangelog(t *testing.T) {
	got := ParseChangelog(sampleChangelog, regexp.MustCompile(DefaultVersionHeading))

	if len(got) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(got))
	}
	if got[0].Identifier != "1.0.2" || got[0].Body != "- Fix crash\n- Better logs" {
		t.Errorf("unexpected first section: %+v", got[0])
	}
	if got[1].Identifier != "1.0.1-beta.1" {
		t.Errorf("expected pre-release section, got %q", got[1].Identifier)
	}
	if got[2].Identifier != "1.0.0" || got[2].Body != "Initial release" {
		t.Errorf("unexpected last section: %+v", got[2])
	}
}

func TestChangelogFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleChangelog))
	}))
	defer srv.Close()

	c, err := NewChangelog(testFetcher(), srv.URL, "", DefaultFilter())
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 2 || got[0].Identifier != "1.0.2" || got[1].Identifier != "1.0.0" {
		t.Errorf("unexpected releases: %+v", got)
	}
}

func TestChangelogFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("# Changelog\n\nNothing released yet.\n"))
		}
	}))
	defer srv.Close()

	broken, _ := NewChangelog(testFetcher(), srv.URL+"/broken", "", DefaultFilter())
	if _, err := broken.Fetch(context.Background()); !errors.Is(err, release.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}

	empty, _ := NewChangelog(testFetcher(), srv.URL+"/empty", "", DefaultFilter())
	if _, err := empty.Fetch(context.Background()); !errors.Is(err, release.ErrParseFailed) {
		t.Errorf("expected ErrParseFailed, got %v", err)
	}
}

func TestChangelogAllFilteredIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("## 2.0.0-rc.1\n\n- soon\n"))
	}))
	defer srv.Close()

	c, _ := NewChangelog(testFetcher(), srv.URL, "", DefaultFilter())
	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no releases, got %+v", got)
	}
}

func TestNewChangelogRequiresGroup(t *testing.T) {
	if _, err := NewChangelog(testFetcher(), "http://example.invalid", `^## \d+`, DefaultFilter()); err == nil {
		t.Error("expected error for pattern without capture group")
	}
}
