package release

import "time"

// Release represents one published version of a tracked project
type Release struct {
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// DisplayName returns the label used in notification headers
func (r Release) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Identifier
}

// HasPublishedAt reports whether the source provided a publish timestamp
func (r Release) HasPublishedAt() bool {
	return !r.PublishedAt.IsZero()
}

// Find returns the release with the given identifier from a fetched sequence
func Find(releases []Release, identifier string) (Release, bool) {
	for _, r := range releases {
		if r.Identifier == identifier {
			return r, true
		}
	}
	return Release{}, false
}
