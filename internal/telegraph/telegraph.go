// Package telegraph publishes long release notes to telegra.ph
package telegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/yourorg/release-tracker/internal/compose"
)

const defaultAPI = "https://api.telegra.ph"

// ErrUnavailable is returned when no access token is configured
var ErrUnavailable = errors.New("telegraph not configured")

// errContentTooBig is the API error for pages over the size limit
var errContentTooBig = errors.New("CONTENT_TOO_BIG")

// changelogSectionRe matches a "Changelog" heading and everything after it
var changelogSectionRe = regexp.MustCompile(`(?ims)^(?:\*{0,2}#{0,4}\s*Changelog\s*\*{0,2})\s*\n.*`)

// Client creates Telegraph pages
type Client struct {
	token      string
	authorName string
	baseURL    string
	http       *http.Client
	log        *slog.Logger
}

// New creates a Telegraph client
func New(token, authorName string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		token:      strings.TrimSpace(token),
		authorName: authorName,
		baseURL:    defaultAPI,
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}
}

// WithBaseURL points the client at another API root
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type createPageResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	} `json:"result"`
}

// Publish implements compose.Publisher. When the page is too big it retries
// once without the trailing "Changelog" section.
func (c *Client) Publish(ctx context.Context, page compose.Page) (string, error) {
	if c.token == "" {
		return "", ErrUnavailable
	}

	author := page.AuthorName
	if author == "" {
		author = c.authorName
	}

	content, err := pageNodes(page.Markdown, page.Translation)
	if err != nil {
		return "", err
	}
	u, err := c.CreatePage(ctx, page.Title, content, author, page.AuthorURL)
	if !errors.Is(err, errContentTooBig) {
		return u, err
	}

	c.log.Info("Telegraph page too big, retrying without changelog section", "title", page.Title)
	content, err = pageNodes(stripChangelogSection(page.Markdown), stripChangelogSection(page.Translation))
	if err != nil {
		return "", err
	}
	return c.CreatePage(ctx, page.Title, content, author, page.AuthorURL)
}

// CreatePage creates a page and returns its URL
func (c *Client) CreatePage(ctx context.Context, title string, content []Node, authorName, authorURL string) (string, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}

	form := url.Values{}
	form.Set("access_token", c.token)
	form.Set("title", truncateTitle(title))
	form.Set("content", string(contentJSON))
	form.Set("return_content", "false")
	if authorName != "" {
		form.Set("author_name", authorName)
	}
	if authorURL != "" {
		form.Set("author_url", authorURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createPage", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out createPageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("telegraph returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !out.OK {
		if out.Error == errContentTooBig.Error() {
			return "", errContentTooBig
		}
		return "", fmt.Errorf("telegraph error: %s", out.Error)
	}
	return out.Result.URL, nil
}

// stripChangelogSection removes a detailed commit list at the end of the notes
func stripChangelogSection(md string) string {
	return strings.TrimRight(changelogSectionRe.ReplaceAllString(md, ""), " \n")
}

// truncateTitle keeps titles within the 256 character API limit
func truncateTitle(title string) string {
	r := []rune(title)
	if len(r) == 0 {
		return "Release Notes"
	}
	if len(r) > 256 {
		return string(r[:255]) + "…"
	}
	return title
}
