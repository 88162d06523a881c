package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"github.com/yourorg/release-tracker/internal/source"
)

var (
	projectNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	repoRe        = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// Project is one entry of the projects file
type Project struct {
	Name        string       `yaml:"name"`
	Title       string       `yaml:"title"`
	BotTokenEnv string       `yaml:"bot_token_env"`
	ChatIDEnv   string       `yaml:"chat_id_env"`
	Author      Author       `yaml:"author"`
	Translate   *bool        `yaml:"translate"`
	Source      SourceConfig `yaml:"source"`

	// resolved from the environment
	BotToken string `yaml:"-"`
	ChatID   string `yaml:"-"`
}

// Author is shown on long-form pages
type Author struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SourceConfig describes where a project's release notes come from
type SourceConfig struct {
	Kind            string `yaml:"kind"`
	URL             string `yaml:"url"`
	Repo            string `yaml:"repo"`
	Pattern         string `yaml:"pattern"`
	Verify          bool   `yaml:"verify"`
	Clean           bool   `yaml:"clean"`
	Pages           int    `yaml:"pages"`
	IncludeUnstable bool   `yaml:"include_unstable"`
}

// Options converts the entry into source adapter options
func (s SourceConfig) Options() source.Options {
	return source.Options{
		Kind:            s.Kind,
		URL:             s.URL,
		Repo:            s.Repo,
		Pattern:         s.Pattern,
		Verify:          s.Verify,
		Clean:           s.Clean,
		Pages:           s.Pages,
		IncludeUnstable: s.IncludeUnstable,
	}
}

// TranslateEnabled reports whether announcements carry a translation; default on
func (p Project) TranslateEnabled() bool {
	return p.Translate == nil || *p.Translate
}

type projectsFile struct {
	Projects []Project `yaml:"projects"`
}

// DefaultProjects are used when no projects file exists
func DefaultProjects() []Project {
	return []Project{
		{
			Name:        "claude_code",
			Title:       "Claude Code",
			BotTokenEnv: "CLAUDE_CODE_BOT_TOKEN",
			ChatIDEnv:   "CLAUDE_CODE_CHAT_ID",
			Source: SourceConfig{
				Kind: source.KindChangelog,
				URL:  "https://raw.githubusercontent.com/anthropics/claude-code/refs/heads/main/CHANGELOG.md",
			},
		},
		{
			Name:        "codex",
			Title:       "OpenAI Codex",
			BotTokenEnv: "CODEX_BOT_TOKEN",
			ChatIDEnv:   "CODEX_CHAT_ID",
			Source: SourceConfig{
				Kind:   source.KindAtom,
				URL:    "https://github.com/openai/codex/releases.atom",
				Repo:   "openai/codex",
				Verify: true,
				Clean:  true,
			},
		},
	}
}

// LoadProjects reads and validates the projects file. A missing file yields
// the built-in projects.
func LoadProjects(path string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProjects(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read projects file: %w", err)
	}
	return ParseProjects(data)
}

// ParseProjects decodes a projects document; unknown fields are rejected
func ParseProjects(data []byte) ([]Project, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f projectsFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse projects file: %w", err)
	}
	if len(f.Projects) == 0 {
		return nil, fmt.Errorf("projects file lists no projects")
	}

	seen := make(map[string]bool, len(f.Projects))
	for i := range f.Projects {
		p := &f.Projects[i]
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("project %d (%s): %w", i+1, p.Name, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate project name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return f.Projects, nil
}

func (p *Project) validate() error {
	if !projectNameRe.MatchString(p.Name) {
		return fmt.Errorf("name must match %s", projectNameRe)
	}
	if p.Source.Kind == "" {
		p.Source.Kind = source.KindChangelog
	}

	switch p.Source.Kind {
	case source.KindChangelog, source.KindAtom:
		if strings.TrimSpace(p.Source.URL) == "" {
			return fmt.Errorf("source url is required for %s", p.Source.Kind)
		}
	case source.KindGitHub:
		if !repoRe.MatchString(p.Source.Repo) {
			return fmt.Errorf("source repo must be owner/name, got %q", p.Source.Repo)
		}
	default:
		return fmt.Errorf("unknown source kind %q", p.Source.Kind)
	}

	if p.Source.Verify && !repoRe.MatchString(p.Source.Repo) {
		return fmt.Errorf("verify needs repo as owner/name, got %q", p.Source.Repo)
	}
	if p.Source.Pages < 0 {
		return fmt.Errorf("source pages must not be negative")
	}
	return nil
}

// resolve fills credentials and author defaults from the environment.
// Projects without their own variables fall back to TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID.
func (p *Project) resolve(getenv func(string) string, cfg *Config) {
	lookup := func(key, fallback string) string {
		if key != "" {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				return v
			}
		}
		return strings.TrimSpace(getenv(fallback))
	}
	p.BotToken = lookup(p.BotTokenEnv, "TELEGRAM_BOT_TOKEN")
	p.ChatID = lookup(p.ChatIDEnv, "TELEGRAM_CHAT_ID")

	if p.Title == "" {
		p.Title = p.Name
	}
	if p.Author.Name == "" {
		p.Author.Name = cfg.TelegraphAuthorName
	}
	if p.Author.URL == "" {
		p.Author.URL = cfg.TelegraphAuthorURL
	}
}
