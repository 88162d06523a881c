package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment
type Config struct {
	ProjectsFile string

	StateDriver string
	StateDir    string
	DBPath      string

	LLMModel   string
	LLMAPIKey  string
	SourceLang string
	TargetLang string

	TelegraphToken      string
	TelegraphAuthorName string
	TelegraphAuthorURL  string

	GithubToken      string
	HTTPTimeout      time.Duration
	TimeZone         string
	MaxMessageParts  int
	TranslatedLabel  string
	PushDelay        time.Duration
	AnnounceFirstRun bool
	Schedule         string

	AdminBotToken  string
	AllowedUserIDs []int64

	Projects []Project
}

// Load reads an optional .env file, the environment and the projects file
func Load() (*Config, error) {
	// a missing .env is fine; real environment variables take precedence
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		ProjectsFile:        e.get("PROJECTS_FILE", "projects.yaml"),
		StateDriver:         e.get("STATE_DRIVER", "file"),
		StateDir:            e.get("STATE_DIR", "./output"),
		DBPath:              e.get("DB_PATH", "./output/releases.db"),
		LLMModel:            e.get("LLM_MODEL", e.get("TRANSLATE_MODEL", "openrouter/google/gemini-2.5-flash")),
		LLMAPIKey:           e.get("LLM_API_KEY", e.get("OPENROUTER_API_KEY", "")),
		SourceLang:          e.get("TRANSLATE_SOURCE_LANG", "English"),
		TargetLang:          e.get("TRANSLATE_TARGET_LANG", "Chinese"),
		TelegraphToken:      e.get("TELEGRAPH_ACCESS_TOKEN", ""),
		TelegraphAuthorName: e.get("TELEGRAPH_AUTHOR_NAME", "AI Release Tracker"),
		TelegraphAuthorURL:  e.get("TELEGRAPH_AUTHOR_URL", ""),
		GithubToken:         e.get("GH_TOKEN", e.get("GITHUB_TOKEN", "")),
		HTTPTimeout:         e.duration("HTTP_TIMEOUT", 10*time.Second),
		TimeZone:            e.get("TIMEZONE", "UTC"),
		MaxMessageParts:     e.integer("MAX_MESSAGE_PARTS", 4),
		TranslatedLabel:     e.get("TRANSLATED_RELEASE_LABEL", "发布"),
		PushDelay:           e.duration("PUSH_DELAY", 3*time.Second),
		AnnounceFirstRun:    e.boolean("ANNOUNCE_FIRST_RUN"),
		Schedule:            e.get("SCHEDULE", "@every 10m"),
		AdminBotToken:       e.get("ADMIN_BOT_TOKEN", ""),
		AllowedUserIDs:      e.userIDs("ALLOWED_USER_IDS"),
	}
	if e.err != nil {
		return nil, e.err
	}

	switch cfg.StateDriver {
	case "file", "sqlite":
	default:
		return nil, fmt.Errorf("STATE_DRIVER must be file or sqlite, got %q", cfg.StateDriver)
	}
	if cfg.MaxMessageParts < 1 {
		return nil, fmt.Errorf("MAX_MESSAGE_PARTS must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.TimeZone, err)
	}

	projects, err := LoadProjects(cfg.ProjectsFile)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].resolve(getenv, cfg)
	}
	cfg.Projects = projects

	return cfg, nil
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// env reads typed values and keeps the first parse error
type env struct {
	getenv func(string) string
	err    error
}

func (e *env) get(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e *env) duration(key string, defaultValue time.Duration) time.Duration {
	s := e.get(key, "")
	if s == "" {
		return defaultValue
	}
	// plain numbers are seconds
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s %q: %w", key, s, err))
		return defaultValue
	}
	return d
}

func (e *env) integer(key string, defaultValue int) int {
	s := e.get(key, "")
	if s == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s %q: %w", key, s, err))
		return defaultValue
	}
	return i
}

func (e *env) boolean(key string) bool {
	switch strings.ToLower(e.get(key, "")) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (e *env) userIDs(key string) []int64 {
	s := e.get(key, "")
	if s == "" {
		return nil
	}

	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			e.fail(fmt.Errorf("invalid %s entry %q: %w", key, part, err))
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
