// Package tracker detects new releases against durable state and announces
// them at most once.
package tracker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/release-tracker/internal/compose"
	"github.com/yourorg/release-tracker/internal/release"
	"github.com/yourorg/release-tracker/internal/state"
	"github.com/yourorg/release-tracker/internal/translate"
)

// Source yields release records newest first
type Source interface {
	Fetch(ctx context.Context) ([]release.Release, error)
}

// Notifier delivers message parts to one chat
type Notifier interface {
	Send(ctx context.Context, html string) (messageID int, err error)
	Edit(ctx context.Context, messageID int, html string) error
}

// Renderer fits a release into message parts
type Renderer interface {
	Render(ctx context.Context, in compose.Input) compose.Rendered
}

// Project is one tracked upstream and where its announcements go
type Project struct {
	Name       string
	Title      string
	Source     Source
	Notifier   Notifier
	Translate  bool
	AuthorName string
	AuthorURL  string
}

// Config holds the policy knobs shared by all projects
type Config struct {
	SourceLang       string
	TargetLang       string
	AnnounceFirstRun bool
	PushDelay        time.Duration
	TranslateTimeout time.Duration
}

// Tracker runs the checker, pusher, force and dump flows
type Tracker struct {
	store      state.Store
	renderer   Renderer
	translator translate.Translator
	cfg        Config
	log        *slog.Logger
}

// New creates a tracker. translator may be nil; store may be nil when only
// Force and Dump are used.
func New(store state.Store, renderer Renderer, translator translate.Translator, cfg Config, log *slog.Logger) *Tracker {
	if translator == nil {
		translator = translate.Disabled{}
	}
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		store:      store,
		renderer:   renderer,
		translator: translator,
		cfg:        cfg,
		log:        log,
	}
}

// render translates (when enabled) and formats r
func (t *Tracker) render(ctx context.Context, p Project, r release.Release, log *slog.Logger) compose.Rendered {
	var translation string
	if p.Translate {
		translation = t.translate(ctx, r, log)
	}

	return t.renderer.Render(ctx, compose.Input{
		Title:       p.Title,
		Release:     r,
		Translation: translation,
		AuthorName:  p.AuthorName,
		AuthorURL:   p.AuthorURL,
	})
}

// translate never fails; errors are logged and the release goes out untranslated
func (t *Tracker) translate(ctx context.Context, r release.Release, log *slog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.TranslateTimeout)
	defer cancel()

	out, err := t.translator.Translate(ctx, r.Body, t.cfg.SourceLang, t.cfg.TargetLang)
	if errors.Is(err, translate.ErrUnavailable) {
		return ""
	}
	if err != nil {
		log.Warn("Translation failed, sending original only", "error", fmt.Errorf("%w: %v", release.ErrTranslationFailed, err))
		return ""
	}
	return out
}

// fetch wraps source errors with the project name
func fetch(ctx context.Context, p Project) ([]release.Release, error) {
	records, err := p.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.Name, err)
	}
	return records, nil
}

// bodyHash identifies the notes an announcement was rendered from
func bodyHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
