package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/yourorg/release-tracker/internal/compose"
	"github.com/yourorg/release-tracker/internal/config"
	"github.com/yourorg/release-tracker/internal/source"
	"github.com/yourorg/release-tracker/internal/state"
	"github.com/yourorg/release-tracker/internal/telegram"
	"github.com/yourorg/release-tracker/internal/telegraph"
	"github.com/yourorg/release-tracker/internal/tracker"
	"github.com/yourorg/release-tracker/internal/translate"
)

// app holds everything a subcommand needs
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     state.Store // nil for commands that touch no state
	runner    *tracker.Runner
	notifiers map[string]string // project name -> chat or reason it is disabled
	stdout    io.Writer
}

type appOptions struct {
	state     bool // open the store
	notifiers bool // connect to Telegram
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger, notifiers: make(map[string]string)}

	if opts.state {
		store, err := state.Open(state.Config{Driver: cfg.StateDriver, Dir: cfg.StateDir, Path: cfg.DBPath})
		if err != nil {
			return nil, fmt.Errorf("failed to open state: %w", err)
		}
		a.store = store
		logger.Info("State store opened", "driver", cfg.StateDriver)
	}

	fetcher := source.NewFetcher(cfg.HTTPTimeout, cfg.GithubToken)
	gh := source.NewGitHub(fetcher)

	translator, err := translate.New(ctx, translate.Config{Model: cfg.LLMModel, APIKey: cfg.LLMAPIKey})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}
	if _, disabled := translator.(translate.Disabled); disabled {
		logger.Info("Translation disabled, LLM_API_KEY is not set")
	} else {
		logger.Info("Translation enabled", "model", cfg.LLMModel)
	}

	var publisher compose.Publisher
	if cfg.TelegraphToken != "" {
		publisher = telegraph.New(cfg.TelegraphToken, cfg.TelegraphAuthorName, 0, logger)
	} else {
		logger.Info("Telegraph disabled, long releases will be truncated")
	}

	formatter := compose.NewFormatter(compose.Options{
		MaxParts:        cfg.MaxMessageParts,
		TimeZone:        cfg.TimeZone,
		TranslatedLabel: cfg.TranslatedLabel,
	}, publisher, logger)

	senders := make(map[string]*telegram.Sender)
	projects := make([]tracker.Project, 0, len(cfg.Projects))
	for _, pc := range cfg.Projects {
		src, err := source.New(pc.Source.Options(), fetcher, gh)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("project %s: %w", pc.Name, err)
		}

		var notifier tracker.Notifier = telegram.Disabled{Reason: "not connected"}
		if opts.notifiers {
			notifier = a.notifier(pc, senders)
		}

		projects = append(projects, tracker.Project{
			Name:       pc.Name,
			Title:      pc.Title,
			Source:     src,
			Notifier:   notifier,
			Translate:  pc.TranslateEnabled(),
			AuthorName: pc.Author.Name,
			AuthorURL:  pc.Author.URL,
		})
	}

	t := tracker.New(a.store, formatter, translator, tracker.Config{
		SourceLang:       cfg.SourceLang,
		TargetLang:       cfg.TargetLang,
		AnnounceFirstRun: cfg.AnnounceFirstRun,
		PushDelay:        cfg.PushDelay,
	}, logger)
	a.runner = tracker.NewRunner(t, projects)

	return a, nil
}

// notifier connects a project to its chat. Projects sharing a bot token
// share one sender and so one rate limiter.
func (a *app) notifier(pc config.Project, senders map[string]*telegram.Sender) tracker.Notifier {
	log := a.logger.With("project", pc.Name)

	if pc.BotToken == "" || pc.ChatID == "" {
		reason := "bot token or chat id not set"
		log.Warn("Notifier disabled", "reason", reason)
		a.notifiers[pc.Name] = "disabled: " + reason
		return telegram.Disabled{Reason: reason}
	}

	chat, err := telegram.ParseChat(pc.ChatID)
	if err != nil {
		log.Warn("Notifier disabled", "error", err)
		a.notifiers[pc.Name] = "disabled: invalid chat id"
		return telegram.Disabled{Reason: err.Error()}
	}

	sender, ok := senders[pc.BotToken]
	if !ok {
		sender, err = telegram.NewSender(pc.BotToken)
		if err != nil {
			log.Error("Failed to create Telegram sender", "error", err)
			a.notifiers[pc.Name] = "disabled: invalid bot token"
			return telegram.Disabled{Reason: err.Error()}
		}
		senders[pc.BotToken] = sender
	}

	a.notifiers[pc.Name] = chat.String()
	log.Info("Notifier ready", "chat_id", chat.String())
	return telegram.NewChannel(sender, chat)
}

// project resolves a -project flag
func (a *app) project(name string) (tracker.Project, error) {
	if name == "" {
		return tracker.Project{}, fmt.Errorf("-project is required")
	}
	p, ok := a.runner.Project(name)
	if !ok {
		return tracker.Project{}, fmt.Errorf("unknown project %q", name)
	}
	return p, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close state store", "error", err)
		}
	}
}
