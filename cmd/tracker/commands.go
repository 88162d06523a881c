package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/yourorg/release-tracker/internal/scheduler"
	"github.com/yourorg/release-tracker/internal/telegram"
	"github.com/yourorg/release-tracker/internal/tracker"
)

func parseCheck(fs *flag.FlagSet, args []string) (action, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	names := fs.Args()

	return func(ctx context.Context, a *app) int {
		if _, err := a.runner.Select(names); err != nil {
			a.logger.Error("Invalid arguments", "error", err)
			return exitUsage
		}

		results, err := a.runner.CheckAll(ctx, names)
		for _, res := range results {
			a.logger.Info("Check finished",
				"project", res.Project,
				"outcome", res.Outcome,
				"version", res.Version,
				"previous", res.Previous)
		}
		if err != nil {
			a.logger.Error("Check interrupted", "error", err)
			return exitFailure
		}
		return logResult(a.logger, "Some projects failed", tracker.Failures(results))
	}, nil
}

func parsePush(fs *flag.FlagSet, args []string) (action, error) {
	project := fs.String("project", "", "project name")
	count := fs.Int("count", 0, "number of newest releases to consider")
	all := fs.Bool("all", false, "consider every release")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *project == "" {
		return nil, errors.New("-project is required")
	}
	if !*all && *count <= 0 {
		return nil, errors.New("either -count N (N > 0) or -all is required")
	}

	return func(ctx context.Context, a *app) int {
		p, err := a.project(*project)
		if err != nil {
			a.logger.Error("Invalid arguments", "error", err)
			return exitUsage
		}

		res := a.runner.Tracker().Push(ctx, p, tracker.PushOptions{Count: *count, All: *all})
		a.logger.Info("Push finished",
			"project", res.Project,
			"total", res.Total,
			"processed", res.Processed,
			"skipped", res.Skipped,
			"delivered", len(res.Delivered),
			"failed", res.Failed)
		return logResult(a.logger, "Push failed", res.Err)
	}, nil
}

func parseForce(fs *flag.FlagSet, args []string) (action, error) {
	project := fs.String("project", "", "project name")
	version := fs.String("version", "", "release identifier (newest when empty)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *project == "" {
		return nil, errors.New("-project is required")
	}

	return func(ctx context.Context, a *app) int {
		p, err := a.project(*project)
		if err != nil {
			a.logger.Error("Invalid arguments", "error", err)
			return exitUsage
		}
		d, err := a.runner.Tracker().Force(ctx, p, *version)
		if err == nil && d.Err != nil {
			a.logger.Warn("Some parts were not delivered", "sent", d.Sent, "total", d.Total, "error", d.Err)
		}
		return logResult(a.logger, "Force failed", err)
	}, nil
}

func parseDump(fs *flag.FlagSet, args []string) (action, error) {
	project := fs.String("project", "", "project name")
	out := fs.String("o", "", "output file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *project == "" {
		return nil, errors.New("-project is required")
	}

	return func(ctx context.Context, a *app) int {
		p, err := a.project(*project)
		if err != nil {
			a.logger.Error("Invalid arguments", "error", err)
			return exitUsage
		}

		var w io.Writer = a.stdout
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				a.logger.Error("Failed to create output file", "error", err)
				return exitFailure
			}
			defer f.Close()
			w = f
		}

		n, err := a.runner.Tracker().Dump(ctx, p, w)
		if err != nil {
			return logResult(a.logger, "Dump failed", err)
		}
		a.logger.Info("Releases dumped", "project", p.Name, "count", n)
		return exitOK
	}, nil
}

func parseServe(fs *flag.FlagSet, args []string) (action, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return serve, nil
}

func serve(ctx context.Context, a *app) int {
	job := func(ctx context.Context) {
		a.logger.Info("Starting release check job")
		results, err := a.runner.CheckAll(ctx, nil)
		if errors.Is(err, tracker.ErrAlreadyRunning) {
			a.logger.Warn("Release check skipped, previous run still in progress")
			return
		}
		a.logger.Info("Release check job completed", "projects", len(results), "failed", countFailed(results))
	}

	sched, err := scheduler.New(a.logger, a.cfg.Schedule, a.cfg.Location(), job)
	if err != nil {
		a.logger.Error("Invalid schedule", "error", err)
		return exitUsage
	}
	sched.Start(ctx)

	// Initialize bot for commands (optional)
	if a.cfg.AdminBotToken != "" && len(a.cfg.AllowedUserIDs) > 0 {
		bot, err := telegram.NewBot(a.cfg.AdminBotToken, statusAdapter{a}, sched, a.cfg.AllowedUserIDs, a.logger)
		if err != nil {
			a.logger.Error("Failed to create bot", "error", err)
		} else {
			a.logger.Info("Bot commands enabled", "allowed_users", a.cfg.AllowedUserIDs)
			go bot.StartPolling(ctx)
		}
	}

	a.logger.Info("Tracker started",
		"schedule", a.cfg.Schedule,
		"projects", len(a.runner.Projects()),
		"commands_enabled", a.cfg.AdminBotToken != "" && len(a.cfg.AllowedUserIDs) > 0)

	// Wait for shutdown
	<-ctx.Done()
	a.logger.Info("Shutting down...")
	sched.Stop()
	a.logger.Info("Tracker stopped")
	return exitOK
}

func countFailed(results []tracker.CheckResult) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
