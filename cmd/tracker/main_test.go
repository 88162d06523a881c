package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/yourorg/release-tracker/internal/release"
	"github.com/yourorg/release-tracker/internal/state"
	"github.com/yourorg/release-tracker/internal/telegram"
	"github.com/yourorg/release-tracker/internal/tracker"
)

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "Usage"},
		{"unknown command", []string{"deploy"}, "unknown command"},
		{"push without project", []string{"push", "-all"}, "-project is required"},
		{"push without count", []string{"push", "-project", "codex"}, "-count"},
		{"force without project", []string{"force"}, "-project is required"},
		{"dump without project", []string{"dump", "-o", "x.json"}, "-project is required"},
		{"serve with arguments", []string{"serve", "extra"}, "unexpected arguments"},
		{"bad flag", []string{"push", "-bogus"}, "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want containing %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"help"}, &stdout, &stderr); code != exitOK {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "serve") {
		t.Errorf("help = %q", stdout.String())
	}
}

type staticSource struct{}

func (staticSource) Fetch(ctx context.Context) ([]release.Release, error) { return nil, nil }

type brokenStore struct {
	state.Store
}

func (brokenStore) ReadLatest(ctx context.Context, project string) (string, bool, error) {
	return "", false, release.ErrStateIO
}

func TestStatusAdapter(t *testing.T) {
	ctx := context.Background()
	store, err := state.OpenFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store.WriteLatest(ctx, "codex", "rust-v0.2.0")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projects := []tracker.Project{
		{Name: "codex", Title: "OpenAI Codex", Source: staticSource{}, Notifier: telegram.Disabled{}},
		{Name: "claude_code", Title: "Claude Code", Source: staticSource{}, Notifier: telegram.Disabled{}},
	}
	a := &app{
		logger:    logger,
		runner:    tracker.NewRunner(tracker.New(store, nil, nil, tracker.Config{}, logger), projects),
		notifiers: map[string]string{"codex": "@codex_news"},
	}

	got := statusAdapter{a}.Status(ctx)
	if len(got) != 2 {
		t.Fatalf("status = %+v", got)
	}
	if got[0].Latest != "rust-v0.2.0" || got[0].Notifier != "@codex_news" || got[0].Err != nil {
		t.Errorf("codex = %+v", got[0])
	}
	if got[1].Latest != "" || got[1].Err != nil {
		t.Errorf("claude_code = %+v", got[1])
	}

	a.runner = tracker.NewRunner(tracker.New(brokenStore{store}, nil, nil, tracker.Config{}, logger), projects)
	if got := (statusAdapter{a}).Status(ctx); !errors.Is(got[0].Err, release.ErrStateIO) {
		t.Errorf("expected state error, got %+v", got[0])
	}
}
