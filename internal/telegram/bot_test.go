package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeStatus []ProjectStatus

func (f fakeStatus) Status(ctx context.Context) []ProjectStatus { return f }

type fakeRunner struct {
	triggered chan struct{}
}

func (r *fakeRunner) TriggerCheck(ctx context.Context) error {
	r.triggered <- struct{}{}
	return nil
}

func TestRespondStatus(t *testing.T) {
	b := &Bot{
		status: fakeStatus{
			{Name: "claude_code", Title: "Claude Code", Latest: "1.0.2", Notifier: "@claude_code_push"},
			{Name: "codex", Title: "OpenAI Codex"},
			{Name: "broken", Err: errors.New("state i/o error: <disk>")},
		},
		logger: slog.Default(),
	}

	got := b.respond(context.Background(), "status")
	for _, want := range []string{
		"<b>Claude Code</b>: <code>1.0.2</code> → @claude_code_push",
		"<b>OpenAI Codex</b>: no version recorded yet",
		"<b>broken</b>: ❌ state i/o error: &lt;disk&gt;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("status reply missing %q:\n%s", want, got)
		}
	}
}

func TestRespondCheckTriggersRun(t *testing.T) {
	runner := &fakeRunner{triggered: make(chan struct{}, 1)}
	b := &Bot{jobRunner: runner, logger: slog.Default()}

	if got := b.respond(context.Background(), "check"); !strings.Contains(got, "started") {
		t.Errorf("unexpected reply %q", got)
	}

	select {
	case <-runner.triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected check to be triggered")
	}
}

func TestRespondUnknown(t *testing.T) {
	b := &Bot{logger: slog.Default()}
	if got := b.respond(context.Background(), "addrepo"); !strings.HasPrefix(got, "Unknown command") {
		t.Errorf("unexpected reply %q", got)
	}
	if got := b.respond(context.Background(), "help"); !strings.Contains(got, "/status") {
		t.Errorf("help should list /status, got %q", got)
	}
}
