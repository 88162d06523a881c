package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/yourorg/release-tracker/internal/compose"
	"github.com/yourorg/release-tracker/internal/release"
	"github.com/yourorg/release-tracker/internal/state"
)

type fakeSource struct {
	records []release.Release
	err     error
	calls   int
}

func (s *fakeSource) Fetch(ctx context.Context) ([]release.Release, error) {
	s.calls++
	return s.records, s.err
}

type sent struct {
	id   int
	text string
}

type fakeNotifier struct {
	sent   []sent
	edits  map[int]string
	nextID int
	// failAt makes the n-th Send (1-based) fail with err
	failAt  int
	err     error
	editErr error
}

func (n *fakeNotifier) Send(ctx context.Context, text string) (int, error) {
	if n.failAt > 0 && len(n.sent)+1 == n.failAt {
		n.failAt = 0
		return 0, n.err
	}
	n.nextID++
	n.sent = append(n.sent, sent{id: n.nextID, text: text})
	return n.nextID, nil
}

func (n *fakeNotifier) Edit(ctx context.Context, id int, text string) error {
	if n.editErr != nil {
		return n.editErr
	}
	if n.edits == nil {
		n.edits = map[int]string{}
	}
	n.edits[id] = text
	return nil
}

// partsRenderer renders one part per body paragraph so multi-part flows can be exercised
type partsRenderer struct {
	parts int
}

func (r partsRenderer) Render(ctx context.Context, in compose.Input) compose.Rendered {
	n := r.parts
	if n <= 0 {
		n = 1
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %s [%d] %s", in.Title, in.Release.Identifier, i+1, in.Release.Body)
	}
	if in.Translation != "" {
		out = append(out, in.Translation)
	}
	return compose.Rendered{Parts: out}
}

type fakeTranslator struct {
	out string
	err error
}

func (f fakeTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	return f.out, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(t *testing.T, cfg Config) (*Tracker, *state.FileStore) {
	t.Helper()
	store, err := state.OpenFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(store, partsRenderer{}, nil, cfg, quietLogger()), store
}

func releases(ids ...string) []release.Release {
	out := make([]release.Release, len(ids))
	for i, id := range ids {
		out[i] = release.Release{Identifier: id, Body: "notes for " + id}
	}
	return out
}

func latest(t *testing.T, s state.Store, project string) string {
	t.Helper()
	id, _, err := s.ReadLatest(context.Background(), project)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestCheckFirstRunSeedsWithoutNotifying(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	n := &fakeNotifier{}
	p := Project{Name: "codex", Source: &fakeSource{records: releases("0.2.0", "0.1.0")}, Notifier: n}

	res := tr.Check(context.Background(), p)
	if res.Err != nil || res.Outcome != OutcomeSeeded {
		t.Fatalf("Check = %+v", res)
	}
	if len(n.sent) != 0 {
		t.Errorf("first run must not notify, sent %d", len(n.sent))
	}
	if got := latest(t, store, "codex"); got != "0.2.0" {
		t.Errorf("latest = %q", got)
	}
}

func TestCheckFirstRunAnnounceWhenConfigured(t *testing.T) {
	tr, store := newTestTracker(t, Config{AnnounceFirstRun: true})
	n := &fakeNotifier{}
	p := Project{Name: "codex", Source: &fakeSource{records: releases("0.2.0")}, Notifier: n}

	res := tr.Check(context.Background(), p)
	if res.Outcome != OutcomeAnnounced || len(n.sent) != 1 {
		t.Fatalf("Check = %+v, sent %d", res, len(n.sent))
	}
	if got := latest(t, store, "codex"); got != "0.2.0" {
		t.Errorf("latest = %q", got)
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "codex", "0.1.0")

	n := &fakeNotifier{}
	p := Project{Name: "codex", Source: &fakeSource{records: releases("0.2.0", "0.1.0")}, Notifier: n}

	first := tr.Check(ctx, p)
	if first.Outcome != OutcomeAnnounced || first.Previous != "0.1.0" {
		t.Fatalf("first = %+v", first)
	}
	second := tr.Check(ctx, p)
	if second.Outcome != OutcomeUnchanged || second.Err != nil {
		t.Fatalf("second = %+v", second)
	}
	if len(n.sent) != 1 {
		t.Errorf("expected exactly one notification, got %d", len(n.sent))
	}
}

func TestCheckJumpAnnouncesOnlyNewest(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{}
	p := Project{Name: "p", Source: &fakeSource{records: releases("1.3.0", "1.2.0", "1.1.0", "1.0.0")}, Notifier: n}

	res := tr.Check(ctx, p)
	if res.Outcome != OutcomeAnnounced || res.Version != "1.3.0" {
		t.Fatalf("Check = %+v", res)
	}
	if len(n.sent) != 1 {
		t.Fatalf("sent %d messages", len(n.sent))
	}
	if got := latest(t, store, "p"); got != "1.3.0" {
		t.Errorf("latest = %q", got)
	}
}

func TestCheckNoData(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	res := tr.Check(ctx, Project{Name: "p", Source: &fakeSource{}, Notifier: &fakeNotifier{}})
	if res.Outcome != OutcomeNoData || res.Err != nil {
		t.Fatalf("Check = %+v", res)
	}
	if got := latest(t, store, "p"); got != "1.0.0" {
		t.Errorf("state changed to %q", got)
	}
}

func TestCheckSourceErrorLeavesState(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{}
	src := &fakeSource{err: fmt.Errorf("%w: status 502", release.ErrSourceUnavailable)}
	res := tr.Check(ctx, Project{Name: "p", Source: src, Notifier: n})
	if !errors.Is(res.Err, release.ErrSourceUnavailable) {
		t.Fatalf("err = %v", res.Err)
	}
	if len(n.sent) != 0 || latest(t, store, "p") != "1.0.0" {
		t.Error("failed fetch must not notify or change state")
	}
}

func TestCheckTransientFailureLeavesState(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{failAt: 1, err: fmt.Errorf("%w: timeout", release.ErrDeliveryFailed)}
	p := Project{Name: "p", Source: &fakeSource{records: releases("1.1.0")}, Notifier: n}

	res := tr.Check(ctx, p)
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, release.ErrDeliveryFailed) {
		t.Fatalf("Check = %+v", res)
	}
	if got := latest(t, store, "p"); got != "1.0.0" {
		t.Errorf("transient failure advanced state to %q", got)
	}

	// next run retries and succeeds
	res = tr.Check(ctx, p)
	if res.Outcome != OutcomeAnnounced || len(n.sent) != 1 {
		t.Fatalf("retry = %+v, sent %d", res, len(n.sent))
	}
}

func TestCheckRejectionCommitsState(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{failAt: 1, err: fmt.Errorf("%w: chat not found", release.ErrDeliveryRejected)}
	p := Project{Name: "p", Source: &fakeSource{records: releases("1.1.0")}, Notifier: n}

	res := tr.Check(ctx, p)
	if res.Outcome != OutcomeRejected || !release.IsTerminalDelivery(res.Err) {
		t.Fatalf("Check = %+v", res)
	}
	if got := latest(t, store, "p"); got != "1.1.0" {
		t.Errorf("latest = %q, rejected version must be recorded", got)
	}
}

func TestCheckPartialDeliveryCommits(t *testing.T) {
	store, _ := state.OpenFile(t.TempDir())
	tr := New(store, partsRenderer{parts: 3}, nil, Config{}, quietLogger())
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{failAt: 2, err: release.ErrDeliveryFailed}
	res := tr.Check(ctx, Project{Name: "p", Source: &fakeSource{records: releases("1.1.0")}, Notifier: n})
	if res.Outcome != OutcomeAnnounced || res.Delivery.Sent != 1 || res.Delivery.Total != 3 {
		t.Fatalf("Check = %+v", res)
	}
	if got := latest(t, store, "p"); got != "1.1.0" {
		t.Errorf("latest = %q", got)
	}
}

type brokenLatest struct {
	state.Store
}

func (brokenLatest) ReadLatest(ctx context.Context, project string) (string, bool, error) {
	return "", false, fmt.Errorf("%w: permission denied", release.ErrStateIO)
}

func TestCheckStateIOAbortsWithoutNotifying(t *testing.T) {
	fs, _ := state.OpenFile(t.TempDir())
	tr := New(brokenLatest{fs}, partsRenderer{}, nil, Config{AnnounceFirstRun: true}, quietLogger())

	n := &fakeNotifier{}
	src := &fakeSource{records: releases("1.1.0")}
	res := tr.Check(context.Background(), Project{Name: "p", Source: src, Notifier: n})
	if !errors.Is(res.Err, release.ErrStateIO) {
		t.Fatalf("err = %v", res.Err)
	}
	if len(n.sent) != 0 || src.calls != 0 {
		t.Error("unreadable state must abort before fetching or notifying")
	}
}

func TestCheckEditsChangedBodyOnce(t *testing.T) {
	store, _ := state.OpenFile(t.TempDir())
	tr := New(store, partsRenderer{parts: 1}, nil, Config{}, quietLogger())
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{}
	src := &fakeSource{records: releases("1.1.0")}
	p := Project{Name: "p", Source: src, Notifier: n}

	if res := tr.Check(ctx, p); res.Outcome != OutcomeAnnounced {
		t.Fatalf("announce = %+v", res)
	}

	src.records = []release.Release{{Identifier: "1.1.0", Body: "updated notes"}}
	res := tr.Check(ctx, p)
	if res.Outcome != OutcomeEdited || res.Err != nil {
		t.Fatalf("edit = %+v", res)
	}
	if len(n.edits) != 1 || len(n.sent) != 1 {
		t.Fatalf("edits %d sent %d", len(n.edits), len(n.sent))
	}

	res = tr.Check(ctx, p)
	if res.Outcome != OutcomeUnchanged || len(n.edits) != 1 {
		t.Errorf("second edit run = %+v, edits %d", res, len(n.edits))
	}
}

func TestCheckFailedEditClearsRecord(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{}
	src := &fakeSource{records: releases("1.1.0")}
	p := Project{Name: "p", Source: src, Notifier: n}
	tr.Check(ctx, p)

	n.editErr = fmt.Errorf("%w: message to edit not found", release.ErrDeliveryRejected)
	src.records = []release.Release{{Identifier: "1.1.0", Body: "updated"}}
	if res := tr.Check(ctx, p); res.Err == nil {
		t.Fatal("expected edit error")
	}
	if _, ok, _ := store.ReadMessage(ctx, "p"); ok {
		t.Error("message record must be cleared after a failed edit")
	}
	if got := latest(t, store, "p"); got != "1.1.0" {
		t.Errorf("edit failure changed version state to %q", got)
	}

	res := tr.Check(ctx, p)
	if res.Outcome != OutcomeUnchanged || res.Err != nil {
		t.Errorf("after clearing = %+v", res)
	}
}

func TestCheckTranslationFailureStillAnnounces(t *testing.T) {
	store, _ := state.OpenFile(t.TempDir())
	tr := New(store, partsRenderer{}, fakeTranslator{err: errors.New("quota")}, Config{AnnounceFirstRun: true}, quietLogger())

	n := &fakeNotifier{}
	p := Project{Name: "p", Source: &fakeSource{records: releases("1.0.0")}, Notifier: n, Translate: true}
	res := tr.Check(context.Background(), p)
	if res.Outcome != OutcomeAnnounced || len(n.sent) != 1 {
		t.Fatalf("Check = %+v, sent %d", res, len(n.sent))
	}
}

func TestCheckIncludesTranslation(t *testing.T) {
	store, _ := state.OpenFile(t.TempDir())
	tr := New(store, partsRenderer{}, fakeTranslator{out: "译文"}, Config{AnnounceFirstRun: true}, quietLogger())

	n := &fakeNotifier{}
	p := Project{Name: "p", Source: &fakeSource{records: releases("1.0.0")}, Notifier: n, Translate: true}
	tr.Check(context.Background(), p)
	if len(n.sent) != 2 || n.sent[1].text != "译文" {
		t.Errorf("sent = %+v", n.sent)
	}
}

func TestPushDeliversExactlyOnce(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()

	n := &fakeNotifier{}
	p := Project{Name: "p", Source: &fakeSource{records: releases("3", "2", "1")}, Notifier: n}

	res := tr.Push(ctx, p, PushOptions{All: true})
	if res.Err != nil || !reflect.DeepEqual(res.Delivered, []string{"3", "2", "1"}) {
		t.Fatalf("Push = %+v", res)
	}

	res = tr.Push(ctx, p, PushOptions{All: true})
	if res.Err != nil || len(res.Delivered) != 0 || res.Skipped != 3 {
		t.Fatalf("second Push = %+v", res)
	}
	if len(n.sent) != 3 {
		t.Errorf("sent %d messages", len(n.sent))
	}
	if _, ok, _ := store.ReadLatest(ctx, "p"); ok {
		t.Error("push must not touch the last-seen record")
	}
}

func TestPushStopsOnFailureAndResumes(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})
	ctx := context.Background()

	n := &fakeNotifier{failAt: 2, err: release.ErrDeliveryFailed}
	p := Project{Name: "p", Source: &fakeSource{records: releases("3", "2", "1")}, Notifier: n}

	res := tr.Push(ctx, p, PushOptions{All: true})
	if res.Failed != "2" || !reflect.DeepEqual(res.Delivered, []string{"3"}) {
		t.Fatalf("Push = %+v", res)
	}

	res = tr.Push(ctx, p, PushOptions{All: true})
	if res.Err != nil || !reflect.DeepEqual(res.Delivered, []string{"2", "1"}) || res.Skipped != 1 {
		t.Fatalf("resume = %+v", res)
	}
}

func TestPushCountIncludesSkipped(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.Add(ctx, "p", "3")

	n := &fakeNotifier{}
	p := Project{Name: "p", Source: &fakeSource{records: releases("3", "2", "1")}, Notifier: n}

	res := tr.Push(ctx, p, PushOptions{Count: 2})
	if res.Processed != 2 || res.Skipped != 1 || !reflect.DeepEqual(res.Delivered, []string{"2"}) {
		t.Fatalf("Push = %+v", res)
	}
	if ok, _ := store.Contains(ctx, "p", "1"); ok {
		t.Error("release beyond the count was delivered")
	}
}

func TestPushRejectsNonPositiveCount(t *testing.T) {
	tr, _ := newTestTracker(t, Config{})
	res := tr.Push(context.Background(), Project{Name: "p", Source: &fakeSource{}, Notifier: &fakeNotifier{}}, PushOptions{})
	if res.Err == nil {
		t.Error("expected error for zero count")
	}
}

func TestForceTouchesNoState(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()
	store.WriteLatest(ctx, "p", "1.0.0")

	n := &fakeNotifier{}
	p := Project{Name: "p", Source: &fakeSource{records: releases("1.1.0", "1.0.0")}, Notifier: n}

	d, err := tr.Force(ctx, p, "")
	if err != nil || d.Sent != 1 || n.sent[0].text != " 1.1.0 [1] notes for 1.1.0" {
		t.Fatalf("Force = %+v, %v, sent %+v", d, err, n.sent)
	}
	if _, err := tr.Force(ctx, p, "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Force(ctx, p, "9.9.9"); err == nil {
		t.Error("expected error for unknown version")
	}

	if got := latest(t, store, "p"); got != "1.0.0" {
		t.Errorf("force changed state to %q", got)
	}
	if ok, _ := store.Contains(ctx, "p", "1.1.0"); ok {
		t.Error("force must not record delivery")
	}
}

func TestDumpWritesJSONWithoutState(t *testing.T) {
	dir := t.TempDir()
	store, _ := state.OpenFile(dir)
	tr := New(store, partsRenderer{}, nil, Config{}, quietLogger())

	var buf bytes.Buffer
	count, err := tr.Dump(context.Background(), Project{Name: "p", Source: &fakeSource{records: releases("2", "1")}}, &buf)
	if err != nil || count != 2 {
		t.Fatalf("Dump = %d, %v", count, err)
	}

	var got []release.Release
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Identifier != "2" {
		t.Errorf("dumped %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dump created state files: %v", entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "p_latest_version.txt")); !os.IsNotExist(err) {
		t.Error("dump must not write state")
	}
}

func TestRunnerCheckAllContinuesAfterFailure(t *testing.T) {
	tr, store := newTestTracker(t, Config{})
	ctx := context.Background()

	broken := Project{Name: "a", Source: &fakeSource{err: release.ErrParseFailed}, Notifier: &fakeNotifier{}}
	ok := Project{Name: "b", Source: &fakeSource{records: releases("1")}, Notifier: &fakeNotifier{}}
	r := NewRunner(tr, []Project{broken, ok})

	results, err := r.CheckAll(ctx, nil)
	if err != nil || len(results) != 2 {
		t.Fatalf("CheckAll = %+v, %v", results, err)
	}
	if got := latest(t, store, "b"); got != "1" {
		t.Errorf("second project not processed, latest %q", got)
	}
	if err := Failures(results); !errors.Is(err, release.ErrParseFailed) {
		t.Errorf("Failures = %v", err)
	}

	if _, err := r.CheckAll(ctx, []string{"missing"}); err == nil {
		t.Error("expected unknown project error")
	}
}
