package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/release-tracker/internal/release"
	"github.com/yourorg/release-tracker/internal/state"
)

// Outcome describes what a checker run did for a project
type Outcome string

const (
	OutcomeNoData    Outcome = "no_data"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSeeded    Outcome = "seeded"
	OutcomeAnnounced Outcome = "announced"
	OutcomeRejected  Outcome = "rejected"
	OutcomeEdited    Outcome = "edited"
	OutcomeFailed    Outcome = "failed"
)

// CheckResult reports one project's checker run
type CheckResult struct {
	Project  string
	Outcome  Outcome
	Version  string
	Previous string
	Delivery Delivery
	Err      error
}

// Check announces the newest release of p when it differs from the stored
// one. At most one release is announced per run.
func (t *Tracker) Check(ctx context.Context, p Project) CheckResult {
	log := t.log.With("project", p.Name)
	res := CheckResult{Project: p.Name, Outcome: OutcomeFailed}

	unlock, err := t.store.Lock(ctx, p.Name)
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	previous, seen, err := t.store.ReadLatest(ctx, p.Name)
	if err != nil {
		res.Err = fmt.Errorf("read state for %s: %w", p.Name, err)
		return res
	}
	res.Previous = previous

	records, err := fetch(ctx, p)
	if err != nil {
		res.Err = err
		return res
	}
	if len(records) == 0 {
		log.Info("No releases after filtering")
		res.Outcome = OutcomeNoData
		return res
	}

	latest := records[0]
	res.Version = latest.Identifier
	log = log.With("version", latest.Identifier)

	if seen && previous == latest.Identifier {
		res.Outcome = OutcomeUnchanged
		edited, err := t.editIfChanged(ctx, p, latest, log)
		if err != nil {
			res.Err = err
			return res
		}
		if edited {
			res.Outcome = OutcomeEdited
		}
		return res
	}

	if !seen && !t.cfg.AnnounceFirstRun {
		if err := t.store.WriteLatest(ctx, p.Name, latest.Identifier); err != nil {
			res.Err = err
			return res
		}
		log.Info("First run, recorded latest version without announcing")
		res.Outcome = OutcomeSeeded
		return res
	}

	log.Info("New release found", "previous", previous)
	rendered := t.render(ctx, p, latest, log)
	d := deliver(ctx, p.Notifier, rendered.Parts)
	res.Delivery = d

	switch {
	case d.Delivered():
		if d.Err != nil {
			log.Warn("Failed to deliver trailing parts", "sent", d.Sent, "total", d.Total, "error", d.Err)
		}
		if err := t.store.WriteLatest(ctx, p.Name, latest.Identifier); err != nil {
			res.Err = err
			return res
		}
		t.recordMessages(ctx, p, latest, d.MessageIDs, log)
		log.Info("Release announced", "parts", d.Sent, "overflow_url", rendered.OverflowURL)
		res.Outcome = OutcomeAnnounced

	case release.IsTerminalDelivery(d.Err):
		// retrying will not help; accept the version as announced
		if err := t.store.WriteLatest(ctx, p.Name, latest.Identifier); err != nil {
			res.Err = err
			return res
		}
		if err := t.store.ClearMessage(ctx, p.Name); err != nil {
			log.Warn("Failed to clear message record", "error", err)
		}
		log.Error("Notification rejected, release marked as processed", "error", d.Err)
		res.Outcome = OutcomeRejected
		res.Err = d.Err

	default:
		log.Error("Failed to send notification, will retry next run", "error", d.Err)
		res.Err = d.Err
	}

	return res
}

// editIfChanged re-renders the current announcement when the upstream body of
// the same version changed since it was sent
func (t *Tracker) editIfChanged(ctx context.Context, p Project, latest release.Release, log *slog.Logger) (bool, error) {
	rec, ok, err := t.store.ReadMessage(ctx, p.Name)
	if err != nil {
		return false, err
	}
	if !ok || rec.Identifier != latest.Identifier || len(rec.MessageIDs) == 0 {
		return false, nil
	}

	hash := bodyHash(latest.Body)
	if rec.BodyHash == hash {
		return false, nil
	}

	log.Info("Release notes changed, editing announcement", "messages", len(rec.MessageIDs))
	rendered := t.render(ctx, p, latest, log)

	ids, err := editParts(ctx, p.Notifier, rec.MessageIDs, rendered.Parts)
	if err != nil {
		// the message was probably deleted; do not try again
		if clearErr := t.store.ClearMessage(ctx, p.Name); clearErr != nil {
			log.Warn("Failed to clear message record", "error", clearErr)
		}
		return false, fmt.Errorf("edit announcement of %s: %w", latest.Identifier, err)
	}

	if err := t.store.WriteMessage(ctx, p.Name, state.MessageRecord{
		Identifier: latest.Identifier,
		MessageIDs: ids,
		BodyHash:   hash,
	}); err != nil {
		return true, err
	}
	return true, nil
}

// recordMessages remembers the announcement for later edits; failures only lose that ability
func (t *Tracker) recordMessages(ctx context.Context, p Project, r release.Release, ids []int, log *slog.Logger) {
	err := t.store.WriteMessage(ctx, p.Name, state.MessageRecord{
		Identifier: r.Identifier,
		MessageIDs: ids,
		BodyHash:   bodyHash(r.Body),
	})
	if err != nil {
		log.Warn("Failed to record announcement messages", "error", err)
	}
}
