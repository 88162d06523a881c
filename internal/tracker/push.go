package tracker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// PushOptions bounds a bulk push. Count is ignored when All is set.
type PushOptions struct {
	Count int
	All   bool
}

// PushResult reports a bulk push
type PushResult struct {
	Project   string
	Total     int // records returned by the source
	Processed int // skipped + delivered
	Skipped   int
	Delivered []string
	Failed    string // identifier whose delivery stopped the batch
	Err       error
}

// Push delivers historical releases newest first, skipping those already in
// the delivered set. A release is added to the set right after its first
// part was delivered; the first failure stops the batch.
func (t *Tracker) Push(ctx context.Context, p Project, opts PushOptions) PushResult {
	log := t.log.With("project", p.Name)
	res := PushResult{Project: p.Name}

	if !opts.All && opts.Count <= 0 {
		res.Err = fmt.Errorf("push count must be positive")
		return res
	}

	unlock, err := t.store.Lock(ctx, p.Name)
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	records, err := fetch(ctx, p)
	if err != nil {
		res.Err = err
		return res
	}
	res.Total = len(records)

	selected := records
	if !opts.All && opts.Count < len(records) {
		selected = records[:opts.Count]
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if t.cfg.PushDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(t.cfg.PushDelay), 1)
	}

	for _, r := range selected {
		res.Processed++
		rlog := log.With("version", r.Identifier)

		done, err := t.store.Contains(ctx, p.Name, r.Identifier)
		if err != nil {
			res.Err = fmt.Errorf("read delivered set for %s: %w", p.Name, err)
			return res
		}
		if done {
			res.Skipped++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			res.Failed = r.Identifier
			res.Err = err
			return res
		}

		rendered := t.render(ctx, p, r, rlog)
		d := deliver(ctx, p.Notifier, rendered.Parts)
		if !d.Delivered() {
			rlog.Error("Failed to push release, stopping", "error", d.Err)
			res.Failed = r.Identifier
			res.Err = d.Err
			return res
		}
		if d.Err != nil {
			rlog.Warn("Failed to deliver trailing parts", "sent", d.Sent, "total", d.Total, "error", d.Err)
		}

		if err := t.store.Add(ctx, p.Name, r.Identifier); err != nil {
			res.Err = err
			return res
		}
		res.Delivered = append(res.Delivered, r.Identifier)
		rlog.Info("Release pushed", "parts", d.Sent)
	}

	log.Info("Push finished", "processed", res.Processed, "skipped", res.Skipped, "delivered", len(res.Delivered))
	return res
}
