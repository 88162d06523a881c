package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/yourorg/release-tracker/internal/release"
)

// Force announces the newest release, or the one named by version, without
// reading or writing any state
func (t *Tracker) Force(ctx context.Context, p Project, version string) (Delivery, error) {
	records, err := fetch(ctx, p)
	if err != nil {
		return Delivery{}, err
	}
	if len(records) == 0 {
		return Delivery{}, fmt.Errorf("%s: no releases available", p.Name)
	}

	r := records[0]
	if version != "" {
		found, ok := release.Find(records, version)
		if !ok {
			return Delivery{}, fmt.Errorf("%s: version %q not found", p.Name, version)
		}
		r = found
	}

	log := t.log.With("project", p.Name, "version", r.Identifier)
	rendered := t.render(ctx, p, r, log)
	d := deliver(ctx, p.Notifier, rendered.Parts)
	if !d.Delivered() {
		return d, d.Err
	}
	log.Info("Release announced (forced)", "parts", d.Sent)
	return d, nil
}

// Dump writes every record the source returns as JSON. It touches no state.
func (t *Tracker) Dump(ctx context.Context, p Project, w io.Writer) (int, error) {
	records, err := fetch(ctx, p)
	if err != nil {
		return 0, err
	}
	if records == nil {
		records = []release.Release{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("failed to write releases: %w", err)
	}
	return len(records), nil
}
