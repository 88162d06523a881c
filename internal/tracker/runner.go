package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrAlreadyRunning is returned when a check pass is requested while one is in progress
var ErrAlreadyRunning = errors.New("check already running")

// Runner owns the configured projects and runs checker passes over them
type Runner struct {
	tracker  *Tracker
	projects []Project
	running  atomic.Bool
}

// NewRunner creates a runner over projects in the given order
func NewRunner(t *Tracker, projects []Project) *Runner {
	return &Runner{tracker: t, projects: projects}
}

// Tracker returns the underlying tracker
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Projects returns the configured projects
func (r *Runner) Projects() []Project {
	return r.projects
}

// Project looks a project up by name
func (r *Runner) Project(name string) (Project, bool) {
	for _, p := range r.projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Select returns the named projects, or all of them when names is empty
func (r *Runner) Select(names []string) ([]Project, error) {
	if len(names) == 0 {
		return r.projects, nil
	}
	out := make([]Project, 0, len(names))
	for _, name := range names {
		p, ok := r.Project(name)
		if !ok {
			return nil, fmt.Errorf("unknown project %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// CheckAll runs the checker for the selected projects one after another.
// A failing project does not stop the others.
func (r *Runner) CheckAll(ctx context.Context, names []string) ([]CheckResult, error) {
	projects, err := r.Select(names)
	if err != nil {
		return nil, err
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	results := make([]CheckResult, 0, len(projects))
	for _, p := range projects {
		if ctx.Err() != nil {
			break
		}
		res := r.tracker.Check(ctx, p)
		if res.Err != nil {
			r.tracker.log.Error("Check failed", "project", p.Name, "outcome", res.Outcome, "error", res.Err)
		}
		results = append(results, res)
	}
	return results, ctx.Err()
}

// TriggerCheck runs one pass over every project and joins the failures
func (r *Runner) TriggerCheck(ctx context.Context) error {
	results, err := r.CheckAll(ctx, nil)
	if err != nil {
		return err
	}
	return Failures(results)
}

// Latest returns the recorded last-seen version of a project
func (r *Runner) Latest(ctx context.Context, name string) (string, bool, error) {
	return r.tracker.store.ReadLatest(ctx, name)
}

// Failures joins the errors of failed results
func Failures(results []CheckResult) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Project, res.Err))
		}
	}
	return errors.Join(errs...)
}
