package main

import (
	"context"

	"github.com/yourorg/release-tracker/internal/telegram"
)

// statusAdapter answers the admin bot's /status from the state store
type statusAdapter struct {
	a *app
}

func (s statusAdapter) Status(ctx context.Context) []telegram.ProjectStatus {
	projects := s.a.runner.Projects()
	out := make([]telegram.ProjectStatus, 0, len(projects))
	for _, p := range projects {
		st := telegram.ProjectStatus{
			Name:     p.Name,
			Title:    p.Title,
			Notifier: s.a.notifiers[p.Name],
		}
		latest, _, err := s.a.runner.Latest(ctx, p.Name)
		st.Latest = latest
		st.Err = err
		out = append(out, st)
	}
	return out
}
