// Package state persists what has been announced per project: the last-seen
// version for checker runs, the delivered set for bulk pushes and the
// messages that carried the current announcement.
package state

import (
	"context"
	"errors"
	"strings"
)

// MessageRecord remembers the messages that announced a version and a hash
// of the body they rendered, so a later body change can be edited in place.
type MessageRecord struct {
	Identifier string `json:"identifier"`
	MessageIDs []int  `json:"message_ids"`
	BodyHash   string `json:"body_hash"`
}

// LatestStore holds a single last-seen identifier per project
type LatestStore interface {
	ReadLatest(ctx context.Context, project string) (id string, ok bool, err error)
	WriteLatest(ctx context.Context, project, id string) error
}

// DeliveredSet is an append-only set of delivered identifiers per project
type DeliveredSet interface {
	Contains(ctx context.Context, project, id string) (bool, error)
	Add(ctx context.Context, project, id string) error
}

// MessageStore holds the message record of the current announcement
type MessageStore interface {
	ReadMessage(ctx context.Context, project string) (MessageRecord, bool, error)
	WriteMessage(ctx context.Context, project string, rec MessageRecord) error
	ClearMessage(ctx context.Context, project string) error
}

// Store is the persistence API used by the tracker.
// Every read failure other than "no record yet" is reported as release.ErrStateIO.
type Store interface {
	LatestStore
	DeliveredSet
	MessageStore

	// Lock serializes runs for a project until the returned func is called
	Lock(ctx context.Context, project string) (unlock func(), err error)
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": plain-text files per project under Dir
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver string
	Dir    string
	Path   string
}

// Open initializes the configured store
func Open(cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))

	switch driver {
	case "", "file":
		return OpenFile(cfg.Dir)
	case "sqlite", "sqlite3":
		return OpenSQLite(cfg.Path)
	default:
		return nil, errors.New("unknown state driver: " + driver)
	}
}
