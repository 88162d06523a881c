package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/yourorg/release-tracker/internal/release"
)

// FileStore keeps one set of plain-text files per project.
//
// Files:
//   - <project>_latest_version.txt  (single identifier)
//   - <project>_pushed_versions.txt (one identifier per line, append-only)
//   - <project>_message_state.json  (current announcement)
//   - <project>.lock                (advisory lock held for a run)
//
// Scalar files are replaced atomically; the pushed list is appended and synced.
type FileStore struct {
	dir string
}

// OpenFile creates the directory when needed
func OpenFile(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state dir is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", release.ErrStateIO, dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) latestPath(project string) string {
	return filepath.Join(s.dir, project+"_latest_version.txt")
}

func (s *FileStore) pushedPath(project string) string {
	return filepath.Join(s.dir, project+"_pushed_versions.txt")
}

func (s *FileStore) messagePath(project string) string {
	return filepath.Join(s.dir, project+"_message_state.json")
}

func (s *FileStore) lockPath(project string) string {
	return filepath.Join(s.dir, project+".lock")
}

// ReadLatest returns the stored identifier. A missing or empty file means
// no record yet; any other failure is release.ErrStateIO.
func (s *FileStore) ReadLatest(ctx context.Context, project string) (string, bool, error) {
	data, ok, err := readOptional(s.latestPath(project))
	if err != nil || !ok {
		return "", false, err
	}

	line, _, _ := strings.Cut(string(data), "\n")
	id := strings.TrimSpace(line)
	if id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// WriteLatest replaces the stored identifier atomically
func (s *FileStore) WriteLatest(ctx context.Context, project, id string) error {
	return writeAtomic(s.latestPath(project), []byte(id+"\n"))
}

// Contains reports whether id was already pushed
func (s *FileStore) Contains(ctx context.Context, project, id string) (bool, error) {
	data, _, err := readOptional(s.pushedPath(project))
	if err != nil {
		return false, err
	}
	return containsLine(data, id), nil
}

// Add appends id to the pushed list and syncs it to disk
func (s *FileStore) Add(ctx context.Context, project, id string) error {
	path := s.pushedPath(project)
	data, _, err := readOptional(path)
	if err != nil {
		return err
	}
	if containsLine(data, id) {
		return nil
	}

	line := id + "\n"
	if len(data) > 0 && data[len(data)-1] != '\n' {
		line = "\n" + line
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", release.ErrStateIO, path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %v", release.ErrStateIO, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: sync %s: %v", release.ErrStateIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", release.ErrStateIO, path, err)
	}
	return nil
}

// ReadMessage returns the current message record, if any
func (s *FileStore) ReadMessage(ctx context.Context, project string) (MessageRecord, bool, error) {
	path := s.messagePath(project)
	data, ok, err := readOptional(path)
	if err != nil || !ok {
		return MessageRecord{}, false, err
	}

	var rec MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return MessageRecord{}, false, fmt.Errorf("%w: decode %s: %v", release.ErrStateIO, path, err)
	}
	return rec, true, nil
}

// WriteMessage replaces the message record atomically
func (s *FileStore) WriteMessage(ctx context.Context, project string, rec MessageRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode message record: %v", release.ErrStateIO, err)
	}
	return writeAtomic(s.messagePath(project), append(data, '\n'))
}

// ClearMessage removes the message record
func (s *FileStore) ClearMessage(ctx context.Context, project string) error {
	path := s.messagePath(project)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", release.ErrStateIO, path, err)
	}
	return nil
}

// Lock takes an exclusive advisory lock on <project>.lock, waiting until ctx is done
func (s *FileStore) Lock(ctx context.Context, project string) (func(), error) {
	fl := flock.New(s.lockPath(project))
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %v", release.ErrStateIO, project, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock %s: held by another run", release.ErrStateIO, project)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

// readOptional reads path; a missing file is reported as ok=false without error
func readOptional(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %v", release.ErrStateIO, path, err)
	}
	return data, true, nil
}

// writeAtomic writes data to a temp file in the same directory and renames it over path
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", release.ErrStateIO, path, err)
	}
	tmpName := tmp.Name()

	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s %s: %v", release.ErrStateIO, op, path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", release.ErrStateIO, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", release.ErrStateIO, path, err)
	}
	return nil
}

func containsLine(data []byte, id string) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == id {
			return true
		}
	}
	return false
}
