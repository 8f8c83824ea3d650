package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/extpin/extpin/core/hooks"
	"github.com/extpin/extpin/core/infra/logging"
)

// ErrNotInstalled marks a well-formed identifier whose file is absent under
// the extensions root. Surfaced, never recovered.
var ErrNotInstalled = errors.New("extension not installed")

// Loader loads an extension's code into the host. Load is idempotent per
// identifier within one process and emits a "loaded" notification.
type Loader interface {
	Load(ctx context.Context, id string) error
	Exists(id string) bool
}

// Hooks are the extension's own lifecycle hooks, run by the host after the
// extension's code has been loaded.
type Hooks interface {
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

// DirLoader resolves identifiers under a single extensions root directory.
type DirLoader struct {
	root      string
	notifiers hooks.Notifiers

	mu     sync.Mutex
	loaded map[string]bool
}

// NewDirLoader constructs a loader rooted at dir. Notifiers receive a
// "loaded" event the first time each identifier loads.
func NewDirLoader(dir string, notifiers hooks.Notifiers) *DirLoader {
	return &DirLoader{
		root:      dir,
		notifiers: notifiers,
		loaded:    make(map[string]bool),
	}
}

// Path returns the filesystem path for an identifier. The identifier must
// already be validated.
func (l *DirLoader) Path(id string) string {
	return filepath.Join(l.root, filepath.FromSlash(id))
}

// Exists reports whether the identifier resolves to a regular file under the
// extensions root.
func (l *DirLoader) Exists(id string) bool {
	info, err := os.Stat(l.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Load validates that the identified file exists and records it as loaded.
// Repeat loads for the same identifier are no-ops.
func (l *DirLoader) Load(ctx context.Context, id string) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	if !l.Exists(id) {
		return fmt.Errorf("%w: %s", ErrNotInstalled, id)
	}

	l.mu.Lock()
	already := l.loaded[id]
	l.loaded[id] = true
	l.mu.Unlock()
	if already {
		return nil
	}

	logging.Debug("loader", "extension loaded", "extension", id)
	if err := l.notifiers.Notify(ctx, hooks.Event{
		ID:        uuid.NewString(),
		Kind:      "loaded",
		Extension: id,
	}); err != nil {
		logging.Error("loader", "loaded notification", "extension", id, "error", err)
	}
	return nil
}

// Installed enumerates the identifiers present under the extensions root:
// every file with the extension suffix at the top level or one directory
// deep, sorted. Deeper nesting is not a valid identifier layout.
func (l *DirLoader) Installed() ([]string, error) {
	var ids []string

	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read extensions root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			if id := e.Name(); ValidateIdentifier(id) == nil {
				ids = append(ids, id)
			}
			continue
		}
		sub, err := os.ReadDir(filepath.Join(l.root, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range sub {
			if f.IsDir() {
				continue
			}
			id := e.Name() + "/" + f.Name()
			if ValidateIdentifier(id) == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Loaded reports whether the identifier was loaded in this process.
func (l *DirLoader) Loaded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[id]
}
