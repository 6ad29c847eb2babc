package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// DefaultWatchDebounce coalesces the burst of writes an appending collector produces.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher reports changes to the current snapshot file of a local directory.
// The directory is watched rather than the file so a file created after startup
// (a new day) is still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	log      logr.Logger

	mu     sync.Mutex
	target string
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, log logr.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		debounce: DefaultWatchDebounce,
		log:      log,
	}, nil
}

// SetDebounce changes the quiet period before a change is reported.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// SetTarget selects the file name whose changes are reported.
func (w *Watcher) SetTarget(name string) {
	w.mu.Lock()
	w.target = filepath.Base(name)
	w.mu.Unlock()
}

func (w *Watcher) isTarget(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target != "" && filepath.Base(path) == w.target
}

// Run delivers one onChange call per burst of writes to the target until ctx is
// done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(name string)) error {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		pending string
	)
	fire := make(chan string, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.isTarget(event.Name) {
				continue
			}
			w.log.V(1).Info("snapshot changed", "path", event.Name, "op", event.Op.String())
			pending = filepath.Base(event.Name)
			if timer != nil {
				timer.Stop()
			}
			name := pending
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- name:
				default:
				}
			})

		case name := <-fire:
			onChange(name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error(err, "error watching snapshot directory", "dir", w.dir)
		}
	}
}
