package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/maat/internal/logging"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// defaultWorkers limits how many drops are ingested simultaneously.
const defaultWorkers = 2

// maxQueueSize is the buffer size for the work queue channel. It absorbs
// bursts without blocking the debounce flush.
const maxQueueSize = 200

// pollDefault is the default polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// InboxWatcher watches the inbox tree with fsnotify. fsnotify is not
// recursive, so case and type directories are added as they appear.
type InboxWatcher struct {
	inbox    string
	handler  func(path string)
	debounce time.Duration
	workers  int
	logger   *slog.Logger
}

// NewInboxWatcher creates a watcher for the inbox directory.
func NewInboxWatcher(inbox string, workers int, logger *slog.Logger, handler func(path string)) *InboxWatcher {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &InboxWatcher{
		inbox:    inbox,
		handler:  handler,
		debounce: debounceDefault,
		workers:  workers,
		logger:   logging.OrDiscard(logger),
	}
}

// Run watches the inbox for new artifact files. Blocks until ctx is cancelled.
func (w *InboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// ready collects file paths that passed debounce. A single timer resets
	// on each event; when it fires, all accumulated paths flush to the queue.
	var mu sync.Mutex
	ready := make(map[string]bool)
	mark := func(p string) {
		mu.Lock()
		ready[p] = true
		mu.Unlock()
	}

	if err := w.addTree(watcher, w.inbox, nil); err != nil {
		return err
	}

	queue := make(chan string, maxQueueSize)

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.logger.Error("inbox handler panicked", "path", path, "panic", r)
						}
					}()
					w.handler(path)
				}()
			}
		}()
	}

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	reset := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(w.debounce)
	}

	defer func() {
		debounceTimer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			d := depth(w.inbox, event.Name)
			switch {
			case info.IsDir() && d > 0 && d < dropDepth:
				// Files may land before the watch is added; pick them up too.
				if err := w.addTree(watcher, event.Name, mark); err != nil {
					w.logger.Warn("inbox watch failed", "dir", event.Name, "err", err)
				}
			case !info.IsDir() && d == dropDepth && isArtifactFile(event.Name):
				mark(event.Name)
			default:
				continue
			}
			reset()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", "err", err)
		}
	}
}

// addTree watches dir and every directory below it down to the type level.
// Existing artifact files are passed to found when it is non-nil.
func (w *InboxWatcher) addTree(watcher *fsnotify.Watcher, dir string, found func(string)) error {
	if err := watcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		d := depth(w.inbox, p)
		switch {
		case e.IsDir() && d < dropDepth:
			if err := w.addTree(watcher, p, found); err != nil {
				return err
			}
		case !e.IsDir() && d == dropDepth && found != nil && isArtifactFile(p):
			found(p)
		}
	}
	return nil
}

// PollWatcher polls the inbox tree. Used as a fallback when fsnotify is
// unavailable (e.g., NFS).
type PollWatcher struct {
	inbox    string
	handler  func(path string)
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling-based watcher.
func NewPollWatcher(inbox string, handler func(path string), interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		inbox:    inbox,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// Run polls the inbox directory. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = walkDrops(w.inbox, func(path string) {
				if w.seen[path] {
					return
				}
				w.seen[path] = true
				w.handler(path)
			})
		}
	}
}

// ScanExisting processes drops already present in the inbox. Called at
// startup to handle files that arrived while the watcher was down.
func ScanExisting(inbox string, handler func(path string)) error {
	err := walkDrops(inbox, handler)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// walkDrops calls fn for every artifact file at drop depth.
func walkDrops(inbox string, fn func(path string)) error {
	cases, err := os.ReadDir(inbox)
	if err != nil {
		return err
	}
	for _, c := range cases {
		if !c.IsDir() {
			continue
		}
		types, err := os.ReadDir(filepath.Join(inbox, c.Name()))
		if err != nil {
			continue
		}
		for _, t := range types {
			if !t.IsDir() {
				continue
			}
			dir := filepath.Join(inbox, c.Name(), t.Name())
			files, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() || !isArtifactFile(f.Name()) {
					continue
				}
				fn(filepath.Join(dir, f.Name()))
			}
		}
	}
	return nil
}
