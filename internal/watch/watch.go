// Package watch transcribes WAV files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ProcessFunc handles one WAV file.
type ProcessFunc func(ctx context.Context, path string) error

// ResultPath returns where the result for a WAV file is written.
func ResultPath(wavPath string) string { return wavPath + ".cbor" }

// Watcher monitors a directory for new .wav files and processes each one
// once, in arrival order, on a single goroutine.
type Watcher struct {
	dir      string
	debounce time.Duration
	process  ProcessFunc
	log      zerolog.Logger

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	queue     chan string
	processed atomic.Int64
	failed    atomic.Int64
}

// New returns a Watcher for dir.
func New(dir string, debounce time.Duration, process ProcessFunc, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:            dir,
		debounce:       debounce,
		process:        process,
		log:            log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
		queue:          make(chan string, 64),
	}
}

// Run processes existing unprocessed files, then watches for new ones
// until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	w.log.Info().Str("dir", w.dir).Msg("watching for audio files")

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer w.stopTimers()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	if err := w.backfill(ctx); err != nil {
		w.log.Warn().Err(err).Msg("backfill failed")
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info().
				Int64("files_processed", w.processed.Load()).
				Int64("files_failed", w.failed.Load()).
				Msg("watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isWAV(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// Stats returns the number of processed and failed files.
func (w *Watcher) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// backfill queues WAV files already in the directory that have no result.
func (w *Watcher) backfill(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	var pending []string
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.IsDir() || !isWAV(path) {
			continue
		}
		if _, err := os.Stat(ResultPath(path)); err == nil {
			continue
		}
		pending = append(pending, path)
	}
	sort.Strings(pending)

	if len(pending) > 0 {
		w.log.Info().Int("files", len(pending)).Msg("backfilling existing files")
	}
	for _, path := range pending {
		w.enqueue(ctx, path)
	}
	return nil
}

// schedule debounces processing so a file is read only once it stops changing.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.debounceTimers[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.enqueue(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	select {
	case w.queue <- path:
	case <-ctx.Done():
	}
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			log := w.log.With().Str("file", filepath.Base(path)).Logger()
			if err := w.process(ctx, path); err != nil {
				w.failed.Add(1)
				log.Error().Err(err).Msg("processing failed")
				continue
			}
			w.processed.Add(1)
			log.Info().Msg("file processed")
		}
	}
}

func isWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}
