package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/avdeenko/call-intake/internal/core/domain"
	"github.com/avdeenko/call-intake/internal/core/ports"
)

// callFlagStore is the slice of the directory the watcher needs to mark a
// Call's file as gone.
type callFlagStore interface {
	FindCallByFilename(ctx context.Context, fileName string) (*domain.Call, error)
	SetCallFileExists(ctx context.Context, callID string, exists bool) error
}

type Config struct {
	// Dir is the single watched directory. Subdirectories are not watched.
	Dir string
	// ScanFileDelay paces the initial scan so a directory full of backlog
	// recordings does not flood downstream services. Pacing, not
	// correctness: dedup still guards each file.
	ScanFileDelay time.Duration
	// SettleWindow is how long a file must stay quiet after its last write
	// event before it is reported as added. Keeps half-copied files out of
	// the pipeline.
	SettleWindow time.Duration
	// OnEvent, when set, receives the coarse type of every relevant
	// filesystem event ("create", "write", "remove", "rename").
	OnEvent func(eventType string)
}

// FolderWatcher owns the filesystem subscription on the watched directory.
// Every recording present at start and every recording added later is handed
// to the ingestor exactly once per observation; removals flip the matching
// Call's file-exists flag.
type FolderWatcher struct {
	cfg      Config
	ingestor ports.RecordingIngestor
	calls    callFlagStore
	logger   *slog.Logger
	limiter  *rate.Limiter

	fsw *fsnotify.Watcher
	wg  sync.WaitGroup

	mu      sync.Mutex
	settles map[string]*time.Timer

	stopOnce sync.Once
}

func New(cfg Config, ingestor ports.RecordingIngestor, calls callFlagStore, logger *slog.Logger) (*FolderWatcher, error) {
	if ingestor == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new folder watcher", errors.New("nil ingestor"))
	}
	if calls == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new folder watcher", errors.New("nil call store"))
	}
	if cfg.Dir == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "new folder watcher", errors.New("empty watch directory"))
	}
	if cfg.ScanFileDelay <= 0 {
		cfg.ScanFileDelay = 200 * time.Millisecond
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = 2 * time.Second
	}
	return &FolderWatcher{
		cfg:      cfg,
		ingestor: ingestor,
		calls:    calls,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.ScanFileDelay), 1),
		settles:  map[string]*time.Timer{},
	}, nil
}

// Start scans the directory for pre-existing recordings, hands each one off
// sequentially, and only then subscribes to live filesystem events.
func (w *FolderWatcher) Start(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("list watch dir: %w", err)
	}
	w.scanExisting(ctx, entries)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("init fs watcher: %w", err)
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("subscribe watch dir: %w", err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watching directory", "dir", w.cfg.Dir)
	return nil
}

// Stop releases the filesystem subscription and pending settle timers,
// then waits out any handoff already past its timer. Idempotent.
func (w *FolderWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		for path, timer := range w.settles {
			if timer.Stop() {
				w.wg.Done()
			}
			delete(w.settles, path)
		}
		w.mu.Unlock()

		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		w.wg.Wait()
	})
}

func (w *FolderWatcher) scanExisting(ctx context.Context, entries []os.DirEntry) {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isHidden(name) || !domain.IsAudioFile(name) {
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.handOff(ctx, filepath.Join(w.cfg.Dir, name))
	}
}

func (w *FolderWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Degraded, not dead: keep draining whatever the kernel still
			// delivers.
			w.logger.Error("watch error", "dir", w.cfg.Dir, "error", err)
		}
	}
}

func (w *FolderWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if isHidden(name) || !domain.IsAudioFile(name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		w.observe("create")
		w.scheduleSettle(ctx, event.Name)
	case event.Op.Has(fsnotify.Write):
		w.observe("write")
		w.scheduleSettle(ctx, event.Name)
	case event.Op.Has(fsnotify.Remove):
		w.observe("remove")
		w.cancelSettle(event.Name)
		w.handleRemoved(ctx, name)
	case event.Op.Has(fsnotify.Rename):
		w.observe("rename")
		w.cancelSettle(event.Name)
		w.handleRemoved(ctx, name)
	}
}

func (w *FolderWatcher) observe(eventType string) {
	if w.cfg.OnEvent != nil {
		w.cfg.OnEvent(eventType)
	}
}

// scheduleSettle (re)arms the per-path debounce timer. The file is reported
// only after SettleWindow passes with no further writes. Each armed timer
// joins the WaitGroup so Stop drains a handoff that is already running.
func (w *FolderWatcher) scheduleSettle(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.settles[path]; ok {
		timer.Reset(w.cfg.SettleWindow)
		return
	}
	w.wg.Add(1)
	w.settles[path] = time.AfterFunc(w.cfg.SettleWindow, func() {
		defer w.wg.Done()

		w.mu.Lock()
		delete(w.settles, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			// Gone again before it settled.
			return
		}
		w.handOff(ctx, path)
	})
}

func (w *FolderWatcher) cancelSettle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.settles[path]; ok {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.settles, path)
	}
}

func (w *FolderWatcher) handOff(ctx context.Context, path string) {
	file := domain.DetectedFile{
		Path:       path,
		Name:       filepath.Base(path),
		DetectedAt: time.Now().UTC(),
	}
	if err := w.ingestor.HandleDetected(ctx, file); err != nil {
		w.logger.Error("recording handoff failed", "file", file.Name, "error", err)
	}
}

// handleRemoved is advisory cleanup: losing the race with a concurrent
// ingestion, or a missing Call, is not an error worth surfacing.
func (w *FolderWatcher) handleRemoved(ctx context.Context, name string) {
	call, err := w.calls.FindCallByFilename(ctx, name)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			w.logger.Warn("removed file lookup failed", "file", name, "error", err)
		}
		return
	}
	if err := w.calls.SetCallFileExists(ctx, call.ID, false); err != nil {
		w.logger.Warn("mark file removed failed", "call_id", call.ID, "error", err)
		return
	}
	w.logger.Info("recording file removed", "call_id", call.ID, "file", name)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
