package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

type ingestorFake struct {
	mu    sync.Mutex
	files []domain.DetectedFile
	err   error
}

func (f *ingestorFake) HandleDetected(_ context.Context, file domain.DetectedFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
	return f.err
}

func (f *ingestorFake) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for _, file := range f.files {
		out = append(out, file.Name)
	}
	return out
}

type callFlagStoreFake struct {
	mu       sync.Mutex
	calls    map[string]*domain.Call
	flagged  map[string]bool
	findErr  error
	writeErr error
}

func newCallFlagStoreFake() *callFlagStoreFake {
	return &callFlagStoreFake{calls: map[string]*domain.Call{}, flagged: map[string]bool{}}
}

func (f *callFlagStoreFake) FindCallByFilename(_ context.Context, fileName string) (*domain.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if call, ok := f.calls[fileName]; ok {
		return call, nil
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find call by filename", errors.New(fileName))
}

func (f *callFlagStoreFake) SetCallFileExists(_ context.Context, callID string, exists bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.flagged[callID] = exists
	return nil
}

type blockingIngestor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingIngestor) HandleDetected(_ context.Context, _ domain.DetectedFile) error {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("riff"), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func fastConfig(dir string) Config {
	return Config{Dir: dir, ScanFileDelay: time.Millisecond, SettleWindow: 20 * time.Millisecond}
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	if _, err := New(Config{Dir: "/tmp"}, nil, newCallFlagStoreFake(), testLogger()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for nil ingestor, got %v", err)
	}
	if _, err := New(Config{Dir: "/tmp"}, &ingestorFake{}, nil, testLogger()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for nil call store, got %v", err)
	}
	if _, err := New(Config{}, &ingestorFake{}, newCallFlagStoreFake(), testLogger()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty directory, got %v", err)
	}
}

func TestStartFailsOnUnreadableDirectory(t *testing.T) {
	w, err := New(fastConfig(filepath.Join(t.TempDir(), "missing")), &ingestorFake{}, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatalf("expected error for unreadable directory")
	}
}

func TestScanExistingFiltersAndHandsOffSequentially(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0400-400_20250915134049_mix.wav")
	writeFile(t, dir, "0400-401_20250915140000_mix.mp3")
	writeFile(t, dir, "0400-402_20250915150000_mix.ogg")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, ".hidden.wav")
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ingestor := &ingestorFake{}
	w, err := New(fastConfig(dir), ingestor, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	w.scanExisting(context.Background(), entries)

	names := ingestor.names()
	if len(names) != 3 {
		t.Fatalf("expected 3 recordings handed off, got %v", names)
	}
	for _, n := range names {
		if n == "notes.txt" || n == ".hidden.wav" {
			t.Fatalf("non-recording %q must not be handed off", n)
		}
	}
}

func TestScanExistingStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0400-400_20250915134049_mix.wav")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ingestor := &ingestorFake{}
	w, err := New(fastConfig(dir), ingestor, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	w.scanExisting(ctx, entries)
	if len(ingestor.names()) != 0 {
		t.Fatalf("expected no handoffs after cancellation")
	}
}

func TestScanExistingContinuesPastHandoffErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0400-400_20250915134049_mix.wav")
	writeFile(t, dir, "0400-401_20250915140000_mix.wav")

	ingestor := &ingestorFake{err: errors.New("db down")}
	w, err := New(fastConfig(dir), ingestor, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	w.scanExisting(context.Background(), entries)
	if len(ingestor.names()) != 2 {
		t.Fatalf("expected both files attempted despite errors, got %v", ingestor.names())
	}
}

func TestLiveAddWaitsForSettleWindow(t *testing.T) {
	dir := t.TempDir()
	ingestor := &ingestorFake{}
	w, err := New(fastConfig(dir), ingestor, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	writeFile(t, dir, "0400-400_20250915134049_mix.wav")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(ingestor.names()) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected live file to be handed off, got %v", ingestor.names())
}

func TestRemovedFileFlipsFileExistsFlag(t *testing.T) {
	store := newCallFlagStoreFake()
	store.calls["0400-400_20250915134049_mix.wav"] = &domain.Call{ID: "call-1", FileName: "0400-400_20250915134049_mix.wav"}

	w, err := New(fastConfig(t.TempDir()), &ingestorFake{}, store, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.handleRemoved(context.Background(), "0400-400_20250915134049_mix.wav")

	if exists, ok := store.flagged["call-1"]; !ok || exists {
		t.Fatalf("expected call-1 flagged as missing, got %v", store.flagged)
	}
}

func TestRemovedUnknownFileIsIgnored(t *testing.T) {
	store := newCallFlagStoreFake()
	w, err := New(fastConfig(t.TempDir()), &ingestorFake{}, store, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.handleRemoved(context.Background(), "never-seen.wav")
	if len(store.flagged) != 0 {
		t.Fatalf("expected no flag writes for unknown file")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(fastConfig(dir), &ingestorFake{}, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestStopWaitsForInFlightSettleHandoff(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "0400-400_20250915134049_mix.wav")

	ing := &blockingIngestor{started: make(chan struct{}), release: make(chan struct{})}
	cfg := fastConfig(dir)
	cfg.SettleWindow = 10 * time.Millisecond
	w, err := New(cfg, ing, newCallFlagStoreFake(), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.scheduleSettle(ctx, path)

	select {
	case <-ing.started:
	case <-time.After(2 * time.Second):
		t.Fatal("settle handoff never started")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handoff was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(ing.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the handoff finished")
	}
}
