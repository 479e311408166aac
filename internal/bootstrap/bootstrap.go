package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avdeenko/call-intake/internal/config"
	"github.com/avdeenko/call-intake/internal/core/domain"
	"github.com/avdeenko/call-intake/internal/core/ports"
	"github.com/avdeenko/call-intake/internal/core/usecase"
	"github.com/avdeenko/call-intake/internal/infrastructure/llm/ollama"
	"github.com/avdeenko/call-intake/internal/infrastructure/media"
	"github.com/avdeenko/call-intake/internal/infrastructure/notify"
	"github.com/avdeenko/call-intake/internal/infrastructure/queue/memory"
	"github.com/avdeenko/call-intake/internal/infrastructure/queue/nats"
	"github.com/avdeenko/call-intake/internal/infrastructure/repository/postgres"
	"github.com/avdeenko/call-intake/internal/infrastructure/resilience"
	"github.com/avdeenko/call-intake/internal/infrastructure/transcribe/whisper"
	"github.com/avdeenko/call-intake/internal/infrastructure/watcher"
	"github.com/avdeenko/call-intake/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Service string

	Directory ports.CallDirectory
	Queue     ports.PipelineQueue
	Watcher   *watcher.FolderWatcher
	IngestUC  ports.RecordingIngestor
	ProcessUC ports.CallProcessor
	Metrics   *metrics.IntakeMetrics

	closeFn func()
}

// New wires the full pipeline. In memory queue mode everything runs in
// one process; in NATS mode the same App serves both the watcher binary
// and the worker binary, which simply use different ends of the queue.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	directory := postgres.NewDirectory(db)
	if err := directory.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	var (
		queue    ports.PipelineQueue
		notifier ports.Notifier
		closeFn  func()
	)
	switch cfg.QueueMode {
	case config.QueueModeNATS:
		natsQueue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init pipeline queue: %w", err)
		}
		queue = natsQueue
		notifier = nats.NewNotifier(natsQueue.Conn(), cfg.NATSEventPrefix)
		closeFn = func() {
			natsQueue.Close()
			_ = db.Close()
		}
	case config.QueueModeMemory:
		memoryQueue := memory.New(cfg.QueueSize, cfg.WorkerCount, logger)
		queue = memoryQueue
		notifier = notify.NewLogNotifier(logger)
		closeFn = func() {
			memoryQueue.Close()
			_ = db.Close()
		}
	default:
		_ = db.Close()
		return nil, fmt.Errorf("unknown queue mode %q", cfg.QueueMode)
	}

	prober := media.NewProber(cfg.FFprobePath, cfg.ProbeTimeout)
	transcriber := whisper.New(cfg.WhisperURL, cfg.WhisperAPIKey, cfg.WhisperModel,
		whisper.WithResilience(executor))
	extractor := ollama.NewExtractorWithResilience(
		ollama.New(cfg.OllamaURL, cfg.OllamaModel), executor)

	intakeMetrics := metrics.NewIntakeMetrics(service)
	ingestUC := usecase.NewIngestRecordingUseCase(directory, prober, queue, notifier, logger)
	meteredIngest := &meteredIngestor{service: service, metrics: intakeMetrics, inner: ingestUC}
	processUC := usecase.NewProcessCallUseCase(directory, transcriber, extractor, notifier, logger)

	folderWatcher, err := watcher.New(watcher.Config{
		Dir:           cfg.WatchDir,
		ScanFileDelay: cfg.ScanFileDelay,
		SettleWindow:  cfg.SettleWindow,
		OnEvent: func(eventType string) {
			intakeMetrics.ObserveWatcherEvent(service, eventType)
		},
	}, meteredIngest, directory, logger)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("init folder watcher: %w", err)
	}

	return &App{
		Config:    cfg,
		Service:   service,
		Directory: directory,
		Queue:     queue,
		Watcher:   folderWatcher,
		IngestUC:  meteredIngest,
		ProcessUC: processUC,
		Metrics:   intakeMetrics,
		closeFn:   closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// PipelineHandler wraps the call processor with per-run metrics and a
// hard timeout, ready to hand to PipelineQueue.SubscribeCallAccepted.
func (a *App) PipelineHandler() func(context.Context, domain.PipelineJob) error {
	return func(ctx context.Context, job domain.PipelineJob) error {
		runCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
		defer cancel()

		a.Metrics.StartPipelineRun()
		start := time.Now()
		err := a.ProcessUC.ProcessCall(runCtx, job)
		a.Metrics.FinishPipelineRun(a.Service, time.Since(start), err)
		return err
	}
}

// meteredIngestor counts ingestion outcomes without the use case knowing
// about metrics.
type meteredIngestor struct {
	service string
	metrics *metrics.IntakeMetrics
	inner   ports.RecordingIngestor
}

func (m *meteredIngestor) HandleDetected(ctx context.Context, file domain.DetectedFile) error {
	err := m.inner.HandleDetected(ctx, file)
	m.metrics.ObserveIngest(m.service, err)
	return err
}
