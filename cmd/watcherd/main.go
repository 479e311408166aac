package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avdeenko/call-intake/internal/bootstrap"
	"github.com/avdeenko/call-intake/internal/config"
	"github.com/avdeenko/call-intake/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("call-intake-watcherd", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "watcherd", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:        ":" + cfg.MetricsPort,
		Handler:     metricsMux(app),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	if err := app.Watcher.Start(ctx); err != nil {
		log.Fatalf("watcher start error: %v", err)
	}
	defer app.Watcher.Stop()

	// In memory queue mode the pipeline consumer lives in this process;
	// in NATS mode dedicated worker binaries consume the subject.
	if cfg.QueueMode == config.QueueModeMemory {
		if err := app.Queue.SubscribeCallAccepted(ctx, app.PipelineHandler()); err != nil {
			log.Fatalf("pipeline subscribe error: %v", err)
		}
	} else {
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}
}

func metricsMux(app *bootstrap.App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	return mux
}
