package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/avdeenko/call-intake/internal/bootstrap"
	"github.com/avdeenko/call-intake/internal/config"
	"github.com/avdeenko/call-intake/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.QueueMode != config.QueueModeNATS {
		log.Fatalf("worker requires QUEUE_MODE=%s, got %q", config.QueueModeNATS, cfg.QueueMode)
	}
	logger := logging.NewJSONLogger("call-intake-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	if err := app.Queue.SubscribeCallAccepted(ctx, app.PipelineHandler()); err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
