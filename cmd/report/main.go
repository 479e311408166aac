package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/avdeenko/call-intake/internal/config"
	"github.com/avdeenko/call-intake/internal/infrastructure/repository/postgres"
	"github.com/avdeenko/call-intake/internal/report"
)

func main() {
	out := flag.String("out", "calls.xlsx", "path of the xlsx workbook to write")
	limit := flag.Int("limit", 0, "max calls to export, 0 for the default")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exporter := report.NewExporter(postgres.NewDirectory(db))
	if err := exporter.Export(ctx, *out, *limit); err != nil {
		log.Fatalf("export report: %v", err)
	}
	log.Printf("report written to %s", *out)
}
