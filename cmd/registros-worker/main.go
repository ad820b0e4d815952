package main

import (
	"context"
	"errors"
	"os"
	"time"

	"registros/internal/amqp"
	"registros/internal/cli"
	"registros/internal/config"
	"registros/internal/log"
	"registros/internal/services"
	"registros/internal/sheets"
	gsheet "registros/internal/sheets/google"
	memsheet "registros/internal/sheets/memory"
	"registros/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	logger.Info("Starting registros-worker", log.FieldOperation, log.OpStartup)

	if cfg.DataBackend == "memory" {
		logger.Warn("Worker is running on the memory backend; it cannot see records written by the server")
	}
	res := cli.OpenBackend(context.Background(), logger, cfg)

	mirror, err := newMirror(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize mirror", log.FieldError, err)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on periodic reconcile only", log.FieldError, err)
			amqpClient = nil
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, relying on periodic reconcile")
	}

	mirrorSync := services.NewMirrorSync(res.Records, mirror, services.MirrorSyncConfig{
		PollInterval: cfg.Worker.ReconcileInterval,
	})
	mirrorWorker := worker.NewMirrorWorker(mirror, res.Records)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := mirrorSync.Stop(ctx); err != nil {
			logger.Warn("Mirror sync stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		processed, failed := mirrorWorker.Stats()
		logger.Info("Worker totals", "processed", processed, "failed", failed, log.FieldOperation, log.OpShutdown)
		if err := res.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	if err := mirrorSync.Start(ctx); err != nil {
		logger.Error("Failed to start mirror sync", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeRecordEvents(ctx, mirrorWorker.HandleRecordEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
		logger.Info("Consuming record events", "queue", cfg.AMQP.Queue)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// newMirror picks the Google Sheets mirror when a spreadsheet is configured
// and an in-memory mirror otherwise.
func newMirror(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.Mirror, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory mirror")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.Google.SpreadsheetID,
		SheetName:       cfg.Google.SheetName,
		CredentialsFile: cfg.Google.CredentialsFile,
		CredentialsJSON: cfg.Google.CredentialsJSON,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.Google.SpreadsheetID,
		"sheet", cfg.Google.SheetName)
	return client, nil
}
