package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ceilometer-etl/internal/adapter/csvsink"
	"github.com/couchcryptid/ceilometer-etl/internal/adapter/file"
	httpadapter "github.com/couchcryptid/ceilometer-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ceilometer-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ceilometer-etl/internal/config"
	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/observability"
	"github.com/couchcryptid/ceilometer-etl/internal/pipeline"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger, closeLog := observability.NewLogger(observability.LogOptionsFromConfig(cfg))
	defer closeLog() //nolint:errcheck // best-effort on exit
	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "warning", w)
	}
	metrics := observability.NewMetrics()

	catalogue, err := schema.NewCatalogue()
	if err != nil {
		logger.Error("failed to load variable catalogue", "error", err)
		return 1
	}

	var loaders []pipeline.Loader
	if cfg.OutputDir != "" {
		loaders = append(loaders, csvsink.NewSink(cfg.OutputDir, catalogue, logger))
		logger.Info("csv output enabled", "dir", cfg.OutputDir)
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, catalogue, logger)
		loaders = append(loaders, writer)
		logger.Info("kafka output enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	dec := decoder.New(decoder.NewGrammar(), decoder.Options{
		Check:            cfg.ChecksumEnabled,
		InitialTime:      cfg.InitialTime,
		SamplingInterval: cfg.SamplingInterval,
	}, logger)
	src := file.NewSource(cfg.InputDir, cfg.PollInterval > 0)

	p := pipeline.New(src, dec, loaders, logger, metrics, pipeline.Options{
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline. A single pass ends the process when it returns.
	code := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			code = 1
		}
		stop()
	}()

	<-ctx.Done()
	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete", "stats", p.Stats())
	return code
}
