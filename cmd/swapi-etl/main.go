package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/swapi-etl/pkg/config"
	"github.com/Sternrassler/swapi-etl/pkg/logging"
	"github.com/Sternrassler/swapi-etl/pkg/metrics"
	"github.com/Sternrassler/swapi-etl/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configuration from .env and environment
	cfg := config.Load()
	logging.Setup(logging.FromSettings(cfg.LogLevel, cfg.LogPretty))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Error().Err(err).Msg("swapi-etl failed")
		stop()
		os.Exit(1)
	}
}

// run executes one pipeline run with cfg, serving metrics meanwhile when
// cfg.MetricsAddr is set.
func run(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	s, err := pipeline.NewSink(cfg, stdout)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, s)
	if err != nil {
		return err
	}
	defer p.Close()

	log.Info().
		Str("api", cfg.APIURLBase).
		Str("sink", s.Name()).
		Str("user_agent", cfg.UserAgent).
		Msg("Starting swapi-etl")

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("selected", len(report.Selected)).
		Dur("duration", report.Duration).
		Msg("swapi-etl finished")
	return nil
}
