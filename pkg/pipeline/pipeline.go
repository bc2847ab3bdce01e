// Package pipeline runs the extract, enrich, rank and load stages end to end.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/swapi-etl/pkg/client"
	"github.com/Sternrassler/swapi-etl/pkg/config"
	"github.com/Sternrassler/swapi-etl/pkg/enrich"
	"github.com/Sternrassler/swapi-etl/pkg/export"
	"github.com/Sternrassler/swapi-etl/pkg/logging"
	"github.com/Sternrassler/swapi-etl/pkg/pagination"
	"github.com/Sternrassler/swapi-etl/pkg/rank"
	"github.com/Sternrassler/swapi-etl/pkg/sink"
	"github.com/Sternrassler/swapi-etl/pkg/swapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Report summarizes one run.
type Report struct {
	RunID            string
	PeopleSeen       int
	PeopleRejected   int
	PagesRequested   int
	SpeciesRequested int
	Selected         []swapi.EnrichedPerson
	CSV              []byte
	Duration         time.Duration
}

// Pipeline holds what runs share: one HTTP client and one sink.
type Pipeline struct {
	cfg    config.Config
	client *client.Client
	sink   sink.Sink
}

// New creates a pipeline. A nil sink skips the load stage.
func New(cfg config.Config, s sink.Sink) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Pipeline{cfg: cfg, client: c, sink: s}, nil
}

// Run executes one run. Every run starts with empty fetch caches.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := logging.WithRun(logging.NewLogger("pipeline"), runID)

	peopleURL := p.cfg.PeopleURL()
	logger.Info().
		Str("url", peopleURL).
		Int("max_person_filter", p.cfg.MaxPersonFilter).
		Int("max_simultaneous_requests", p.cfg.MaxSimultaneousRequests).
		Msg("Starting run")

	pages := client.NewEntityFetcher(p.client, "people", swapi.DecodePersonPage)
	species := client.NewEntityFetcher(p.client, "species", swapi.DecodeSpecies)

	walker := pagination.NewWalker(
		pagination.FromFetcher[swapi.PersonPage, swapi.Person](pages),
		pagination.Config{PageSize: p.cfg.APIMaxPageResults, PageParam: "page"},
	)
	enricher := enrich.New(species)
	selector := rank.NewPeople(p.cfg.MaxPersonFilter)

	people := enricher.Stream(ctx, walker.Walk(ctx, peopleURL))
	selected, err := rank.Select(selector, people, rank.ByHeightDesc)
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Run failed")
		return nil, fmt.Errorf("extract people: %w", err)
	}

	csv, err := export.CSVBytes(selected)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	var table bytes.Buffer
	if err := export.Table(&table, selected); err == nil {
		logger.Info().Msg("Selected people\n" + table.String())
	}

	if p.sink != nil {
		if err := p.sink.Send(ctx, export.ContentType, csv); err != nil {
			logger.Error().Err(err).Str("sink", p.sink.Name()).Msg("Run failed")
			return nil, fmt.Errorf("load to %s sink: %w", p.sink.Name(), err)
		}
	}

	stats := selector.Stats()
	report := &Report{
		RunID:            runID,
		PeopleSeen:       stats.Seen,
		PeopleRejected:   stats.Rejected,
		PagesRequested:   pages.Requested(),
		SpeciesRequested: species.Requested(),
		Selected:         selected,
		CSV:              csv,
		Duration:         time.Since(start),
	}

	logger.Info().
		Int("people_seen", report.PeopleSeen).
		Int("people_rejected", report.PeopleRejected).
		Int("pages", report.PagesRequested).
		Int("species", report.SpeciesRequested).
		Int("selected", len(selected)).
		Dur("duration", report.Duration).
		Msg("Run complete")

	return report, nil
}

// Close releases the HTTP client and, when it holds one, the sink.
func (p *Pipeline) Close() error {
	p.client.Close()
	if c, ok := p.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewSink builds the sink selected by cfg.Sink. stdout receives the
// export for the stdout sink.
func NewSink(cfg config.Config, stdout io.Writer) (sink.Sink, error) {
	switch cfg.Sink {
	case config.SinkHTTP:
		return sink.NewHTTPSink(cfg.SinkURL, cfg.UserAgent, cfg.RequestTimeout), nil
	case config.SinkRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.SinkRedisAddr})
		return sink.NewRedisSink(rdb, cfg.SinkRedisKey, cfg.SinkRedisTTL), nil
	case config.SinkStdout:
		return sink.NewWriterSink(stdout), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
