// Package enrich resolves the species references of people records.
package enrich

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/Sternrassler/swapi-etl/pkg/swapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SpeciesFetcher resolves one species URL. A client.EntityFetcher for
// swapi.Species implements it.
type SpeciesFetcher interface {
	Fetch(ctx context.Context, url string) (swapi.Species, error)
}

// Enricher attaches resolved species to people.
type Enricher struct {
	species SpeciesFetcher
	logger  zerolog.Logger
}

// New creates an enricher backed by the given species fetcher.
func New(species SpeciesFetcher) *Enricher {
	return &Enricher{
		species: species,
		logger:  log.With().Str("component", "enricher").Logger(),
	}
}

// Enrich resolves every species reference of p concurrently. Species keep
// the order of p.Species. Any failed reference fails the whole record.
func (e *Enricher) Enrich(ctx context.Context, p swapi.Person) (swapi.EnrichedPerson, error) {
	resolved := make([]swapi.Species, len(p.Species))

	// No shared context: cancelling siblings would memoize cancellations
	// for species other records still need.
	var g errgroup.Group
	for i, ref := range p.Species {
		g.Go(func() error {
			s, err := e.species.Fetch(ctx, ref)
			if err != nil {
				return fmt.Errorf("resolve species %s of %q: %w", ref, p.Name, err)
			}
			resolved[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn().
			Err(err).
			Str("person", p.Name).
			Msg("Enrichment failed")
		return swapi.EnrichedPerson{}, err
	}

	return swapi.EnrichedPerson{Person: p, Species: resolved}, nil
}

type result struct {
	person swapi.EnrichedPerson
	err    error
}

// Stream enriches people as they arrive, one goroutine per record, and
// yields enriched records in completion order. The first error, from the
// input or from an enrichment, is yielded and ends the stream. Stopping
// early releases every goroutine the stream started.
func (e *Enricher) Stream(ctx context.Context, people iter.Seq2[swapi.Person, error]) iter.Seq2[swapi.EnrichedPerson, error] {
	return func(yield func(swapi.EnrichedPerson, error) bool) {
		done := make(chan struct{})
		defer close(done)

		out := make(chan result)
		send := func(r result) bool {
			select {
			case out <- r:
				return true
			case <-done:
				return false
			}
		}

		go func() {
			var wg sync.WaitGroup
			defer func() {
				wg.Wait()
				close(out)
			}()

			started := 0
			for p, err := range people {
				if err != nil {
					send(result{err: err})
					return
				}

				started++
				wg.Add(1)
				go func() {
					defer wg.Done()
					ep, err := e.Enrich(ctx, p)
					send(result{person: ep, err: err})
				}()

				select {
				case <-done:
					return
				default:
				}
			}

			e.logger.Debug().
				Int("records", started).
				Msg("All records dispatched for enrichment")
		}()

		for r := range out {
			if r.err != nil {
				yield(swapi.EnrichedPerson{}, r.err)
				return
			}
			if !yield(r.person, nil) {
				return
			}
		}
	}
}
