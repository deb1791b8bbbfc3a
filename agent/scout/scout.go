package scout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	datasourcex "github.com/tanpawarit/parcel-scout/agent/datasource"
	resultsx "github.com/tanpawarit/parcel-scout/agent/results"
	toolx "github.com/tanpawarit/parcel-scout/agent/tool"
)

// Evaluator turns one listing into an aggregated evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, listing contractx.PropertyListing) (contractx.AggregatedEvaluation, error)
}

// Report summarizes one batch run.
type Report struct {
	Fetched   int
	Evaluated []string
	Failed    map[string]error
	Duration  time.Duration
}

// Scout finds listings on the listing service and evaluates them.
type Scout struct {
	listings  toolx.Invoker
	evaluator Evaluator
	results   resultsx.Store
}

// New builds a Scout. results may be nil, in which case evaluations are not persisted.
func New(listings toolx.Invoker, evaluator Evaluator, results resultsx.Store) (*Scout, error) {
	if listings == nil {
		return nil, errors.New("listing client is required")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	return &Scout{listings: listings, evaluator: evaluator, results: results}, nil
}

func (s *Scout) FetchNewListings(ctx context.Context, filters datasourcex.SearchFilters) ([]contractx.PropertyListing, error) {
	data, err := s.listings.Invoke(ctx, datasourcex.OpFetchNewListings, filters.Params())
	if err != nil {
		return nil, fmt.Errorf("fetch new listings: %w", err)
	}
	return datasourcex.DecodeListings(data)
}

// EvaluateURL scrapes one listing, evaluates it and saves the result.
func (s *Scout) EvaluateURL(ctx context.Context, url string) (contractx.AggregatedEvaluation, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return contractx.AggregatedEvaluation{}, fmt.Errorf("%w: url is empty", contractx.ErrValidation)
	}

	data, err := s.listings.Invoke(ctx, datasourcex.OpFetchSingleListingByURL, map[string]any{"url": url})
	if err != nil {
		return contractx.AggregatedEvaluation{}, fmt.Errorf("scrape listing: %w", err)
	}
	listing, err := datasourcex.DecodeListing(data)
	if err != nil {
		return contractx.AggregatedEvaluation{}, err
	}
	return s.evaluate(ctx, listing)
}

// Run evaluates every new listing matching filters, one at a time. A failed
// listing is recorded in the report and does not stop the batch.
func (s *Scout) Run(ctx context.Context, filters datasourcex.SearchFilters) (Report, error) {
	started := time.Now()
	report := Report{Failed: map[string]error{}}

	listings, err := s.FetchNewListings(ctx, filters)
	if err != nil {
		return report, err
	}
	report.Fetched = len(listings)

	log.Info().
		Str("region", filters.Region).
		Int("listings", len(listings)).
		Msg("scout run started")

	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if _, err := s.evaluate(ctx, listing); err != nil {
			report.Failed[listing.ID] = err
			log.Error().Err(err).Str("listing_id", listing.ID).Msg("listing evaluation failed")
			continue
		}
		report.Evaluated = append(report.Evaluated, listing.ID)
	}

	report.Duration = time.Since(started)
	log.Info().
		Int("fetched", report.Fetched).
		Int("evaluated", len(report.Evaluated)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("scout run finished")
	return report, nil
}

func (s *Scout) evaluate(ctx context.Context, listing contractx.PropertyListing) (contractx.AggregatedEvaluation, error) {
	eval, err := s.evaluator.Evaluate(ctx, listing)
	if err != nil {
		return contractx.AggregatedEvaluation{}, fmt.Errorf("evaluate listing %s: %w", listing.ID, err)
	}
	if s.results != nil {
		if err := s.results.Save(ctx, eval); err != nil {
			return contractx.AggregatedEvaluation{}, fmt.Errorf("save evaluation %s: %w", listing.ID, err)
		}
	}
	return eval, nil
}
