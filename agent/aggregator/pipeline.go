package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	specialistx "github.com/tanpawarit/parcel-scout/agent/agents/specialist"
	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	metricsx "github.com/tanpawarit/parcel-scout/pkg/metrics"
)

// Specialists produces the three domain evaluations of one property.
type Specialists interface {
	EvaluateEco(ctx context.Context, listing contractx.PropertyListing) (contractx.EcoImpactEvaluation, error)
	EvaluateLegal(ctx context.Context, listing contractx.PropertyListing) (contractx.LegalEvaluation, error)
	EvaluateFinance(ctx context.Context, listing contractx.PropertyListing) (contractx.FinanceEvaluation, error)
}

type registrySpecialists struct {
	reg *specialistx.Registry
}

// FromRegistry evaluates with the model-backed specialists of reg.
func FromRegistry(reg *specialistx.Registry) Specialists {
	return registrySpecialists{reg: reg}
}

func (r registrySpecialists) EvaluateEco(ctx context.Context, l contractx.PropertyListing) (contractx.EcoImpactEvaluation, error) {
	return specialistx.Evaluate[contractx.EcoDetails](ctx, r.reg.Eco, l)
}

func (r registrySpecialists) EvaluateLegal(ctx context.Context, l contractx.PropertyListing) (contractx.LegalEvaluation, error) {
	return specialistx.Evaluate[contractx.LegalDetails](ctx, r.reg.Legal, l)
}

func (r registrySpecialists) EvaluateFinance(ctx context.Context, l contractx.PropertyListing) (contractx.FinanceEvaluation, error) {
	return specialistx.Evaluate[contractx.FinanceDetails](ctx, r.reg.Finance, l)
}

type aggregationState struct {
	Listing        contractx.PropertyListing
	Evaluations    contractx.Evaluations
	Score          int
	Recommendation contractx.Recommendation
	Summary        string
}

// Pipeline fans one listing out to the three specialists, scores the joined
// result with Policy and asks the judge for the executive summary.
type Pipeline struct {
	runner compose.Runnable[contractx.PropertyListing, contractx.AggregatedEvaluation]
}

func NewPipeline(ctx context.Context, specialists Specialists, judge contractx.Summarizer, policy Policy) (*Pipeline, error) {
	if specialists == nil || judge == nil {
		return nil, fmt.Errorf("%w: specialists and judge are required", contractx.ErrValidation)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	graph := compose.NewGraph[contractx.PropertyListing, contractx.AggregatedEvaluation]()

	if err := graph.AddLambdaNode("validate_listing",
		compose.InvokableLambda(func(ctx context.Context, listing contractx.PropertyListing) (*aggregationState, error) {
			if err := contractx.Validate(listing); err != nil {
				return nil, fmt.Errorf("invalid listing: %w", err)
			}
			return &aggregationState{Listing: listing}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add aggregator validate node: %w", err)
	}

	if err := graph.AddLambdaNode("run_specialists",
		compose.InvokableLambda(func(ctx context.Context, in *aggregationState) (*aggregationState, error) {
			return runSpecialists(ctx, specialists, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add aggregator fan-out node: %w", err)
	}

	if err := graph.AddLambdaNode("score",
		compose.InvokableLambda(func(ctx context.Context, in *aggregationState) (*aggregationState, error) {
			ev := in.Evaluations
			in.Score = policy.Score(ev.EcoImpact.Score, ev.Legal.Score, ev.Finance.Score)
			in.Recommendation = Tier(in.Score)
			log.Debug().
				Str("listing_id", in.Listing.ID).
				Float64("eco", ev.EcoImpact.Score).
				Float64("legal", ev.Legal.Score).
				Float64("finance", ev.Finance.Score).
				Bool("legal_penalty", policy.Penalized(ev.Legal.Score)).
				Int("score", in.Score).
				Msg("aggregated score computed")
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add aggregator score node: %w", err)
	}

	if err := graph.AddLambdaNode("summarize",
		compose.InvokableLambda(func(ctx context.Context, in *aggregationState) (*aggregationState, error) {
			return summarize(ctx, judge, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add aggregator summarize node: %w", err)
	}

	if err := graph.AddLambdaNode("assemble_and_validate",
		compose.InvokableLambda(func(ctx context.Context, in *aggregationState) (contractx.AggregatedEvaluation, error) {
			out := contractx.AggregatedEvaluation{
				ListingID:        in.Listing.ID,
				PropertyDetails:  in.Listing,
				Evaluations:      in.Evaluations,
				OverallScore:     in.Score,
				Recommendation:   in.Recommendation,
				ExecutiveSummary: in.Summary,
			}
			if err := contractx.Validate(out); err != nil {
				return contractx.AggregatedEvaluation{}, fmt.Errorf("aggregated evaluation: %w", err)
			}
			metricsx.Evaluations.WithLabelValues(string(out.Recommendation)).Inc()
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add aggregator assemble node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_listing"},
		{"validate_listing", "run_specialists"},
		{"run_specialists", "score"},
		{"score", "summarize"},
		{"summarize", "assemble_and_validate"},
		{"assemble_and_validate", compose.END},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add aggregator edge %s->%s: %w", e[0], e[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("aggregator.evaluation_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile aggregator graph: %w", err)
	}
	return &Pipeline{runner: runner}, nil
}

// Evaluate runs the full pipeline for one listing. Any specialist or judge
// failure fails the whole evaluation; there are no partial results.
func (p *Pipeline) Evaluate(ctx context.Context, listing contractx.PropertyListing) (contractx.AggregatedEvaluation, error) {
	return p.runner.Invoke(ctx, listing)
}

func runSpecialists(ctx context.Context, specialists Specialists, in *aggregationState) (*aggregationState, error) {
	g, gctx := errgroup.WithContext(ctx)

	var ev contractx.Evaluations
	g.Go(func() error {
		out, err := specialists.EvaluateEco(gctx, in.Listing)
		if err != nil {
			return fmt.Errorf("eco evaluation: %w", err)
		}
		ev.EcoImpact = out
		return nil
	})
	g.Go(func() error {
		out, err := specialists.EvaluateLegal(gctx, in.Listing)
		if err != nil {
			return fmt.Errorf("legal evaluation: %w", err)
		}
		ev.Legal = out
		return nil
	})
	g.Go(func() error {
		out, err := specialists.EvaluateFinance(gctx, in.Listing)
		if err != nil {
			return fmt.Errorf("finance evaluation: %w", err)
		}
		ev.Finance = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in.Evaluations = ev
	return in, nil
}

func summarize(ctx context.Context, judge contractx.Summarizer, in *aggregationState) (*aggregationState, error) {
	verdict, err := judge.Summarize(ctx, contractx.SummaryRequest{
		Listing:        in.Listing,
		Evaluations:    in.Evaluations,
		OverallScore:   in.Score,
		Recommendation: in.Recommendation,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize evaluation: %w", err)
	}

	summary := strings.TrimSpace(verdict.ExecutiveSummary)
	if summary == "" {
		return nil, fmt.Errorf("%w: executive summary is empty", contractx.ErrSchemaViolation)
	}
	if verdict.OverallScore != in.Score || verdict.Recommendation != in.Recommendation {
		log.Warn().
			Str("listing_id", in.Listing.ID).
			Int("policy_score", in.Score).
			Str("policy_recommendation", string(in.Recommendation)).
			Int("judge_score", verdict.OverallScore).
			Str("judge_recommendation", string(verdict.Recommendation)).
			Msg("judge disagreed with scoring policy; keeping policy result")
	}

	in.Summary = summary
	return in, nil
}
