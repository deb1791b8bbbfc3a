package scout

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	datasourcex "github.com/tanpawarit/parcel-scout/agent/datasource"
	resultsx "github.com/tanpawarit/parcel-scout/agent/results"
	rpcx "github.com/tanpawarit/parcel-scout/pkg/rpc"
)

const weselID = "5f0c9a1e-3b7d-4c2a-9e8f-1d2c3b4a5e6f"

type fakeEvaluator struct {
	mu     sync.Mutex
	failOn map[string]bool
	seen   []string
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, listing contractx.PropertyListing) (contractx.AggregatedEvaluation, error) {
	f.mu.Lock()
	f.seen = append(f.seen, listing.ID)
	f.mu.Unlock()

	if f.failOn[listing.ID] {
		return contractx.AggregatedEvaluation{}, errors.New("legal specialist unavailable")
	}
	return contractx.AggregatedEvaluation{
		ListingID:       listing.ID,
		PropertyDetails: listing,
		Evaluations: contractx.Evaluations{
			EcoImpact: contractx.EcoImpactEvaluation{Score: 90, Summary: "eco", Details: contractx.EcoDetails{
				LandCover: "cropland", SoilSealing: "low", BiodiversityPotential: "high", ClimateResilience: "good",
			}},
			Legal: contractx.LegalEvaluation{Score: 80, Summary: "legal", Details: contractx.LegalDetails{
				ZoningCompliance: "agricultural", ProtectedAreaStatus: "none",
			}},
			Finance: contractx.FinanceEvaluation{Score: 70, Summary: "finance", Details: contractx.FinanceDetails{
				MarketValueComparison: "fair", PotentialROI: "moderate",
			}},
		},
		OverallScore:     83,
		Recommendation:   contractx.Recommended,
		ExecutiveSummary: "Good candidate.",
	}, nil
}

func startListingService(t *testing.T) *rpcx.Client {
	t.Helper()

	fixed := func() time.Time { return time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC) }
	server, err := datasourcex.NewServer(datasourcex.ServiceListing, fixed)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return rpcx.NewClient(rpcx.ClientConfig{Service: "listing", BaseURL: ts.URL, Timeout: time.Second})
}

func defaultFilters() datasourcex.SearchFilters {
	return datasourcex.SearchFilters{
		Region:         "Nordrhein-Westfalen",
		MinSizeSqm:     5000,
		MaxPricePerSqm: 150,
		PlotTypes:      []string{"agricultural"},
	}
}

func TestRunEvaluatesAndSavesEachListing(t *testing.T) {
	t.Parallel()

	store, err := resultsx.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	evaluator := &fakeEvaluator{}
	s, err := New(startListingService(t), evaluator, store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := s.Run(context.Background(), defaultFilters())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Fetched != 2 || len(report.Evaluated) != 2 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}

	ids := append([]string(nil), report.Evaluated...)
	sort.Strings(ids)
	for _, id := range ids {
		saved, err := store.Load(context.Background(), id)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", id, err)
		}
		if saved.PropertyDetails.ID != id {
			t.Fatalf("saved listing = %s, want %s", saved.PropertyDetails.ID, id)
		}
	}
}

func TestRunContinuesAfterFailedListing(t *testing.T) {
	t.Parallel()

	store, err := resultsx.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	evaluator := &fakeEvaluator{failOn: map[string]bool{weselID: true}}
	s, err := New(startListingService(t), evaluator, store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := s.Run(context.Background(), defaultFilters())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Evaluated) != 1 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if _, ok := report.Failed[weselID]; !ok {
		t.Fatalf("Failed = %#v, want %s", report.Failed, weselID)
	}
	if _, err := store.Load(context.Background(), weselID); !errors.Is(err, resultsx.ErrResultNotFound) {
		t.Fatalf("Load() error = %v, want ErrResultNotFound", err)
	}
}

func TestEvaluateURL(t *testing.T) {
	t.Parallel()

	s, err := New(startListingService(t), &fakeEvaluator{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	eval, err := s.EvaluateURL(context.Background(), "https://www.immobilienscout24.de/expose/a1b2c3d4")
	if err != nil {
		t.Fatalf("EvaluateURL() error = %v", err)
	}
	if eval.ListingID != "a1b2c3d4-e5f6-7890-1234-567890abcdef" {
		t.Fatalf("ListingID = %s", eval.ListingID)
	}

	if _, err := s.EvaluateURL(context.Background(), " "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("EvaluateURL() error = %v, want ErrValidation", err)
	}
}

func TestRunSurfacesListingServiceFailure(t *testing.T) {
	t.Parallel()

	client := rpcx.NewClient(rpcx.ClientConfig{Service: "listing", BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond})
	s, err := New(client, &fakeEvaluator{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.Run(context.Background(), defaultFilters())
	var rpcErr *rpcx.Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != rpcx.KindTransport {
		t.Fatalf("Run() error = %v, want transport error", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeEvaluator{}, nil); err == nil {
		t.Fatal("expected error for missing listing client")
	}
	if _, err := New(rpcx.NewClient(rpcx.ClientConfig{}), nil, nil); err == nil {
		t.Fatal("expected error for missing evaluator")
	}
}

type blockingEvaluator struct {
	fakeEvaluator
	release chan struct{}
}

func (b *blockingEvaluator) Evaluate(ctx context.Context, listing contractx.PropertyListing) (contractx.AggregatedEvaluation, error) {
	<-b.release
	return b.fakeEvaluator.Evaluate(ctx, listing)
}

func TestBackgroundRunsOneBatchAtATime(t *testing.T) {
	t.Parallel()

	evaluator := &blockingEvaluator{release: make(chan struct{})}
	s, err := New(startListingService(t), evaluator, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	bg := NewBackground(s, defaultFilters())

	ctx, cancel := context.WithCancel(context.Background())
	if err := bg.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	cancel()

	if err := bg.Trigger(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Trigger() error = %v, want ErrAlreadyRunning", err)
	}

	close(evaluator.release)
	bg.Wait()

	report, ok := bg.LastReport()
	if !ok {
		t.Fatal("expected a finished report")
	}
	if len(report.Evaluated) != 2 {
		t.Fatalf("evaluated = %d, want 2 (run must survive caller cancellation)", len(report.Evaluated))
	}

	if err := bg.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() after completion error = %v", err)
	}
	bg.Wait()
}

// stuckEvaluator blocks until its context is cancelled, or forever when
// ignoreCancel is set.
type stuckEvaluator struct {
	started      chan struct{}
	once         sync.Once
	ignoreCancel bool
	forever      chan struct{}
}

func (s *stuckEvaluator) Evaluate(ctx context.Context, listing contractx.PropertyListing) (contractx.AggregatedEvaluation, error) {
	s.once.Do(func() { close(s.started) })
	if s.ignoreCancel {
		<-s.forever
	}
	<-ctx.Done()
	return contractx.AggregatedEvaluation{}, ctx.Err()
}

func TestBackgroundShutdownCancelsRun(t *testing.T) {
	t.Parallel()

	evaluator := &stuckEvaluator{started: make(chan struct{})}
	s, err := New(startListingService(t), evaluator, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	bg := NewBackground(s, defaultFilters())

	if err := bg.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	<-evaluator.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bg.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := bg.Trigger(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Trigger() after shutdown error = %v, want ErrShutdown", err)
	}
}

func TestBackgroundShutdownIsBoundedByContext(t *testing.T) {
	t.Parallel()

	evaluator := &stuckEvaluator{started: make(chan struct{}), ignoreCancel: true, forever: make(chan struct{})}
	t.Cleanup(func() { close(evaluator.forever) })
	s, err := New(startListingService(t), evaluator, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	bg := NewBackground(s, defaultFilters())

	if err := bg.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	<-evaluator.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := bg.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Shutdown() took %v", elapsed)
	}
}
