package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type evaluationRow struct {
	bun.BaseModel `bun:"table:aggregated_evaluations,alias:ae"`

	ListingID      string                         `bun:"listing_id,pk"`
	OverallScore   int                            `bun:"overall_score,notnull"`
	Recommendation string                         `bun:"recommendation,notnull"`
	Document       contractx.AggregatedEvaluation `bun:"document,type:jsonb,notnull"`
	UpdatedAt      time.Time                      `bun:"updated_at,notnull"`
}

func toRow(eval contractx.AggregatedEvaluation, now time.Time) *evaluationRow {
	return &evaluationRow{
		ListingID:      eval.ListingID,
		OverallScore:   eval.OverallScore,
		Recommendation: string(eval.Recommendation),
		Document:       eval,
		UpdatedAt:      now.UTC(),
	}
}

// PostgresStore keeps evaluations in the aggregated_evaluations table.
type PostgresStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func OpenPostgres(cfg PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*evaluationRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create aggregated_evaluations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, eval contractx.AggregatedEvaluation) error {
	if err := contractx.Validate(eval); err != nil {
		return err
	}

	if _, err := s.upsertQuery(toRow(eval, s.now())).Exec(ctx); err != nil {
		return fmt.Errorf("upsert evaluation %s: %w", eval.ListingID, err)
	}
	return nil
}

func (s *PostgresStore) upsertQuery(row *evaluationRow) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(row).
		On("CONFLICT (listing_id) DO UPDATE").
		Set("overall_score = EXCLUDED.overall_score").
		Set("recommendation = EXCLUDED.recommendation").
		Set("document = EXCLUDED.document").
		Set("updated_at = EXCLUDED.updated_at")
}

func (s *PostgresStore) Load(ctx context.Context, listingID string) (contractx.AggregatedEvaluation, error) {
	row := new(evaluationRow)
	err := s.db.NewSelect().
		Model(row).
		Where("listing_id = ?", strings.TrimSpace(listingID)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.AggregatedEvaluation{}, ErrResultNotFound
	}
	if err != nil {
		return contractx.AggregatedEvaluation{}, fmt.Errorf("select evaluation %s: %w", listingID, err)
	}
	return row.Document, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
