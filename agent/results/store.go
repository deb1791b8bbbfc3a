package results

import (
	"context"
	"errors"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

var ErrResultNotFound = errors.New("evaluation result not found")

// Store persists one AggregatedEvaluation per listing. Saving again replaces
// the previous evaluation of that listing.
type Store interface {
	Save(ctx context.Context, eval contractx.AggregatedEvaluation) error
	Load(ctx context.Context, listingID string) (contractx.AggregatedEvaluation, error)
}
