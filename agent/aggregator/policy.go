package aggregator

import (
	"fmt"
	"math"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// Policy weights the three domain scores. When the legal score is strictly
// below LegalThreshold the weighted score is multiplied by LegalPenalty.
type Policy struct {
	EcoWeight      float64 `envconfig:"ECO_WEIGHT" split_words:"true" default:"0.5"`
	LegalWeight    float64 `envconfig:"LEGAL_WEIGHT" split_words:"true" default:"0.3"`
	FinanceWeight  float64 `envconfig:"FINANCE_WEIGHT" split_words:"true" default:"0.2"`
	LegalThreshold float64 `envconfig:"LEGAL_THRESHOLD" split_words:"true" default:"40"`
	LegalPenalty   float64 `envconfig:"LEGAL_PENALTY" split_words:"true" default:"0.5"`
}

func DefaultPolicy() Policy {
	return Policy{
		EcoWeight:      0.5,
		LegalWeight:    0.3,
		FinanceWeight:  0.2,
		LegalThreshold: 40,
		LegalPenalty:   0.5,
	}
}

func (p Policy) Validate() error {
	for name, w := range map[string]float64{"eco": p.EcoWeight, "legal": p.LegalWeight, "finance": p.FinanceWeight} {
		if w < 0 {
			return fmt.Errorf("%w: %s weight must not be negative", contractx.ErrValidation, name)
		}
	}
	if sum := p.EcoWeight + p.LegalWeight + p.FinanceWeight; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights must sum to 1, got %.4f", contractx.ErrValidation, sum)
	}
	if p.LegalPenalty < 0 || p.LegalPenalty > 1 {
		return fmt.Errorf("%w: legal penalty must be within [0,1], got %.4f", contractx.ErrValidation, p.LegalPenalty)
	}
	if p.LegalThreshold < 0 || p.LegalThreshold > 100 {
		return fmt.Errorf("%w: legal threshold must be within [0,100], got %.4f", contractx.ErrValidation, p.LegalThreshold)
	}
	return nil
}

// Penalized reports whether the legal score triggers the penalty.
func (p Policy) Penalized(legal float64) bool {
	return legal < p.LegalThreshold
}

// scorePrecision is the fixed precision products are snapped to before
// rounding, so that 0.5*12 + 0.3*97 + 0.2*72 is exactly 49.5 and rounds up.
const scorePrecision = 1e6

// Score is round(w_e*eco + w_l*legal + w_f*finance), then, when penalized,
// round(score * LegalPenalty). The result is clamped to [0,100].
func (p Policy) Score(eco, legal, finance float64) int {
	score := math.Round(snap(p.EcoWeight*eco + p.LegalWeight*legal + p.FinanceWeight*finance))
	if p.Penalized(legal) {
		score = math.Round(snap(score * p.LegalPenalty))
	}
	return int(math.Max(0, math.Min(100, score)))
}

func snap(x float64) float64 {
	return math.Round(x*scorePrecision) / scorePrecision
}

// Tier maps a final score: >85 highly recommended, 70..85 recommended,
// 50..69 neutral, below 50 not recommended.
func Tier(score int) contractx.Recommendation {
	switch {
	case score > 85:
		return contractx.HighlyRecommended
	case score >= 70:
		return contractx.Recommended
	case score >= 50:
		return contractx.Neutral
	default:
		return contractx.NotRecommended
	}
}
