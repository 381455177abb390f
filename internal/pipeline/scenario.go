package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/propeval/internal/finance"
	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/storage"
	"github.com/kalambet/propeval/internal/strategy"
)

// scenarioSaleUplift is the ARV assumed when nothing better is stored.
const scenarioSaleUplift = 1.3

// ScenarioOverrides replace individual model inputs. A nil or non-positive
// value keeps the stored or default figure.
type ScenarioOverrides struct {
	PurchasePrice    *float64 `json:"purchase_price,omitempty"`
	RenovationBudget *float64 `json:"renovation_budget,omitempty"`
	SalePrice        *float64 `json:"sale_price,omitempty"`
	WeeklyRent       *float64 `json:"weekly_rent,omitempty"`
	InterestRate     *float64 `json:"interest_rate,omitempty"`
	TimelineWeeks    *int     `json:"timeline_weeks,omitempty"`
}

// ScenarioResult is a what-if recompute. Nothing is persisted.
type ScenarioResult struct {
	ListingID int64                     `json:"listing_id"`
	Inputs    ScenarioInputs            `json:"inputs"`
	Flip      *listing.FlipFinancials   `json:"flip_financials"`
	Rental    *listing.RentalFinancials `json:"rental_financials"`
	Strategy  *listing.StrategyDecision `json:"strategy_decision"`
}

// ScenarioInputs echoes the figures the models were run with.
type ScenarioInputs struct {
	PurchasePrice    float64  `json:"purchase_price"`
	RenovationBudget float64  `json:"renovation_budget"`
	SalePrice        float64  `json:"sale_price"`
	WeeklyRent       float64  `json:"weekly_rent"`
	TimelineWeeks    int      `json:"timeline_weeks"`
	AnnualRates      float64  `json:"annual_rates"`
	AnnualInsurance  float64  `json:"annual_insurance"`
	InterestRate     *float64 `json:"interest_rate,omitempty"`
}

// Scenario reruns the financial models and strategy arbitration for a
// listing with some inputs overridden. Enrichment is not repeated: stored
// estimates are used where present.
func (p *Pipeline) Scenario(ctx context.Context, id int64, o ScenarioOverrides) (*ScenarioResult, error) {
	l, err := p.store.GetListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing %d: %w", id, err)
	}
	a, err := p.store.GetAnalysis(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading analysis %d: %w", id, err)
	}

	price, _ := l.EffectivePrice()
	if v, ok := positive(o.PurchasePrice); ok {
		price = v
	}
	in := finance.FromAnalysis(price, a)
	if in.ARV <= 0 {
		in.ARV = price * scenarioSaleUplift
	}
	if v, ok := positive(o.RenovationBudget); ok {
		in.RenovationCost = v
	}
	if v, ok := positive(o.SalePrice); ok {
		in.ARV = v
	}
	if v, ok := positive(o.WeeklyRent); ok {
		in.WeeklyRent = v
	}
	if o.TimelineWeeks != nil && *o.TimelineWeeks > 0 {
		in.TimelineWeeks = *o.TimelineWeeks
	}
	if v, ok := positive(o.InterestRate); ok {
		in.InterestRate = &v
	}

	var sub *listing.SubdivisionAnalysis
	if a != nil {
		sub = a.Subdivision
	}
	flip := finance.Flip(in)
	rental := finance.Rental(in)
	return &ScenarioResult{
		ListingID: id,
		Inputs: ScenarioInputs{
			PurchasePrice:    in.PurchasePrice,
			RenovationBudget: in.RenovationCost,
			SalePrice:        in.ARV,
			WeeklyRent:       in.WeeklyRent,
			TimelineWeeks:    in.TimelineWeeks,
			AnnualRates:      in.AnnualRates,
			AnnualInsurance:  in.AnnualInsurance,
			InterestRate:     in.InterestRate,
		},
		Flip:     flip,
		Rental:   rental,
		Strategy: strategy.Decide(flip, rental, sub, p.cfg.Strategy),
	}, nil
}

func positive(v *float64) (float64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}
