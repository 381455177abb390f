// Package finance models the two exit strategies for a purchase: renovate and
// resell (flip) and renovate and hold (rental). Both are simplified models,
// not tax advice.
package finance

import (
	"math"

	"github.com/kalambet/propeval/internal/listing"
)

const (
	DefaultRenovation      = 60000
	DefaultTimelineWeeks   = 8
	DefaultAnnualRates     = 3000
	DefaultAnnualInsurance = 2000

	purchaseCosts = 5000
)

// Inputs are the figures both models read. Build them with FromAnalysis so
// the documented defaults apply to missing estimates.
type Inputs struct {
	PurchasePrice   float64
	RenovationCost  float64
	ARV             float64
	TimelineWeeks   int
	AnnualRates     float64
	WeeklyRent      float64
	AnnualInsurance float64

	// InterestRate overrides the model's default rate when set.
	InterestRate *float64
}

// FromAnalysis collects model inputs from the enrichment results, using the
// defaults where an estimate is missing.
func FromAnalysis(price float64, a *listing.Analysis) Inputs {
	in := Inputs{
		PurchasePrice:   price,
		RenovationCost:  DefaultRenovation,
		TimelineWeeks:   DefaultTimelineWeeks,
		AnnualRates:     DefaultAnnualRates,
		AnnualInsurance: DefaultAnnualInsurance,
	}
	if a == nil {
		return in
	}
	if a.Renovation != nil {
		in.RenovationCost = a.Renovation.TotalEstimated
	}
	if a.ARV != nil {
		in.ARV = a.ARV.EstimatedARV
	}
	if a.Timeline != nil {
		in.TimelineWeeks = a.Timeline.EstimatedWeeks
	}
	if a.CouncilRates != nil {
		in.AnnualRates = a.CouncilRates.AnnualRates
	}
	if a.RentalEstimate != nil {
		in.WeeklyRent = a.RentalEstimate.EstimatedWeeklyRent
	}
	if a.Insurability != nil {
		in.AnnualInsurance = a.Insurability.AnnualInsurance
	}
	return in
}

func (in Inputs) rate(def float64) float64 {
	if in.InterestRate != nil {
		return *in.InterestRate
	}
	return def
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
