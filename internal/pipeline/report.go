package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/storage"
)

// Report is the flattened, human-facing view of one analysed listing.
type Report struct {
	ListingID      string           `json:"listing_id"`
	Address        string           `json:"address"`
	ListingURL     string           `json:"listing_url"`
	Verdict        listing.Verdict  `json:"overall_verdict"`
	CompositeScore float64          `json:"composite_score"`
	Rank           *int             `json:"rank"`
	Strategy       ReportStrategy   `json:"recommended_strategy"`
	Flip           ReportFlip       `json:"flip_scenario"`
	Rental         ReportRental     `json:"rental_scenario"`
	Property       ReportProperty   `json:"property"`
	Renovation     ReportRenovation `json:"renovation"`
	Location       ReportLocation   `json:"location"`
	Insurability   ReportInsurance  `json:"insurability"`
	Subdivision    ReportSubdivide  `json:"subdivision"`

	ComparableSales []listing.NearbySale `json:"comparable_sales"`
	RentalComps     []listing.RentalComp `json:"rental_comps"`
	Flags           []string             `json:"flags"`
	ConfidenceLevel string               `json:"confidence_level"`
	NextSteps       []string             `json:"next_steps"`
}

type ReportStrategy struct {
	Strategy       string         `json:"strategy"`
	Reason         string         `json:"reason"`
	PrimaryMetrics PrimaryMetrics `json:"primary_metrics"`
}

type PrimaryMetrics struct {
	FlipROI          float64 `json:"flip_roi"`
	RentalYield      float64 `json:"rental_yield"`
	SubdivisionValue float64 `json:"subdivision_value"`
}

type ReportFlip struct {
	PurchasePrice  float64 `json:"purchase_price"`
	RenovationCost float64 `json:"renovation_cost"`
	ARV            float64 `json:"arv"`
	NetProfit      float64 `json:"net_profit"`
	ROI            float64 `json:"roi"`
	TimelineWeeks  int     `json:"timeline_weeks"`
}

type ReportRental struct {
	GrossYield     float64 `json:"gross_yield"`
	WeeklyRent     float64 `json:"weekly_rent"`
	AnnualCashflow float64 `json:"annual_cashflow"`
	NetYield       float64 `json:"net_yield"`
}

type ReportProperty struct {
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	LandArea     *float64 `json:"land_area"`
	FloorArea    *float64 `json:"floor_area"`
	CapitalValue string   `json:"capital_value"`
}

type ReportRenovation struct {
	Level         listing.RenoLevel `json:"level"`
	EstimatedCost float64           `json:"estimated_cost"`
	TimelineWeeks int               `json:"timeline_weeks"`
	KeyItems      []string          `json:"key_items"`
}

type ReportLocation struct {
	Suburb     string   `json:"suburb"`
	District   string   `json:"district"`
	Region     string   `json:"region"`
	Population *int     `json:"population"`
	GrowthRate *float64 `json:"growth_rate"`
}

type ReportInsurance struct {
	Insurable     bool    `json:"insurable"`
	AnnualPremium float64 `json:"annual_premium"`
	Provider      string  `json:"provider"`
}

type ReportSubdivide struct {
	Potential         bool    `json:"potential"`
	EstimatedValueAdd float64 `json:"estimated_value_add"`
	Costs             float64 `json:"costs"`
	NetValue          float64 `json:"net_value"`
}

// Report builds the property report for a listing. It fails with
// ErrAnalysisNotFound until the listing has been analysed.
func (p *Pipeline) Report(ctx context.Context, id int64) (*Report, error) {
	l, err := p.store.GetListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing %d: %w", id, err)
	}
	a, err := p.store.GetAnalysis(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrAnalysisNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis %d: %w", id, err)
	}
	return BuildReport(l, a), nil
}

// BuildReport flattens a listing and its analysis. Missing sections are
// reported as zero values.
func BuildReport(l *listing.Listing, a *listing.Analysis) *Report {
	r := &Report{
		ListingID:  l.ListingID,
		Address:    l.FullAddress,
		ListingURL: l.PropertyURL,
		Verdict:    a.Verdict,
		Rank:       a.Rank,
		Property: ReportProperty{
			Bedrooms:     l.Bedrooms,
			Bathrooms:    l.Bathrooms,
			LandArea:     l.LandArea,
			FloorArea:    l.FloorArea,
			CapitalValue: l.CapitalValue,
		},
		Location: ReportLocation{
			Suburb:   l.Suburb,
			District: l.District,
			Region:   l.Region,
		},
		Insurability:    ReportInsurance{Insurable: true},
		ComparableSales: []listing.NearbySale{},
		RentalComps:     []listing.RentalComp{},
		Flags:           nonNilStrings(a.Flags),
		ConfidenceLevel: a.ConfidenceLevel,
		NextSteps:       nonNilStrings(a.NextSteps),
	}
	if r.Address == "" {
		r.Address = l.Address
	}
	if r.Verdict == "" {
		r.Verdict = "PENDING"
	}
	if r.ConfidenceLevel == "" {
		r.ConfidenceLevel = "MEDIUM"
	}
	if a.CompositeScore != nil {
		r.CompositeScore = *a.CompositeScore
	}

	if s := a.Strategy; s != nil {
		r.Strategy.Strategy = s.RecommendedStrategy
		r.Strategy.Reason = s.Reason
	}
	if f := a.Flip; f != nil {
		r.Strategy.PrimaryMetrics.FlipROI = f.ROIPercentage
		r.Flip = ReportFlip{
			PurchasePrice:  f.PurchasePrice,
			RenovationCost: f.RenovationCost,
			ARV:            f.ARV,
			NetProfit:      f.NetProfit,
			ROI:            f.ROIPercentage,
			TimelineWeeks:  f.TimelineWeeks,
		}
	}
	if rf := a.Rental; rf != nil {
		r.Strategy.PrimaryMetrics.RentalYield = rf.GrossYieldPercentage
		r.Rental = ReportRental{
			GrossYield:     rf.GrossYieldPercentage,
			WeeklyRent:     rf.WeeklyRent,
			AnnualCashflow: rf.OverallAnnualCashflow,
			NetYield:       rf.NetYieldPercentage,
		}
	}
	if sub := a.Subdivision; sub != nil {
		r.Strategy.PrimaryMetrics.SubdivisionValue = sub.NetValueAdd
		r.Subdivision = ReportSubdivide{
			Potential:         sub.SubdivisionPotential,
			EstimatedValueAdd: sub.EstimatedUplift,
			Costs:             sub.SubdivisionCosts,
			NetValue:          sub.NetValueAdd,
		}
	}
	if reno := a.Renovation; reno != nil {
		r.Renovation.Level = reno.RenovationLevel
		r.Renovation.EstimatedCost = reno.TotalEstimated
		r.Renovation.KeyItems = reno.KeyItems
	}
	if r.Renovation.KeyItems == nil {
		r.Renovation.KeyItems = []string{}
	}
	if a.Timeline != nil {
		r.Renovation.TimelineWeeks = a.Timeline.EstimatedWeeks
	}
	if pop := a.Population; pop != nil {
		r.Location.Population = pop.CurrentPop
		r.Location.GrowthRate = pop.ProjectedGrowth
	}
	if ins := a.Insurability; ins != nil {
		r.Insurability = ReportInsurance{
			Insurable:     ins.Insurable,
			AnnualPremium: ins.AnnualInsurance,
			Provider:      ins.Insurer,
		}
	}
	if a.ARV != nil && a.ARV.ComparableSales != nil {
		r.ComparableSales = a.ARV.ComparableSales
	}
	if a.RentalEstimate != nil && a.RentalEstimate.RentalComps != nil {
		r.RentalComps = a.RentalEstimate.RentalComps
	}
	return r
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
