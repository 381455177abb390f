package listing

import (
	"fmt"
	"time"
)

// PortfolioStatus is where a tracked deal stands.
type PortfolioStatus string

const (
	PortfolioWatching   PortfolioStatus = "watching"
	PortfolioOffered    PortfolioStatus = "offered"
	PortfolioPurchased  PortfolioStatus = "purchased"
	PortfolioRenovating PortfolioStatus = "renovating"
	PortfolioSelling    PortfolioStatus = "selling"
	PortfolioRenting    PortfolioStatus = "renting"
	PortfolioSold       PortfolioStatus = "sold"
)

var portfolioStatuses = map[PortfolioStatus]bool{
	PortfolioWatching:   true,
	PortfolioOffered:    true,
	PortfolioPurchased:  true,
	PortfolioRenovating: true,
	PortfolioSelling:    true,
	PortfolioRenting:    true,
	PortfolioSold:       true,
}

// ParsePortfolioStatus validates s. The empty string means watching.
func ParsePortfolioStatus(s string) (PortfolioStatus, error) {
	if s == "" {
		return PortfolioWatching, nil
	}
	st := PortfolioStatus(s)
	if !portfolioStatuses[st] {
		return "", fmt.Errorf("unknown portfolio status %q", s)
	}
	return st, nil
}

// PortfolioEntry tracks a listing the user is pursuing. Projected figures
// are copied from the analysis when the entry is created; actual figures
// are filled in as the deal progresses.
type PortfolioEntry struct {
	ID        int64           `json:"id"`
	ListingID int64           `json:"listing_id"`
	Status    PortfolioStatus `json:"status"`

	PurchasePrice    *float64 `json:"purchase_price"`
	ActualRenoCost   *float64 `json:"actual_reno_cost"`
	ActualSalePrice  *float64 `json:"actual_sale_price"`
	ActualWeeklyRent *float64 `json:"actual_weekly_rent"`

	ProjectedRenoCost   *float64 `json:"projected_reno_cost"`
	ProjectedARV        *float64 `json:"projected_arv"`
	ProjectedWeeklyRent *float64 `json:"projected_weekly_rent"`
	ProjectedROI        *float64 `json:"projected_roi"`

	// RenoCostVariance is actual minus projected renovation cost, set
	// when both are known.
	RenoCostVariance *float64 `json:"reno_cost_variance"`

	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project copies the projected figures from a. A nil analysis or missing
// sub-document leaves the matching projection empty.
func (e *PortfolioEntry) Project(a *Analysis) {
	if a == nil {
		return
	}
	if a.Renovation != nil {
		e.ProjectedRenoCost = Float64(a.Renovation.TotalEstimated)
	}
	if a.ARV != nil {
		e.ProjectedARV = Float64(a.ARV.EstimatedARV)
	}
	if a.RentalEstimate != nil {
		e.ProjectedWeeklyRent = Float64(a.RentalEstimate.EstimatedWeeklyRent)
	}
	if a.Flip != nil {
		e.ProjectedROI = Float64(a.Flip.ROIPercentage)
	}
}

// Compare fills the variance fields from the actual and projected figures.
func (e *PortfolioEntry) Compare() {
	e.RenoCostVariance = nil
	if e.ActualRenoCost != nil && e.ProjectedRenoCost != nil {
		e.RenoCostVariance = Float64(*e.ActualRenoCost - *e.ProjectedRenoCost)
	}
}

// PortfolioUpdate is a partial update; nil fields are left unchanged.
type PortfolioUpdate struct {
	Status           *PortfolioStatus `json:"status"`
	PurchasePrice    *float64         `json:"purchase_price"`
	ActualRenoCost   *float64         `json:"actual_reno_cost"`
	ActualSalePrice  *float64         `json:"actual_sale_price"`
	ActualWeeklyRent *float64         `json:"actual_weekly_rent"`
	Notes            *string          `json:"notes"`
}

// Apply writes the set fields of u onto e.
func (u PortfolioUpdate) Apply(e *PortfolioEntry) {
	if u.Status != nil {
		e.Status = *u.Status
	}
	if u.PurchasePrice != nil {
		e.PurchasePrice = u.PurchasePrice
	}
	if u.ActualRenoCost != nil {
		e.ActualRenoCost = u.ActualRenoCost
	}
	if u.ActualSalePrice != nil {
		e.ActualSalePrice = u.ActualSalePrice
	}
	if u.ActualWeeklyRent != nil {
		e.ActualWeeklyRent = u.ActualWeeklyRent
	}
	if u.Notes != nil {
		e.Notes = *u.Notes
	}
}
