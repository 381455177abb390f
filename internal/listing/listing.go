// Package listing holds the listing facts and the typed per-stage analysis
// documents that flow through the evaluation pipeline.
package listing

import (
	"strings"
	"time"
)

type FilterStatus string

const (
	FilterPending  FilterStatus = "pending"
	FilterPassed   FilterStatus = "passed"
	FilterRejected FilterStatus = "rejected"
)

type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisInProgress AnalysisStatus = "in_progress"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// Listing is a property listing as imported from the scraper. Facts are set
// at import time; only the two status fields and the rejection reason are
// written by the pipeline.
type Listing struct {
	ID        int64  `json:"id"`
	ListingID string `json:"listing_id"`

	Title              string `json:"title"`
	Address            string `json:"address"`
	FullAddress        string `json:"full_address"`
	Suburb             string `json:"suburb"`
	District           string `json:"district"`
	Region             string `json:"region"`
	GeographicLocation string `json:"geographic_location"`

	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	LandArea     *float64 `json:"land_area"`
	FloorArea    *float64 `json:"floor_area"`
	CapitalValue string   `json:"capital_value"`
	PropertyType string   `json:"property_type"`
	TitleType    string   `json:"title_type"`

	DisplayPrice         string   `json:"display_price"`
	AskingPrice          *float64 `json:"asking_price"`
	EstimatedMarketPrice string   `json:"estimated_market_price"`
	EstimatedWeeklyRent  string   `json:"estimated_weekly_rent"`

	Description      string       `json:"description"`
	PropertyURL      string       `json:"property_url"`
	Photos           []string     `json:"photos"`
	NearbyProperties []NearbySale `json:"nearby_properties"`
	ListingDate      *time.Time   `json:"listing_date,omitempty"`

	FilterStatus          FilterStatus   `json:"filter_status"`
	FilterRejectionReason string         `json:"filter_rejection_reason"`
	AnalysisStatus        AnalysisStatus `json:"analysis_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NearbySale is a comparable sale snippet attached to a listing.
type NearbySale struct {
	Address      string  `json:"address"`
	Price        string  `json:"price,omitempty"`
	PriceNumeric float64 `json:"price_numeric"`
	Bedrooms     int     `json:"bedrooms,omitempty"`
	LandArea     float64 `json:"land_area,omitempty"`
	SoldDate     string  `json:"sold_date,omitempty"`
}

const defaultBedrooms = 3

// BedroomsOrDefault returns the bedroom count, or 3 when unknown.
func (l *Listing) BedroomsOrDefault() int {
	if l.Bedrooms == nil || *l.Bedrooms <= 0 {
		return defaultBedrooms
	}
	return *l.Bedrooms
}

// Label is the best human identifier for logs and status messages.
func (l *Listing) Label() string {
	if l.Address != "" {
		return l.Address
	}
	return l.ListingID
}

// Area returns the district, falling back to the region.
func (l *Listing) Area() string {
	if d := strings.TrimSpace(l.District); d != "" {
		return d
	}
	return strings.TrimSpace(l.Region)
}

// EffectivePrice resolves a purchase price via the fallback order asking
// price, capital value, market-estimate midpoint, display price. The second
// return value is false when no positive price could be determined.
func (l *Listing) EffectivePrice() (float64, bool) {
	if l.AskingPrice != nil && *l.AskingPrice > 0 {
		return *l.AskingPrice, true
	}
	if v, ok := ParsePrice(l.CapitalValue); ok {
		return v, true
	}
	if v, ok := ParseRangeMidpoint(l.EstimatedMarketPrice); ok && v > 0 {
		return v, true
	}
	if v, ok := ParsePrice(l.DisplayPrice); ok {
		return v, true
	}
	return 0, false
}

// Float64 and Int return pointers to v. They keep fixture code short.
func Float64(v float64) *float64 { return &v }
func Int(v int) *int             { return &v }
