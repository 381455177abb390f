// Package providers declares the contracts for the external data sources the
// estimators consume, the shared provider error taxonomy, and the tenancy and
// insurance clients.
package providers

import "context"

// Zoning is a council zoning answer for one property.
type Zoning struct {
	Zoning     string  `json:"zoning"`
	MinLotSize float64 `json:"min_lot_size"`
	Source     string  `json:"source"`
}

// ZoningQuery identifies the property to look up.
type ZoningQuery struct {
	Address            string
	FullAddress        string
	Suburb             string
	District           string
	Region             string
	GeographicLocation string
}

type ZoningProvider interface {
	Zoning(ctx context.Context, q ZoningQuery) (Zoning, error)
}

// RatesQuote is a property-specific annual council rates figure.
type RatesQuote struct {
	AnnualRates  float64
	WaterCharges float64
}

type RatesProvider interface {
	Rates(ctx context.Context, address, district string) (RatesQuote, error)
}

// BondData is a tenancy bond lodgement summary for an area.
type BondData struct {
	MedianWeeklyRent float64
	Samples          int
	Comps            []BondComp
	Source           string
}

type BondComp struct {
	Location   string  `json:"location"`
	Bedrooms   int     `json:"bedrooms"`
	WeeklyRent float64 `json:"weekly_rent"`
}

type TenancyQuery struct {
	Suburb       string
	District     string
	Region       string
	Bedrooms     int
	PropertyType string
}

type TenancyProvider interface {
	Bonds(ctx context.Context, q TenancyQuery) (BondData, error)
}

// InsuranceQuote is an annual premium offer.
type InsuranceQuote struct {
	Insurable       bool    `json:"insurable"`
	AnnualInsurance float64 `json:"annual_insurance"`
	Insurer         string  `json:"insurer"`
	Note            string  `json:"note,omitempty"`
}

type InsuranceQuery struct {
	Address      string
	Bedrooms     int
	Bathrooms    int
	FloorArea    float64
	LandArea     float64
	PropertyType string
}

type InsuranceProvider interface {
	Quote(ctx context.Context, q InsuranceQuery) (InsuranceQuote, error)
}

// Geocoder resolves free-text addresses to WGS84 coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, err error)
}
