package estimate

import (
	"strings"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/providers"
)

// occupiedWeeks leaves two weeks of vacancy a year.
const occupiedWeeks = 50

var baseRentByBedrooms = map[int]float64{1: 350, 2: 450, 3: 550, 4: 650, 5: 750, 6: 850}

const defaultBaseRent = 550

// regionRentMultipliers are checked in order against the lowercased region.
var regionRentMultipliers = []struct {
	terms      []string
	multiplier float64
}{
	{[]string{"auckland"}, 1.30},
	{[]string{"wellington"}, 1.15},
	{[]string{"canterbury", "christchurch"}, 1.05},
	{[]string{"bay of plenty", "tauranga"}, 1.10},
	{[]string{"waikato"}, 1.00},
	{[]string{"otago", "queenstown"}, 1.20},
}

const smallRegionMultiplier = 0.90

// Rental estimates weekly rent from bond data and the listing's own rent
// estimate, averaging the two when both exist. bond may be nil.
func Rental(l *listing.Listing, bond *providers.BondData) *listing.RentalEstimate {
	var tenancyRent, marketRent *float64
	samples := 0
	comps := []listing.RentalComp{}
	if bond != nil {
		samples = bond.Samples
		if bond.MedianWeeklyRent > 0 {
			v := round2(bond.MedianWeeklyRent)
			tenancyRent = &v
		}
		for _, c := range bond.Comps {
			comps = append(comps, listing.RentalComp{Location: c.Location, Bedrooms: c.Bedrooms, WeeklyRent: c.WeeklyRent})
		}
	}
	if v, ok := listing.ParseRangeMidpoint(l.EstimatedWeeklyRent); ok && v > 0 {
		marketRent = &v
	}

	var weekly float64
	var source string
	switch {
	case tenancyRent != nil && marketRent != nil:
		weekly = (*tenancyRent + *marketRent) / 2
		source = "tenancy_bond_and_market_estimate"
	case tenancyRent != nil:
		weekly = *tenancyRent
		source = "tenancy_bond"
	case marketRent != nil:
		weekly = *marketRent
		source = "market_estimate"
	default:
		weekly = BedroomRent(l.BedroomsOrDefault(), l.Region)
		source = "bedroom_estimate"
	}

	annual := weekly * occupiedWeeks
	var indicative float64
	if price, ok := l.EffectivePrice(); ok {
		indicative = annual / price * 100
	}

	return &listing.RentalEstimate{
		EstimatedWeeklyRent:       round2(weekly),
		AnnualRent:                round2(annual),
		IndicativeYieldPercentage: round2(indicative),
		BondSamples:               samples,
		MarketEstimate:            marketRent,
		TenancyEstimate:           tenancyRent,
		Source:                    source,
		RentalComps:               comps,
	}
}

// BedroomRent is the last-resort rent table adjusted by region.
func BedroomRent(bedrooms int, region string) float64 {
	base, ok := baseRentByBedrooms[bedrooms]
	if !ok {
		base = defaultBaseRent
	}
	r := strings.ToLower(region)
	for _, m := range regionRentMultipliers {
		if containsAny(r, m.terms) {
			return base * m.multiplier
		}
	}
	return base * smallRegionMultiplier
}
