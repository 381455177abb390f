package estimate

import (
	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/providers"
)

const (
	defaultInsuredFloor = 120
	premiumPerSqm       = 17
	minPremium          = 1500
	maxPremium          = 5000
)

// Insurability wraps an insurer quote. Without one the premium is estimated
// from floor area.
func Insurability(l *listing.Listing, quote *providers.InsuranceQuote) *listing.Insurability {
	if quote != nil {
		return &listing.Insurability{
			Insurable:       quote.Insurable,
			AnnualInsurance: round2(quote.AnnualInsurance),
			Insurer:         quote.Insurer,
			Source:          "insurer_api",
			Note:            quote.Note,
		}
	}
	floor := float64(defaultInsuredFloor)
	if l.FloorArea != nil && *l.FloorArea > 0 {
		floor = *l.FloorArea
	}
	return &listing.Insurability{
		Insurable:       true,
		AnnualInsurance: round2(InsurancePremium(floor)),
		Insurer:         "Estimated",
		Source:          "estimate",
		Note:            "Configure an insurance provider for real quotes",
	}
}

// InsurancePremium estimates an annual premium at $17/m², loaded for large
// homes and discounted for small ones, within [1500, 5000].
func InsurancePremium(floorArea float64) float64 {
	premium := floorArea * premiumPerSqm
	if floorArea > 200 {
		premium *= 1.1
	}
	if floorArea < 80 {
		premium *= 0.9
	}
	return clamp(premium, minPremium, maxPremium)
}
