package estimate

import (
	"strings"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/providers"
)

const (
	defaultAnnualRates = 3000
	waterCharges       = 500
)

// Average annual council rates by district (2024/2025).
var averageRatesByDistrict = map[string]float64{
	"auckland":                       3500,
	"hamilton city":                  3200,
	"hamilton":                       3200,
	"tauranga city":                  3800,
	"tauranga":                       3800,
	"wellington city":                4200,
	"wellington":                     4200,
	"christchurch city":              3000,
	"christchurch":                   3000,
	"dunedin city":                   3400,
	"dunedin":                        3400,
	"palmerston north city":          3100,
	"palmerston north":               3100,
	"napier city":                    3300,
	"napier":                         3300,
	"hastings district":              3000,
	"hastings":                       3000,
	"nelson city":                    3600,
	"nelson":                         3600,
	"new plymouth district":          3200,
	"new plymouth":                   3200,
	"rotorua district":               3400,
	"rotorua":                        3400,
	"whangarei district":             2800,
	"whangarei":                      2800,
	"invercargill city":              2600,
	"invercargill":                   2600,
	"lower hutt city":                3800,
	"lower hutt":                     3800,
	"upper hutt city":                3400,
	"upper hutt":                     3400,
	"porirua city":                   3600,
	"porirua":                        3600,
	"kapiti coast district":          3500,
	"kapiti coast":                   3500,
	"waikato district":               2800,
	"waikato":                        2800,
	"waipa district":                 3000,
	"waipa":                          3000,
	"selwyn district":                2800,
	"selwyn":                         2800,
	"waimakariri district":           2600,
	"waimakariri":                    2600,
	"queenstown-lakes district":      4000,
	"queenstown-lakes":               4000,
	"far north district":             2400,
	"far north":                      2400,
	"western bay of plenty district": 3200,
	"western bay of plenty":          3200,
}

// CouncilCosts uses a provider rates quote when available and the district
// average otherwise.
func CouncilCosts(district string, quote *providers.RatesQuote) *listing.CouncilRates {
	if quote != nil && quote.AnnualRates > 0 {
		water := quote.WaterCharges
		if water <= 0 {
			water = waterCharges
		}
		return &listing.CouncilRates{
			AnnualRates:       round2(quote.AnnualRates),
			WaterCharges:      water,
			TotalCouncilCosts: round2(quote.AnnualRates + water),
			Source:            "council_api",
			District:          district,
		}
	}

	rates, ok := averageRatesByDistrict[strings.ToLower(strings.TrimSpace(district))]
	if !ok {
		rates = defaultAnnualRates
	}
	return &listing.CouncilRates{
		AnnualRates:       rates,
		WaterCharges:      waterCharges,
		TotalCouncilCosts: rates + waterCharges,
		Source:            "district_average",
		District:          district,
	}
}
