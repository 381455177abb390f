package estimate

import (
	"math"
	"sort"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/providers"
)

const (
	minCompPrice       = 50000
	largeSectionArea   = 800
	largeSectionBonus  = 20000
	upperQuartileShare = 0.6
	medianShare        = 0.4
	estimateUplift     = 1.15
	askingUplift       = 1.2
	maxKeptComps       = 5
)

// ARV estimates the after-repair value. Comparable sales are blended towards
// the upper quartile; without comparables the market estimate, then the
// asking price, are uplifted instead.
func ARV(l *listing.Listing) *listing.ARVEstimate {
	var comps []listing.NearbySale
	var prices []float64
	for _, c := range l.NearbyProperties {
		if c.PriceNumeric > minCompPrice {
			comps = append(comps, c)
			prices = append(prices, c.PriceNumeric)
		}
	}

	var marketEstimate *float64
	if v, ok := listing.ParseRangeMidpoint(l.EstimatedMarketPrice); ok && v > 0 {
		marketEstimate = &v
	}

	if len(prices) > 0 {
		sorted := append([]float64(nil), prices...)
		sort.Float64s(sorted)
		median := providers.Median(sorted)
		avg := mean(sorted)
		upper := sorted[len(sorted)*3/4]

		arv := upper*upperQuartileShare + median*medianShare
		if l.LandArea != nil && *l.LandArea > largeSectionArea {
			arv += largeSectionBonus
		}

		kept := comps
		if len(kept) > maxKeptComps {
			kept = kept[:maxKeptComps]
		}
		return &listing.ARVEstimate{
			EstimatedARV:       round0(arv),
			MedianCompPrice:    listing.Float64(round0(median)),
			AvgCompPrice:       listing.Float64(round0(avg)),
			UpperQuartilePrice: listing.Float64(round0(upper)),
			ComparablesUsed:    len(comps),
			ConfidenceScore:    arvConfidence(prices, marketEstimate != nil),
			MarketEstimate:     marketEstimate,
			ComparableSales:    kept,
			Source:             "nearby_comparables",
		}
	}

	if marketEstimate != nil {
		return &listing.ARVEstimate{
			EstimatedARV:    round0(*marketEstimate * estimateUplift),
			ConfidenceScore: 30,
			MarketEstimate:  marketEstimate,
			ComparableSales: []listing.NearbySale{},
			Source:          "market_estimate_with_uplift",
		}
	}

	if price, ok := l.EffectivePrice(); ok {
		return &listing.ARVEstimate{
			EstimatedARV:    round0(price * askingUplift),
			ConfidenceScore: 10,
			ComparableSales: []listing.NearbySale{},
			Source:          "asking_price_estimate",
		}
	}
	return &listing.ARVEstimate{
		ConfidenceScore: 10,
		ComparableSales: []listing.NearbySale{},
		Source:          "none",
	}
}

// arvConfidence scores 0..100 from comparable count, price dispersion and
// the presence of a market estimate.
func arvConfidence(prices []float64, hasEstimate bool) float64 {
	var score float64
	switch n := len(prices); {
	case n >= 8:
		score += 40
	case n >= 5:
		score += 30
	case n >= 3:
		score += 20
	case n >= 1:
		score += 10
	}

	if len(prices) >= 2 {
		avg := mean(prices)
		cv := 1.0
		if avg > 0 {
			var variance float64
			for _, p := range prices {
				variance += (p - avg) * (p - avg)
			}
			variance /= float64(len(prices))
			cv = math.Sqrt(variance) / avg
		}
		switch {
		case cv < 0.1:
			score += 30
		case cv < 0.2:
			score += 20
		case cv < 0.3:
			score += 10
		}
	}

	if hasEstimate {
		score += 15
	}
	score += 15
	return math.Min(100, score)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
