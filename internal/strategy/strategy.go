// Package strategy arbitrates between flipping, holding as a rental and
// passing on a listing.
package strategy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kalambet/propeval/internal/listing"
)

type RiskTolerance string

const (
	RiskLow      RiskTolerance = "LOW"
	RiskModerate RiskTolerance = "MODERATE"
	RiskHigh     RiskTolerance = "HIGH"
)

type MarketTrend string

const (
	TrendHeating MarketTrend = "HEATING"
	TrendStable  MarketTrend = "STABLE"
	TrendCooling MarketTrend = "COOLING"
)

const (
	Flip   = "FLIP"
	Rental = "RENTAL"
	Pass   = "PASS"

	SubdivisionSuffix = "_WITH_SUBDIVISION"
)

// ParseRiskTolerance maps free text to a tier, defaulting to MODERATE.
func ParseRiskTolerance(s string) RiskTolerance {
	switch r := RiskTolerance(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskHigh:
		return r
	}
	return RiskModerate
}

// ParseMarketTrend maps free text to a trend. Unknown input means no signal.
func ParseMarketTrend(s string) MarketTrend {
	switch t := MarketTrend(strings.ToUpper(strings.TrimSpace(s))); t {
	case TrendHeating, TrendStable, TrendCooling:
		return t
	}
	return ""
}

type Options struct {
	RiskTolerance RiskTolerance
	MarketTrend   MarketTrend
}

// Thresholds are the percentage targets a strategy must meet.
type Thresholds struct {
	FlipROI     float64
	RentalYield float64
	FavorsFlip  bool
}

// ThresholdsFor applies the risk tier and then the market nudge.
func ThresholdsFor(opts Options) Thresholds {
	th := Thresholds{FlipROI: 15, RentalYield: 9, FavorsFlip: true}
	switch opts.RiskTolerance {
	case RiskLow:
		th.FlipROI, th.RentalYield = 18, 10
	case RiskHigh:
		th.FlipROI, th.RentalYield = 12, 8
	}
	switch opts.MarketTrend {
	case TrendCooling:
		th.FavorsFlip = false
		th.RentalYield -= 0.5
	case TrendHeating:
		th.FlipROI -= 1
	}
	return th
}

// flipDominance is how far flip ROI must exceed rental yield to win when
// both qualify.
const flipDominance = 1.5

// Decide picks a strategy from the two financial models. Either model may be
// nil, which reads as zero.
func Decide(flip *listing.FlipFinancials, rental *listing.RentalFinancials, sub *listing.SubdivisionAnalysis, opts Options) *listing.StrategyDecision {
	if opts.RiskTolerance == "" {
		opts.RiskTolerance = RiskModerate
	}
	var roi, yield float64
	var weeks int
	if flip != nil {
		roi, weeks = flip.ROIPercentage, flip.TimelineWeeks
	}
	if rental != nil {
		yield = rental.GrossYieldPercentage
	}

	th := ThresholdsFor(opts)
	var label, reason string
	switch {
	case roi >= th.FlipROI && yield >= th.RentalYield:
		if roi > yield*flipDominance && th.FavorsFlip {
			label = Flip
			reason = fmt.Sprintf("Higher ROI: %.1f%% vs %.1f%% yield", roi, yield)
		} else {
			label = Rental
			reason = fmt.Sprintf("Good rental yield %.1f%% with lower risk & flexibility", yield)
		}
	case roi >= th.FlipROI:
		if th.FavorsFlip {
			label = Flip
			reason = fmt.Sprintf("ROI %.1f%% meets target, yield %.1f%% below %s%%", roi, yield, pct(th.RentalYield))
		} else {
			label = Pass
			reason = fmt.Sprintf("ROI %.1f%% meets target but cooling market increases flip risk", roi)
		}
	case yield >= th.RentalYield:
		label = Rental
		reason = fmt.Sprintf("Rental yield %.1f%% meets target (safer strategy); flip ROI %.1f%% below %s%%", yield, roi, pct(th.FlipROI))
	default:
		label = Pass
		reason = fmt.Sprintf("Neither strategy meets targets (Flip: %.1f%% < %s%%, Rental: %.1f%% < %s%%)",
			roi, pct(th.FlipROI), yield, pct(th.RentalYield))
	}

	var bonus float64
	if sub != nil {
		bonus = sub.NetValueAdd
	}
	if sub.Viable() {
		label += SubdivisionSuffix
		reason += " | Subdivision adds ~$" + humanize.Comma(int64(math.Round(bonus)))
	}

	return &listing.StrategyDecision{
		RecommendedStrategy: label,
		Reason:              reason,
		FlipROI:             round2(roi),
		RentalYield:         round2(yield),
		SubdivisionBonus:    bonus,
		RiskTolerance:       string(opts.RiskTolerance),
		MarketTrend:         string(opts.MarketTrend),
		RiskAssessment:      Risks(roi, yield, weeks),
	}
}

// Risks lists the weaknesses of the deal, or a single all-clear note.
func Risks(roi, yield float64, weeks int) []string {
	var risks []string
	if weeks > 12 {
		risks = append(risks, "Extended renovation timeline increases holding costs")
	}
	if roi > 0 && roi < 20 {
		risks = append(risks, "Moderate flip ROI leaves less margin for unexpected costs")
	}
	if yield > 0 && yield < 8 {
		risks = append(risks, "Rental yield below ideal for strong cash flow")
	}
	if len(risks) == 0 {
		return []string{"Low risk: strong fundamentals"}
	}
	return risks
}

// IsPass reports whether label is a bare PASS with no subdivision upside.
func IsPass(label string) bool {
	return label == Pass
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
