// Package scoring folds every stage's output into one weighted 0-100 score,
// a verdict, diagnostic flags and suggested next steps.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/strategy"
)

// Weights sum to 1.
type Weights struct {
	ROI          float64
	Timeline     float64
	Confidence   float64
	Subdivision  float64
	Location     float64
	Insurability float64
}

var DefaultWeights = Weights{
	ROI:          0.40,
	Timeline:     0.15,
	Confidence:   0.15,
	Subdivision:  0.15,
	Location:     0.10,
	Insurability: 0.05,
}

// Weighted returns the weighted sum of the component scores.
func (w Weights) Weighted(c listing.ComponentScores) float64 {
	return c.ROI*w.ROI +
		c.Timeline*w.Timeline +
		c.Confidence*w.Confidence +
		c.Subdivision*w.Subdivision +
		c.Location*w.Location +
		c.Insurability*w.Insurability
}

const (
	strongBuyScore = 75
	buyScore       = 55
	maybeScore     = 35
	passOverride   = 40

	targetWeeks            = 8
	defaultARVConfidence   = 50
	defaultGrowth          = 0.02
	defaultPremium         = 2000
	flipROIForFullScore    = 30
	rentalYieldForFullMark = 15
	subdivisionReference   = 100000
	highPremium            = 3500
	lowConfidence          = 40
	sparseComparables      = 3
	maxConcernsInFlag      = 3
)

// Result is the scorer's output for one listing.
type Result struct {
	Composite       float64
	Components      listing.ComponentScores
	Verdict         listing.Verdict
	Flags           []string
	NextSteps       []string
	ConfidenceLevel string
}

// Score rates an analysis whose strategy decision has been made. Missing
// sub-documents read as their documented defaults.
func Score(a *listing.Analysis) Result {
	raw := components(a)
	// The verdict bands apply to the stored one-decimal score.
	composite := round1(DefaultWeights.Weighted(raw))

	recommended := strategy.Pass
	if a.Strategy != nil {
		recommended = a.Strategy.RecommendedStrategy
	}
	verdict := VerdictFor(composite, recommended)

	rounded := listing.ComponentScores{
		ROI:          round1(raw.ROI),
		Timeline:     round1(raw.Timeline),
		Confidence:   round1(raw.Confidence),
		Subdivision:  round1(raw.Subdivision),
		Location:     round1(raw.Location),
		Insurability: round1(raw.Insurability),
	}

	return Result{
		Composite:       composite,
		Components:      rounded,
		Verdict:         verdict,
		Flags:           Flags(a, rounded),
		NextSteps:       NextSteps(verdict, a),
		ConfidenceLevel: confidenceLevel(raw.Confidence),
	}
}

func components(a *listing.Analysis) listing.ComponentScores {
	var roi, yield float64
	if a.Flip != nil {
		roi = a.Flip.ROIPercentage
	}
	if a.Rental != nil {
		yield = a.Rental.GrossYieldPercentage
	}
	recommended := strategy.Pass
	if a.Strategy != nil {
		recommended = a.Strategy.RecommendedStrategy
	}

	flipScore := clamp(roi / flipROIForFullScore * 100)
	rentalScore := clamp(yield / rentalYieldForFullMark * 100)
	var roiScore float64
	switch {
	case strings.Contains(recommended, strategy.Flip):
		roiScore = flipScore
	case strings.Contains(recommended, strategy.Rental):
		roiScore = rentalScore
	default:
		roiScore = math.Max(flipScore, rentalScore)
	}

	weeks := targetWeeks
	if a.Timeline != nil {
		weeks = a.Timeline.EstimatedWeeks
	}

	arvConfidence := float64(defaultARVConfidence)
	if a.ARV != nil {
		arvConfidence = a.ARV.ConfidenceScore
	}
	var samples int
	if a.RentalEstimate != nil {
		samples = a.RentalEstimate.BondSamples
	}
	confidence := (arvConfidence + math.Min(100, float64(samples*5))) / 2

	var subdivision float64
	if a.Subdivision != nil && a.Subdivision.SubdivisionPotential {
		subdivision = clamp(a.Subdivision.NetValueAdd / subdivisionReference * 100)
	}

	growth := defaultGrowth
	if a.Population != nil && a.Population.ProjectedGrowth != nil && *a.Population.ProjectedGrowth != 0 {
		growth = *a.Population.ProjectedGrowth
	}

	insurability := 100 - defaultPremium/30.0
	if a.Insurability != nil {
		if !a.Insurability.Insurable {
			insurability = 0
		} else {
			insurability = math.Max(0, 100-a.Insurability.AnnualInsurance/30)
		}
	}

	return listing.ComponentScores{
		ROI:          roiScore,
		Timeline:     TimelineScore(weeks),
		Confidence:   confidence,
		Subdivision:  subdivision,
		Location:     clamp((growth + 0.05) * 500),
		Insurability: insurability,
	}
}

// TimelineScore is 100 up to the target, then loses 5 points a week to week
// 16 and 3 points a week after that.
func TimelineScore(weeks int) float64 {
	switch {
	case weeks <= targetWeeks:
		return 100
	case weeks <= 16:
		return float64(100 - (weeks-targetWeeks)*5)
	default:
		return math.Max(0, float64(60-(weeks-16)*3))
	}
}

// VerdictFor bands the composite score. A bare PASS strategy below 40 is
// always PASS.
func VerdictFor(composite float64, recommended string) listing.Verdict {
	if strategy.IsPass(recommended) && composite < passOverride {
		return listing.VerdictPass
	}
	switch {
	case composite >= strongBuyScore:
		return listing.VerdictStrongBuy
	case composite >= buyScore:
		return listing.VerdictBuy
	case composite >= maybeScore:
		return listing.VerdictMaybe
	default:
		return listing.VerdictPass
	}
}

// Flags lists the diagnostic warnings for a scored analysis.
func Flags(a *listing.Analysis, scores listing.ComponentScores) []string {
	flags := []string{}
	if a.Timeline != nil && a.Timeline.EstimatedWeeks > targetWeeks {
		flags = append(flags, fmt.Sprintf("Timeline exceeds 8 week target (%d weeks)", a.Timeline.EstimatedWeeks))
	}
	if scores.Confidence < lowConfidence {
		flags = append(flags, "Low confidence - limited comparable data")
	}
	if a.ARV != nil && a.ARV.ComparablesUsed > 0 && a.ARV.ComparablesUsed < sparseComparables {
		flags = append(flags, fmt.Sprintf("Limited comparable sales (only %d in area)", a.ARV.ComparablesUsed))
	}
	if a.Insurability != nil {
		if !a.Insurability.Insurable {
			flags = append(flags, "Property may be uninsurable")
		}
		if a.Insurability.AnnualInsurance > highPremium {
			flags = append(flags, fmt.Sprintf("High insurance premium ($%s/year)", humanize.Comma(int64(math.Round(a.Insurability.AnnualInsurance)))))
		}
	}
	if img := a.ImageAnalysis; img != nil {
		if concerns := img.StructuralConcerns; len(concerns) > 0 {
			if len(concerns) > maxConcernsInFlag {
				concerns = concerns[:maxConcernsInFlag]
			}
			flags = append(flags, "Structural concerns detected: "+strings.Join(concerns, ", "))
		}
		if img.OverallRenoLevel.Heavy() {
			flags = append(flags, fmt.Sprintf("Significant renovation required (%s)", img.OverallRenoLevel))
		}
	}
	return flags
}

// NextSteps is the checklist for a verdict tier.
func NextSteps(v listing.Verdict, a *listing.Analysis) []string {
	switch v {
	case listing.VerdictStrongBuy, listing.VerdictBuy:
		steps := []string{
			"Request building report",
			"Get property manager rental appraisal",
			"View property in person",
		}
		if a.Subdivision != nil && a.Subdivision.SubdivisionPotential {
			steps = append(steps, "Check council for subdivision feasibility")
		}
		if a.ARV != nil && a.ARV.ConfidenceScore < defaultARVConfidence {
			steps = append(steps, "Get independent valuation for ARV confidence")
		}
		return append(steps, "Review title and LIM report", "Prepare offer strategy")
	case listing.VerdictMaybe:
		return []string{
			"Monitor listing for price reduction",
			"View property if time permits",
			"Research area further",
		}
	default:
		return []string{"Skip - does not meet investment criteria"}
	}
}

func confidenceLevel(score float64) string {
	switch {
	case score >= 70:
		return "HIGH"
	case score >= 40:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func clamp(v float64) float64 { return math.Max(0, math.Min(100, v)) }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
