package vision

import (
	"sort"

	"github.com/kalambet/propeval/internal/listing"
)

// PhotoAnalysis is a per-photo condition assessment.
type PhotoAnalysis struct {
	PhotoType            string          `json:"photo_type"`
	ConditionRating      *int            `json:"condition_rating"`
	IssuesDetected       []string        `json:"issues_detected"`
	RenovationIndicators map[string]bool `json:"renovation_indicators"`
}

const (
	neutralRating      = 5
	maxHeuristicIssues = 5
)

// Summarize folds per-photo assessments into an overall signal from the
// average condition rating. With no input the rating is neutral.
func Summarize(photos []PhotoAnalysis) *listing.ImageAnalysis {
	avg := float64(neutralRating)
	if len(photos) > 0 {
		var sum int
		for _, p := range photos {
			if p.ConditionRating != nil {
				sum += *p.ConditionRating
			} else {
				sum += neutralRating
			}
		}
		avg = float64(sum) / float64(len(photos))
	}

	seen := map[string]bool{}
	issues := []string{}
	indicators := map[string]bool{}
	for _, p := range photos {
		for _, issue := range p.IssuesDetected {
			if !seen[issue] {
				seen[issue] = true
				issues = append(issues, issue)
			}
		}
		for k, v := range p.RenovationIndicators {
			if v {
				indicators[k] = true
			}
		}
	}
	if len(issues) > maxHeuristicIssues {
		issues = issues[:maxHeuristicIssues]
	}
	items := make([]string, 0, len(indicators))
	for k := range indicators {
		items = append(items, k)
	}
	sort.Strings(items)

	return &listing.ImageAnalysis{
		RoofCondition:      "UNKNOWN",
		ExteriorCondition:  band(avg, 6, 4, "GOOD", "FAIR", "POOR"),
		InteriorQuality:    band(avg, 8, 5, "MODERN", "DATED", "VERY_DATED"),
		KitchenAge:         "UNKNOWN",
		BathroomAge:        "UNKNOWN",
		StructuralConcerns: issues,
		OverallRenoLevel:   levelForRating(avg),
		KeyRenovationItems: items,
		Confidence:         "LOW",
		Source:             FallbackSource,
	}
}

func levelForRating(avg float64) listing.RenoLevel {
	switch {
	case avg >= 8:
		return listing.RenoCosmetic
	case avg >= 6:
		return listing.RenoModerate
	case avg >= 4:
		return listing.RenoMajor
	default:
		return listing.RenoFullGut
	}
}

func band(v, hi, mid float64, top, middle, bottom string) string {
	switch {
	case v >= hi:
		return top
	case v >= mid:
		return middle
	default:
		return bottom
	}
}
