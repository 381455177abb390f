package estimate

import "github.com/kalambet/propeval/internal/listing"

var baseWeeks = map[listing.RenoLevel]int{
	listing.RenoNone:     0,
	listing.RenoCosmetic: 2,
	listing.RenoModerate: 6,
	listing.RenoMajor:    12,
	listing.RenoFullGut:  20,
}

const (
	targetWeeks          = 8
	unknownLevelWeeks    = 8
	structuralThreshold  = 20000
	majorStructuralLimit = 40000
)

// Timeline converts a renovation estimate into weeks on the tools, adding
// time for significant structural work.
func Timeline(r *listing.RenovationEstimate) *listing.TimelineEstimate {
	weeks, ok := baseWeeks[r.RenovationLevel]
	if !ok {
		weeks = unknownLevelWeeks
	}
	if r.AdditionalItems > structuralThreshold {
		weeks += 2
	}
	if r.AdditionalItems > majorStructuralLimit {
		weeks += 2
	}
	return &listing.TimelineEstimate{
		EstimatedWeeks:    weeks,
		Within8WeekTarget: weeks <= targetWeeks,
		RenovationLevel:   r.RenovationLevel,
		Notes:             TimelineNote(r.RenovationLevel, weeks),
		Source:            "estimate",
	}
}

func TimelineNote(level listing.RenoLevel, weeks int) string {
	switch {
	case level == listing.RenoNone || weeks == 0:
		return "No renovation required"
	case weeks <= 4:
		return "Quick turnaround - cosmetic work only"
	case weeks <= 8:
		return "Within 8-week target - manageable renovation"
	case weeks <= 12:
		return "Exceeds 8-week target - moderate complexity"
	case weeks <= 16:
		return "Significant renovation - plan for extended holding costs"
	default:
		return "Major renovation - consider phased approach or adjust expectations"
	}
}
