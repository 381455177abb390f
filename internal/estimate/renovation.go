package estimate

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kalambet/propeval/internal/listing"
)

// Per-m² renovation rates (NZD, 2025).
var costPerSqm = map[listing.RenoLevel]float64{
	listing.RenoNone:     0,
	listing.RenoCosmetic: 500,
	listing.RenoModerate: 1200,
	listing.RenoMajor:    2000,
	listing.RenoFullGut:  3500,
}

var defaultRenovationItems = map[listing.RenoLevel][]string{
	listing.RenoCosmetic: {
		"Interior paint",
		"Exterior wash & minor touch-ups",
		"Garden tidy",
		"Minor repairs",
	},
	listing.RenoModerate: {
		"Full interior/exterior paint",
		"Kitchen refresh (benchtops, handles, splashback)",
		"Bathroom update (vanity, taps, mirror)",
		"New floor coverings",
		"Light fixture updates",
	},
	listing.RenoMajor: {
		"Full kitchen replacement",
		"Full bathroom replacement",
		"Rewire (electrical)",
		"Replumb (plumbing)",
		"Interior/exterior paint",
		"New floor coverings",
		"Insulation upgrade",
	},
	listing.RenoFullGut: {
		"Strip to frame",
		"Full rebuild interior",
		"New kitchen",
		"New bathroom(s)",
		"Complete rewire & replumb",
		"New insulation",
		"New linings (GIB)",
		"New floor coverings",
		"Exterior recladding",
	},
}

var floorAreaByBedrooms = map[int]float64{1: 60, 2: 85, 3: 110, 4: 140, 5: 170, 6: 200}

const (
	defaultFloorArea      = 110
	roofAreaFactor        = 1.3
	roofCostPerSqm        = 80
	weatherboardRepair    = 15000
	foundationWork        = 30000
	outbuildingFoundation = 8000
	moistureRemediation   = 10000
	contingencyRate       = 0.15
)

var outbuildingTerms = []string{"shed", "outbuilding", "garage", "sleepout"}

// FloorArea returns the listed floor area or a typical size for the bedroom
// count.
func FloorArea(l *listing.Listing) float64 {
	if l.FloorArea != nil && *l.FloorArea > 0 {
		return *l.FloorArea
	}
	if a, ok := floorAreaByBedrooms[l.BedroomsOrDefault()]; ok {
		return a
	}
	return defaultFloorArea
}

// ResolveLevel picks the renovation level to price. An excellent, modern
// property with nothing flagged needs no work; unknown levels and
// unconfirmed NONE answers are priced as MODERATE.
func ResolveLevel(img *listing.ImageAnalysis) listing.RenoLevel {
	if img == nil {
		return listing.RenoModerate
	}
	if strings.EqualFold(img.ExteriorCondition, "EXCELLENT") &&
		strings.EqualFold(img.InteriorQuality, "MODERN") &&
		len(img.StructuralConcerns) == 0 &&
		len(img.KeyRenovationItems) == 0 {
		return listing.RenoNone
	}
	level := listing.RenoLevel(strings.ToUpper(string(img.OverallRenoLevel)))
	if !level.Valid() || level == listing.RenoNone {
		return listing.RenoModerate
	}
	return level
}

// Renovation prices the work implied by the image signal: floor area times
// the level rate, plus structural line items, plus a healthy-homes allowance
// for lighter renovations, plus 15% contingency.
func Renovation(l *listing.Listing, img *listing.ImageAnalysis) *listing.RenovationEstimate {
	if img == nil {
		img = &listing.ImageAnalysis{}
	}
	floor := FloorArea(l)
	level := ResolveLevel(img)
	base := floor * costPerSqm[level]

	var additional float64
	details := []string{}

	if img.RoofCondition == "NEEDS_REPLACE" {
		roof := floor * roofAreaFactor * roofCostPerSqm
		additional += roof
		details = append(details, "Roof replacement: "+moneyf(roof))
	}

	concerns := strings.ToLower(strings.Join(img.StructuralConcerns, " | "))
	if strings.Contains(concerns, "weatherboard_rot") || strings.Contains(concerns, "weatherboard rot") {
		additional += weatherboardRepair
		details = append(details, "Weatherboard repair: $15,000")
	}
	if cost, ok := foundationCost(img.StructuralConcerns); ok {
		additional += cost
		details = append(details, "Foundation work: "+moneyf(cost))
	}
	if strings.Contains(concerns, "moisture_damage") || strings.Contains(concerns, "moisture damage") {
		additional += moistureRemediation
		details = append(details, "Moisture damage remediation: $10,000")
	}

	var allowance float64
	if !level.Heavy() {
		allowance = HealthyHomesAllowance(img.HealthyHomes)
		if allowance > 0 {
			details = append(details, "Healthy homes allowance: "+moneyf(allowance))
		}
	}

	subtotal := base + additional + allowance
	contingency := subtotal * contingencyRate

	items := img.KeyRenovationItems
	if len(items) == 0 {
		items = defaultRenovationItems[level]
	}
	if items == nil {
		items = []string{}
	}

	return &listing.RenovationEstimate{
		RenovationLevel:       level,
		FloorAreaUsed:         round0(floor),
		CostPerSqm:            costPerSqm[level],
		BaseRenovation:        round0(base),
		AdditionalItems:       round0(additional),
		AdditionalDetails:     details,
		HealthyHomesAllowance: allowance,
		Contingency:           round0(contingency),
		TotalEstimated:        round0(subtotal + contingency),
		KeyItems:              items,
		Source:                "estimate",
	}
}

// foundationCost prices foundation concerns. A concern that only concerns an
// outbuilding is priced at the reduced rate.
func foundationCost(concerns []string) (float64, bool) {
	found, mainHouse := false, false
	for _, c := range concerns {
		lc := strings.ToLower(c)
		if !strings.Contains(lc, "foundation") {
			continue
		}
		found = true
		if !containsAny(lc, outbuildingTerms) {
			mainHouse = true
		}
	}
	switch {
	case mainHouse:
		return foundationWork, true
	case found:
		return outbuildingFoundation, true
	}
	return 0, false
}

// FromVision builds renovation and timeline estimates from the vision
// provider's own cost and week figures.
func FromVision(img *listing.ImageAnalysis) (*listing.RenovationEstimate, *listing.TimelineEstimate) {
	level := listing.RenoLevel(strings.ToUpper(string(img.OverallRenoLevel)))
	if !level.Valid() {
		level = listing.RenoModerate
	}
	weeks := *img.EstimatedTimelineWeeks
	items := img.KeyRenovationItems
	if items == nil {
		items = []string{}
	}
	reno := &listing.RenovationEstimate{
		RenovationLevel:   level,
		TotalEstimated:    round0(*img.EstimatedRenovationCost),
		AdditionalDetails: []string{},
		KeyItems:          items,
		Source:            "openai_vision",
	}
	tl := &listing.TimelineEstimate{
		EstimatedWeeks:    weeks,
		Within8WeekTarget: weeks <= targetWeeks,
		RenovationLevel:   level,
		Notes:             TimelineNote(level, weeks),
		Source:            "openai_vision",
	}
	return reno, tl
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func moneyf(v float64) string {
	return fmt.Sprintf("$%s", humanize.Comma(int64(round0(v))))
}
