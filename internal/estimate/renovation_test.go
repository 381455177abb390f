package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/propeval/internal/listing"
)

func TestRenovationWithStructuralItems(t *testing.T) {
	l := &listing.Listing{Bedrooms: listing.Int(3)}
	img := &listing.ImageAnalysis{
		OverallRenoLevel:   listing.RenoModerate,
		RoofCondition:      "NEEDS_REPLACE",
		StructuralConcerns: []string{"Weatherboard rot on north wall", "Foundation cracks in detached garage"},
		HealthyHomes:       HealthyHomes("Sunny family home close to schools."),
	}

	r := Renovation(l, img)

	assert.Equal(t, listing.RenoModerate, r.RenovationLevel)
	assert.Equal(t, 110.0, r.FloorAreaUsed)
	assert.Equal(t, 132000.0, r.BaseRenovation)
	// roof 11440 + weatherboard 15000 + outbuilding foundation 8000
	assert.Equal(t, 34440.0, r.AdditionalItems)
	assert.Equal(t, 6000.0, r.HealthyHomesAllowance)
	assert.Equal(t, 25866.0, r.Contingency)
	assert.Equal(t, 198306.0, r.TotalEstimated)
	assert.Contains(t, r.AdditionalDetails, "Foundation work: $8,000")
	assert.Contains(t, r.AdditionalDetails, "Roof replacement: $11,440")
	assert.Len(t, r.KeyItems, 5, "default MODERATE items")
}

func TestRenovationMainFoundation(t *testing.T) {
	img := &listing.ImageAnalysis{
		OverallRenoLevel:   listing.RenoCosmetic,
		StructuralConcerns: []string{"foundation_issues", "moisture_damage under bathroom"},
		HealthyHomes:       HealthyHomes("Healthy homes compliant"),
	}
	r := Renovation(&listing.Listing{FloorArea: listing.Float64(100)}, img)

	assert.Equal(t, 50000.0, r.BaseRenovation)
	assert.Equal(t, 40000.0, r.AdditionalItems)
	assert.Equal(t, 0.0, r.HealthyHomesAllowance)
	assert.Equal(t, 103500.0, r.TotalEstimated)
}

func TestRenovationHeavySkipsHealthyHomesAllowance(t *testing.T) {
	img := &listing.ImageAnalysis{OverallRenoLevel: listing.RenoMajor}
	r := Renovation(&listing.Listing{FloorArea: listing.Float64(100)}, img)

	assert.Equal(t, 0.0, r.HealthyHomesAllowance)
	assert.Equal(t, 200000.0, r.BaseRenovation)
	assert.Equal(t, 230000.0, r.TotalEstimated)
}

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name string
		img  *listing.ImageAnalysis
		want listing.RenoLevel
	}{
		{"nil signal", nil, listing.RenoModerate},
		{"unknown level", &listing.ImageAnalysis{OverallRenoLevel: "SUPER"}, listing.RenoModerate},
		{"lowercase", &listing.ImageAnalysis{OverallRenoLevel: "full_gut"}, listing.RenoFullGut},
		{"excellent and clean", &listing.ImageAnalysis{
			OverallRenoLevel:  listing.RenoCosmetic,
			ExteriorCondition: "EXCELLENT",
			InteriorQuality:   "MODERN",
		}, listing.RenoNone},
		{"unconfirmed none", &listing.ImageAnalysis{
			OverallRenoLevel:  listing.RenoNone,
			ExteriorCondition: "GOOD",
			InteriorQuality:   "DATED",
		}, listing.RenoModerate},
		{"excellent with items", &listing.ImageAnalysis{
			OverallRenoLevel:   listing.RenoCosmetic,
			ExteriorCondition:  "EXCELLENT",
			InteriorQuality:    "MODERN",
			KeyRenovationItems: []string{"Repaint fence"},
		}, listing.RenoCosmetic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLevel(tt.img))
		})
	}
}

func TestRenovationNoneLevel(t *testing.T) {
	img := &listing.ImageAnalysis{
		OverallRenoLevel:  listing.RenoNone,
		ExteriorCondition: "EXCELLENT",
		InteriorQuality:   "MODERN",
		HealthyHomes:      HealthyHomes("Healthy homes compliant, heat pump, HRV"),
	}
	r := Renovation(&listing.Listing{}, img)
	assert.Equal(t, listing.RenoNone, r.RenovationLevel)
	assert.Equal(t, 0.0, r.TotalEstimated)
	assert.Empty(t, r.KeyItems)
}

func TestFloorAreaDefaults(t *testing.T) {
	assert.Equal(t, 60.0, FloorArea(&listing.Listing{Bedrooms: listing.Int(1)}))
	assert.Equal(t, 200.0, FloorArea(&listing.Listing{Bedrooms: listing.Int(6)}))
	assert.Equal(t, 110.0, FloorArea(&listing.Listing{Bedrooms: listing.Int(9)}))
	assert.Equal(t, 95.0, FloorArea(&listing.Listing{FloorArea: listing.Float64(95)}))
}

func TestFromVision(t *testing.T) {
	cost := 45000.0
	weeks := 10
	img := &listing.ImageAnalysis{
		OverallRenoLevel:        listing.RenoMajor,
		EstimatedRenovationCost: &cost,
		EstimatedTimelineWeeks:  &weeks,
	}
	require.True(t, img.HasRenoTimeline())

	reno, tl := FromVision(img)
	assert.Equal(t, 45000.0, reno.TotalEstimated)
	assert.Equal(t, "openai_vision", reno.Source)
	assert.Equal(t, 10, tl.EstimatedWeeks)
	assert.False(t, tl.Within8WeekTarget)
	assert.Equal(t, "Exceeds 8-week target - moderate complexity", tl.Notes)
}
