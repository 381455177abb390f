package vision

import (
	"context"

	"github.com/kalambet/propeval/internal/listing"
)

// Mock returns a conservative fixed assessment without calling any service.
type Mock struct{}

func (Mock) Name() string { return "mock" }

func (Mock) Analyze(_ context.Context, _ []string) (*listing.ImageAnalysis, error) {
	return &listing.ImageAnalysis{
		RoofCondition:      "UNKNOWN",
		ExteriorCondition:  "FAIR",
		InteriorQuality:    "DATED",
		KitchenAge:         "10-20yr",
		BathroomAge:        "10-20yr",
		StructuralConcerns: []string{},
		OverallRenoLevel:   listing.RenoModerate,
		KeyRenovationItems: []string{
			"Paint interior/exterior",
			"Kitchen refresh",
			"Bathroom update",
			"Floor coverings",
		},
		Confidence: "LOW",
		Source:     "mock_default",
		Note:       "Set vision.provider for AI-powered analysis",
	}, nil
}
