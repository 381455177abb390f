package estimate

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/providers"
)

var minLotByZone = map[string]float64{
	"RESIDENTIAL_SINGLE": 600,
	"RESIDENTIAL_MIXED":  400,
	"RESIDENTIAL_MEDIUM": 300,
	"RESIDENTIAL_HIGH":   200,
}

const (
	DefaultZone         = "RESIDENTIAL_SINGLE"
	DefaultMinLotSize   = 600
	DefaultZoningSource = "default"

	landValueShare     = 0.3
	defaultLandValue   = 100000
	extraLotValueShare = 0.6
	subdivisionCosts   = 80000
)

// Subdivision tests whether the section can be split into at least two lots
// under the resolved zone and estimates the value added by doing so. zoning
// may be nil when no lookup was possible.
func Subdivision(l *listing.Listing, zoning *providers.Zoning) *listing.SubdivisionAnalysis {
	if l.LandArea == nil || *l.LandArea <= 0 {
		return &listing.SubdivisionAnalysis{Reason: "Land area unknown"}
	}
	land := *l.LandArea

	z := providers.Zoning{Zoning: DefaultZone, MinLotSize: DefaultMinLotSize, Source: DefaultZoningSource}
	if zoning != nil && zoning.Zoning != "" {
		z = *zoning
	}
	minLot, ok := minLotByZone[z.Zoning]
	if !ok {
		minLot = z.MinLotSize
	}
	if minLot <= 0 {
		minLot = DefaultMinLotSize
	}

	result := &listing.SubdivisionAnalysis{
		LandArea:     &land,
		Zoning:       z.Zoning,
		ZoningSource: z.Source,
		MinLotSize:   minLot,
	}
	if land < minLot*2 {
		result.Reason = fmt.Sprintf("Insufficient land: %ssqm (need %ssqm for %s)", num(land), num(minLot*2), z.Zoning)
		return result
	}

	landValue := float64(defaultLandValue)
	if price, ok := l.EffectivePrice(); ok {
		landValue = price * landValueShare
	}
	uplift := landValue * extraLotValueShare
	extra := int(math.Floor(land/minLot)) - 1

	result.SubdivisionPotential = true
	result.ExtraLotsPossible = extra
	result.EstimatedUplift = round0(uplift)
	result.SubdivisionCosts = subdivisionCosts
	result.NetValueAdd = round0(uplift - subdivisionCosts)
	result.Reason = fmt.Sprintf("Land %ssqm allows ~%d additional lot(s) in %s zone", num(land), extra, z.Zoning)
	return result
}

// NeedsZoning reports whether a zoning lookup can influence the result.
func NeedsZoning(l *listing.Listing) bool {
	return l.LandArea != nil && *l.LandArea > 0
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
