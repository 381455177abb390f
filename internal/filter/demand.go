package filter

import (
	"fmt"
	"strings"

	"github.com/kalambet/propeval/internal/listing"
)

var (
	studentTowns = []string{
		"dunedin", "palmerston north", "hamilton", "wellington", "christchurch",
		"lincoln", "massey", "albany",
	}
	familyAreas = []string{
		"tauranga", "hamilton", "christchurch", "auckland", "napier", "hastings",
		"new plymouth", "whangarei", "kapiti coast", "selwyn", "waimakariri",
		"western bay of plenty",
	}
	retirementAreas = []string{
		"tauranga", "kapiti coast", "nelson", "queenstown-lakes",
		"thames-coromandel", "whangarei",
	}
)

// DemandProfile annotates a listing with the kind of tenant or buyer demand
// its area attracts. It never rejects.
func DemandProfile(l *listing.Listing) *listing.DemandProfile {
	beds := l.BedroomsOrDefault()
	location := strings.ToLower(l.Suburb + " " + l.District + " " + l.Region)

	p := &listing.DemandProfile{BedroomDemandMatch: true, DemandNotes: []string{}}
	if town, ok := firstContained(location, studentTowns); ok {
		p.IsStudentTown = true
		p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("Student town (%s)", town))
	}
	if area, ok := firstContained(location, familyAreas); ok {
		p.IsFamilyArea = true
		p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("Family area (%s)", area))
	}
	if area, ok := firstContained(location, retirementAreas); ok {
		p.IsRetirementArea = true
		p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("Retirement area (%s)", area))
	}

	switch {
	case p.IsStudentTown:
		if beds >= 3 {
			p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("%dbr ideal for student flatting", beds))
		} else {
			p.BedroomDemandMatch = false
			p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("%dbr less ideal in student town (3+ preferred)", beds))
		}
	case p.IsFamilyArea:
		if beds >= 3 {
			p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("%dbr matches family demand", beds))
		} else {
			p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("%dbr - smaller than typical family demand", beds))
		}
	case p.IsRetirementArea:
		if beds >= 2 && beds <= 3 {
			p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("%dbr suits retirement area demand", beds))
		}
	}

	if len(p.DemandNotes) == 0 {
		area := strings.ToLower(l.District)
		if area == "" {
			area = strings.ToLower(l.Region)
		}
		p.DemandNotes = append(p.DemandNotes, fmt.Sprintf("%dbr in %s", beds, area))
	}
	return p
}

func firstContained(s string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(s, c) {
			return c, true
		}
	}
	return "", false
}
