package estimate

import (
	"strings"

	"github.com/kalambet/propeval/internal/listing"
)

// Confidence tiers for seller-claimed healthy-homes signals.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

var (
	compliantPhrases = []string{
		"healthy homes compliant",
		"healthy homes compliance",
		"healthy homes standard",
		"healthy homes standards",
		"meets healthy homes",
		"complies with healthy homes",
		"hh compliant",
	}
	heatingPhrases = []string{
		"heat pump", "heatpump", "ducted heat pump", "ducted heating",
		"panel heater", "log burner", "wood burner", "woodburner", "fireplace",
	}
	insulationPhrases = []string{
		"ceiling insulation", "underfloor insulation", "floor insulation",
		"insulated ceiling", "insulated underfloor", "insulated top and bottom",
		"fully insulated", "insulation in ceiling", "insulation in the ceiling",
		"insulation in the floor", "ground moisture barrier", "moisture barrier",
		"polythene", "polyethylene",
	}
	ventilationPhrases = []string{
		"extractor fan", "extractor fans", "bathroom extractor", "kitchen extractor",
		"rangehood", "range hood", "hrv", "dvs", "ventilation system",
	}
	dampPhrases         = []string{"damp", "moisture"}
	mouldPhrases        = []string{"mould", "mold", "mildew"}
	condensationPhrases = []string{"condensation"}
	draughtPhrases      = []string{"draught", "draft", "draughty", "drafty"}
)

const maxEvidence = 30

// HealthyHomes scans listing text for heating, insulation and ventilation
// cues, explicit compliance claims, and damp or draught risk mentions. The
// result is seller-claimed, not a compliance determination.
func HealthyHomes(description string) *listing.HealthyHomesSignals {
	text := strings.ToLower(description)
	if strings.TrimSpace(text) == "" {
		return &listing.HealthyHomesSignals{
			Confidence: ConfidenceLow,
			Evidence:   []listing.Evidence{},
			Notes:      "No description text provided",
		}
	}

	var evidence []listing.Evidence
	scan := func(key string, phrases []string) bool {
		hit := false
		for _, p := range phrases {
			if strings.Contains(text, p) {
				hit = true
				evidence = append(evidence, listing.Evidence{Key: key, Phrase: p})
			}
		}
		return hit
	}

	claims := scan("claims_compliant", compliantPhrases)
	flags := listing.HealthyHomesFlags{
		HasHeating:     scan("heating", heatingPhrases),
		HasInsulation:  scan("insulation", insulationPhrases),
		HasVentilation: scan("ventilation", ventilationPhrases),
	}
	flags.MentionsDamp = scan("risk_damp", dampPhrases)
	flags.MentionsMould = scan("risk_mould", mouldPhrases)
	flags.MentionsCondensation = scan("risk_condensation", condensationPhrases)
	flags.MentionsDraughts = scan("risk_draughts", draughtPhrases)

	confidence := ConfidenceLow
	if claims {
		confidence = ConfidenceHigh
	} else if countTrue(flags.HasHeating, flags.HasInsulation, flags.HasVentilation) >= 2 {
		confidence = ConfidenceMedium
	}

	var notes []string
	if claims {
		notes = append(notes, "Listing explicitly claims Healthy Homes compliance (seller-claimed).")
	}
	if flags.MentionsDamp || flags.MentionsMould || flags.MentionsCondensation {
		notes = append(notes, "Listing mentions damp/mould/condensation (risk signal).")
	}

	if len(evidence) > maxEvidence {
		evidence = evidence[:maxEvidence]
	}
	if evidence == nil {
		evidence = []listing.Evidence{}
	}
	return &listing.HealthyHomesSignals{
		Present:         true,
		Confidence:      confidence,
		ClaimsCompliant: claims,
		Signals:         flags,
		Evidence:        evidence,
		Notes:           strings.Join(notes, " "),
	}
}

const (
	maxHealthyHomesAllowance = 8000
	riskCueAllowance         = 2000
)

var allowanceByConfidence = map[string]float64{
	ConfidenceHigh:   0,
	ConfidenceMedium: 3000,
	ConfidenceLow:    6000,
}

// HealthyHomesAllowance converts text signals into a compliance budget
// between 0 and 8000.
func HealthyHomesAllowance(s *listing.HealthyHomesSignals) float64 {
	if s == nil {
		return allowanceByConfidence[ConfidenceLow]
	}
	allowance, ok := allowanceByConfidence[s.Confidence]
	if !ok {
		allowance = allowanceByConfidence[ConfidenceLow]
	}
	if s.Signals.AnyRisk() {
		allowance += riskCueAllowance
	}
	return clamp(allowance, 0, maxHealthyHomesAllowance)
}

func countTrue(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
