package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthyHomesConfidence(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		want      string
		claims    bool
		allowance float64
	}{
		{"explicit claim", "Meets Healthy Homes standards with a heat pump", ConfidenceHigh, true, 0},
		{"two positive cues", "Heat pump and fully insulated, some damp in the laundry", ConfidenceMedium, false, 5000},
		{"one cue", "Cosy log burner", ConfidenceLow, false, 6000},
		{"risk only", "Some mould and condensation in winter", ConfidenceLow, false, 8000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := HealthyHomes(tt.text)
			assert.True(t, s.Present)
			assert.Equal(t, tt.want, s.Confidence)
			assert.Equal(t, tt.claims, s.ClaimsCompliant)
			assert.Equal(t, tt.allowance, HealthyHomesAllowance(s))
		})
	}
}

func TestHealthyHomesEvidence(t *testing.T) {
	s := HealthyHomes("HRV system, rangehood and heat pump. Mould free!")
	assert.True(t, s.Signals.HasVentilation)
	assert.True(t, s.Signals.HasHeating)
	assert.True(t, s.Signals.MentionsMould)
	assert.Contains(t, s.Notes, "damp/mould/condensation")

	keys := map[string]bool{}
	for _, e := range s.Evidence {
		keys[e.Key] = true
	}
	assert.True(t, keys["ventilation"])
	assert.True(t, keys["heating"])
	assert.True(t, keys["risk_mould"])
}

func TestHealthyHomesEmptyText(t *testing.T) {
	s := HealthyHomes("   ")
	assert.False(t, s.Present)
	assert.Equal(t, ConfidenceLow, s.Confidence)
	assert.Equal(t, "No description text provided", s.Notes)
	assert.Equal(t, 6000.0, HealthyHomesAllowance(s))
	assert.Equal(t, 6000.0, HealthyHomesAllowance(nil))
}
