package strategy

import (
	"strings"
	"testing"

	"github.com/kalambet/propeval/internal/listing"
)

func models(roi, yield float64, weeks int) (*listing.FlipFinancials, *listing.RentalFinancials) {
	return &listing.FlipFinancials{ROIPercentage: roi, TimelineWeeks: weeks},
		&listing.RentalFinancials{GrossYieldPercentage: yield}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		roi, yield float64
		opts       Options
		want       string
		reason     string
	}{
		{"flip only", 20, 5, Options{RiskTolerance: RiskModerate, MarketTrend: TrendStable}, Flip, "ROI 20.0% meets target, yield 5.0% below 9%"},
		{"both, flip dominant", 30, 10, Options{}, Flip, "Higher ROI: 30.0% vs 10.0% yield"},
		{"both, rental competitive", 16, 11, Options{}, Rental, "Good rental yield 11.0% with lower risk & flexibility"},
		{"both, cooling", 30, 10, Options{MarketTrend: TrendCooling}, Rental, "Good rental yield 10.0%"},
		{"flip only, cooling", 20, 5, Options{MarketTrend: TrendCooling}, Pass, "ROI 20.0% meets target but cooling market increases flip risk"},
		{"rental only", 10, 9.5, Options{}, Rental, "Rental yield 9.5% meets target (safer strategy); flip ROI 10.0% below 15%"},
		{"neither", 10, 5, Options{}, Pass, "Neither strategy meets targets (Flip: 10.0% < 15%, Rental: 5.0% < 9%)"},
		{"low tolerance", 17, 9.5, Options{RiskTolerance: RiskLow}, Pass, "(Flip: 17.0% < 18%, Rental: 9.5% < 10%)"},
		{"high tolerance", 12, 5, Options{RiskTolerance: RiskHigh}, Flip, "below 8%"},
		{"heating lowers flip bar", 14, 5, Options{MarketTrend: TrendHeating}, Flip, "ROI 14.0% meets target"},
		{"cooling lowers rental bar", 10, 8.6, Options{MarketTrend: TrendCooling}, Rental, "below 15%"},
		{"cooling threshold text", 10, 5, Options{MarketTrend: TrendCooling}, Pass, "Rental: 5.0% < 8.5%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r := models(tt.roi, tt.yield, 8)
			got := Decide(f, r, nil, tt.opts)
			if got.RecommendedStrategy != tt.want {
				t.Errorf("strategy = %q, want %q (%s)", got.RecommendedStrategy, tt.want, got.Reason)
			}
			if !strings.Contains(got.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestDecideThresholdIsInclusive(t *testing.T) {
	f, r := models(15, 9, 8)
	got := Decide(f, r, nil, Options{})
	if got.RecommendedStrategy != Flip {
		t.Errorf("strategy = %q, want FLIP at exactly the targets", got.RecommendedStrategy)
	}
}

func TestDecideSubdivision(t *testing.T) {
	f, r := models(20, 5, 8)
	sub := &listing.SubdivisionAnalysis{SubdivisionPotential: true, NetValueAdd: 10000}
	got := Decide(f, r, sub, Options{})
	if got.RecommendedStrategy != "FLIP_WITH_SUBDIVISION" {
		t.Errorf("strategy = %q", got.RecommendedStrategy)
	}
	if !strings.HasSuffix(got.Reason, " | Subdivision adds ~$10,000") {
		t.Errorf("reason = %q", got.Reason)
	}
	if got.SubdivisionBonus != 10000 {
		t.Errorf("bonus = %v", got.SubdivisionBonus)
	}

	sub.NetValueAdd = -5000
	if got := Decide(f, r, sub, Options{}); got.RecommendedStrategy != Flip {
		t.Errorf("negative value add should not annotate, got %q", got.RecommendedStrategy)
	}

	f, r = models(5, 5, 8)
	sub.NetValueAdd = 40000
	if got := Decide(f, r, sub, Options{}); got.RecommendedStrategy != "PASS_WITH_SUBDIVISION" {
		t.Errorf("strategy = %q", got.RecommendedStrategy)
	}
}

func TestDecideNilModels(t *testing.T) {
	got := Decide(nil, nil, nil, Options{})
	if got.RecommendedStrategy != Pass || got.RiskTolerance != "MODERATE" {
		t.Errorf("got %+v", got)
	}
}

func TestRisks(t *testing.T) {
	tests := []struct {
		roi, yield float64
		weeks      int
		want       []string
	}{
		{25, 10, 8, []string{"Low risk: strong fundamentals"}},
		{0, 0, 8, []string{"Low risk: strong fundamentals"}},
		{25, 10, 13, []string{"Extended renovation timeline increases holding costs"}},
		{12, 5, 8, []string{
			"Moderate flip ROI leaves less margin for unexpected costs",
			"Rental yield below ideal for strong cash flow",
		}},
	}
	for _, tt := range tests {
		got := Risks(tt.roi, tt.yield, tt.weeks)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("Risks(%v, %v, %d) = %v, want %v", tt.roi, tt.yield, tt.weeks, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	if ParseRiskTolerance(" low ") != RiskLow || ParseRiskTolerance("reckless") != RiskModerate {
		t.Error("ParseRiskTolerance")
	}
	if ParseMarketTrend("cooling") != TrendCooling || ParseMarketTrend("flat") != "" {
		t.Error("ParseMarketTrend")
	}
}
