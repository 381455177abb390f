package listing

import "testing"

func TestParsePortfolioStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    PortfolioStatus
		wantErr bool
	}{
		{"", PortfolioWatching, false},
		{"renovating", PortfolioRenovating, false},
		{"sold", PortfolioSold, false},
		{"SOLD", "", true},
		{"abandoned", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePortfolioStatus(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePortfolioStatus(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPortfolioProjectAndCompare(t *testing.T) {
	var e PortfolioEntry
	e.Project(&Analysis{
		Renovation:     &RenovationEstimate{TotalEstimated: 60000},
		ARV:            &ARVEstimate{EstimatedARV: 620000},
		RentalEstimate: &RentalEstimate{EstimatedWeeklyRent: 550},
		Flip:           &FlipFinancials{ROIPercentage: 12.5},
	})
	if e.ProjectedRenoCost == nil || *e.ProjectedRenoCost != 60000 || *e.ProjectedARV != 620000 ||
		*e.ProjectedWeeklyRent != 550 || *e.ProjectedROI != 12.5 {
		t.Fatalf("projections = %+v", e)
	}

	e.Compare()
	if e.RenoCostVariance != nil {
		t.Errorf("variance without actuals = %v, want nil", *e.RenoCostVariance)
	}
	PortfolioUpdate{ActualRenoCost: Float64(72500)}.Apply(&e)
	e.Compare()
	if e.RenoCostVariance == nil || *e.RenoCostVariance != 12500 {
		t.Errorf("variance = %v, want 12500", e.RenoCostVariance)
	}
}

func TestPortfolioProjectPartialAnalysis(t *testing.T) {
	var e PortfolioEntry
	e.Project(nil)
	e.Project(&Analysis{ARV: &ARVEstimate{EstimatedARV: 500000}})
	if e.ProjectedRenoCost != nil || e.ProjectedROI != nil || e.ProjectedARV == nil {
		t.Errorf("projections = %+v", e)
	}
}

func TestPortfolioUpdateLeavesUnsetFields(t *testing.T) {
	e := PortfolioEntry{Status: PortfolioOffered, Notes: "offer in", PurchasePrice: Float64(410000)}
	sold := PortfolioSold
	PortfolioUpdate{Status: &sold, ActualSalePrice: Float64(640000)}.Apply(&e)
	if e.Status != PortfolioSold || *e.ActualSalePrice != 640000 {
		t.Errorf("set fields not applied: %+v", e)
	}
	if e.Notes != "offer in" || *e.PurchasePrice != 410000 {
		t.Errorf("unset fields changed: %+v", e)
	}
}
