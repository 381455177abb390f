package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/kalambet/propeval/internal/listing"
)

func TestPortfolioLifecycle(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	id := seedListing(t, deps.Store, "TM40")
	if _, err := deps.Pipeline.AnalyzePending(context.Background()); err != nil {
		t.Fatalf("AnalyzePending: %v", err)
	}
	a, err := deps.Store.GetAnalysis(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}

	rr := serve(h, authReq(http.MethodPost, "/api/portfolio", `{"listing_id": `+itoa(id)+`, "purchase_price": 415000}`, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var created listing.PortfolioEntry
	decodeBody(t, rr, &created)
	if created.Status != listing.PortfolioWatching || created.ProjectedRenoCost == nil ||
		*created.ProjectedRenoCost != a.Renovation.TotalEstimated || *created.ProjectedROI != a.Flip.ROIPercentage {
		t.Errorf("created = %+v", created)
	}

	rr = serve(h, authReq(http.MethodPost, "/api/portfolio", `{"listing_id": `+itoa(id)+`}`, testToken))
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rr.Code)
	}

	entry := "/api/portfolio/" + itoa(created.ID)
	body := `{"status": "renovating", "actual_reno_cost": 70000}`
	rr = serve(h, authReq(http.MethodPut, entry, body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var updated listing.PortfolioEntry
	decodeBody(t, rr, &updated)
	want := 70000 - a.Renovation.TotalEstimated
	if updated.Status != listing.PortfolioRenovating || updated.RenoCostVariance == nil || *updated.RenoCostVariance != want {
		t.Errorf("updated = %+v, want variance %v", updated, want)
	}
	if updated.PurchasePrice == nil || *updated.PurchasePrice != 415000 {
		t.Errorf("purchase price lost on update: %v", updated.PurchasePrice)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/portfolio", "", testToken))
	var all []listing.PortfolioEntry
	decodeBody(t, rr, &all)
	if len(all) != 1 || all[0].ID != created.ID {
		t.Errorf("list = %+v", all)
	}

	if rr = serve(h, authReq(http.MethodDelete, entry, "", testToken)); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr = serve(h, authReq(http.MethodGet, entry, "", testToken)); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rr.Code)
	}
}

func TestPortfolioBadRequests(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	id := seedListing(t, deps.Store, "TM41")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing listing id", http.MethodPost, "/api/portfolio", `{}`, http.StatusBadRequest},
		{"unknown listing", http.MethodPost, "/api/portfolio", `{"listing_id": 9999}`, http.StatusNotFound},
		{"unknown status", http.MethodPost, "/api/portfolio", `{"listing_id": ` + itoa(id) + `, "status": "flipped"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/portfolio", `{"listing_id":`, http.StatusBadRequest},
		{"update unknown entry", http.MethodPut, "/api/portfolio/9999", `{"notes": "x"}`, http.StatusNotFound},
		{"update bad status", http.MethodPut, "/api/portfolio/9999", `{"status": "flipped"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/portfolio/abc", "", http.StatusBadRequest},
		{"delete unknown entry", http.MethodDelete, "/api/portfolio/9999", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, authReq(tt.method, tt.path, tt.body, testToken))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}
