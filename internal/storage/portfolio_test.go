package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/kalambet/propeval/internal/listing"
)

func TestCreatePortfolioEntry_ProjectsFromAnalysis(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	l := insertListing(t, s, "TM-600")

	err := s.SaveAnalysis(ctx, &listing.Analysis{
		ListingID:      l.ID,
		Renovation:     &listing.RenovationEstimate{TotalEstimated: 48000},
		ARV:            &listing.ARVEstimate{EstimatedARV: 590000},
		RentalEstimate: &listing.RentalEstimate{EstimatedWeeklyRent: 520},
		Flip:           &listing.FlipFinancials{ROIPercentage: 14.2},
	})
	if err != nil {
		t.Fatal(err)
	}

	e := &listing.PortfolioEntry{ListingID: l.ID, PurchasePrice: listing.Float64(430000), Notes: "agent keen"}
	if err := s.CreatePortfolioEntry(ctx, e); err != nil {
		t.Fatalf("CreatePortfolioEntry: %v", err)
	}
	if e.ID == 0 || e.Status != listing.PortfolioWatching {
		t.Errorf("created entry = %+v", e)
	}

	got, err := s.GetPortfolioEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetPortfolioEntry: %v", err)
	}
	if got.ProjectedRenoCost == nil || *got.ProjectedRenoCost != 48000 || *got.ProjectedARV != 590000 ||
		*got.ProjectedWeeklyRent != 520 || *got.ProjectedROI != 14.2 {
		t.Errorf("projections = %+v", got)
	}
	if *got.PurchasePrice != 430000 || got.Notes != "agent keen" || got.ActualRenoCost != nil {
		t.Errorf("entry = %+v", got)
	}
}

func TestCreatePortfolioEntry_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreatePortfolioEntry(ctx, &listing.PortfolioEntry{ListingID: 404}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown listing err = %v, want ErrNotFound", err)
	}

	l := insertListing(t, s, "TM-601")
	if err := s.CreatePortfolioEntry(ctx, &listing.PortfolioEntry{ListingID: l.ID}); err != nil {
		t.Fatalf("entry without an analysis: %v", err)
	}
	if err := s.CreatePortfolioEntry(ctx, &listing.PortfolioEntry{ListingID: l.ID}); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("duplicate err = %v, want ErrAlreadyTracked", err)
	}
}

func TestUpdatePortfolioEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	l := insertListing(t, s, "TM-602")
	if err := s.SaveAnalysis(ctx, &listing.Analysis{ListingID: l.ID, Renovation: &listing.RenovationEstimate{TotalEstimated: 40000}}); err != nil {
		t.Fatal(err)
	}
	e := &listing.PortfolioEntry{ListingID: l.ID, Notes: "first look"}
	if err := s.CreatePortfolioEntry(ctx, e); err != nil {
		t.Fatal(err)
	}

	status := listing.PortfolioRenovating
	got, err := s.UpdatePortfolioEntry(ctx, e.ID, listing.PortfolioUpdate{
		Status:         &status,
		ActualRenoCost: listing.Float64(46500),
	})
	if err != nil {
		t.Fatalf("UpdatePortfolioEntry: %v", err)
	}
	if got.Status != listing.PortfolioRenovating || got.Notes != "first look" {
		t.Errorf("updated entry = %+v", got)
	}
	if got.RenoCostVariance == nil || *got.RenoCostVariance != 6500 {
		t.Errorf("variance = %v, want 6500", got.RenoCostVariance)
	}

	reloaded, err := s.GetPortfolioEntry(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *reloaded.ActualRenoCost != 46500 || reloaded.RenoCostVariance == nil || *reloaded.RenoCostVariance != 6500 {
		t.Errorf("reloaded = %+v", reloaded)
	}

	if _, err := s.UpdatePortfolioEntry(ctx, 999, listing.PortfolioUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown entry err = %v, want ErrNotFound", err)
	}
}

func TestListAndDeletePortfolio(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries, err := s.ListPortfolio(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("empty portfolio = %v, want an empty slice", entries)
	}

	var ids []int64
	for _, ext := range []string{"TM-610", "TM-611"} {
		l := insertListing(t, s, ext)
		e := &listing.PortfolioEntry{ListingID: l.ID}
		if err := s.CreatePortfolioEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID)
	}

	entries, err = s.ListPortfolio(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Same-second timestamps fall back to newest id first.
	if len(entries) != 2 || entries[0].ID != ids[1] {
		t.Errorf("entries = %+v", entries)
	}

	if err := s.DeletePortfolioEntry(ctx, ids[0]); err != nil {
		t.Fatalf("DeletePortfolioEntry: %v", err)
	}
	if _, err := s.GetPortfolioEntry(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted entry err = %v", err)
	}
	if err := s.DeletePortfolioEntry(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
