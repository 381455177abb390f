package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/storage"
)

const maxImportBodySize = 20 << 20 // 20MB

// ImportResult counts what an import did with each listing.
type ImportResult struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    int      `json:"errors"`
	Messages  []string `json:"messages,omitempty"`
}

// ImportListings upserts every listing. A failing listing is counted and
// skipped; the rest are still stored.
func ImportListings(ctx context.Context, store *storage.Store, listings []listing.Listing) ImportResult {
	var res ImportResult
	for i := range listings {
		l := &listings[i]
		outcome, err := store.UpsertListing(ctx, l)
		if err != nil {
			res.Errors++
			res.Messages = append(res.Messages, fmt.Sprintf("%s: %v", l.ListingID, err))
			continue
		}
		switch outcome {
		case storage.Created:
			res.Created++
		case storage.Updated:
			res.Updated++
		case storage.Unchanged:
			res.Unchanged++
		}
	}
	return res
}

// listingDetail is a listing with the headline figures of its analysis.
type listingDetail struct {
	*listing.Listing
	CompositeScore      *float64        `json:"composite_score"`
	Verdict             listing.Verdict `json:"verdict,omitempty"`
	RecommendedStrategy string          `json:"recommended_strategy,omitempty"`
	Rank                *int            `json:"rank"`
}

func handleListListings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := storage.ListingFilter{
			FilterStatus:   listing.FilterStatus(q.Get("filter_status")),
			AnalysisStatus: listing.AnalysisStatus(q.Get("analysis_status")),
			Limit:          parseIntParam(r, "limit", 100, 1000),
		}
		switch f.FilterStatus {
		case "", listing.FilterPending, listing.FilterPassed, listing.FilterRejected:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request", "unknown filter_status %q", f.FilterStatus)
			return
		}
		switch f.AnalysisStatus {
		case "", listing.AnalysisPending, listing.AnalysisInProgress, listing.AnalysisCompleted, listing.AnalysisFailed:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request", "unknown analysis_status %q", f.AnalysisStatus)
			return
		}

		listings, err := deps.Store.ListListings(r.Context(), f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to list listings: %v", err)
			return
		}
		if listings == nil {
			listings = []listing.Listing{}
		}
		writeJSON(w, http.StatusOK, listings)
	}
}

func handleRanked(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ranked, err := deps.Store.RankedListings(r.Context(), parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to load ranking: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, ranked)
	}
}

func handleGetListing(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		l, err := deps.Store.GetListing(r.Context(), id)
		if err != nil {
			lookupError(w, err, "listing")
			return
		}

		detail := listingDetail{Listing: l}
		a, err := deps.Store.GetAnalysis(r.Context(), id)
		switch {
		case err == nil:
			detail.CompositeScore = a.CompositeScore
			detail.Verdict = a.Verdict
			detail.Rank = a.Rank
			if a.Strategy != nil {
				detail.RecommendedStrategy = a.Strategy.RecommendedStrategy
			}
		case !isNotFound(err):
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to load analysis: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		listings, err := listing.DecodeBatch(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid listings payload: %v", err)
			return
		}
		if len(listings) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request", "no listings in payload")
			return
		}
		writeJSON(w, http.StatusOK, ImportListings(r.Context(), deps.Store, listings))
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.ListingStats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
