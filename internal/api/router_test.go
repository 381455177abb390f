package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/propeval/internal/filter"
	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
	"github.com/kalambet/propeval/internal/strategy"
)

const testToken = "test-token-12345"

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestPipeline(store *storage.Store) *pipeline.Pipeline {
	cfg := pipeline.Config{
		Filters:     filter.Config{MaxPrice: 500000, MinPopulation: 50000},
		Strategy:    strategy.Options{RiskTolerance: strategy.RiskModerate},
		VisionDelay: 65 * time.Second,
	}
	return pipeline.New(store, pipeline.Providers{}, cfg,
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func setupAppHandler(t *testing.T, token string) (http.Handler, AppDeps) {
	t.Helper()
	store := openTestStore(t)
	deps := AppDeps{Store: store, Pipeline: newTestPipeline(store), Token: token}
	return NewAppHandler(deps), deps
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v; body = %s", err, rr.Body.String())
	}
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, rr, &body)
	return body.Error.Type
}

// seedListing stores a listing that clears every hard filter.
func seedListing(t *testing.T, store *storage.Store, externalID string) int64 {
	t.Helper()
	l := &listing.Listing{
		ListingID:   externalID,
		Title:       "Tidy weatherboard " + externalID,
		Address:     externalID + " Example Street",
		District:    "Hamilton City",
		Region:      "Waikato",
		Bedrooms:    listing.Int(3),
		LandArea:    listing.Float64(650),
		FloorArea:   listing.Float64(110),
		AskingPrice: listing.Float64(420000),
		Photos:      []string{"https://img/" + externalID + "/1.jpg"},
		NearbyProperties: []listing.NearbySale{
			{Address: "1 Near St", PriceNumeric: 560000},
			{Address: "2 Near St", PriceNumeric: 590000},
		},
	}
	if _, err := store.UpsertListing(context.Background(), l); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	return l.ID
}

func TestHealth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	rr := serve(h, authReq(http.MethodGet, "/health", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestMetricsEndpointIsOpen(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	rr := serve(h, authReq(http.MethodGet, "/metrics", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{"missing token", testToken, "", http.StatusUnauthorized},
		{"wrong token", testToken, "nope", http.StatusUnauthorized},
		{"right token", testToken, testToken, http.StatusOK},
		{"auth disabled", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupAppHandler(t, tt.configured)
			rr := serve(h, authReq(http.MethodGet, "/api/pipeline/status", "", tt.sent))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && errorType(t, rr) != "authentication_error" {
				t.Error("expected authentication_error envelope")
			}
		})
	}
}

func TestRun_QueuesThenConflicts(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)

	rr := serve(h, authReq(http.MethodPost, "/api/pipeline/run", "", testToken))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body = %s", rr.Code, rr.Body.String())
	}
	var resp queuedResponse
	decodeBody(t, rr, &resp)
	if resp.Status != "queued" || resp.JobID == "" {
		t.Errorf("response = %+v", resp)
	}
	job, err := deps.Store.GetJob(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Type != "analyze_pending" {
		t.Errorf("job type = %q, want analyze_pending", job.Type)
	}

	for _, path := range []string{"/api/pipeline/run", "/api/pipeline/analyze"} {
		rr = serve(h, authReq(http.MethodPost, path, "", testToken))
		if rr.Code != http.StatusConflict {
			t.Fatalf("%s status = %d, want 409", path, rr.Code)
		}
		if got := errorType(t, rr); got != "conflict" {
			t.Errorf("error type = %q, want conflict", got)
		}
	}
}

func TestRun_ConflictWhileRunning(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	deps.Pipeline.Status().Start(pipeline.TaskAnalyze, "analysing", 3)

	rr := serve(h, authReq(http.MethodPost, "/api/pipeline/run", "", testToken))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestRun_ConcurrentRequestsQueueOnce(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	const requests = 6
	codes := make(chan int, requests)
	var wg sync.WaitGroup
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- serve(h, authReq(http.MethodPost, "/api/pipeline/run", "", testToken)).Code
		}()
	}
	wg.Wait()
	close(codes)

	accepted := 0
	for code := range codes {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if accepted != 1 {
		t.Errorf("%d concurrent runs accepted, want 1", accepted)
	}
}

func TestAnalyzeListing(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	id := seedListing(t, deps.Store, "TM1")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"known listing", "/api/pipeline/analyze/" + itoa(id), http.StatusAccepted},
		{"unknown listing", "/api/pipeline/analyze/9999", http.StatusNotFound},
		{"bad id", "/api/pipeline/analyze/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, authReq(http.MethodPost, tt.path, "", testToken))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	active, err := deps.Store.HasActiveJob(context.Background(), []string{"analyze_listing"})
	if err != nil || !active {
		t.Errorf("HasActiveJob = %v, %v; want a queued analyze_listing job", active, err)
	}
}

func TestStatus(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	deps.Pipeline.Status().Start(pipeline.TaskAnalyze, "Analyzing 2 listings", 2)
	deps.Pipeline.Status().Progress("Analyzing listing 1 of 2", 1, 2)

	rr := serve(h, authReq(http.MethodGet, "/api/pipeline/status", "", testToken))
	var snap pipeline.StatusSnapshot
	decodeBody(t, rr, &snap)
	if !snap.Running || snap.Task != pipeline.TaskAnalyze {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Progress == nil || snap.Progress.Current != 1 || snap.Progress.Total != 2 {
		t.Errorf("progress = %+v, want 1/2", snap.Progress)
	}
	if snap.Queued {
		t.Error("queued reported with an empty job queue")
	}
}

func TestStatus_ReportsQueuedRun(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	if rr := serve(h, authReq(http.MethodPost, "/api/pipeline/run", "", testToken)); rr.Code != http.StatusAccepted {
		t.Fatalf("run status = %d", rr.Code)
	}
	rr := serve(h, authReq(http.MethodGet, "/api/pipeline/status", "", testToken))
	var snap pipeline.StatusSnapshot
	decodeBody(t, rr, &snap)
	if snap.Running || !snap.Queued {
		t.Errorf("snapshot = %+v, want a queued run that has not started", snap)
	}
}

func TestImport(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	body := `[
  {"listing_id": "TM10", "display_price": "$450,000", "district": "Hamilton City", "region": "Waikato"},
  {"listing_id": "TM11", "display_price": "Auction", "district": "Hamilton City", "region": "Waikato"}
]`
	rr := serve(h, authReq(http.MethodPost, "/api/listings/import", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var res ImportResult
	decodeBody(t, rr, &res)
	if res.Created != 2 || res.Errors != 0 {
		t.Errorf("first import = %+v, want 2 created", res)
	}

	l, err := deps.Store.GetListingByExternalID(context.Background(), "TM10")
	if err != nil {
		t.Fatal(err)
	}
	if l.AskingPrice == nil || *l.AskingPrice != 450000 {
		t.Errorf("AskingPrice = %v, want parsed 450000", l.AskingPrice)
	}

	// Same payload again, then one changed fact, as JSON lines.
	rr = serve(h, authReq(http.MethodPost, "/api/listings/import", body, testToken))
	decodeBody(t, rr, &res)
	if res.Unchanged != 2 {
		t.Errorf("re-import = %+v, want 2 unchanged", res)
	}
	lines := `{"listing_id": "TM10", "display_price": "$440,000", "district": "Hamilton City", "region": "Waikato"}` + "\n"
	rr = serve(h, authReq(http.MethodPost, "/api/listings/import", lines, testToken))
	decodeBody(t, rr, &res)
	if res.Updated != 1 {
		t.Errorf("changed import = %+v, want 1 updated", res)
	}
}

func TestImport_BadPayload(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	for _, body := range []string{`[{"title": "no id"}]`, `{"listing_id":`, ``} {
		rr := serve(h, authReq(http.MethodPost, "/api/listings/import", body, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestListListings(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	seedListing(t, deps.Store, "A")
	seedListing(t, deps.Store, "B")

	rr := serve(h, authReq(http.MethodGet, "/api/listings?filter_status=pending&limit=1", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var got []listing.Listing
	decodeBody(t, rr, &got)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 with limit=1", len(got))
	}

	rr = serve(h, authReq(http.MethodGet, "/api/listings?filter_status=rejected", "", testToken))
	decodeBody(t, rr, &got)
	if len(got) != 0 {
		t.Errorf("rejected listings = %d, want 0", len(got))
	}

	rr = serve(h, authReq(http.MethodGet, "/api/listings?analysis_status=bogus", "", testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bogus status = %d, want 400", rr.Code)
	}
}

func TestAnalysedListingEndpoints(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	id := seedListing(t, deps.Store, "TM20")
	path := itoa(id)

	// Before analysis the report is missing but the listing is found.
	if rr := serve(h, authReq(http.MethodGet, "/api/analysis/"+path+"/report", "", testToken)); rr.Code != http.StatusNotFound {
		t.Fatalf("report before analysis: status = %d, want 404", rr.Code)
	}
	if rr := serve(h, authReq(http.MethodGet, "/api/analysis/"+path, "", testToken)); rr.Code != http.StatusNotFound {
		t.Fatalf("analysis before run: status = %d, want 404", rr.Code)
	}

	if _, err := deps.Pipeline.AnalyzePending(context.Background()); err != nil {
		t.Fatalf("AnalyzePending: %v", err)
	}

	rr := serve(h, authReq(http.MethodGet, "/api/listings/"+path, "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("listing detail: status = %d", rr.Code)
	}
	var detail map[string]any
	decodeBody(t, rr, &detail)
	if detail["listing_id"] != "TM20" {
		t.Errorf("listing_id = %v", detail["listing_id"])
	}
	if detail["composite_score"] == nil || detail["verdict"] == "" || detail["rank"] != float64(1) {
		t.Errorf("detail missing analysis summary: %v", detail)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/analysis/"+path, "", testToken))
	var a listing.Analysis
	decodeBody(t, rr, &a)
	if a.CompositeScore == nil || a.Strategy == nil {
		t.Errorf("analysis incomplete: %+v", a)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/analysis/"+path+"/report", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("report: status = %d", rr.Code)
	}
	var report pipeline.Report
	decodeBody(t, rr, &report)
	if report.ListingID != "TM20" || report.Rank == nil || *report.Rank != 1 {
		t.Errorf("report = %+v", report)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/listings/ranked", "", testToken))
	var ranked []storage.Ranked
	decodeBody(t, rr, &ranked)
	if len(ranked) != 1 || ranked[0].Listing.ListingID != "TM20" {
		t.Errorf("ranked = %+v", ranked)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/stats", "", testToken))
	var stats storage.Stats
	decodeBody(t, rr, &stats)
	if stats.Total != 1 || stats.Scored != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestScenario(t *testing.T) {
	h, deps := setupAppHandler(t, testToken)
	id := seedListing(t, deps.Store, "TM30")

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty body uses stored figures", "/api/analysis/" + itoa(id) + "/scenario", "", http.StatusOK},
		{"overrides", "/api/analysis/" + itoa(id) + "/scenario", `{"purchase_price": 400000, "weekly_rent": 650}`, http.StatusOK},
		{"malformed", "/api/analysis/" + itoa(id) + "/scenario", `{"purchase_price":`, http.StatusBadRequest},
		{"unknown listing", "/api/analysis/9999/scenario", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, authReq(http.MethodPost, tt.path, tt.body, testToken))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := serve(h, authReq(http.MethodPost, "/api/analysis/"+itoa(id)+"/scenario", `{"purchase_price": 400000}`, testToken))
	var res pipeline.ScenarioResult
	decodeBody(t, rr, &res)
	if res.Inputs.PurchasePrice != 400000 {
		t.Errorf("PurchasePrice = %v, want 400000", res.Inputs.PurchasePrice)
	}
	if res.Flip == nil || res.Rental == nil || res.Strategy == nil {
		t.Errorf("scenario incomplete: %+v", res)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
