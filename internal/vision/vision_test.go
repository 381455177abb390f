package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kalambet/propeval/internal/listing"
)

func chatReply(t *testing.T, content string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		"usage":   map[string]int{"prompt_tokens": 900, "completion_tokens": 120, "total_tokens": 1020},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

const modelJSON = `{"roof_condition":"FAIR","exterior_condition":"POOR","interior_quality":"DATED",
"kitchen_age":"20yr+","bathroom_age":"10-20yr","structural_concerns":["weatherboard rot"],
"overall_reno_level":"major","key_renovation_items":["Reclad north wall"],"confidence":"MEDIUM"}`

func TestAnalyze_SendsPhotosAndDecodes(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, chatReply(t, "```json\n"+modelJSON+"\n```"))
	}))
	defer srv.Close()

	photos := make([]string, 9)
	for i := range photos {
		photos[i] = fmt.Sprintf("https://img.example/%d.jpg", i)
	}

	c := NewClientWithBaseURL("test-key", "", srv.URL)
	res, err := c.Analyze(context.Background(), photos)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got.Model != defaultModel {
		t.Errorf("model = %q, want %q", got.Model, defaultModel)
	}
	if got.MaxTokens != maxTokens || got.ResponseFormat.Type != "json_object" {
		t.Errorf("request = %+v", got)
	}
	parts := got.Messages[0].Content
	if len(parts) != 1+MaxPhotos {
		t.Fatalf("content parts = %d, want %d", len(parts), 1+MaxPhotos)
	}
	if !strings.Contains(parts[0].Text, "6 listing photos") {
		t.Errorf("prompt does not state photo count: %q", parts[0].Text[:80])
	}

	if res.OverallRenoLevel != listing.RenoMajor {
		t.Errorf("level = %q, want MAJOR", res.OverallRenoLevel)
	}
	if res.Source != "openai_vision" {
		t.Errorf("source = %q", res.Source)
	}
	if len(res.StructuralConcerns) != 1 || res.StructuralConcerns[0] != "weatherboard rot" {
		t.Errorf("concerns = %v", res.StructuralConcerns)
	}
}

func TestAnalyze_RateLimit_Retry(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chatReply(t, modelJSON))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "", srv.URL)
	if _, err := c.Analyze(context.Background(), []string{"https://img.example/a.jpg"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestAnalyze_RateLimit_Exhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "", srv.URL)
	_, err := c.Analyze(context.Background(), []string{"https://img.example/a.jpg"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %v", err)
	}
	if n := attempts.Load(); n != int32(maxRetries) {
		t.Errorf("attempts = %d, want %d", n, maxRetries)
	}
}

func TestAnalyze_UnparseableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(t, "I cannot see the photos."))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "", srv.URL)
	if _, err := c.Analyze(context.Background(), []string{"https://img.example/a.jpg"}); err == nil {
		t.Fatal("expected error for reply without JSON")
	}
}

type failingAnalyzer struct{}

func (failingAnalyzer) Name() string { return "failing" }
func (failingAnalyzer) Analyze(context.Context, []string) (*listing.ImageAnalysis, error) {
	return nil, errors.New("boom")
}

func TestAssess(t *testing.T) {
	ctx := context.Background()

	if got := Assess(ctx, Mock{}, nil); got.Source != "no_photos" || got.OverallRenoLevel != listing.RenoModerate {
		t.Errorf("no photos = %+v", got)
	}

	got := Assess(ctx, failingAnalyzer{}, []string{"a"})
	if got.Source != "heuristic" {
		t.Errorf("source = %q, want heuristic", got.Source)
	}
	if got.OverallRenoLevel != listing.RenoMajor || got.ExteriorCondition != "FAIR" || got.InteriorQuality != "DATED" {
		t.Errorf("heuristic = %+v", got)
	}

	got = Assess(ctx, Mock{}, []string{"a"})
	if got.Source != "mock_default" || len(got.KeyRenovationItems) != 4 {
		t.Errorf("mock = %+v", got)
	}
	if IsFallback(got) {
		t.Error("a provider result should not count as a fallback")
	}
}

type emptyAnalyzer struct{}

func (emptyAnalyzer) Name() string { return "empty" }
func (emptyAnalyzer) Analyze(context.Context, []string) (*listing.ImageAnalysis, error) {
	return nil, nil
}

func TestAssess_NilResultFallsBack(t *testing.T) {
	got := Assess(context.Background(), emptyAnalyzer{}, []string{"a"})
	if got == nil {
		t.Fatal("Assess returned nil for an empty provider result")
	}
	if got.Source != FallbackSource || !IsFallback(got) {
		t.Errorf("source = %q, want the heuristic fallback", got.Source)
	}
}

func TestSummarize(t *testing.T) {
	r := func(v int) *int { return &v }
	tests := []struct {
		name   string
		photos []PhotoAnalysis
		want   listing.RenoLevel
	}{
		{"none", nil, listing.RenoMajor},
		{"tidy", []PhotoAnalysis{{ConditionRating: r(9)}, {ConditionRating: r(8)}}, listing.RenoCosmetic},
		{"average", []PhotoAnalysis{{ConditionRating: r(7)}, {ConditionRating: r(6)}}, listing.RenoModerate},
		{"rough", []PhotoAnalysis{{ConditionRating: r(2)}, {ConditionRating: r(3)}}, listing.RenoFullGut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.photos)
			if got.OverallRenoLevel != tt.want {
				t.Errorf("level = %q, want %q", got.OverallRenoLevel, tt.want)
			}
		})
	}

	got := Summarize([]PhotoAnalysis{
		{ConditionRating: r(5), IssuesDetected: []string{"mould", "rot"}, RenovationIndicators: map[string]bool{"kitchen": true}},
		{ConditionRating: r(5), IssuesDetected: []string{"rot"}, RenovationIndicators: map[string]bool{"bathroom": true, "roof": false}},
	})
	if len(got.StructuralConcerns) != 2 {
		t.Errorf("concerns = %v, want deduplicated", got.StructuralConcerns)
	}
	if strings.Join(got.KeyRenovationItems, ",") != "bathroom,kitchen" {
		t.Errorf("items = %v", got.KeyRenovationItems)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose", `Here you go: {"a":1} hope that helps`, `{"a":1}`, true},
		{"trailing comma", `{"a":[1,2,],}`, `{"a":[1,2]}`, true},
		{"empty", "", "", false},
		{"no object", "nothing here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if a, err := New(Config{}); err != nil || a.Name() != "mock" {
		t.Errorf("default = %v, %v", a, err)
	}
	if _, err := New(Config{Provider: "openai"}); err == nil {
		t.Error("openai without key should fail")
	}
	if a, err := New(Config{Provider: "openai", APIKey: "k"}); err != nil || a.Name() != "openai" {
		t.Errorf("openai = %v, %v", a, err)
	}
	if a, err := New(Config{Provider: "ollama"}); err != nil || a.Name() != "ollama" {
		t.Errorf("ollama = %v, %v", a, err)
	}
	if _, err := New(Config{Provider: "llava"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
