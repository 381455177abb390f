package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/propeval/internal/listing"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
	maxTokens      = 1024
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

const promptTemplate = `You are assessing a New Zealand residential property for an investor planning renovation.
Review these %d listing photos together and return ONE JSON object for the whole property.

Required fields:
- roof_condition: GOOD | FAIR | POOR | NEEDS_REPLACE | UNKNOWN
- exterior_condition: GOOD | FAIR | POOR | UNKNOWN
- interior_quality: MODERN | DATED | VERY_DATED | UNKNOWN
- kitchen_age: e.g. "<5yr", "5-10yr", "10-20yr", "20yr+", "UNKNOWN"
- bathroom_age: same scale as kitchen_age
- structural_concerns: list of short strings (e.g. "weatherboard rot", "foundation cracks", "moisture damage")
- overall_reno_level: NONE | COSMETIC | MODERATE | MAJOR | FULL_GUT
- key_renovation_items: list of short strings
- confidence: HIGH | MEDIUM | LOW

Optional fields:
- estimated_renovation_cost_nzd: number
- estimated_timeline_weeks: integer

Consider NZ building context: weatherboard cladding, leaky-building era homes, Healthy Homes standards for heating, insulation and ventilation.
Return only valid JSON, no markdown.`

// Client calls an OpenAI-compatible chat completions endpoint with
// image inputs.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxPhotos  int
	httpClient *http.Client
}

// NewClient creates a vision client for the OpenAI API.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     model,
		maxPhotos: MaxPhotos,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) Name() string { return "openai" }

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Analyze sends up to maxPhotos photos in a single request and decodes the
// model's JSON reply.
func (c *Client) Analyze(ctx context.Context, photos []string) (*listing.ImageAnalysis, error) {
	photos = Select(photos, c.maxPhotos)
	if len(photos) == 0 {
		return NoPhotos(), nil
	}

	parts := []contentPart{{Type: "text", Text: fmt.Sprintf(promptTemplate, len(photos))}}
	for _, u := range photos {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u, Detail: "low"}})
	}
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: parts}},
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	raw, err := c.chat(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	slog.Info("vision: usage",
		"model", c.model,
		"photos", len(photos),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
	)
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}

	return decodeAnalysis(resp.Choices[0].Message.Content, "openai_vision")
}

// decodeAnalysis pulls the JSON object out of a model reply and normalizes
// it into an ImageAnalysis attributed to source.
func decodeAnalysis(reply, source string) (*listing.ImageAnalysis, error) {
	obj, ok := ExtractJSON(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model reply")
	}
	var out listing.ImageAnalysis
	if err := json.Unmarshal(obj, &out); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	out.OverallRenoLevel = listing.RenoLevel(strings.ToUpper(strings.TrimSpace(string(out.OverallRenoLevel))))
	if out.StructuralConcerns == nil {
		out.StructuralConcerns = []string{}
	}
	if out.KeyRenovationItems == nil {
		out.KeyRenovationItems = []string{}
	}
	out.Source = source
	return &out, nil
}

func (c *Client) chat(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := range maxRetries {
		raw, err := c.doChat(ctx, body)
		if err == nil {
			return raw, nil
		}

		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

func (c *Client) doChat(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{status: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
