package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/propeval/internal/listing"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llava"

	// maxPhotoBytes caps a single downloaded photo.
	maxPhotoBytes = 8 << 20
)

// Ollama assesses photos with a vision model served by a local Ollama
// instance. Ollama takes images inline, so photos are downloaded and sent
// base64 encoded.
type Ollama struct {
	baseURL    string
	model      string
	maxPhotos  int
	httpClient *http.Client
	fetch      *http.Client
}

// NewOllama creates an Ollama analyzer. Empty arguments select the local
// default endpoint and model.
func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &Ollama{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		maxPhotos: MaxPhotos,
		// Local inference on several images can take minutes.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		fetch:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *Ollama) Name() string { return "ollama" }

// ollamaMessage is a chat message in the Ollama API format.
type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaSchema describes the JSON object the model must return.
type ollamaSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type schemaProperty struct {
	Type  string          `json:"type"`
	Enum  []string        `json:"enum,omitempty"`
	Items *schemaProperty `json:"items,omitempty"`
}

var analysisSchema = &ollamaSchema{
	Type: "object",
	Properties: map[string]schemaProperty{
		"roof_condition":                {Type: "string", Enum: []string{"GOOD", "FAIR", "POOR", "NEEDS_REPLACE", "UNKNOWN"}},
		"exterior_condition":            {Type: "string", Enum: []string{"GOOD", "FAIR", "POOR", "UNKNOWN"}},
		"interior_quality":              {Type: "string", Enum: []string{"MODERN", "DATED", "VERY_DATED", "UNKNOWN"}},
		"kitchen_age":                   {Type: "string"},
		"bathroom_age":                  {Type: "string"},
		"structural_concerns":           {Type: "array", Items: &schemaProperty{Type: "string"}},
		"overall_reno_level":            {Type: "string", Enum: []string{"NONE", "COSMETIC", "MODERATE", "MAJOR", "FULL_GUT"}},
		"key_renovation_items":          {Type: "array", Items: &schemaProperty{Type: "string"}},
		"confidence":                    {Type: "string", Enum: []string{"HIGH", "MEDIUM", "LOW"}},
		"estimated_renovation_cost_nzd": {Type: "number"},
		"estimated_timeline_weeks":      {Type: "integer"},
	},
	Required: []string{"roof_condition", "exterior_condition", "interior_quality", "overall_reno_level", "confidence"},
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Analyze downloads up to maxPhotos photos and asks the model for one
// structured assessment. Photos that fail to download are skipped.
func (o *Ollama) Analyze(ctx context.Context, photos []string) (*listing.ImageAnalysis, error) {
	photos = Select(photos, o.maxPhotos)
	if len(photos) == 0 {
		return NoPhotos(), nil
	}

	var images []string
	for _, u := range photos {
		img, err := o.download(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("none of %d photos could be downloaded", len(photos))
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: fmt.Sprintf(promptTemplate, len(images)),
			Images:  images,
		}},
		Format: analysisSchema,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return decodeAnalysis(result.Message.Content, "ollama_vision")
}

func (o *Ollama) download(ctx context.Context, photoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.fetch.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", photoURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HasModel reports whether the model is present locally. An unreachable
// server is an error.
func (o *Ollama) HasModel(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("Ollama is not reachable at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("listing models: unexpected status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decoding model list: %w", err)
	}
	for _, m := range tags.Models {
		// "llava:latest" matches "llava".
		if m.Name == o.model || strings.HasPrefix(m.Name, o.model+":") {
			return true, nil
		}
	}
	return false, nil
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// EnsureReady checks the server is up and pulls the model if it is
// missing, writing progress to w.
func (o *Ollama) EnsureReady(ctx context.Context, w io.Writer) error {
	ok, err := o.HasModel(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(w, "model %s: ready\n", o.model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", o.model)
	body, err := json.Marshal(map[string]any{"name": o.model, "stream": true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls can take far longer than a chat call.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", o.model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull %s: unexpected status %d", o.model, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if p.Total > 0 {
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, float64(p.Completed)/float64(p.Total)*100)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", o.model)
	return nil
}
