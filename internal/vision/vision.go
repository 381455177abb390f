// Package vision assesses renovation needs from listing photos.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/propeval/internal/listing"
)

// MaxPhotos is the number of photos sent per assessment.
const MaxPhotos = 6

// Analyzer turns a set of photo URLs into a renovation signal.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, photos []string) (*listing.ImageAnalysis, error)
}

type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxPhotos int
}

// New returns the analyzer selected by cfg.Provider.
func New(cfg Config) (Analyzer, error) {
	switch cfg.Provider {
	case "", "mock":
		return Mock{}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("vision provider openai requires an API key")
		}
		c := NewClient(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			c = NewClientWithBaseURL(cfg.APIKey, cfg.Model, cfg.BaseURL)
		}
		if cfg.MaxPhotos > 0 {
			c.maxPhotos = cfg.MaxPhotos
		}
		return c, nil
	case "ollama":
		o := NewOllama(cfg.BaseURL, cfg.Model)
		if cfg.MaxPhotos > 0 {
			o.maxPhotos = cfg.MaxPhotos
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}

// Select returns the photos that will be sent for analysis.
func Select(photos []string, limit int) []string {
	if limit <= 0 {
		limit = MaxPhotos
	}
	if len(photos) > limit {
		return photos[:limit]
	}
	return photos
}

// FallbackSource tags the heuristic signal used when the provider fails.
const FallbackSource = "heuristic"

// Assess runs a with the no-photo default and the heuristic fallback applied,
// so it always returns a usable signal. A provider that returns no result
// and no error is treated as failed.
func Assess(ctx context.Context, a Analyzer, photos []string) *listing.ImageAnalysis {
	if len(photos) == 0 {
		return NoPhotos()
	}
	result, err := a.Analyze(ctx, photos)
	if err == nil && result == nil {
		err = errors.New("provider returned no analysis")
	}
	if err != nil {
		slog.Warn("vision: analysis failed, using heuristic", "provider", a.Name(), "error", err)
		return Summarize(nil)
	}
	return result
}

// IsFallback reports whether img is the heuristic stand-in for a failed
// provider call rather than a real assessment.
func IsFallback(img *listing.ImageAnalysis) bool {
	return img == nil || img.Source == FallbackSource
}

// NoPhotos is the signal for a listing without photos.
func NoPhotos() *listing.ImageAnalysis {
	return &listing.ImageAnalysis{
		RoofCondition:      "UNKNOWN",
		ExteriorCondition:  "UNKNOWN",
		InteriorQuality:    "UNKNOWN",
		KitchenAge:         "UNKNOWN",
		BathroomAge:        "UNKNOWN",
		StructuralConcerns: []string{},
		OverallRenoLevel:   listing.RenoModerate,
		KeyRenovationItems: []string{},
		Confidence:         "LOW",
		Source:             "no_photos",
	}
}
