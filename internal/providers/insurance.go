package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const insuranceProvider = "insurance"

// InsuranceClient requests annual premium quotes from an insurer quoting API
// (POST {base}/quotes).
type InsuranceClient struct {
	baseURL    string
	apiKey     string
	insurer    string
	httpClient *http.Client
}

func NewInsuranceClient(baseURL, apiKey, insurer string) *InsuranceClient {
	return &InsuranceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		insurer:    insurer,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type quoteRequest struct {
	Address      string  `json:"address"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    int     `json:"bathrooms"`
	FloorArea    float64 `json:"floor_area,omitempty"`
	LandArea     float64 `json:"land_area,omitempty"`
	PropertyType string  `json:"property_type"`
}

type quoteResponse struct {
	Insurable     *bool   `json:"insurable"`
	AnnualPremium float64 `json:"annual_premium"`
	Insurer       string  `json:"insurer"`
	Note          string  `json:"note"`
}

func (c *InsuranceClient) Quote(ctx context.Context, q InsuranceQuery) (InsuranceQuote, error) {
	if c.apiKey == "" {
		return InsuranceQuote{}, NewProviderError(CategoryNotConfigured, insuranceProvider, "no api key", ErrNotConfigured)
	}
	payload, err := json.Marshal(quoteRequest(q))
	if err != nil {
		return InsuranceQuote{}, err
	}

	body, err := Do(ctx, c.httpClient, insuranceProvider, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quotes", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return InsuranceQuote{}, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return InsuranceQuote{}, NewProviderError(CategoryBadData, insuranceProvider, "decoding quote", err)
	}
	if resp.AnnualPremium <= 0 {
		return InsuranceQuote{}, NewProviderError(CategoryBadData, insuranceProvider, "quote has no premium", nil)
	}

	quote := InsuranceQuote{
		Insurable:       true,
		AnnualInsurance: resp.AnnualPremium,
		Insurer:         resp.Insurer,
		Note:            resp.Note,
	}
	if resp.Insurable != nil {
		quote.Insurable = *resp.Insurable
	}
	if quote.Insurer == "" {
		quote.Insurer = c.insurer
	}
	return quote, nil
}
