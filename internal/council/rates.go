package council

import (
	"context"
	"net/http"
	"net/url"

	"github.com/buger/jsonparser"

	"github.com/kalambet/propeval/internal/providers"
)

const ratesProvider = "council_rates"

// Rates looks up property-specific council rates for councils that publish
// a rates endpoint. The endpoint answers GET {url}?address= with
// {"annual_rates":..,"water_charges":..}.
type Rates struct {
	registry   *Registry
	httpClient *http.Client
}

func NewRates(registry *Registry) *Rates {
	return &Rates{
		registry:   registry,
		httpClient: &http.Client{Timeout: providers.DefaultTimeout},
	}
}

func (r *Rates) Rates(ctx context.Context, address, district string) (providers.RatesQuote, error) {
	c, ok := r.registry.Resolve(district, "")
	if !ok || c.RatesAPIURL == "" {
		return providers.RatesQuote{}, providers.NewProviderError(providers.CategoryNotConfigured, ratesProvider, "no rates endpoint for "+district, providers.ErrNotConfigured)
	}

	endpoint := c.RatesAPIURL + "?" + url.Values{"address": {address}}.Encode()
	body, err := providers.Do(ctx, r.httpClient, ratesProvider, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return providers.RatesQuote{}, err
	}

	annual, err := jsonparser.GetFloat(body, "annual_rates")
	if err != nil || annual <= 0 {
		return providers.RatesQuote{}, providers.NewProviderError(providers.CategoryBadData, ratesProvider, "missing annual_rates", err)
	}
	water, _ := jsonparser.GetFloat(body, "water_charges")
	return providers.RatesQuote{AnnualRates: annual, WaterCharges: water}, nil
}
