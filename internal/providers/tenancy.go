package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

const (
	tenancyProvider   = "tenancy"
	minLocalBondCount = 5
	maxBondComps      = 5
)

// TenancyClient reads bond lodgement records from a tenancy bond data
// service. The service answers GET {base}/bonds?location=&bedrooms= with
// {"bonds":[{"location":..,"bedrooms":..,"weekly_rent":..}]}.
type TenancyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewTenancyClient(baseURL, apiKey string) *TenancyClient {
	return &TenancyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Bonds returns the median weekly rent for the district, widening the search
// to the region when the district has fewer than five bonds.
func (c *TenancyClient) Bonds(ctx context.Context, q TenancyQuery) (BondData, error) {
	location := q.District
	if location == "" {
		location = q.Suburb
	}
	bonds, err := c.fetch(ctx, location, q.Bedrooms)
	if err != nil {
		return BondData{}, err
	}
	if len(bonds) < minLocalBondCount && q.Region != "" {
		wider, err := c.fetch(ctx, q.Region, q.Bedrooms)
		if err != nil {
			return BondData{}, err
		}
		bonds = wider
	}

	rents := make([]float64, 0, len(bonds))
	for _, b := range bonds {
		if b.WeeklyRent > 0 {
			rents = append(rents, b.WeeklyRent)
		}
	}
	if len(rents) == 0 {
		return BondData{Source: "unavailable"}, nil
	}

	comps := bonds
	if len(comps) > maxBondComps {
		comps = comps[:maxBondComps]
	}
	return BondData{
		MedianWeeklyRent: Median(rents),
		Samples:          len(bonds),
		Comps:            comps,
		Source:           "tenancy_bond",
	}, nil
}

func (c *TenancyClient) fetch(ctx context.Context, location string, bedrooms int) ([]BondComp, error) {
	params := url.Values{}
	params.Set("location", location)
	params.Set("bedrooms", strconv.Itoa(bedrooms))
	endpoint := c.baseURL + "/bonds?" + params.Encode()

	body, err := Do(ctx, c.httpClient, tenancyProvider, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var bonds []BondComp
	var parseErr error
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if parseErr != nil || dataType != jsonparser.Object {
			return
		}
		rent, err := jsonparser.GetFloat(value, "weekly_rent")
		if err != nil {
			parseErr = err
			return
		}
		loc, _ := jsonparser.GetString(value, "location")
		beds, _ := jsonparser.GetInt(value, "bedrooms")
		bonds = append(bonds, BondComp{Location: loc, Bedrooms: int(beds), WeeklyRent: rent})
	}, "bonds")
	if err == jsonparser.KeyPathNotFoundError {
		return nil, nil
	}
	if err != nil {
		return nil, NewProviderError(CategoryBadData, tenancyProvider, "parsing bonds", err)
	}
	if parseErr != nil {
		return nil, NewProviderError(CategoryBadData, tenancyProvider, fmt.Sprintf("parsing bond for %s", location), parseErr)
	}
	return bonds, nil
}

// Median returns the middle value of xs, averaging the two central values
// for an even count. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
