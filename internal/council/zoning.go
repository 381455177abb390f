package council

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kalambet/propeval/internal/providers"
)

const zoningProvider = "council_zoning"

// Zoning answers zoning queries for in-scope councils by locating the
// property, asking the council's zone layer and applying the subdivision
// rules table.
type Zoning struct {
	registry   *Registry
	geocoder   providers.Geocoder
	httpClient *http.Client
}

// NewZoning returns a zoning provider. geocoder may be nil, in which case only
// listings carrying their own coordinates can be located.
func NewZoning(registry *Registry, geocoder providers.Geocoder) *Zoning {
	return &Zoning{
		registry:   registry,
		geocoder:   geocoder,
		httpClient: &http.Client{Timeout: providers.DefaultTimeout},
	}
}

func (z *Zoning) Zoning(ctx context.Context, q providers.ZoningQuery) (providers.Zoning, error) {
	c, ok := z.registry.Resolve(q.District, q.Region)
	if !ok || !c.InScope {
		return providers.Zoning{}, providers.NewProviderError(providers.CategoryNotFound, zoningProvider, "council not in scope", nil)
	}

	lat, lng, err := Coordinates(ctx, z.geocoder, q)
	if err != nil {
		return providers.Zoning{}, providers.NewProviderError(providers.CategoryNotFound, zoningProvider, "could not locate property", err)
	}

	zone, err := zoneAtPoint(ctx, z.httpClient, c, lat, lng)
	if err != nil {
		slog.Debug("council: zone lookup failed, using council default", "council", c.ID, "error", err)
		zone = ""
	}
	if zone == "" {
		zone = defaultZone
	}

	rule, ok := z.registry.RulesFor(c.ID, zone)
	if !ok {
		return providers.Zoning{}, providers.NewProviderError(providers.CategoryNotFound, zoningProvider, "no rules for "+c.ID+"/"+zone, nil)
	}
	minLot := rule.MinLotSqm
	if minLot <= 0 {
		minLot = 600
	}
	return providers.Zoning{Zoning: zone, MinLotSize: minLot, Source: "zone_api"}, nil
}
