package council

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/kalambet/propeval/internal/providers"
)

const (
	arcgisProvider   = "arcgis_zone"
	defaultZoneField = "ZONE"
)

// zoneAtPoint queries the council's ArcGIS feature layer for the zone
// polygon containing the point. It returns "" when the council has no usable
// zone API or the point lies outside every zone.
func zoneAtPoint(ctx context.Context, client *http.Client, c *Council, lat, lng float64) (string, error) {
	if c.ZoneAPIType != zoneAPIArcGIS || c.ZoneAPIURL == "" || c.ZoneLayerID == nil {
		return "", nil
	}
	field := c.ZoneCodeField
	if field == "" {
		field = defaultZoneField
	}

	params := url.Values{}
	params.Set("geometry", fmt.Sprintf(`{"x":%s,"y":%s}`, coord(lng), coord(lat)))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("inSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("returnGeometry", "false")
	params.Set("outFields", field)
	params.Set("f", "json")
	endpoint := fmt.Sprintf("%s/%d/query?%s", strings.TrimRight(c.ZoneAPIURL, "/"), *c.ZoneLayerID, params.Encode())

	body, err := providers.Do(ctx, client, arcgisProvider, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return "", err
	}

	// ArcGIS reports query errors in a 200 body.
	if msg, err := jsonparser.GetString(body, "error", "message"); err == nil {
		return "", providers.NewProviderError(providers.CategoryBadData, arcgisProvider, msg, nil)
	}

	for _, key := range []string{field, "zone_code", defaultZoneField} {
		v, typ, _, err := jsonparser.Get(body, "features", "[0]", "attributes", key)
		if err != nil {
			continue
		}
		switch typ {
		case jsonparser.String:
			if s, err := jsonparser.ParseString(v); err == nil && s != "" {
				return s, nil
			}
		case jsonparser.Number:
			return string(v), nil
		}
	}
	if _, _, _, err := jsonparser.Get(body, "features", "[0]"); err == nil {
		return defaultZone, nil
	}
	return "", nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
