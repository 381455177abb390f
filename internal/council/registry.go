// Package council resolves council zoning and rates for a property: council
// registry lookup, geocoding, ArcGIS zone queries and subdivision rules.
package council

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed data/*.json
var dataFS embed.FS

const (
	councilsFile = "councils.json"
	rulesFile    = "subdivision_rules.json"

	zoneAPIArcGIS = "arcgis_rest"
	defaultZone   = "default"
	fallbackRules = "auckland"
)

// Council describes one territorial authority and how to query its zoning.
type Council struct {
	ID            string   `json:"council_id"`
	Name          string   `json:"name"`
	Aliases       []string `json:"aliases"`
	InScope       bool     `json:"in_scope"`
	ZoneAPIType   string   `json:"zone_api_type,omitempty"`
	ZoneAPIURL    string   `json:"zone_api_url,omitempty"`
	ZoneLayerID   *int     `json:"zone_layer_id,omitempty"`
	ZoneCodeField string   `json:"zone_code_field,omitempty"`
	RatesAPIURL   string   `json:"rates_api_url,omitempty"`
}

// Rule is the subdivision rule set for one zone.
type Rule struct {
	MinLotSqm   float64 `json:"min_lot_sqm"`
	AvgLotSqm   float64 `json:"avg_lot_sqm,omitempty"`
	ConsentType string  `json:"consent_type,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// Registry indexes councils by alias and holds per-zone subdivision rules.
type Registry struct {
	councils []Council
	byAlias  map[string]*Council
	rules    map[string]map[string]Rule
}

// LoadRegistry reads councils.json and subdivision_rules.json from dir. An
// empty dir selects the embedded registry.
func LoadRegistry(dir string) (*Registry, error) {
	read := func(name string) ([]byte, error) {
		if dir == "" {
			return dataFS.ReadFile("data/" + name)
		}
		return os.ReadFile(filepath.Join(dir, name))
	}

	raw, err := read(councilsFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", councilsFile, err)
	}
	var doc struct {
		Councils []Council `json:"councils"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", councilsFile, err)
	}

	raw, err = read(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rulesFile, err)
	}
	rules := map[string]map[string]Rule{}
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rulesFile, err)
	}

	return NewRegistry(doc.Councils, rules), nil
}

func NewRegistry(councils []Council, rules map[string]map[string]Rule) *Registry {
	r := &Registry{
		councils: councils,
		byAlias:  make(map[string]*Council),
		rules:    rules,
	}
	for i := range r.councils {
		c := &r.councils[i]
		for _, alias := range c.Aliases {
			r.byAlias[normalize(alias)] = c
		}
	}
	return r
}

// Resolve finds the council for a district, falling back to the region.
func (r *Registry) Resolve(district, region string) (*Council, bool) {
	for _, raw := range []string{district, region} {
		if raw == "" {
			continue
		}
		if c, ok := r.byAlias[normalize(raw)]; ok {
			return c, true
		}
	}
	return nil, false
}

// RulesFor returns the rule for the zone, then the council default. Councils
// without rules use the Auckland default, or a 600 sqm minimum.
func (r *Registry) RulesFor(councilID, zone string) (Rule, bool) {
	councilRules, ok := r.rules[councilID]
	if !ok || len(councilRules) == 0 {
		if def, ok := r.rules[fallbackRules][defaultZone]; ok {
			return def, true
		}
		return Rule{MinLotSqm: 600, ConsentType: "discretionary", Notes: "Fallback"}, true
	}
	if rule, ok := councilRules[zone]; ok {
		return rule, true
	}
	rule, ok := councilRules[defaultZone]
	return rule, ok
}

func (r *Registry) Councils() []Council {
	return r.councils
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
