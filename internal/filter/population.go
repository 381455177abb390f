package filter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kalambet/propeval/internal/listing"
)

// minGrowthRate tolerates up to a 2% decline.
const minGrowthRate = 0.98

// PopulationFilter rejects small or shrinking territorial authorities.
type PopulationFilter struct {
	MinPopulation int
	// Lookup overrides the built-in territorial authority table.
	Lookup func(name string) (population int, growth float64, ok bool)
}

// Apply looks the listing up by district, then region. Unknown areas pass
// with a note.
func (f PopulationFilter) Apply(l *listing.Listing) (Result, *listing.PopulationData) {
	data := &listing.PopulationData{District: l.District, Region: l.Region}

	lookup := f.Lookup
	if lookup == nil {
		lookup = LookupPopulation
	}
	area := l.District
	pop, growth, ok := lookup(l.District)
	if !ok {
		area = l.Region
		pop, growth, ok = lookup(l.Region)
	}
	if !ok {
		data.Note = "Population data unavailable for " + l.Area()
		slog.Warn("filter: unknown population, passing", "listing_id", l.ListingID, "district", l.District, "region", l.Region)
		return passed(data.Note), data
	}

	projected := growth - 1
	data.CurrentPop = &pop
	data.GrowthRate = &growth
	data.ProjectedGrowth = &projected

	if pop < f.MinPopulation {
		return rejected(fmt.Sprintf("Population %s below %s threshold (%s)",
			humanize.Comma(int64(pop)), humanize.Comma(int64(f.MinPopulation)), area)), data
	}
	if growth < minGrowthRate {
		return rejected(fmt.Sprintf("Declining population in %s (growth rate: %.2f)", area, growth)), data
	}
	return passed(""), data
}

func normalizeArea(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
