// Package filter implements the hard pass/reject filters that every listing
// must clear before enrichment, plus the soft demand-profile annotator.
package filter

import (
	"log/slog"

	"github.com/kalambet/propeval/internal/listing"
)

type Status string

const (
	Pass   Status = "PASS"
	Reject Status = "REJECT"
)

// Result is the verdict of a single filter. Reason is empty on a clean pass.
type Result struct {
	Status Status
	Reason string
}

func passed(reason string) Result   { return Result{Status: Pass, Reason: reason} }
func rejected(reason string) Result { return Result{Status: Reject, Reason: reason} }

// Config holds the thresholds the hard filters enforce.
type Config struct {
	MaxPrice      float64
	MinPopulation int
}

// Outcome is the result of running the whole chain.
type Outcome struct {
	Result
	// Filter names the filter that produced a rejection.
	Filter     string
	Population *listing.PopulationData
}

// Rejected reports whether the chain stopped on a rejection.
func (o Outcome) Rejected() bool { return o.Status == Reject }

// Chain runs price, title and population filters in that order. The first
// rejection short-circuits the rest.
type Chain struct {
	price      PriceFilter
	title      TitleFilter
	population PopulationFilter
}

func NewChain(cfg Config) *Chain {
	return &Chain{
		price:      PriceFilter{MaxPrice: cfg.MaxPrice},
		population: PopulationFilter{MinPopulation: cfg.MinPopulation},
	}
}

// Run applies the chain to l. It never returns an error: unparseable input
// passes through for manual review.
func (c *Chain) Run(l *listing.Listing) Outcome {
	if r := c.price.Apply(l); r.Status == Reject {
		return Outcome{Result: r, Filter: "price"}
	}
	if r := c.title.Apply(l); r.Status == Reject {
		return Outcome{Result: r, Filter: "title"}
	}
	r, pop := c.population.Apply(l)
	out := Outcome{Result: r, Population: pop}
	if r.Status == Reject {
		out.Filter = "population"
		return out
	}
	slog.Debug("filter: listing passed", "listing_id", l.ListingID)
	return out
}
