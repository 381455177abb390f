package filter

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/kalambet/propeval/internal/listing"
)

const noPriceReason = "No parseable price, passing for manual review"

// PriceFilter rejects listings whose effective price is above MaxPrice.
type PriceFilter struct {
	MaxPrice float64
}

func (f PriceFilter) Apply(l *listing.Listing) Result {
	price, ok := l.EffectivePrice()
	if !ok {
		slog.Info("filter: no parseable price", "listing_id", l.ListingID, "display_price", l.DisplayPrice)
		return passed(noPriceReason)
	}
	if price > f.MaxPrice {
		return rejected(fmt.Sprintf("Over budget: $%s > $%s", money(price), money(f.MaxPrice)))
	}
	return passed("")
}

// money formats v as whole currency units with thousands separators.
func money(v float64) string {
	return humanize.Comma(int64(v + 0.5))
}
