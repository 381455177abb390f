package filter

import (
	"fmt"
	"strings"

	"github.com/kalambet/propeval/internal/listing"
)

var rejectTitleTypes = []string{"unit title", "leasehold", "cross lease", "cross-lease"}

// TitleFilter rejects unit title, leasehold and cross-lease properties.
type TitleFilter struct{}

func (TitleFilter) Apply(l *listing.Listing) Result {
	titleType := strings.ToLower(strings.TrimSpace(l.TitleType))
	if titleType == "" {
		text := strings.ToLower(l.Description + " " + l.Title)
		for _, t := range rejectTitleTypes {
			if strings.Contains(text, t) {
				return rejected("Title type detected in description: " + t)
			}
		}
		return passed("")
	}
	for _, t := range rejectTitleTypes {
		if strings.Contains(titleType, t) {
			return rejected(fmt.Sprintf("Rejected title type: %s", titleType))
		}
	}
	return passed("")
}
