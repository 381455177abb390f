package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/kalambet/propeval/internal/listing"
)

// PhotosHash keys the vision result: the first maxPhotos URLs, sorted.
func PhotosHash(photos []string, maxPhotos int) string {
	if len(photos) > maxPhotos {
		photos = photos[:maxPhotos]
	}
	urls := append([]string{}, photos...)
	sort.Strings(urls)
	b, _ := json.Marshal(urls)
	return digest(b)
}

// subdivisionKey field order is alphabetical so the encoding is canonical.
type subdivisionKey struct {
	Address  string   `json:"address"`
	District string   `json:"district"`
	LandArea *float64 `json:"land_area"`
	Region   string   `json:"region"`
}

// SubdivisionHash keys the zoning lookup behind a subdivision result on the
// location and section size.
func SubdivisionHash(l *listing.Listing) string {
	b, _ := json.Marshal(subdivisionKey{
		Address:  l.Address,
		District: l.District,
		LandArea: l.LandArea,
		Region:   l.Region,
	})
	return digest(b)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
