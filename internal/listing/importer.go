package listing

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeBatch reads scraped listings from r. The input is either a JSON
// array or a stream of JSON objects (one per line, as the scraper writes
// them). Every listing is normalized before it is returned.
func DecodeBatch(r io.Reader) ([]Listing, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	var out []Listing
	if first == '[' {
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding listing array: %w", err)
		}
	} else {
		for n := 1; ; n++ {
			var l Listing
			err := dec.Decode(&l)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("decoding listing %d: %w", n, err)
			}
			out = append(out, l)
		}
	}

	for i := range out {
		if err := out[i].Normalize(); err != nil {
			return nil, fmt.Errorf("listing %d: %w", i+1, err)
		}
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

// Normalize trims identifiers, derives the asking price from the display
// price when none was given, and drops pipeline-owned state so imports can
// never set it.
func (l *Listing) Normalize() error {
	l.ListingID = strings.TrimSpace(l.ListingID)
	if l.ListingID == "" {
		return errors.New("listing_id is required")
	}
	l.ID = 0
	l.FilterStatus = ""
	l.FilterRejectionReason = ""
	l.AnalysisStatus = ""

	if l.AskingPrice == nil {
		if v, ok := ParsePrice(l.DisplayPrice); ok {
			l.AskingPrice = &v
		}
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}
	if l.NearbyProperties == nil {
		l.NearbyProperties = []NearbySale{}
	}
	for i, c := range l.NearbyProperties {
		if c.PriceNumeric <= 0 {
			if v, ok := ParsePrice(c.Price); ok {
				l.NearbyProperties[i].PriceNumeric = v
			}
		}
	}
	return nil
}
