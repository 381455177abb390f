package listing

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceKeywords = []string{"NEGOT", "TENDER", "AUCTION", "PBN", "ENQUIR", "DEADLINE"}

	priceRangeRe  = regexp.MustCompile(`\$?([\d,]+\.?\d*)\s*K?\s*(?:-|–|TO)+\s*\$?([\d,]+\.?\d*)\s*K?`)
	priceSingleRe = regexp.MustCompile(`\$?(\d[\d,]*\.?\d*)\s*([KMB])?`)
	numberRe      = regexp.MustCompile(`\$?(\d[\d,]*)`)
	areaRe        = regexp.MustCompile(`(\d[\d,]*\.?\d*)`)
)

// ParsePrice turns a display price such as "$450,000", "$1.2M" or
// "$270K - $305K" into a number. Auction, tender and negotiation wording
// yields false, as does anything under $1000.
func ParsePrice(s string) (float64, bool) {
	text := strings.ToUpper(strings.TrimSpace(s))
	if text == "" {
		return 0, false
	}
	for _, kw := range nonPriceKeywords {
		if strings.Contains(text, kw) {
			return 0, false
		}
	}

	if m := priceRangeRe.FindStringSubmatch(text); m != nil {
		low, errLow := parseNumber(m[1])
		high, errHigh := parseNumber(m[2])
		if errLow == nil && errHigh == nil {
			if strings.Contains(text, "K") {
				if low < 10000 {
					low *= 1000
				}
				if high < 10000 {
					high *= 1000
				}
			}
			return (low + high) / 2, true
		}
	}

	m := priceSingleRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := parseNumber(m[1])
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "K":
		v *= 1_000
	case "M":
		v *= 1_000_000
	case "B":
		v *= 1_000_000_000
	}
	if v <= 1000 {
		return 0, false
	}
	return v, true
}

// ParseRangeMidpoint reads estimate strings like "$550 - $650 per week" or
// "$480,000 - $520,000". Two or more numbers give the mean of the first
// two; a single number is returned as is.
func ParseRangeMidpoint(s string) (float64, bool) {
	matches := numberRe.FindAllStringSubmatch(s, -1)
	var values []float64
	for _, m := range matches {
		v, err := parseNumber(m[1])
		if err != nil {
			continue
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}
	switch len(values) {
	case 0:
		return 0, false
	case 1:
		return values[0], true
	default:
		return (values[0] + values[1]) / 2, true
	}
}

// ParseArea reads the first number from strings such as "650 m²".
func ParseArea(s string) (float64, bool) {
	m := areaRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := parseNumber(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
