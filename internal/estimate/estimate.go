// Package estimate holds the enrichment estimators. Each is a pure function
// of listing facts plus an optional provider answer; a nil answer selects
// the heuristic fallback and is reflected in the result's source tag.
package estimate

import "math"

func round0(v float64) float64 { return math.Round(v) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
