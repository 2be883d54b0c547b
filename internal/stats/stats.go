// Package stats computes outlier-resistant summary statistics over completed
// sale prices, and the confidence score attached to a price snapshot.
package stats

import (
	"math"
	"sort"
)

// Summary holds IQR-filtered statistics for one price sample.
type Summary struct {
	Mean   float64
	Median float64
	P25    float64
	P75    float64
	StdDev float64
	Kept   int // sample size after outlier removal
}

// Summarize sorts the sample, drops prices outside
// [p25 - 1.5*IQR, p75 + 1.5*IQR], and returns mean and population standard
// deviation of the survivors. Percentiles are index-based (floor(n*q)) over
// the full sorted sample. The input slice is not modified.
//
// A non-empty input never produces an empty result: if filtering removes
// everything, the summary collapses to a single-value sample at the
// unfiltered median.
func Summarize(prices []float64) Summary {
	if len(prices) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	n := len(sorted)
	p25 := sorted[n/4]
	median := sorted[n/2]
	p75 := sorted[n*3/4]

	iqr := p75 - p25
	lower := p25 - 1.5*iqr
	upper := p75 + 1.5*iqr

	kept := sorted[:0:0]
	for _, p := range sorted {
		if p >= lower && p <= upper {
			kept = append(kept, p)
		}
	}

	if len(kept) == 0 {
		// Everything was an outlier; fall back to the median alone rather
		// than returning undefined statistics.
		return Summary{
			Mean:   median,
			Median: median,
			P25:    median,
			P75:    median,
			StdDev: 0,
			Kept:   1,
		}
	}

	var sum float64
	for _, p := range kept {
		sum += p
	}
	mean := sum / float64(len(kept))

	var variance float64
	for _, p := range kept {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(kept))

	return Summary{
		Mean:   mean,
		Median: median,
		P25:    p25,
		P75:    p75,
		StdDev: math.Sqrt(variance),
		Kept:   len(kept),
	}
}

// Confidence scores how trustworthy a cohort's statistics are, 0-100.
// Volume contributes up to 70 points (7 per sale) and recency up to 30
// (losing one point per day since the newest sale). Volume dominates because
// fresh data cannot compensate for a thin sample.
func Confidence(volume, daysSinceNewest int) int {
	volumeScore := volume * 7
	if volumeScore > 70 {
		volumeScore = 70
	}
	recencyScore := 30 - daysSinceNewest
	if recencyScore < 0 {
		recencyScore = 0
	}
	score := volumeScore + recencyScore
	if score > 100 {
		score = 100
	}
	return score
}
