// Package pricing holds the pure statistics behind price estimates.
package pricing

import (
	"sort"

	"github.com/magnetic-studio/studio-console/pkg/models"
)

const (
	// SampleLimit is how many of the most recent observations feed an estimate.
	SampleLimit = 50
	// highConfidenceMinSamples is exclusive: more than this many samples is "high".
	highConfidenceMinSamples = 5
)

// Median returns the median of values without modifying the slice. For an
// even count it is the mean of the two middle elements. Empty input returns 0.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Confidence grades a sample size.
func Confidence(sampleSize int) models.PriceConfidence {
	if sampleSize > highConfidenceMinSamples {
		return models.ConfidenceHigh
	}
	return models.ConfidenceLow
}

// Summarize builds an estimate from observations ordered by ObservedAt
// descending. Only the first SampleLimit observations are used. It returns
// nil when there are no observations.
func Summarize(observations []*models.PriceObservation) *models.PriceEstimate {
	if len(observations) == 0 {
		return nil
	}
	if len(observations) > SampleLimit {
		observations = observations[:SampleLimit]
	}

	prices := make([]float64, len(observations))
	lo, hi := observations[0].UnitPrice, observations[0].UnitPrice
	for i, o := range observations {
		prices[i] = o.UnitPrice
		if o.UnitPrice < lo {
			lo = o.UnitPrice
		}
		if o.UnitPrice > hi {
			hi = o.UnitPrice
		}
	}

	latest := observations[0]
	return &models.PriceEstimate{
		CanonicalItemID: latest.CanonicalItemID,
		Range:           models.PriceRange{Min: lo, Max: hi},
		Median:          Median(prices),
		Confidence:      Confidence(len(observations)),
		LastSeenAt:      latest.ObservedAt,
		SampleSize:      len(observations),
		Unit:            latest.Unit,
	}
}
