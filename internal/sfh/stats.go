package sfh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats holds the reference rates drawn on the recent-SFH panel.
type Stats struct {
	// MaxAge is the age in Gyr at which bins are chopped for the average.
	MaxAge float64
	// AvgSFR is the bin-width weighted mean SFR over [0, MaxAge] Gyr.
	AvgSFR float64
	// BurstFactor multiplies AvgSFR to give the starburst threshold.
	BurstFactor float64
	BurstSFR    float64
}

// Summarize computes the average SFR over the bins younger than maxAge Gyr,
// each bin weighted by the part of its width below maxAge, and the burst
// threshold burstFactor * average. Bins starting past maxAge get zero weight.
func Summarize(s Series, maxAge, burstFactor float64) (Stats, error) {
	if !(maxAge > 0) {
		return Stats{}, fmt.Errorf("max age must be > 0 (got %v)", maxAge)
	}
	if s.Len() == 0 {
		return Stats{}, ErrNoBins
	}

	weights := make([]float64, s.Len())
	for i := range weights {
		weights[i] = math.Max(0, math.Min(maxAge, s.End[i])-s.Begin[i])
	}
	if floats.Sum(weights) == 0 {
		return Stats{}, errors.New("no bins younger than the averaging age")
	}

	avg := stat.Mean(s.SFR, weights)
	return Stats{
		MaxAge:      maxAge,
		AvgSFR:      avg,
		BurstFactor: burstFactor,
		BurstSFR:    burstFactor * avg,
	}, nil
}
