// Package analysis
package analysis

import (
	"fmt"
	"math"
)

// Bands holds the rolling z-score bands around a simple moving average.
type Bands struct {
	SMA    float64 `json:"sma"`
	Std    float64 `json:"std"`
	Upper1 float64 `json:"upper_1"`
	Lower1 float64 `json:"lower_1"`
	Upper2 float64 `json:"upper_2"`
	Lower2 float64 `json:"lower_2"`
}

// ZScoreBands computes the bands over the trailing period of closes. The
// standard deviation uses the sample (n-1) denominator.
func ZScoreBands(closes []float64, period int) (*Bands, error) {
	if period < 2 {
		return nil, fmt.Errorf("period must be at least 2, got %d", period)
	}
	if len(closes) < period {
		return nil, fmt.Errorf("need at least %d closes, got %d", period, len(closes))
	}

	window := closes[len(closes)-period:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	sma := sum / float64(period)

	var sq float64
	for _, v := range window {
		d := v - sma
		sq += d * d
	}
	std := math.Sqrt(sq / float64(period-1))

	return &Bands{
		SMA:    sma,
		Std:    std,
		Upper1: sma + std,
		Lower1: sma - std,
		Upper2: sma + 2*std,
		Lower2: sma - 2*std,
	}, nil
}

// ZScore returns how many standard deviations price sits from the band mean.
// Zero std yields zero rather than an infinity.
func (b *Bands) ZScore(price float64) float64 {
	if b.Std == 0 {
		return 0
	}
	return (price - b.SMA) / b.Std
}
