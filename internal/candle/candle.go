// Package candle
package candle

import (
	"errors"
	"time"
)

// Candle is one OHLCV observation for a fixed time bucket, keyed by the
// period start time in milliseconds since epoch.
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the period start as a time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// Validate checks if a candle has valid data.
func (c Candle) Validate() error {
	if c.OpenTime <= 0 {
		return errors.New("candle open time must be positive")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// Closes extracts the close prices from a candle sequence, in order.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Rows converts candles to the wire format used by the history endpoint:
// fixed-position [openTime, open, high, low, close, volume] tuples.
func Rows(candles []Candle) [][]any {
	rows := make([][]any, len(candles))
	for i, c := range candles {
		rows[i] = []any{c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume}
	}
	return rows
}
