// Package candle
package candle

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Series is a capacity-bounded candle history for one symbol/interval pair,
// backed by a circular buffer so eviction never reallocates or shifts.
// Invariants: strictly ascending OpenTime, no duplicate keys, length <= cap.
type Series struct {
	buf  []Candle
	head int // index of the oldest element
	size int
}

// NewSeries creates an empty series with a fixed capacity.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = 1
	}
	return &Series{buf: make([]Candle, capacity)}
}

// Len returns the number of stored candles.
func (s *Series) Len() int { return s.size }

func (s *Series) at(i int) Candle {
	return s.buf[(s.head+i)%len(s.buf)]
}

// Upsert applies the insert-or-replace-by-key rule. It reports whether the
// candle was stored; false means it was stale (older than the current tail)
// and dropped.
func (s *Series) Upsert(c Candle) bool {
	if s.size == 0 {
		s.buf[s.head] = c
		s.size = 1
		return true
	}

	tailIdx := (s.head + s.size - 1) % len(s.buf)
	tail := s.buf[tailIdx]

	switch {
	case c.OpenTime == tail.OpenTime:
		// In-progress period update: replace the open candle.
		s.buf[tailIdx] = c
		return true
	case c.OpenTime > tail.OpenTime:
		if s.size == len(s.buf) {
			// Full: overwrite the oldest slot and advance.
			s.buf[s.head] = c
			s.head = (s.head + 1) % len(s.buf)
		} else {
			s.buf[(s.head+s.size)%len(s.buf)] = c
			s.size++
		}
		return true
	default:
		// Stale or out-of-order.
		return false
	}
}

// Last copies out the last n candles in chronological order (fewer if the
// series is shorter).
func (s *Series) Last(n int) []Candle {
	if n > s.size {
		n = s.size
	}
	if n <= 0 {
		return []Candle{}
	}
	out := make([]Candle, n)
	start := s.size - n
	for i := 0; i < n; i++ {
		out[i] = s.at(start + i)
	}
	return out
}

// Store owns all candle series for the tracked symbol/interval pairs. The
// key space is fixed at construction; all mutation goes through one lock so
// readers never observe a half-applied update.
type Store struct {
	mu     sync.RWMutex
	series map[string]map[string]*Series // symbol -> interval -> series
	logger *zap.Logger
}

// NewStore creates a store pre-sized for the given pairs, each series bounded
// to capacity candles.
func NewStore(symbols, intervals []string, capacity int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	series := make(map[string]map[string]*Series, len(symbols))
	for _, sym := range symbols {
		byInterval := make(map[string]*Series, len(intervals))
		for _, iv := range intervals {
			byInterval[iv] = NewSeries(capacity)
		}
		series[strings.ToUpper(sym)] = byInterval
	}
	return &Store{series: series, logger: logger}
}

func (st *Store) lookup(symbol, interval string) *Series {
	byInterval, ok := st.series[strings.ToUpper(symbol)]
	if !ok {
		return nil
	}
	return byInterval[interval]
}

// Upsert applies one candle to the pair's series under the store lock.
// Updates for untracked pairs and stale candles are dropped, never errors.
func (st *Store) Upsert(symbol, interval string, c Candle) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.lookup(symbol, interval)
	if s == nil {
		st.logger.Debug("dropping candle for untracked pair",
			zap.String("symbol", symbol), zap.String("interval", interval))
		return
	}
	if !s.Upsert(c) {
		st.logger.Debug("dropping stale candle",
			zap.String("symbol", symbol), zap.String("interval", interval),
			zap.Int64("openTime", c.OpenTime))
	}
}

// Extend applies an ordered batch of candles, one upsert per element. Used by
// the backfill path; safe to interleave with live stream upserts.
func (st *Store) Extend(symbol, interval string, candles []Candle) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.lookup(symbol, interval)
	if s == nil {
		return
	}
	for _, c := range candles {
		s.Upsert(c)
	}
}

// Snapshot returns an immutable copy of the last limit candles for a pair.
// Unknown pairs yield an empty slice, never an error.
func (st *Store) Snapshot(symbol, interval string, limit int) []Candle {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s := st.lookup(symbol, interval)
	if s == nil {
		return []Candle{}
	}
	return s.Last(limit)
}
