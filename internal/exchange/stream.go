// Package exchange
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/candle"
)

// ConnectionState represents the state of the websocket connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// streamEnvelope is the combined-stream wrapper: {"stream": "...", "data": {...}}.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// klineEvent is the payload of a kline update.
type klineEvent struct {
	Event string       `json:"e"`
	Kline klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Symbol   string `json:"s"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

// StreamURL builds the combined-stream URL covering every tracked
// symbol/interval pair, e.g. wss://host/stream?streams=btcusdt@kline_1m/...
func StreamURL(base string, symbols, intervals []string) string {
	streams := make([]string, 0, len(symbols)*len(intervals))
	for _, sym := range symbols {
		for _, iv := range intervals {
			streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), iv))
		}
	}
	return base + "?streams=" + strings.Join(streams, "/")
}

// KlineStream holds one multiplexed websocket connection for all tracked
// pairs and applies incoming kline updates to the store. It reconnects with a
// fixed backoff until its context is cancelled.
type KlineStream struct {
	url     string
	store   *candle.Store
	logger  *zap.Logger
	backoff time.Duration

	mu        sync.RWMutex
	state     ConnectionState
	conn      *websocket.Conn
	healthErr error
}

// NewKlineStream creates a stream ingestor for the given combined-stream URL.
func NewKlineStream(url string, store *candle.Store, backoff time.Duration, logger *zap.Logger) *KlineStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KlineStream{
		url:     url,
		store:   store,
		logger:  logger,
		backoff: backoff,
		state:   Disconnected,
	}
}

// IsConnected returns true if the websocket is currently connected.
func (s *KlineStream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == Connected && s.conn != nil
}

// Health returns the last connection error (if any).
func (s *KlineStream) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthErr
}

func (s *KlineStream) setState(state ConnectionState, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.conn = conn
}

func (s *KlineStream) setHealthErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthErr = err
}

// Run drives the reconnect loop until ctx is cancelled. Every connection
// failure transitions back to Disconnected, waits one fixed backoff interval
// and retries; the loop never gives up while the service is running.
func (s *KlineStream) Run(ctx context.Context) {
	for {
		err := s.connectAndConsume(ctx)
		if ctx.Err() != nil {
			s.logger.Info("stream ingestor stopped")
			return
		}
		s.setHealthErr(err)
		s.logger.Warn("stream disconnected, reconnecting",
			zap.Duration("backoff", s.backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			s.logger.Info("stream ingestor stopped")
			return
		case <-time.After(s.backoff):
		}
	}
}

// connectAndConsume handles a single websocket session.
func (s *KlineStream) connectAndConsume(ctx context.Context) error {
	s.setState(Connecting, nil)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.setState(Disconnected, nil)
		return err
	}
	s.setState(Connected, conn)
	s.setHealthErr(nil)
	s.logger.Info("stream connected", zap.String("url", s.url))

	defer func() {
		conn.Close()
		s.setState(Disconnected, nil)
	}()

	// Unblock the read loop promptly when the service shuts down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.handleMessage(message)
	}
}

// handleMessage applies one inbound message. Only well-formed kline events are
// upserted; anything else is ignored, not fatal.
func (s *KlineStream) handleMessage(message []byte) {
	var envelope streamEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil || len(envelope.Data) == 0 {
		return
	}

	var event klineEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil || event.Event != "kline" {
		return
	}

	k := event.Kline
	c, err := k.toCandle()
	if err != nil {
		s.logger.Debug("ignoring malformed kline", zap.Error(err))
		return
	}
	s.store.Upsert(k.Symbol, k.Interval, c)
}

func (k klinePayload) toCandle() (candle.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("low: %w", err)
	}
	close, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("volume: %w", err)
	}

	return candle.Candle{
		OpenTime: k.OpenTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   volume,
	}, nil
}
