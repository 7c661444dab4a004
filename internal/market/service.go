// Package market
package market

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/candle"
	"github.com/quantdesk/backend/internal/config"
	"github.com/quantdesk/backend/internal/exchange"
)

const stopTimeout = 5 * time.Second

// Service is the market-data engine: it owns the candle store, seeds it with
// a one-shot backfill per tracked pair and keeps it fresh from the live
// stream. Construct one per process and share it by reference.
type Service struct {
	cfg    config.MarketConfig
	store  *candle.Store
	logger *zap.Logger

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	streamDone chan struct{}
	httpClient *http.Client
	stream     *exchange.KlineStream
}

// New creates a stopped market-data service.
func New(cfg config.MarketConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		store:  candle.NewStore(cfg.Symbols, cfg.Intervals, cfg.HistoryLimit, logger),
		logger: logger,
	}
}

// Start allocates the shared network client and spawns the backfill loaders
// and the stream ingestor. It returns immediately: readiness never waits on
// backfill, which warms up in the background.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.httpClient = &http.Client{Timeout: 10 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("starting market data engine",
		zap.Int("symbols", len(s.cfg.Symbols)),
		zap.Int("intervals", len(s.cfg.Intervals)))

	client := exchange.NewClient(s.cfg.RESTURL, s.httpClient)
	for _, symbol := range s.cfg.Symbols {
		for _, interval := range s.cfg.Intervals {
			go s.backfill(ctx, client, symbol, interval)
		}
	}

	s.stream = exchange.NewKlineStream(
		exchange.StreamURL(s.cfg.WSURL, s.cfg.Symbols, s.cfg.Intervals),
		s.store, s.cfg.ReconnectWait, s.logger)
	s.streamDone = make(chan struct{})
	go func(stream *exchange.KlineStream, done chan struct{}) {
		defer close(done)
		stream.Run(ctx)
	}(s.stream, s.streamDone)
}

// Stop signals the ingestor, waits a bounded time for it to close its
// connection and releases the network client. Safe to call at any time,
// including before Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false

	s.cancel()
	select {
	case <-s.streamDone:
	case <-time.After(stopTimeout):
		s.logger.Warn("stream ingestor did not stop in time")
	}

	s.httpClient.CloseIdleConnections()
	s.logger.Info("market data engine stopped")
}

// Snapshot returns an immutable copy of the last limit candles for a pair;
// empty for pairs with no data yet.
func (s *Service) Snapshot(symbol, interval string, limit int) []candle.Candle {
	return s.store.Snapshot(symbol, interval, limit)
}

// StreamHealthy reports whether the live connection is currently up.
func (s *Service) StreamHealthy() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	return stream != nil && stream.IsConnected()
}

// backfill seeds one pair's series from the bulk history endpoint. Failures
// are logged and isolated: a broken pair stays short until the stream fills
// it in, and siblings are unaffected.
func (s *Service) backfill(ctx context.Context, client *exchange.Client, symbol, interval string) {
	candles, err := client.FetchKlines(ctx, symbol, interval, s.cfg.HistoryLimit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("backfill failed",
			zap.String("symbol", symbol), zap.String("interval", interval), zap.Error(err))
		return
	}

	s.store.Extend(symbol, interval, candles)
	s.logger.Info("backfill complete",
		zap.String("symbol", symbol), zap.String("interval", interval),
		zap.Int("candles", len(candles)))
}
