// Package server
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/advisor"
	"github.com/quantdesk/backend/internal/alerts"
	"github.com/quantdesk/backend/internal/candle"
	"github.com/quantdesk/backend/internal/logging"
	"github.com/quantdesk/backend/internal/news"
)

// Version reported by the health endpoint.
const Version = "2.6.0"

// MarketData is the read side of the market-data engine.
type MarketData interface {
	Snapshot(symbol, interval string, limit int) []candle.Candle
	StreamHealthy() bool
}

// Server exposes the HTTP API over the market-data engine and its consumers.
type Server struct {
	addr        string
	market      MarketData
	advisor     *advisor.Client
	news        *news.Service
	alerts      *alerts.Manager
	ring        *logging.Ring
	logger      *zap.Logger
	frontendURL string
	startTime   time.Time
	srv         *http.Server
}

// New creates the API server.
func New(addr string, m MarketData, adv *advisor.Client, nw *news.Service,
	al *alerts.Manager, ring *logging.Ring, frontendURL string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:        addr,
		market:      m,
		advisor:     adv,
		news:        nw,
		alerts:      al,
		ring:        ring,
		logger:      logger,
		frontendURL: frontendURL,
		startTime:   time.Now(),
	}
}

// Handler builds the full route table wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /bands", s.handleBands)
	mux.HandleFunc("GET /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /analyze/flow", s.handleAnalyzeFlow)
	mux.HandleFunc("GET /market-intelligence", s.handleMarketIntelligence)
	mux.HandleFunc("GET /alerts/status", s.handleAlertStatus)
	mux.HandleFunc("POST /alerts/configure", s.handleAlertConfigure)
	mux.HandleFunc("POST /alerts/evaluate", s.handleAlertEvaluate)
	mux.HandleFunc("POST /alerts/send-telegram", s.handleSendTelegram)
	mux.HandleFunc("POST /alerts/test", s.handleSendTelegram)
	mux.HandleFunc("GET /admin/system-status", s.handleSystemStatus)
	return s.cors(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server starting", zap.String("addr", s.addr))
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173":             true,
		"http://localhost:3000":             true,
		"https://quantdesk.netlify.app":     true,
		"https://www.quantdesk.netlify.app": true,
	}
	if s.frontendURL != "" {
		allowed[s.frontendURL] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError mirrors the {"detail": "..."} error body the frontend expects.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}
