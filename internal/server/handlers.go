package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/quantdesk/backend/internal/advisor"
	"github.com/quantdesk/backend/internal/alerts"
	"github.com/quantdesk/backend/internal/analysis"
	"github.com/quantdesk/backend/internal/candle"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": "Quant Desk API",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "operational",
		"version": Version,
	})
}

// handleHistory serves candles straight from the in-memory store as
// [openTime, open, high, low, close, volume] rows, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	candles := s.market.Snapshot(symbol, interval, limit)
	if len(candles) == 0 {
		writeError(w, http.StatusNotFound, "no data for %s %s", symbol, interval)
		return
	}
	writeJSON(w, http.StatusOK, candle.Rows(candles))
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = "BTCUSDT"
	}

	candles := s.market.Snapshot(symbol, "1h", 50)
	if len(candles) == 0 {
		writeError(w, http.StatusNotFound, "no data for %s", symbol)
		return
	}
	bands, err := analysis.ZScoreBands(candle.Closes(candles), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	price := candles[len(candles)-1].Close
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"price":  price,
		"bands":  bands,
		"zScore": bands.ZScore(price),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	model := r.URL.Query().Get("model")

	candles := s.market.Snapshot(symbol, "15m", 30)
	if len(candles) == 0 {
		writeError(w, http.StatusNotFound, "no data for %s", symbol)
		return
	}
	writeJSON(w, http.StatusOK, s.advisor.AnalyzeCandles(r.Context(), symbol, model, candles))
}

func (s *Server) handleAnalyzeFlow(w http.ResponseWriter, r *http.Request) {
	var req advisor.FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.advisor.AnalyzeFlow(r.Context(), req))
}

func (s *Server) handleMarketIntelligence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.news.MarketIntelligence(r.Context()))
}

func (s *Server) handleAlertStatus(w http.ResponseWriter, r *http.Request) {
	active, target := s.alerts.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"active": active,
		"symbol": target.Symbol,
	})
}

func (s *Server) handleAlertConfigure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol   string `json:"symbol"`
		BotToken string `json:"telegram_bot_token"`
		ChatID   string `json:"telegram_chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.alerts.Configure(alerts.Target{
		Symbol:   strings.ToUpper(body.Symbol),
		BotToken: body.BotToken,
		ChatID:   body.ChatID,
	})
	_, target := s.alerts.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Autonomous agent activated",
		"symbol": target.Symbol,
	})
}

func (s *Server) handleAlertEvaluate(w http.ResponseWriter, r *http.Request) {
	var snap alerts.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, alerts.Evaluate(snap))
}

// TelegramPayload is a manual alert dispatch, optionally carrying its own
// bot credentials.
type TelegramPayload struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	Target     float64 `json:"target"`
	Reasoning  string  `json:"reasoning"`
	BotToken   string  `json:"botToken"`
	ChatID     string  `json:"chatId"`
}

func (s *Server) handleSendTelegram(w http.ResponseWriter, r *http.Request) {
	var p TelegramPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	msg := fmt.Sprintf("🚨 **QUANT DESK ALERT: %s**\n\n"+
		"**Direction:** %s\n"+
		"**Confidence:** %.0f%%\n"+
		"**Entry:** %.2f\n"+
		"**Stop:** %.2f\n"+
		"**Target:** %.2f\n\n"+
		"%s",
		strings.ToUpper(p.Symbol), p.Direction, p.Confidence,
		p.Entry, p.Stop, p.Target, p.Reasoning)

	if err := s.alerts.Notify(p.BotToken, p.ChatID, msg); err != nil {
		writeError(w, http.StatusBadGateway, "telegram dispatch failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	active, _ := s.alerts.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":   int64(time.Since(s.startTime).Seconds()),
		"goroutines":       runtime.NumGoroutine(),
		"heap_mb":          float64(mem.HeapAlloc) / (1024 * 1024),
		"stream_connected": s.market.StreamHealthy(),
		"alerts_active":    active,
		"version":          Version,
		"logs":             s.ring.Entries(),
	})
}
