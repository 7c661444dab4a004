// Package alerts
package alerts

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/analysis"
	"github.com/quantdesk/backend/internal/candle"
	"github.com/quantdesk/backend/internal/notifier"
)

const (
	zScoreThreshold      = 2.0
	tacticalThreshold    = 75.0
	sweepTacticalMinimum = 60.0
)

// Sweep is a liquidity sweep observation inside a snapshot.
type Sweep struct {
	Side string `json:"side"`
}

// Snapshot is the client-posted market state an alert decision is made from.
type Snapshot struct {
	Symbol              string  `json:"symbol"`
	Price               float64 `json:"price"`
	ZScore              float64 `json:"zScore"`
	TacticalProbability float64 `json:"tacticalProbability"`
	AIScore             float64 `json:"aiScore"`
	Sweeps              []Sweep `json:"sweeps,omitempty"`
}

// Analysis is the suggested trade attached to a decision.
type Analysis struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	Target     float64 `json:"target"`
	Reasoning  string  `json:"reasoning"`
}

// Decision is the outcome of scoring one snapshot.
type Decision struct {
	ShouldAlert      bool     `json:"shouldAlert"`
	PassedConditions []string `json:"passedConditions"`
	Score            int      `json:"score"`
	AIAnalysis       Analysis `json:"aiAnalysis"`
}

// Evaluate scores a snapshot against the alert thresholds. A z-score
// dislocation alone is noted but does not fire an alert by itself.
func Evaluate(s Snapshot) Decision {
	var reasons []string
	shouldAlert := false

	if math.Abs(s.ZScore) > zScoreThreshold {
		reasons = append(reasons, fmt.Sprintf("Z-Score Dislocation (%g)", s.ZScore))
	}
	if s.TacticalProbability > tacticalThreshold {
		reasons = append(reasons, fmt.Sprintf("AI Tactical High Prob (%g%%)", s.TacticalProbability))
		shouldAlert = true
	}
	if len(s.Sweeps) > 0 && s.Sweeps[0].Side == "SELL" && s.TacticalProbability > sweepTacticalMinimum {
		reasons = append(reasons, "Liquidity Sweep (Long)")
		shouldAlert = true
	}

	direction := "SHORT"
	if s.AIScore > 0 {
		direction = "LONG"
	}
	reasoning := "Monitoring"
	if len(reasons) > 0 {
		reasoning = strings.Join(reasons, " & ")
	}

	return Decision{
		ShouldAlert:      shouldAlert,
		PassedConditions: reasons,
		Score:            len(reasons),
		AIAnalysis: Analysis{
			Direction:  direction,
			Confidence: s.AIScore,
			Entry:      s.Price,
			Stop:       s.Price * 0.99,
			Target:     s.Price * 1.02,
			Reasoning:  reasoning,
		},
	}
}

// Target is the runtime-configurable alert destination.
type Target struct {
	Symbol   string `json:"symbol"`
	BotToken string `json:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
}

// SnapshotSource provides candle history for the autonomous check.
type SnapshotSource interface {
	Snapshot(symbol, interval string, limit int) []candle.Candle
}

// Manager owns the alert target, the autonomous flag and alert delivery.
type Manager struct {
	source   SnapshotSource
	notifier notifier.Notifier
	logger   *zap.Logger

	mu     sync.Mutex
	target Target
	active bool
}

// NewManager creates an alert manager with the given default target.
func NewManager(source SnapshotSource, n notifier.Notifier, target Target, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if target.Symbol == "" {
		target.Symbol = "BTCUSDT"
	}
	return &Manager{
		source:   source,
		notifier: n,
		logger:   logger,
		target:   target,
	}
}

// Configure replaces the alert target and arms autonomous mode.
func (m *Manager) Configure(t Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Symbol == "" {
		t.Symbol = "BTCUSDT"
	}
	m.target = t
	m.active = true
	m.logger.Info("alerts configured", zap.String("symbol", t.Symbol))
}

// Status returns the autonomous flag and current target.
func (m *Manager) Status() (bool, Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.target
}

// Notify delivers an alert message, preferring the payload credentials over
// the configured target's.
func (m *Manager) Notify(token, chatID, message string) error {
	m.mu.Lock()
	if token == "" {
		token = m.target.BotToken
	}
	if chatID == "" {
		chatID = m.target.ChatID
	}
	m.mu.Unlock()
	return m.notifier.SendTo(token, chatID, message)
}

// RunCheck performs one autonomous evaluation: compute the hourly z-score for
// the configured symbol and push an alert on a dislocation. Called from the
// scheduler; all failures are absorbed here.
func (m *Manager) RunCheck() {
	m.mu.Lock()
	active, target := m.active, m.target
	m.mu.Unlock()
	if !active {
		return
	}

	candles := m.source.Snapshot(target.Symbol, "1h", 50)
	if len(candles) == 0 {
		return
	}
	closes := candle.Closes(candles)

	bands, err := analysis.ZScoreBands(closes, 20)
	if err != nil {
		m.logger.Debug("autonomous check skipped", zap.Error(err))
		return
	}

	price := closes[len(closes)-1]
	z := bands.ZScore(price)
	if math.Abs(z) <= zScoreThreshold {
		return
	}

	message := fmt.Sprintf("🚨 *QUANT DESK ALERT: %s*\n\n*Z-Score:* %.2f\n*Price:* %g\n*Logic:* Z-Score Dislocation",
		target.Symbol, z, price)
	if err := m.Notify("", "", message); err != nil {
		m.logger.Warn("autonomous alert delivery failed", zap.Error(err))
		return
	}
	m.logger.Info("autonomous alert sent",
		zap.String("symbol", target.Symbol), zap.Float64("zscore", z))
}
