// Package advisor
package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/candle"
)

// Verdict is the structured trade assessment produced for a symbol.
type Verdict struct {
	Support         []float64 `json:"support"`
	Resistance      []float64 `json:"resistance"`
	DecisionPrice   float64   `json:"decision_price"`
	Verdict         string    `json:"verdict"`
	Confidence      float64   `json:"confidence"`
	Analysis        string    `json:"analysis"`
	RiskRewardRatio float64   `json:"risk_reward_ratio"`
	EntryPrice      float64   `json:"entry_price,omitempty"`
	StopLoss        float64   `json:"stop_loss,omitempty"`
	TakeProfit      float64   `json:"take_profit,omitempty"`
	IsSimulated     bool      `json:"is_simulated,omitempty"`
}

// FlowRequest carries an order-flow snapshot posted by the client.
type FlowRequest struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	NetDelta    float64 `json:"netDelta"`
	TotalVolume float64 `json:"totalVolume"`
	POCPrice    float64 `json:"pocPrice"`
	CVDTrend    string  `json:"cvdTrend"`
	CandleCount int     `json:"candleCount"`
}

// FlowVerdict is the order-flow assessment.
type FlowVerdict struct {
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	FlowType    string  `json:"flow_type"`
}

// AnalyzeCandles asks the model for a trade verdict over recent OHLCV data.
// Any failure degrades to a neutral WAIT verdict around the last close; the
// caller never sees an error.
func (c *Client) AnalyzeCandles(ctx context.Context, symbol, model string, candles []candle.Candle) Verdict {
	lastClose := 0.0
	if len(candles) > 0 {
		lastClose = candles[len(candles)-1].Close
	}

	var v Verdict
	if err := c.GenerateJSON(ctx, model, candlePrompt(symbol, candles), &v); err != nil {
		c.logger.Warn("analysis failed, returning simulated verdict",
			zap.String("symbol", symbol), zap.Error(err))
		return simulatedVerdict(lastClose)
	}
	return v
}

// AnalyzeFlow asks the model to classify an order-flow snapshot. Failures
// degrade to a neutral answer.
func (c *Client) AnalyzeFlow(ctx context.Context, req FlowRequest) FlowVerdict {
	if !c.Enabled() {
		return FlowVerdict{Verdict: "NEUTRAL", Explanation: "AI Disabled", FlowType: "UNKNOWN"}
	}

	var v FlowVerdict
	if err := c.GenerateJSON(ctx, "", flowPrompt(req), &v); err != nil {
		c.logger.Warn("flow analysis failed", zap.String("symbol", req.Symbol), zap.Error(err))
		return FlowVerdict{Verdict: "NEUTRAL", Explanation: "Flow analysis failed", FlowType: "UNKNOWN"}
	}
	return v
}

func candlePrompt(symbol string, candles []candle.Candle) string {
	var lines []string
	for _, c := range candles {
		lines = append(lines, fmt.Sprintf("Time: %s | O:%g H:%g L:%g C:%g V:%g",
			c.Time().Format("15:04"), c.Open, c.High, c.Low, c.Close, c.Volume))
	}

	return fmt.Sprintf(`Act as a High-Frequency Trading Algorithm. Analyze this OHLCV data for %s (15m timeframe).

DATA:
%s

TASK:
1. Identify key Support and Resistance levels.
2. Determine a "Decision Price" (Pivot).
3. Issue a Verdict: ENTRY (Long/Short), EXIT, or WAIT.
4. Provide confidence (0.0 - 1.0).
5. Calculate Risk:Reward ratio.

OUTPUT JSON ONLY:
{
  "support": [number, number],
  "resistance": [number, number],
  "decision_price": number,
  "verdict": "string",
  "confidence": number,
  "analysis": "string (max 20 words)",
  "risk_reward_ratio": number,
  "entry_price": number,
  "stop_loss": number,
  "take_profit": number
}`, symbol, strings.Join(lines, "\n"))
}

func flowPrompt(req FlowRequest) string {
	return fmt.Sprintf(`Analyze the Order Flow for %s.
Price: %g
Net Delta: %g
Total Volume: %g
Point of Control (POC): %g
CVD Trend: %s

JSON Output: { "verdict": "BULLISH"|"BEARISH"|"NEUTRAL", "confidence": 0.0-1.0, "explanation": "string", "flow_type": "ABSORPTION"|"INITIATIVE"|"EXHAUSTION" }`,
		req.Symbol, req.Price, req.NetDelta, req.TotalVolume, req.POCPrice, req.CVDTrend)
}

func simulatedVerdict(price float64) Verdict {
	return Verdict{
		Support:         []float64{price * 0.98},
		Resistance:      []float64{price * 1.02},
		DecisionPrice:   price,
		Verdict:         "WAIT",
		Confidence:      0.5,
		Analysis:        "AI Service unavailable. Holding neutral.",
		RiskRewardRatio: 1.0,
		IsSimulated:     true,
	}
}
