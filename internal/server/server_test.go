package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/backend/internal/advisor"
	"github.com/quantdesk/backend/internal/alerts"
	"github.com/quantdesk/backend/internal/candle"
	"github.com/quantdesk/backend/internal/logging"
	"github.com/quantdesk/backend/internal/news"
)

type fakeMarket struct {
	candles map[string][]candle.Candle
	healthy bool
}

func (f *fakeMarket) Snapshot(symbol, interval string, limit int) []candle.Candle {
	out := f.candles[symbol+"|"+interval]
	if limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out
}

func (f *fakeMarket) StreamHealthy() bool { return f.healthy }

type recordingNotifier struct {
	token, chatID, message string
	err                    error
}

func (r *recordingNotifier) Send(message string) error { return r.SendTo("", "", message) }

func (r *recordingNotifier) SendTo(token, chatID, message string) error {
	r.token, r.chatID, r.message = token, chatID, message
	return r.err
}

func (r *recordingNotifier) SendWithRetry(message string) error { return r.Send(message) }

func hourly(n int, base float64) []candle.Candle {
	candles := make([]candle.Candle, n)
	for i := range candles {
		open := int64(1700000000000 + i*3600000)
		candles[i] = candle.Candle{
			OpenTime: open,
			Open:     base,
			High:     base + 1,
			Low:      base - 1,
			Close:    base,
			Volume:   10,
		}
	}
	return candles
}

func newTestServer(t *testing.T, m *fakeMarket, n *recordingNotifier) *Server {
	t.Helper()
	logger, ring := logging.New("info")
	adv := advisor.NewClient("", "gemini-3-flash-preview", logger)
	nw := news.NewService("", adv, logger)
	al := alerts.NewManager(m, n, alerts.Target{}, logger)
	return New(":0", m, adv, nw, al, ring, "http://localhost:5173", logger)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeMarket{}, &recordingNotifier{})
	h := srv.Handler()

	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestHistory(t *testing.T) {
	market := &fakeMarket{candles: map[string][]candle.Candle{
		"BTCUSDT|1h": hourly(5, 100),
	}}
	h := newTestServer(t, market, &recordingNotifier{}).Handler()

	t.Run("returns rows oldest first", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?symbol=btcusdt&interval=1h", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var rows [][]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		require.Len(t, rows, 5)
		require.Len(t, rows[0], 6)
		first := rows[0][0].(float64)
		last := rows[4][0].(float64)
		assert.Less(t, first, last)
	})

	t.Run("unknown pair is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?symbol=ZZZUSD&interval=1h", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "detail")
	})

	t.Run("bad limit is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?symbol=BTCUSDT&limit=bogus", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBands(t *testing.T) {
	t.Run("computes bands over hourly closes", func(t *testing.T) {
		market := &fakeMarket{candles: map[string][]candle.Candle{
			"BTCUSDT|1h": hourly(50, 100),
		}}
		h := newTestServer(t, market, &recordingNotifier{}).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bands?symbol=BTCUSDT", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Symbol string  `json:"symbol"`
			Price  float64 `json:"price"`
			Bands  struct {
				SMA float64 `json:"sma"`
			} `json:"bands"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "BTCUSDT", body.Symbol)
		assert.InDelta(t, 100, body.Price, 1e-9)
		assert.InDelta(t, 100, body.Bands.SMA, 1e-9)
	})

	t.Run("too little history is 400", func(t *testing.T) {
		market := &fakeMarket{candles: map[string][]candle.Candle{
			"BTCUSDT|1h": hourly(5, 100),
		}}
		h := newTestServer(t, market, &recordingNotifier{}).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bands?symbol=BTCUSDT", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty store is 404", func(t *testing.T) {
		h := newTestServer(t, &fakeMarket{}, &recordingNotifier{}).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bands?symbol=BTCUSDT", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAnalyzeFallsBackWithoutKey(t *testing.T) {
	market := &fakeMarket{candles: map[string][]candle.Candle{
		"BTCUSDT|15m": hourly(30, 100),
	}}
	h := newTestServer(t, market, &recordingNotifier{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze?symbol=BTCUSDT", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var v advisor.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "WAIT", v.Verdict)
	assert.True(t, v.IsSimulated)
}

func TestAlertLifecycle(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newTestServer(t, &fakeMarket{}, notifier).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)

	body := strings.NewReader(`{"symbol":"ethusdt","telegram_bot_token":"tok","telegram_chat_id":"42"}`)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/configure", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ETHUSDT")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/status", nil))
	assert.Contains(t, rec.Body.String(), `"active":true`)
	assert.Contains(t, rec.Body.String(), "ETHUSDT")
}

func TestAlertEvaluate(t *testing.T) {
	h := newTestServer(t, &fakeMarket{}, &recordingNotifier{}).Handler()

	body := strings.NewReader(`{"symbol":"BTCUSDT","price":50000,"tacticalProbability":80,"aiScore":1}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/evaluate", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var d alerts.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.ShouldAlert)
	assert.Equal(t, "LONG", d.AIAnalysis.Direction)
}

func TestSendTelegram(t *testing.T) {
	t.Run("formats and dispatches", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := newTestServer(t, &fakeMarket{}, notifier).Handler()

		body := strings.NewReader(`{"symbol":"btcusdt","direction":"LONG","confidence":82,"entry":50000,"stop":49500,"target":51000,"reasoning":"breakout","botToken":"tok","chatId":"99"}`)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/send-telegram", body))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "tok", notifier.token)
		assert.Equal(t, "99", notifier.chatID)
		assert.Contains(t, notifier.message, "QUANT DESK ALERT: BTCUSDT")
		assert.Contains(t, notifier.message, "82%")
		assert.Contains(t, notifier.message, "breakout")
	})

	t.Run("missing symbol is 400", func(t *testing.T) {
		h := newTestServer(t, &fakeMarket{}, &recordingNotifier{}).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/test", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delivery failure is 502", func(t *testing.T) {
		notifier := &recordingNotifier{err: fmt.Errorf("telegram: status 401")}
		h := newTestServer(t, &fakeMarket{}, notifier).Handler()

		body := strings.NewReader(`{"symbol":"BTCUSDT"}`)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/test", body))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestSystemStatus(t *testing.T) {
	srv := newTestServer(t, &fakeMarket{healthy: true}, &recordingNotifier{})
	srv.logger.Info("warmed up")
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/system-status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		StreamConnected bool            `json:"stream_connected"`
		Goroutines      int             `json:"goroutines"`
		Logs            []logging.Entry `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.StreamConnected)
	assert.Positive(t, body.Goroutines)
	require.NotEmpty(t, body.Logs)
	assert.Equal(t, "warmed up", body.Logs[len(body.Logs)-1].Message)
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeMarket{}, &recordingNotifier{}).Handler()

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/analyze/flow", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
