package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/backend/internal/candle"
)

func TestStreamURL(t *testing.T) {
	url := StreamURL("wss://stream.binance.us:9443/stream",
		[]string{"BTCUSDT", "ETHUSDT"}, []string{"1m", "1h"})

	assert.Equal(t,
		"wss://stream.binance.us:9443/stream?streams=btcusdt@kline_1m/btcusdt@kline_1h/ethusdt@kline_1m/ethusdt@kline_1h",
		url)
}

func newTestStream(t *testing.T) (*KlineStream, *candle.Store) {
	t.Helper()
	store := candle.NewStore([]string{"BTCUSDT"}, []string{"1m"}, 300, nil)
	return NewKlineStream("ws://unused", store, time.Millisecond, nil), store
}

func TestKlineStream_HandleMessage(t *testing.T) {
	klineMsg := []byte(`{"stream":"btcusdt@kline_1m","data":{"e":"kline","E":1700000001000,
		"s":"BTCUSDT","k":{"t":1700000000000,"s":"BTCUSDT","i":"1m",
		"o":"42000.1","h":"42100.0","l":"41900.5","c":"42050.0","v":"12.5","x":false}}}`)

	t.Run("applies kline events", func(t *testing.T) {
		stream, store := newTestStream(t)
		stream.handleMessage(klineMsg)

		snap := store.Snapshot("BTCUSDT", "1m", 10)
		require.Len(t, snap, 1)
		assert.Equal(t, int64(1700000000000), snap[0].OpenTime)
		assert.Equal(t, 42050.0, snap[0].Close)
	})

	t.Run("replaces in-progress period", func(t *testing.T) {
		stream, store := newTestStream(t)
		stream.handleMessage(klineMsg)
		stream.handleMessage([]byte(`{"stream":"btcusdt@kline_1m","data":{"e":"kline",
			"k":{"t":1700000000000,"s":"BTCUSDT","i":"1m",
			"o":"42000.1","h":"42150.0","l":"41900.5","c":"42120.0","v":"14.0","x":true}}}`))

		snap := store.Snapshot("BTCUSDT", "1m", 10)
		require.Len(t, snap, 1)
		assert.Equal(t, 42120.0, snap[0].Close)
	})

	t.Run("ignores non-kline events", func(t *testing.T) {
		stream, store := newTestStream(t)
		stream.handleMessage([]byte(`{"stream":"btcusdt@depth","data":{"e":"depthUpdate","b":[],"a":[]}}`))
		assert.Empty(t, store.Snapshot("BTCUSDT", "1m", 10))
	})

	t.Run("ignores malformed payloads", func(t *testing.T) {
		stream, store := newTestStream(t)
		stream.handleMessage([]byte(`not json`))
		stream.handleMessage([]byte(`{"result":null,"id":1}`))
		stream.handleMessage([]byte(`{"stream":"x","data":{"e":"kline","k":{"t":1,"o":"bad","h":"1","l":"1","c":"1","v":"1"}}}`))
		assert.Empty(t, store.Snapshot("BTCUSDT", "1m", 10))
	})
}
