// Package exchange
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quantdesk/backend/internal/candle"
)

// Client fetches historical market data from the Binance REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client. The http.Client is shared with the rest of
// the service and must be safe for concurrent use.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// FetchKlines requests up to limit historical candles for a symbol/interval
// pair. The endpoint returns fixed-position tuples
// [openTime, open, high, low, close, volume, ...] with prices as strings.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building klines request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("klines request failed: HTTP %d", resp.StatusCode)
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding klines response: %w", err)
	}

	candles := make([]candle.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parsing kline row %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKlineRow(row []json.RawMessage) (candle.Candle, error) {
	if len(row) < 6 {
		return candle.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return candle.Candle{}, fmt.Errorf("open time: %w", err)
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		v, err := parseNumeric(row[i])
		if err != nil {
			return candle.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return candle.Candle{
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}

// parseNumeric handles price fields that arrive either as JSON strings
// ("42000.10") or as bare numbers.
func parseNumeric(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}
