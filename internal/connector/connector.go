package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"paper-trader/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrEmptyResponse = errors.New("exchange returned no candles")

const (
	DefaultLimit   = 100
	requestTimeout = 10 * time.Second
)

// CandleSource returns up to limit most recent candles, oldest first.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.KLine, error)
}

func New(exchange, baseURL string, logger *zap.Logger) (CandleSource, error) {
	switch strings.ToLower(exchange) {
	case "binance":
		return NewBinanceConnector(logger, baseURL), nil
	case "okx":
		return NewOKXConnector(logger, baseURL), nil
	case "bybit":
		return NewBybitConnector(logger, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", exchange)
	}
}

// NormalizeSymbol unifies different exchange symbol formats into a standard one (e.g. BTCUSDT)
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

func parseDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case json.Number:
		return decimal.NewFromString(t.String())
	default:
		return decimal.Zero, fmt.Errorf("unexpected value %v (%T)", v, v)
	}
}

func parseMillis(v interface{}) (time.Time, error) {
	d, err := parseDecimal(v)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, d.IntPart()*int64(time.Millisecond)), nil
}

// parseOHLCV reads [openTime, open, high, low, close, volume, ...].
func parseOHLCV(row []interface{}) (model.KLine, error) {
	if len(row) < 6 {
		return model.KLine{}, fmt.Errorf("kline row has %d fields", len(row))
	}

	ts, err := parseMillis(row[0])
	if err != nil {
		return model.KLine{}, fmt.Errorf("open time: %w", err)
	}
	fields := make([]decimal.Decimal, 5)
	for i := range fields {
		fields[i], err = parseDecimal(row[i+1])
		if err != nil {
			return model.KLine{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}

	return model.KLine{
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		Timestamp: ts,
	}, nil
}
