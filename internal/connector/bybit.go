package connector

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"paper-trader/internal/model"

	"go.uber.org/zap"
)

const (
	bybitBaseURL  = "https://api.bybit.com"
	bybitMaxLimit = 1000
)

type BybitConnector struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

func NewBybitConnector(logger *zap.Logger, baseURL string) *BybitConnector {
	if baseURL == "" {
		baseURL = bybitBaseURL
	}
	return &BybitConnector{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

// BybitKlineResponse is the v5 market kline envelope. Rows are newest first.
type BybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Symbol string          `json:"symbol"`
		List   [][]interface{} `json:"list"`
	} `json:"result"`
}

func (b *BybitConnector) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.KLine, error) {
	sym := NormalizeSymbol(symbol)
	interval, err := bybitInterval(timeframe)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=%s&limit=%d",
		b.baseURL, sym, interval, clampLimit(limit, bybitMaxLimit))

	var resp BybitKlineResponse
	if err := getJSON(ctx, b.client, url, &resp); err != nil {
		return nil, fmt.Errorf("bybit klines %s: %w", sym, err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit klines %s: code %d: %s", sym, resp.RetCode, resp.RetMsg)
	}
	rows := resp.Result.List
	if len(rows) == 0 {
		return nil, fmt.Errorf("bybit klines %s: %w", sym, ErrEmptyResponse)
	}

	candles := make([]model.KLine, len(rows))
	for i, row := range rows {
		k, err := parseOHLCV(row)
		if err != nil {
			return nil, fmt.Errorf("bybit klines %s: %w", sym, err)
		}
		k.Symbol = sym
		k.Exchange = "bybit"
		k.Period = timeframe
		candles[len(rows)-1-i] = k
	}

	b.logger.Debug("fetched bybit klines",
		zap.String("symbol", sym),
		zap.String("interval", interval),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

// bybitInterval maps 1m/1h/1d style timeframes to Bybit's minute counts and D/W/M.
func bybitInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1m", "":
		return "1", nil
	case "3m":
		return "3", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h":
		return "60", nil
	case "2h":
		return "120", nil
	case "4h":
		return "240", nil
	case "6h":
		return "360", nil
	case "12h":
		return "720", nil
	case "1d":
		return "D", nil
	case "1w":
		return "W", nil
	case "1M":
		return "M", nil
	default:
		return "", fmt.Errorf("unsupported bybit timeframe: %s", timeframe)
	}
}
