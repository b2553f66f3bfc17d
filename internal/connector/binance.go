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
	binanceBaseURL  = "https://api.binance.com"
	binanceMaxLimit = 1000
)

type BinanceConnector struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

func NewBinanceConnector(logger *zap.Logger, baseURL string) *BinanceConnector {
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	return &BinanceConnector{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

func (b *BinanceConnector) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.KLine, error) {
	pair := NormalizeSymbol(symbol)
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		b.baseURL, pair, timeframe, clampLimit(limit, binanceMaxLimit))

	var payload [][]interface{}
	if err := getJSON(ctx, b.client, url, &payload); err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", pair, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("binance klines %s: %w", pair, ErrEmptyResponse)
	}

	candles := make([]model.KLine, 0, len(payload))
	for _, row := range payload {
		k, err := b.convertToModel(row, pair, timeframe)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", pair, err)
		}
		candles = append(candles, k)
	}

	b.logger.Debug("fetched binance klines",
		zap.String("symbol", pair),
		zap.String("interval", timeframe),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

func (b *BinanceConnector) convertToModel(row []interface{}, pair, timeframe string) (model.KLine, error) {
	k, err := parseOHLCV(row)
	if err != nil {
		return model.KLine{}, err
	}
	k.Symbol = pair
	k.Exchange = "binance"
	k.Period = timeframe
	return k, nil
}
