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
	okxBaseURL  = "https://www.okx.com"
	okxMaxLimit = 300
)

type OKXConnector struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

func NewOKXConnector(logger *zap.Logger, baseURL string) *OKXConnector {
	if baseURL == "" {
		baseURL = okxBaseURL
	}
	return &OKXConnector{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

// OKXCandlesResponse is the v5 market candles envelope. Rows are newest first.
type OKXCandlesResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data [][]interface{} `json:"data"`
}

func (o *OKXConnector) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.KLine, error) {
	instID := okxInstrument(symbol)
	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d",
		o.baseURL, instID, okxBar(timeframe), clampLimit(limit, okxMaxLimit))

	var resp OKXCandlesResponse
	if err := getJSON(ctx, o.client, url, &resp); err != nil {
		return nil, fmt.Errorf("okx candles %s: %w", instID, err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx candles %s: code %s: %s", instID, resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("okx candles %s: %w", instID, ErrEmptyResponse)
	}

	candles := make([]model.KLine, len(resp.Data))
	for i, row := range resp.Data {
		k, err := o.convertToModel(row, instID, timeframe)
		if err != nil {
			return nil, fmt.Errorf("okx candles %s: %w", instID, err)
		}
		candles[len(resp.Data)-1-i] = k
	}

	o.logger.Debug("fetched okx candles",
		zap.String("symbol", instID),
		zap.String("bar", okxBar(timeframe)),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

func (o *OKXConnector) convertToModel(row []interface{}, instID, timeframe string) (model.KLine, error) {
	k, err := parseOHLCV(row)
	if err != nil {
		return model.KLine{}, err
	}
	k.Symbol = instID
	k.Exchange = "okx"
	k.Period = timeframe
	return k, nil
}

// okxInstrument maps BTC/USDT or btc_usdt to BTC-USDT.
func okxInstrument(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "/", "-")
	return strings.ReplaceAll(s, "_", "-")
}

// okxBar upper-cases hour and longer bars: 1h -> 1H, 1d -> 1D.
func okxBar(timeframe string) string {
	if timeframe == "" {
		return "1m"
	}
	unit := timeframe[len(timeframe)-1]
	switch unit {
	case 'h', 'd', 'w':
		return timeframe[:len(timeframe)-1] + strings.ToUpper(string(unit))
	}
	return timeframe
}
