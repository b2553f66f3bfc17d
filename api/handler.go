package api

import (
	"net/http"

	"paper-trader/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	StatusInTrade   = "in-trade"
	StatusSearching = "searching"

	historyTimeLayout = "02.01 15:04"
)

type WalletReader interface {
	Snapshot() model.Wallet
}

type ChartReader interface {
	Snapshot() []model.PricePoint
}

type Handler struct {
	wallet WalletReader
	chart  ChartReader
	logger *zap.Logger
}

func NewHandler(wallet WalletReader, chart ChartReader, logger *zap.Logger) *Handler {
	return &Handler{
		wallet: wallet,
		chart:  chart,
		logger: logger,
	}
}

type HistoryEntry struct {
	Asset  string `json:"asset"`
	Time   string `json:"time"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Profit string `json:"profit"`
}

type DataResponse struct {
	Balance   string             `json:"balance"`
	Status    string             `json:"status"`
	History   []HistoryEntry     `json:"history"`
	ChartData []model.PricePoint `json:"chart_data"`
}

// GetData returns the dashboard view of wallet and chart.
func (h *Handler) GetData(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildData())
}

// GetWallet returns the raw wallet snapshot including the open position.
func (h *Handler) GetWallet(c *gin.Context) {
	c.JSON(http.StatusOK, h.wallet.Snapshot())
}

func (h *Handler) buildData() DataResponse {
	w := h.wallet.Snapshot()

	status := StatusSearching
	if w.InTrade() {
		status = StatusInTrade
	}

	history := make([]HistoryEntry, 0, len(w.History))
	for _, t := range w.History {
		history = append(history, HistoryEntry{
			Asset:  t.Symbol,
			Time:   t.ClosedAt.Format(historyTimeLayout),
			Open:   t.OpenPrice.StringFixed(2),
			Close:  t.ClosePrice.StringFixed(2),
			Profit: formatProfit(t.ProfitPercent),
		})
	}

	points := h.chart.Snapshot()
	if points == nil {
		points = []model.PricePoint{}
	}

	return DataResponse{
		Balance:   w.Balance.StringFixed(2),
		Status:    status,
		History:   history,
		ChartData: points,
	}
}

// formatProfit renders a signed percentage, e.g. "+10.00%" or "-3.25%".
func formatProfit(pct decimal.Decimal) string {
	s := pct.StringFixed(2)
	switch {
	case pct.Sign() < 0 && s[0] != '-':
		s = "-" + s
	case pct.Sign() >= 0:
		s = "+" + s
	}
	return s + "%"
}
