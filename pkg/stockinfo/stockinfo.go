// Package stockinfo serves reference data for listed tickers, including the
// initial price used when a ticker has no trade history and no resting limit
// orders.
package stockinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Stock is one listed ticker's reference data.
type Stock struct {
	Price         decimal.Decimal  `json:"price"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	DividendYield *decimal.Decimal `json:"dividend_yield,omitempty"`
}

// StockInfo is a read-only table of listed tickers loaded from a JSON file.
type StockInfo struct {
	stocks map[string]Stock
}

// Load reads the stock listing from path. Ticker keys are upper-cased.
func Load(path string) (*StockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stock listing %s: %w", path, err)
	}

	var raw map[string]Stock
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode stock listing %s: %w", path, err)
	}

	stocks := make(map[string]Stock, len(raw))
	for ticker, s := range raw {
		stocks[strings.ToUpper(ticker)] = s
	}
	return &StockInfo{stocks: stocks}, nil
}

// New builds a listing from an in-memory table. Used by tests and embedders.
func New(stocks map[string]Stock) *StockInfo {
	up := make(map[string]Stock, len(stocks))
	for ticker, s := range stocks {
		up[strings.ToUpper(ticker)] = s
	}
	return &StockInfo{stocks: up}
}

// InitialPrice returns the listed price for ticker, if listed.
func (si *StockInfo) InitialPrice(ticker string) (decimal.Decimal, bool) {
	s, ok := si.stocks[strings.ToUpper(ticker)]
	if !ok {
		return decimal.Zero, false
	}
	return s.Price, true
}

// Get returns the full reference entry for ticker.
func (si *StockInfo) Get(ticker string) (Stock, bool) {
	s, ok := si.stocks[strings.ToUpper(ticker)]
	return s, ok
}

// Tickers returns all listed tickers in sorted order.
func (si *StockInfo) Tickers() []string {
	out := make([]string, 0, len(si.stocks))
	for t := range si.stocks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
