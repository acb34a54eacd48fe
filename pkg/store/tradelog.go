package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tickerbook/pkg/exchange"
)

type tradeRecord struct {
	ID            string          `json:"trade_id"`
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int64           `json:"quantity"`
	BuyAccountID  string          `json:"buy_account_id"`
	SellAccountID string          `json:"sell_account_id"`
	Timestamp     string          `json:"timestamp"`
}

// TradeLogFile is the append-only executed-trades log. Appends are
// read-modify-write of the whole list, keeping the file a single JSON array.
type TradeLogFile struct {
	path string
}

func NewTradeLog(path string) *TradeLogFile {
	return &TradeLogFile{path: path}
}

func (l *TradeLogFile) Append(t exchange.Trade) error {
	records := l.read()
	records = append(records, tradeRecord{
		ID:            t.ID,
		Ticker:        t.Ticker,
		Price:         t.Price,
		Quantity:      t.Quantity,
		BuyAccountID:  t.BuyAccountID,
		SellAccountID: t.SellAccountID,
		Timestamp:     t.Timestamp.Format(time.RFC3339Nano),
	})

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal trade log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create trade log dir: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("write trade log %s: %w", l.path, err)
	}
	return nil
}

// Trades returns all recorded trades in execution order. A missing or
// unreadable log is an empty history.
func (l *TradeLogFile) Trades() ([]exchange.Trade, error) {
	records := l.read()
	trades := make([]exchange.Trade, 0, len(records))
	for _, rec := range records {
		ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse trade timestamp %q: %w", rec.Timestamp, err)
		}
		trades = append(trades, exchange.Trade{
			ID:            rec.ID,
			Ticker:        rec.Ticker,
			Price:         rec.Price,
			Quantity:      rec.Quantity,
			BuyAccountID:  rec.BuyAccountID,
			SellAccountID: rec.SellAccountID,
			Timestamp:     ts,
		})
	}
	return trades, nil
}

// read returns the current log contents, or empty when the file is missing or
// corrupt. Matches load semantics for the snapshot: no prior state, not fatal.
func (l *TradeLogFile) read() []tradeRecord {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	var records []tradeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}
