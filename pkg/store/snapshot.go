// Package store persists the unmatched-orders snapshot and the executed-trade
// log as JSON files. Timestamps travel as ISO-8601 strings; the snapshot must
// reload with identical fields and relative order per ticker/side.
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

type orderRecord struct {
	AccountID string             `json:"account_id"`
	Ticker    string             `json:"ticker"`
	Action    exchange.Side      `json:"action"`
	OrderType exchange.OrderType `json:"order_type"`
	Quantity  int64              `json:"quantity"`
	Price     *decimal.Decimal   `json:"price,omitempty"` // absent for market orders
	Timestamp string             `json:"timestamp"`
}

type snapshotDocument struct {
	BuyOrders  map[string][]orderRecord `json:"buy_orders"`
	SellOrders map[string][]orderRecord `json:"sell_orders"`
}

// Snapshot reads and rewrites the unmatched-orders file. Every Save is a full
// rewrite; there is no incremental persistence for this data.
type Snapshot struct {
	path string
}

func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

func (s *Snapshot) Save(buys, sells map[string][]*exchange.Order) error {
	doc := snapshotDocument{
		BuyOrders:  encodeSide(buys),
		SellOrders: encodeSide(sells),
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.path, err)
	}
	return nil
}

// Load reconstructs the resting order collections. A missing file is an empty
// book; a corrupt file is reported to the caller, which treats it as empty.
func (s *Snapshot) Load() (map[string][]*exchange.Order, map[string][]*exchange.Order, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}

	buys, err := decodeSide(doc.BuyOrders)
	if err != nil {
		return nil, nil, err
	}
	sells, err := decodeSide(doc.SellOrders)
	if err != nil {
		return nil, nil, err
	}
	return buys, sells, nil
}

func encodeSide(side map[string][]*exchange.Order) map[string][]orderRecord {
	out := make(map[string][]orderRecord, len(side))
	for ticker, orders := range side {
		recs := make([]orderRecord, 0, len(orders))
		for _, o := range orders {
			recs = append(recs, encodeOrder(o))
		}
		out[ticker] = recs
	}
	return out
}

func encodeOrder(o *exchange.Order) orderRecord {
	rec := orderRecord{
		AccountID: o.AccountID,
		Ticker:    o.Ticker,
		Action:    o.Side,
		OrderType: o.Type,
		Quantity:  o.Quantity,
		Timestamp: o.Timestamp.Format(time.RFC3339Nano),
	}
	if o.Type == exchange.Limit {
		p := o.Price
		rec.Price = &p
	}
	return rec
}

func decodeSide(side map[string][]orderRecord) (map[string][]*exchange.Order, error) {
	out := make(map[string][]*exchange.Order, len(side))
	for ticker, recs := range side {
		orders := make([]*exchange.Order, 0, len(recs))
		for _, rec := range recs {
			o, err := decodeOrder(rec)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
		out[ticker] = orders
	}
	return out, nil
}

func decodeOrder(rec orderRecord) (*exchange.Order, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse order timestamp %q: %w", rec.Timestamp, err)
	}
	o := &exchange.Order{
		AccountID: rec.AccountID,
		Ticker:    rec.Ticker,
		Side:      rec.Action,
		Type:      rec.OrderType,
		Quantity:  rec.Quantity,
		Timestamp: ts,
	}
	if rec.Price != nil {
		o.Price = *rec.Price
	}
	return o, nil
}
