// Package exchange implements a single-ticker-keyed continuous double
// auction: a resting order book, price-time-priority matching, and settlement
// against the account collaborator.
package exchange

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickerbook/pkg/exchange/account"
	"tickerbook/pkg/util"
)

// SnapshotStore persists the resting order book. Save rewrites the whole
// snapshot; Load reconstructs it, preserving relative order within each
// ticker/side.
type SnapshotStore interface {
	Save(buys, sells map[string][]*Order) error
	Load() (buys, sells map[string][]*Order, err error)
}

// TradeLog is the durable, append-only record of executed trades.
type TradeLog interface {
	Append(t Trade) error
	Trades() ([]Trade, error)
}

// InitialPriceSource supplies a reference price for tickers that have never
// traded and have no resting limit orders.
type InitialPriceSource interface {
	InitialPrice(ticker string) (decimal.Decimal, bool)
}

// Book owns the resting buy/sell collections and the last-trade-price table.
// All mutations are synchronous; concurrent callers must serialize.
type Book struct {
	buys      map[string][]*Order // ticker -> resting buys, submission order
	sells     map[string][]*Order
	lastTrade map[string]decimal.Decimal

	snapshots SnapshotStore
	trades    TradeLog
	initial   InitialPriceSource
	clock     util.Clock
	log       *zap.Logger
}

// NewBook builds a book over the given collaborators and loads any prior
// unmatched-orders snapshot. An unreadable snapshot means an empty book.
// clock and log may be nil.
func NewBook(snapshots SnapshotStore, trades TradeLog, initial InitialPriceSource, clock util.Clock, log *zap.Logger) *Book {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	b := &Book{
		buys:      make(map[string][]*Order),
		sells:     make(map[string][]*Order),
		lastTrade: make(map[string]decimal.Decimal),
		snapshots: snapshots,
		trades:    trades,
		initial:   initial,
		clock:     clock,
		log:       log,
	}

	buys, sells, err := snapshots.Load()
	if err != nil {
		log.Warn("unmatched-orders snapshot unreadable, starting empty", zap.Error(err))
		return b
	}
	if buys != nil {
		b.buys = buys
	}
	if sells != nil {
		b.sells = sells
	}
	return b
}

// Add validates an order and rests it at the tail of its side, then rewrites
// the durable snapshot. A *Rejection return means the order was refused and
// nothing changed; any other error is a persistence fault.
func (b *Book) Add(o Order, accounts account.Manager) error {
	if o.Side != Buy && o.Side != Sell {
		return &Rejection{Reason: RejectInvalidSide}
	}
	if o.Quantity <= 0 {
		return &Rejection{Reason: RejectNonPositiveQuantity}
	}
	if o.Type != Market && o.Type != Limit {
		return &Rejection{Reason: RejectInvalidOrderType}
	}
	if o.Type == Limit && o.Price.Sign() <= 0 {
		return &Rejection{Reason: RejectMissingLimitPrice}
	}
	if o.Type == Market {
		o.Price = decimal.Zero
	}

	if o.Side == Sell {
		acc, err := accounts.GetAccount(o.AccountID)
		if err != nil {
			return fmt.Errorf("account lookup for %s: %w", o.AccountID, err)
		}
		if acc.Position(o.Ticker) < o.Quantity {
			return &Rejection{
				Reason: RejectInsufficientShares,
				Detail: fmt.Sprintf("account %s holds %d %s, sell is for %d", o.AccountID, acc.Position(o.Ticker), o.Ticker, o.Quantity),
			}
		}
	}

	if o.Timestamp.IsZero() {
		o.Timestamp = b.clock.Now()
	}

	switch o.Side {
	case Buy:
		b.buys[o.Ticker] = append(b.buys[o.Ticker], &o)
	case Sell:
		b.sells[o.Ticker] = append(b.sells[o.Ticker], &o)
	}

	b.log.Info("order added",
		zap.String("account", o.AccountID),
		zap.String("ticker", o.Ticker),
		zap.Stringer("side", o.Side),
		zap.Stringer("type", o.Type),
		zap.Int64("quantity", o.Quantity),
		zap.String("price", o.Price.String()),
	)

	if err := b.snapshots.Save(b.buys, b.sells); err != nil {
		return fmt.Errorf("persist unmatched orders: %w", err)
	}
	return nil
}

// BestPrice resolves a reference price for the given intent: for a buy, the
// lowest resting sell limit; for a sell, the highest resting buy limit.
// Falls back to the last trade price, then the initial price.
func (b *Book) BestPrice(side Side, ticker string) (decimal.Decimal, bool) {
	switch side {
	case Buy:
		if ask, ok := bestLimit(b.sells[ticker], false); ok {
			return ask, true
		}
	case Sell:
		if bid, ok := bestLimit(b.buys[ticker], true); ok {
			return bid, true
		}
	}
	if last, ok := b.lastTrade[ticker]; ok {
		return last, true
	}
	if b.initial != nil {
		return b.initial.InitialPrice(ticker)
	}
	return decimal.Zero, false
}

// BestBidAsk returns the highest resting buy limit and lowest resting sell
// limit for ticker. Either side may be absent.
func (b *Book) BestBidAsk(ticker string) (bid, ask decimal.Decimal, hasBid, hasAsk bool) {
	bid, hasBid = bestLimit(b.buys[ticker], true)
	ask, hasAsk = bestLimit(b.sells[ticker], false)
	return bid, ask, hasBid, hasAsk
}

func bestLimit(orders []*Order, highest bool) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, o := range orders {
		if o.Type != Limit {
			continue
		}
		if !found || (highest && o.Price.GreaterThan(best)) || (!highest && o.Price.LessThan(best)) {
			best = o.Price
			found = true
		}
	}
	return best, found
}

// LastTradePrice returns the most recent execution price for ticker.
func (b *Book) LastTradePrice(ticker string) (decimal.Decimal, bool) {
	p, ok := b.lastTrade[ticker]
	return p, ok
}

// BuyOrders returns copies of the resting buy orders for ticker.
func (b *Book) BuyOrders(ticker string) []Order {
	return copyOrders(b.buys[ticker])
}

// SellOrders returns copies of the resting sell orders for ticker.
func (b *Book) SellOrders(ticker string) []Order {
	return copyOrders(b.sells[ticker])
}

func copyOrders(orders []*Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = *o
	}
	return out
}

// Tickers returns every ticker with at least one resting order, sorted.
func (b *Book) Tickers() []string {
	seen := make(map[string]struct{})
	for t, orders := range b.buys {
		if len(orders) > 0 {
			seen[t] = struct{}{}
		}
	}
	for t, orders := range b.sells {
		if len(orders) > 0 {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TradeHistory returns the executed-trade log in execution order.
func (b *Book) TradeHistory() ([]Trade, error) {
	return b.trades.Trades()
}
