package exchange

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickerbook/pkg/exchange/account"
)

// lessBuy orders the buy side: market orders first, then descending limit
// price, then earlier timestamp.
func lessBuy(a, b *Order) bool {
	if (a.Type == Market) != (b.Type == Market) {
		return a.Type == Market
	}
	if a.Type == Limit && !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.Timestamp.Before(b.Timestamp)
}

// lessSell orders the sell side: market orders first, then ascending limit
// price, then earlier timestamp.
func lessSell(a, b *Order) bool {
	if (a.Type == Market) != (b.Type == Market) {
		return a.Type == Market
	}
	if a.Type == Limit && !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.Timestamp.Before(b.Timestamp)
}

// execPrice resolves the execution price for a candidate pair, or reports
// that the pair cannot trade (prices do not cross, or market/market with no
// last-trade reference).
func (b *Book) execPrice(ticker string, buy, sell *Order) (decimal.Decimal, bool) {
	switch {
	case buy.Type == Market && sell.Type == Market:
		last, ok := b.lastTrade[ticker]
		return last, ok
	case buy.Type == Market:
		return sell.Price, true
	case sell.Type == Market:
		return buy.Price, true
	default:
		if buy.Price.GreaterThanOrEqual(sell.Price) {
			return sell.Price, true
		}
		return decimal.Zero, false
	}
}

// candidate is a pairing decision: which buy meets which sell, and at what
// price. The decision is computed first and applied after, so no collection
// is mutated mid-scan.
type candidate struct {
	buyIdx  int
	sellIdx int
	price   decimal.Decimal
}

// findCandidate scans priority-sorted sides for the first pair that clears
// the self-trade and price rules.
func (b *Book) findCandidate(ticker string, buys, sells []*Order) (candidate, bool) {
	for i, buy := range buys {
		for j, sell := range sells {
			if buy.AccountID == sell.AccountID {
				continue // self-trade prevention
			}
			price, ok := b.execPrice(ticker, buy, sell)
			if !ok {
				continue
			}
			return candidate{buyIdx: i, sellIdx: j, price: price}, true
		}
	}
	return candidate{}, false
}

// Match pairs resting orders for ticker until none can trade, settling each
// fill against accounts and appending to the trade log, then rewrites the
// unmatched-orders snapshot. Returns the trades executed during this run.
//
// Matching is greedy: after every fill (and after every insufficient-balance
// drop) the priority order is recomputed from the mutated book and the scan
// restarts from the top.
func (b *Book) Match(ticker string, accounts account.Manager) ([]Trade, error) {
	var executed []Trade

	for {
		buys := b.buys[ticker]
		sells := b.sells[ticker]
		if len(buys) == 0 || len(sells) == 0 {
			break
		}

		sort.SliceStable(buys, func(i, j int) bool { return lessBuy(buys[i], buys[j]) })
		sort.SliceStable(sells, func(i, j int) bool { return lessSell(sells[i], sells[j]) })

		cand, ok := b.findCandidate(ticker, buys, sells)
		if !ok {
			break
		}

		buy := buys[cand.buyIdx]
		sell := sells[cand.sellIdx]
		qty := buy.Quantity
		if sell.Quantity < qty {
			qty = sell.Quantity
		}
		cost := cand.price.Mul(decimal.NewFromInt(qty))

		buyer, err := accounts.GetAccount(buy.AccountID)
		if err != nil {
			return executed, fmt.Errorf("account lookup for %s: %w", buy.AccountID, err)
		}
		if buyer.Balance.LessThan(cost) {
			// Unfulfillable at current balance: drop the buy order and move
			// on. No trade is recorded.
			b.log.Warn("buy order dropped: insufficient balance",
				zap.String("account", buy.AccountID),
				zap.String("ticker", ticker),
				zap.String("cost", cost.String()),
				zap.String("balance", buyer.Balance.String()),
			)
			b.buys[ticker] = removeAt(buys, cand.buyIdx)
			continue
		}

		tr, err := b.settle(ticker, buy, sell, cand.price, qty, cost, buyer, accounts)
		if err != nil {
			return executed, err
		}

		if buy.Quantity == 0 {
			b.buys[ticker] = removeAt(b.buys[ticker], cand.buyIdx)
		}
		if sell.Quantity == 0 {
			b.sells[ticker] = removeAt(b.sells[ticker], cand.sellIdx)
		}

		executed = append(executed, tr)
	}

	if err := b.snapshots.Save(b.buys, b.sells); err != nil {
		return executed, fmt.Errorf("persist unmatched orders: %w", err)
	}
	return executed, nil
}

// settle moves cash and shares for one fill, updates the last trade price,
// decrements both orders, and appends the trade record. Both account legs
// complete or the fill does not happen; the balance check has already passed.
func (b *Book) settle(ticker string, buy, sell *Order, price decimal.Decimal, qty int64, cost decimal.Decimal, buyer *account.Account, accounts account.Manager) (Trade, error) {
	buyer.Balance = buyer.Balance.Sub(cost)
	buyer.Positions[ticker] += qty
	if err := accounts.UpdateAccount(buy.AccountID, buyer); err != nil {
		return Trade{}, fmt.Errorf("update buyer %s: %w", buy.AccountID, err)
	}

	seller, err := accounts.GetAccount(sell.AccountID)
	if err != nil {
		return Trade{}, fmt.Errorf("account lookup for %s: %w", sell.AccountID, err)
	}
	seller.Positions[ticker] -= qty
	if seller.Positions[ticker] == 0 {
		delete(seller.Positions, ticker)
	}
	seller.Balance = seller.Balance.Add(cost)
	if err := accounts.UpdateAccount(sell.AccountID, seller); err != nil {
		return Trade{}, fmt.Errorf("update seller %s: %w", sell.AccountID, err)
	}

	b.lastTrade[ticker] = price
	buy.Quantity -= qty
	sell.Quantity -= qty

	tr := Trade{
		ID:            uuid.NewString(),
		Ticker:        ticker,
		Price:         price,
		Quantity:      qty,
		BuyAccountID:  buy.AccountID,
		SellAccountID: sell.AccountID,
		Timestamp:     b.clock.Now(),
	}
	if err := b.trades.Append(tr); err != nil {
		return Trade{}, fmt.Errorf("append trade log: %w", err)
	}

	b.log.Info("trade executed",
		zap.String("ticker", ticker),
		zap.String("price", price.String()),
		zap.Int64("quantity", qty),
		zap.String("buyer", buy.AccountID),
		zap.String("seller", sell.AccountID),
	)
	return tr, nil
}

func removeAt(orders []*Order, i int) []*Order {
	return append(orders[:i], orders[i+1:]...)
}
