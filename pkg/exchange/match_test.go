package exchange_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tickerbook/pkg/exchange"
	"tickerbook/pkg/exchange/account"
	"tickerbook/pkg/stockinfo"
	"tickerbook/pkg/store"
	"tickerbook/pkg/util"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	book     *exchange.Book
	accounts *account.PebbleManager
	clock    *util.ManualClock
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	accounts, err := account.NewPebbleManager(filepath.Join(dir, "accounts.db"))
	if err != nil {
		t.Fatalf("failed to open accounts db: %v", err)
	}
	t.Cleanup(func() { accounts.Close() })

	clock := util.NewManualClock(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC))
	book := exchange.NewBook(
		store.NewSnapshot(filepath.Join(dir, "unmatched_orders.json")),
		store.NewTradeLog(filepath.Join(dir, "executed_trades.json")),
		stockinfo.New(map[string]stockinfo.Stock{"XYZ": {Price: dec("25")}}),
		clock,
		nil,
	)
	return &fixture{book: book, accounts: accounts, clock: clock, dir: dir}
}

// add submits an order, advancing the clock so each order gets a distinct
// timestamp, and fails the test on rejection.
func (f *fixture) add(t *testing.T, o exchange.Order) {
	t.Helper()
	f.clock.Advance(time.Second)
	if err := f.book.Add(o, f.accounts); err != nil {
		t.Fatalf("unexpected rejection for %s %s: %v", o.Side, o.Ticker, err)
	}
}

func buyLimit(acct string, qty int64, price string) exchange.Order {
	return exchange.Order{AccountID: acct, Ticker: "XYZ", Side: exchange.Buy, Type: exchange.Limit, Quantity: qty, Price: dec(price)}
}

func sellLimit(acct string, qty int64, price string) exchange.Order {
	return exchange.Order{AccountID: acct, Ticker: "XYZ", Side: exchange.Sell, Type: exchange.Limit, Quantity: qty, Price: dec(price)}
}

func buyMarket(acct string, qty int64) exchange.Order {
	return exchange.Order{AccountID: acct, Ticker: "XYZ", Side: exchange.Buy, Type: exchange.Market, Quantity: qty}
}

func sellMarket(acct string, qty int64) exchange.Order {
	return exchange.Order{AccountID: acct, Ticker: "XYZ", Side: exchange.Sell, Type: exchange.Market, Quantity: qty}
}

func (f *fixture) seed(t *testing.T, id string, balance string, shares int64) {
	t.Helper()
	if balance != "" {
		if err := f.accounts.Deposit(id, dec(balance)); err != nil {
			t.Fatalf("deposit for %s: %v", id, err)
		}
	}
	if shares > 0 {
		if err := f.accounts.GrantShares(id, "XYZ", shares); err != nil {
			t.Fatalf("share grant for %s: %v", id, err)
		}
	}
}

func (f *fixture) mustMatch(t *testing.T) []exchange.Trade {
	t.Helper()
	trades, err := f.book.Match("XYZ", f.accounts)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	return trades
}

func TestFullFillAtSamePrice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 10)

	f.add(t, buyLimit("A", 10, "100"))
	f.add(t, sellLimit("B", 10, "100"))

	trades := f.mustMatch(t)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Quantity != 10 || !tr.Price.Equal(dec("100")) {
		t.Errorf("wrong fill: qty=%d price=%s", tr.Quantity, tr.Price)
	}
	if tr.BuyAccountID != "A" || tr.SellAccountID != "B" {
		t.Errorf("wrong counterparties: buy=%s sell=%s", tr.BuyAccountID, tr.SellAccountID)
	}

	if n := len(f.book.BuyOrders("XYZ")); n != 0 {
		t.Errorf("expected empty buy side, got %d orders", n)
	}
	if n := len(f.book.SellOrders("XYZ")); n != 0 {
		t.Errorf("expected empty sell side, got %d orders", n)
	}

	buyer, _ := f.accounts.GetAccount("A")
	if !buyer.Balance.Equal(dec("9000")) {
		t.Errorf("buyer balance: got %s, want 9000", buyer.Balance)
	}
	if buyer.Position("XYZ") != 10 {
		t.Errorf("buyer position: got %d, want 10", buyer.Position("XYZ"))
	}

	seller, _ := f.accounts.GetAccount("B")
	if !seller.Balance.Equal(dec("1000")) {
		t.Errorf("seller balance: got %s, want 1000", seller.Balance)
	}
	if _, held := seller.Positions["XYZ"]; held {
		t.Errorf("seller position should be removed once it reaches zero")
	}
}

func TestPartialFillAtSellersLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 10)

	f.add(t, buyLimit("A", 5, "101"))
	f.add(t, sellLimit("B", 10, "100"))

	trades := f.mustMatch(t)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Quantity != 5 || !trades[0].Price.Equal(dec("100")) {
		t.Errorf("wrong fill: qty=%d price=%s, want 5@100 (seller's limit)", trades[0].Quantity, trades[0].Price)
	}

	if n := len(f.book.BuyOrders("XYZ")); n != 0 {
		t.Errorf("buy order should be fully filled and removed, %d left", n)
	}
	sells := f.book.SellOrders("XYZ")
	if len(sells) != 1 || sells[0].Quantity != 5 {
		t.Fatalf("sell order should rest with quantity 5, got %+v", sells)
	}
}

func TestMarketMarketNeedsReferencePrice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 5)

	f.add(t, buyMarket("A", 5))
	f.add(t, sellMarket("B", 5))

	trades := f.mustMatch(t)
	if len(trades) != 0 {
		t.Fatalf("market/market with no last trade price must not match, got %d trades", len(trades))
	}
	if len(f.book.BuyOrders("XYZ")) != 1 || len(f.book.SellOrders("XYZ")) != 1 {
		t.Errorf("both orders should remain resting")
	}
}

func TestMarketMarketUsesLastTradePrice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 15)
	f.seed(t, "C", "10000", 0)
	f.seed(t, "D", "", 5)

	// Establish a last trade price of 40 with a limit/limit cross.
	f.add(t, buyLimit("A", 10, "40"))
	f.add(t, sellLimit("B", 10, "40"))
	if trades := f.mustMatch(t); len(trades) != 1 {
		t.Fatalf("setup trade did not execute")
	}

	f.add(t, buyMarket("C", 5))
	f.add(t, sellMarket("D", 5))

	trades := f.mustMatch(t)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if !trades[0].Price.Equal(dec("40")) {
		t.Errorf("market/market should execute at last trade price 40, got %s", trades[0].Price)
	}
}

func TestInsufficientBalanceDropsBuyOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "100", 0)
	f.seed(t, "B", "", 10)

	f.add(t, buyLimit("A", 10, "50"))
	f.add(t, sellLimit("B", 10, "50"))

	trades := f.mustMatch(t)
	if len(trades) != 0 {
		t.Fatalf("settlement should be rejected (100 < 500), got %d trades", len(trades))
	}
	if n := len(f.book.BuyOrders("XYZ")); n != 0 {
		t.Errorf("unfulfillable buy order must be removed, %d left", n)
	}
	if n := len(f.book.SellOrders("XYZ")); n != 1 {
		t.Errorf("sell order should remain resting, got %d", n)
	}

	buyer, _ := f.accounts.GetAccount("A")
	if !buyer.Balance.Equal(dec("100")) {
		t.Errorf("rejected settlement must not move cash, balance=%s", buyer.Balance)
	}
}

func TestSelfTradePrevention(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 10)

	f.add(t, buyLimit("A", 5, "101"))
	f.add(t, sellLimit("A", 5, "100"))

	if trades := f.mustMatch(t); len(trades) != 0 {
		t.Fatalf("same-account pair must never match, got %d trades", len(trades))
	}
	if len(f.book.BuyOrders("XYZ")) != 1 || len(f.book.SellOrders("XYZ")) != 1 {
		t.Fatalf("both of A's orders should remain resting")
	}

	// A different counterparty unlocks the resting sell.
	f.seed(t, "B", "10000", 0)
	f.add(t, buyLimit("B", 5, "100"))

	trades := f.mustMatch(t)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade once a counterparty appeared, got %d", len(trades))
	}
	if trades[0].BuyAccountID != "B" || trades[0].SellAccountID != "A" {
		t.Errorf("wrong counterparties: buy=%s sell=%s", trades[0].BuyAccountID, trades[0].SellAccountID)
	}
}

func TestTimePriorityBreaksPriceTies(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 5)
	f.seed(t, "C", "", 5)

	f.add(t, sellLimit("B", 5, "100")) // earlier
	f.add(t, sellLimit("C", 5, "100")) // later, same price

	f.add(t, buyLimit("A", 5, "100"))

	trades := f.mustMatch(t)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].SellAccountID != "B" {
		t.Errorf("earlier order at same price must fill first, filled %s", trades[0].SellAccountID)
	}
}

func TestMarketOrdersRankAheadOfLimits(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 5)
	f.seed(t, "C", "", 5)

	f.add(t, sellLimit("B", 5, "99"))
	f.add(t, sellMarket("C", 5))

	f.add(t, buyLimit("A", 5, "100"))

	trades := f.mustMatch(t)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	// Market sell outranks the 99 limit; limit/market executes at the buy's
	// limit price.
	if trades[0].SellAccountID != "C" {
		t.Errorf("market sell should fill first, filled %s", trades[0].SellAccountID)
	}
	if !trades[0].Price.Equal(dec("100")) {
		t.Errorf("limit/market pair executes at buy limit, got %s", trades[0].Price)
	}
}

func TestUncrossedLimitsDoNotMatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 10)

	f.add(t, buyLimit("A", 10, "99"))
	f.add(t, sellLimit("B", 10, "100"))

	if trades := f.mustMatch(t); len(trades) != 0 {
		t.Fatalf("99 bid cannot cross 100 ask, got %d trades", len(trades))
	}
	if len(f.book.BuyOrders("XYZ")) != 1 || len(f.book.SellOrders("XYZ")) != 1 {
		t.Errorf("both orders should remain resting")
	}
}

func TestMatchingRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "100000", 0)
	f.seed(t, "B", "100000", 0)
	f.seed(t, "C", "", 30)

	f.add(t, buyLimit("A", 10, "102"))
	f.add(t, buyLimit("B", 10, "101"))
	f.add(t, sellLimit("C", 30, "100"))

	trades := f.mustMatch(t)
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	// Higher bid fills first, both at the seller's limit.
	if trades[0].BuyAccountID != "A" || trades[1].BuyAccountID != "B" {
		t.Errorf("fill order wrong: %s then %s", trades[0].BuyAccountID, trades[1].BuyAccountID)
	}
	for i, tr := range trades {
		if !tr.Price.Equal(dec("100")) {
			t.Errorf("trade %d price: got %s, want 100", i, tr.Price)
		}
	}

	// Post-run invariant: no crossable limit pair remains.
	sells := f.book.SellOrders("XYZ")
	if len(sells) != 1 || sells[0].Quantity != 10 {
		t.Fatalf("seller should rest with 10 remaining, got %+v", sells)
	}
	bid, ask, hasBid, hasAsk := f.book.BestBidAsk("XYZ")
	if hasBid && hasAsk && bid.GreaterThanOrEqual(ask) {
		t.Errorf("book still crossed after matching: bid=%s ask=%s", bid, ask)
	}
}

func TestSelfTradeNeverRecorded(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "100000", 20)
	f.seed(t, "B", "100000", 20)

	f.add(t, buyLimit("A", 10, "100"))
	f.add(t, sellLimit("A", 10, "100"))
	f.add(t, buyLimit("B", 10, "100"))
	f.add(t, sellLimit("B", 10, "100"))

	f.mustMatch(t)

	trades, err := f.book.TradeHistory()
	if err != nil {
		t.Fatalf("trade history: %v", err)
	}
	for _, tr := range trades {
		if tr.BuyAccountID == tr.SellAccountID {
			t.Errorf("self-trade recorded for account %s", tr.BuyAccountID)
		}
	}
}

func TestMatchRewritesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "10000", 0)
	f.seed(t, "B", "", 10)

	f.add(t, buyLimit("A", 5, "101"))
	f.add(t, sellLimit("B", 10, "100"))
	f.mustMatch(t)

	// A fresh book over the same files must see the post-match state.
	reloaded := exchange.NewBook(
		store.NewSnapshot(filepath.Join(f.dir, "unmatched_orders.json")),
		store.NewTradeLog(filepath.Join(f.dir, "executed_trades.json")),
		nil, f.clock, nil,
	)
	if n := len(reloaded.BuyOrders("XYZ")); n != 0 {
		t.Errorf("reloaded book should have no buys, got %d", n)
	}
	sells := reloaded.SellOrders("XYZ")
	if len(sells) != 1 || sells[0].Quantity != 5 {
		t.Fatalf("reloaded book should have one sell with quantity 5, got %+v", sells)
	}
}
