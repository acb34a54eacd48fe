// Package report renders read-only views over the order book and trade log.
// Nothing here mutates book state.
package report

import (
	"fmt"
	"io"
	"os"

	"tickerbook/pkg/exchange"
	"tickerbook/pkg/stockinfo"
)

// WriteBook renders every ticker's resting orders to w.
func WriteBook(w io.Writer, book *exchange.Book) error {
	if _, err := fmt.Fprintln(w, "Order Book:"); err != nil {
		return err
	}
	for _, ticker := range book.Tickers() {
		fmt.Fprintf(w, "\nTicker: %s\n", ticker)
		fmt.Fprintln(w, "Buy Orders:")
		for _, o := range book.BuyOrders(ticker) {
			fmt.Fprintf(w, "  Account %s wants to buy %d at %s\n", o.AccountID, o.Quantity, priceDisplay(o))
		}
		fmt.Fprintln(w, "Sell Orders:")
		for _, o := range book.SellOrders(ticker) {
			fmt.Fprintf(w, "  Account %s wants to sell %d at %s\n", o.AccountID, o.Quantity, priceDisplay(o))
		}
	}
	return nil
}

func priceDisplay(o exchange.Order) string {
	if o.Type == exchange.Market {
		return "Market"
	}
	return o.Price.String()
}

// WriteTrades renders the executed-trade history to w.
func WriteTrades(w io.Writer, trades []exchange.Trade) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "No executed trades found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Executed Trades:"); err != nil {
		return err
	}
	for _, t := range trades {
		fmt.Fprintf(w, "Timestamp: %s\n", t.Timestamp.Format("2006-01-02T15:04:05"))
		fmt.Fprintf(w, "  Ticker: %s\n", t.Ticker)
		fmt.Fprintf(w, "  Price: %s\n", t.Price)
		fmt.Fprintf(w, "  Quantity: %d\n", t.Quantity)
		fmt.Fprintf(w, "  Buyer Account ID: %s\n", t.BuyAccountID)
		fmt.Fprintf(w, "  Seller Account ID: %s\n", t.SellAccountID)
		fmt.Fprintln(w)
	}
	return nil
}

// ExportTrades writes the trade history to a file at path.
func ExportTrades(path string, book *exchange.Book) error {
	trades, err := book.TradeHistory()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file %s: %w", path, err)
	}
	defer f.Close()
	return WriteTrades(f, trades)
}

// WriteStocks renders the listed tickers and their reference data to w.
func WriteStocks(w io.Writer, si *stockinfo.StockInfo) error {
	if _, err := fmt.Fprintln(w, "Available Stocks:"); err != nil {
		return err
	}
	for _, ticker := range si.Tickers() {
		s, _ := si.Get(ticker)
		marketCap := "N/A"
		if s.MarketCap != nil {
			marketCap = s.MarketCap.String()
		}
		dividendYield := "N/A"
		if s.DividendYield != nil {
			dividendYield = s.DividendYield.String()
		}
		fmt.Fprintf(w, "%s: Price: %s, Market Cap: %s, Dividend Yield: %s\n", ticker, s.Price, marketCap, dividendYield)
	}
	return nil
}
