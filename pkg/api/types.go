package api

import "github.com/shopspring/decimal"

// SubmitOrderRequest mirrors the persisted order shape: action is buy/sell,
// order_type is market/limit, price is required for limit orders only.
type SubmitOrderRequest struct {
	AccountID string           `json:"account_id"`
	Ticker    string           `json:"ticker"`
	Action    string           `json:"action"`
	OrderType string           `json:"order_type"`
	Quantity  int64            `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type SubmitOrderResponse struct {
	Status string      `json:"status"` // "accepted" or "rejected"
	Reason string      `json:"reason,omitempty"`
	Trades []TradeInfo `json:"trades,omitempty"`
}

type TradeInfo struct {
	TradeID       string          `json:"trade_id"`
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int64           `json:"quantity"`
	BuyAccountID  string          `json:"buy_account_id"`
	SellAccountID string          `json:"sell_account_id"`
	Timestamp     string          `json:"timestamp"`
}

type OrderInfo struct {
	AccountID string          `json:"account_id"`
	Ticker    string          `json:"ticker"`
	Action    string          `json:"action"`
	OrderType string          `json:"order_type"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp string          `json:"timestamp"`
}

type BookResponse struct {
	Ticker     string      `json:"ticker"`
	BuyOrders  []OrderInfo `json:"buy_orders"`
	SellOrders []OrderInfo `json:"sell_orders"`
}

type BestPriceResponse struct {
	Ticker  string           `json:"ticker"`
	BestBid *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk *decimal.Decimal `json:"best_ask,omitempty"`
	Last    *decimal.Decimal `json:"last_trade_price,omitempty"`
}

type AccountResponse struct {
	AccountID string           `json:"account_id"`
	Balance   decimal.Decimal  `json:"balance"`
	Positions map[string]int64 `json:"positions"`
}

type StockInfoResponse struct {
	Ticker        string           `json:"ticker"`
	Price         decimal.Decimal  `json:"price"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	DividendYield *decimal.Decimal `json:"dividend_yield,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
