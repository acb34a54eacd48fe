package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) MarshalText() ([]byte, error) {
	switch s {
	case Buy, Sell:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid side: %d", int8(s))
	}
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("invalid side: %q", text)
	}
	return nil
}

// OrderType distinguishes market orders from limit orders.
type OrderType int8

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return "unknown"
	}
}

func (t OrderType) MarshalText() ([]byte, error) {
	switch t {
	case Market, Limit:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("invalid order type: %d", int8(t))
	}
}

func (t *OrderType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "market":
		*t = Market
	case "limit":
		*t = Limit
	default:
		return fmt.Errorf("invalid order type: %q", text)
	}
	return nil
}

// Order is a request to trade a quantity of a ticker. Quantity is decremented
// as the order fills; an order resting on the book always has Quantity > 0.
// Price is meaningful only for limit orders and is zero for market orders.
type Order struct {
	AccountID string          `json:"account_id"`
	Ticker    string          `json:"ticker"`
	Side      Side            `json:"action"`
	Type      OrderType       `json:"order_type"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Trade is one executed match. Immutable once recorded.
type Trade struct {
	ID            string          `json:"trade_id"`
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int64           `json:"quantity"`
	BuyAccountID  string          `json:"buy_account_id"`
	SellAccountID string          `json:"sell_account_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// RejectReason classifies why an order was refused.
type RejectReason int8

const (
	RejectNonPositiveQuantity RejectReason = iota
	RejectInvalidSide
	RejectInvalidOrderType
	RejectMissingLimitPrice
	RejectInsufficientShares
	RejectInsufficientBalance
)

func (r RejectReason) String() string {
	switch r {
	case RejectNonPositiveQuantity:
		return "quantity must be positive"
	case RejectInvalidSide:
		return "action must be buy or sell"
	case RejectInvalidOrderType:
		return "order type must be market or limit"
	case RejectMissingLimitPrice:
		return "limit orders require a positive price"
	case RejectInsufficientShares:
		return "not enough shares to sell"
	case RejectInsufficientBalance:
		return "insufficient balance"
	default:
		return "rejected"
	}
}

// Rejection reports a refused order. It is an expected outcome, not a fault:
// callers surface it however they like and carry on.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("order rejected: %s: %s", r.Reason, r.Detail)
	}
	return fmt.Sprintf("order rejected: %s", r.Reason)
}

// AsRejection returns the Rejection inside err, or nil if err is not one.
func AsRejection(err error) *Rejection {
	if rej, ok := err.(*Rejection); ok {
		return rej
	}
	return nil
}
