// Package account holds cash balances and share positions, persisted in Pebble.
// The matching core mutates accounts only through the Manager contract.
package account

import (
	"github.com/shopspring/decimal"
)

// Account is a cash balance plus share positions per ticker.
type Account struct {
	Balance   decimal.Decimal  `json:"balance"`
	Positions map[string]int64 `json:"positions"`
}

func New() *Account {
	return &Account{
		Balance:   decimal.Zero,
		Positions: make(map[string]int64),
	}
}

// Position returns the held quantity for ticker, zero if none.
func (a *Account) Position(ticker string) int64 {
	return a.Positions[ticker]
}

// Clone returns a deep copy, for read-only callers.
func (a *Account) Clone() *Account {
	cp := &Account{
		Balance:   a.Balance,
		Positions: make(map[string]int64, len(a.Positions)),
	}
	for t, q := range a.Positions {
		cp.Positions[t] = q
	}
	return cp
}

// Manager is the account collaborator consumed by the matching core.
// GetAccount returns a live account (created empty on first use);
// UpdateAccount persists the full account state.
type Manager interface {
	GetAccount(id string) (*Account, error)
	UpdateAccount(id string, acc *Account) error
}
