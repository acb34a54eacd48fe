package account

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"
)

// PebbleManager implements Manager with an in-memory cache in front of a
// Pebble database. All values are JSON-encoded.
type PebbleManager struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	db       *pebble.DB
}

// NewPebbleManager opens (or creates) the accounts database at dbPath.
func NewPebbleManager(dbPath string) (*PebbleManager, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20), // 32MB cache
		MemTableSize: 16 << 20,                  // 16MB memtable
		MaxOpenFiles: 500,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts db at %s: %w", dbPath, err)
	}

	return &PebbleManager{
		accounts: make(map[string]*Account),
		db:       db,
	}, nil
}

func (m *PebbleManager) Close() error {
	return m.db.Close()
}

// GetAccount retrieves an account by ID, loading from Pebble on cache miss.
// An unknown ID yields a fresh empty account.
func (m *PebbleManager) GetAccount(id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *PebbleManager) getLocked(id string) (*Account, error) {
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}

	acc, err := m.load(id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = New()
	}

	m.accounts[id] = acc
	return acc, nil
}

// UpdateAccount persists the full account state.
func (m *PebbleManager) UpdateAccount(id string, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[id] = acc
	return m.save(id, acc)
}

// Deposit credits cash to an account, creating it if needed.
func (m *PebbleManager) Deposit(id string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("deposit amount must be positive: %s", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.getLocked(id)
	if err != nil {
		return err
	}
	acc.Balance = acc.Balance.Add(amount)
	return m.save(id, acc)
}

// GrantShares credits a share position, creating the account if needed.
// Used to seed holdings; the matching core itself never mints shares.
func (m *PebbleManager) GrantShares(id, ticker string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("share grant must be positive: %d", qty)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, err := m.getLocked(id)
	if err != nil {
		return err
	}
	acc.Positions[ticker] += qty
	return m.save(id, acc)
}

// ListIDs returns all persisted account IDs in sorted order.
func (m *PebbleManager) ListIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := []byte(prefixAccount)
	iter, err := m.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	seen := make(map[string]struct{}, len(m.accounts))
	for id := range m.accounts {
		seen[id] = struct{}{}
	}
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := accountIDFromKey(iter.Key())
		if err != nil {
			continue
		}
		seen[id] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *PebbleManager) save(id string, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account %s: %w", id, err)
	}
	if err := m.db.Set(accountKey(id), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save account %s: %w", id, err)
	}
	return nil
}

func (m *PebbleManager) load(id string) (*Account, error) {
	data, closer, err := m.db.Get(accountKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account %s: %w", id, err)
	}
	if acc.Positions == nil {
		acc.Positions = make(map[string]int64)
	}
	return &acc, nil
}
