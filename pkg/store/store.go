// Package store holds the last successfully fetched node state, one
// independently locked slot per category. A slot is only ever replaced as a
// whole; failed fetches never touch it.
package store

import (
	"sync"

	"duxwatch/pkg/amount"
	"duxwatch/pkg/models"
)

// Category names a slot in the store.
type Category string

const (
	CategoryStatus       Category = "status"
	CategoryStats        Category = "stats"
	CategoryBalances     Category = "balances"
	CategoryAddresses    Category = "addresses"
	CategoryTransactions Category = "transactions"
	CategoryKeys         Category = "keys"
	CategoryPreferred    Category = "preferred_currency"
)

// Categories lists every slot in a stable order.
var Categories = []Category{
	CategoryStatus,
	CategoryStats,
	CategoryBalances,
	CategoryAddresses,
	CategoryTransactions,
	CategoryKeys,
	CategoryPreferred,
}

type slot[T any] struct {
	mu     sync.RWMutex
	value  T
	loaded bool
}

func (s *slot[T]) get(clone func(T) T) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		var zero T
		return zero, false
	}
	if clone != nil {
		return clone(s.value), true
	}
	return s.value, true
}

func (s *slot[T]) set(v T) {
	s.mu.Lock()
	s.value = v
	s.loaded = true
	s.mu.Unlock()
}

func (s *slot[T]) isLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Store is safe for concurrent use. Getters return (value, false) until the
// first successful apply of that category.
type Store struct {
	status       slot[models.NodeStatus]
	stats        slot[models.NetworkStats]
	balances     slot[models.BalanceSnapshot]
	addresses    slot[models.AddressSet]
	transactions slot[[]models.TransactionRecord]
	keys         slot[models.KeyPair]
	preferred    slot[amount.Currency]
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func cloneTransactions(txs []models.TransactionRecord) []models.TransactionRecord {
	cp := make([]models.TransactionRecord, len(txs))
	copy(cp, txs)
	return cp
}

func (s *Store) GetStatus() (models.NodeStatus, bool) { return s.status.get(nil) }

func (s *Store) GetStats() (models.NetworkStats, bool) {
	return s.stats.get(func(v models.NetworkStats) models.NetworkStats {
		v.Network.SubscribedTopics = append([]string(nil), v.Network.SubscribedTopics...)
		return v
	})
}

func (s *Store) GetBalances() (models.BalanceSnapshot, bool) {
	return s.balances.get(models.BalanceSnapshot.Clone)
}

func (s *Store) GetAddresses() (models.AddressSet, bool) {
	return s.addresses.get(models.AddressSet.Clone)
}

func (s *Store) GetTransactions() ([]models.TransactionRecord, bool) {
	return s.transactions.get(cloneTransactions)
}

func (s *Store) GetKeys() (models.KeyPair, bool) { return s.keys.get(nil) }

func (s *Store) GetPreferredCurrency() (amount.Currency, bool) { return s.preferred.get(nil) }

func (s *Store) ApplyStatus(v models.NodeStatus) { s.status.set(v) }

func (s *Store) ApplyStats(v models.NetworkStats) { s.stats.set(v) }

func (s *Store) ApplyBalances(v models.BalanceSnapshot) { s.balances.set(v.Clone()) }

func (s *Store) ApplyAddresses(v models.AddressSet) { s.addresses.set(v.Clone()) }

func (s *Store) ApplyTransactions(v []models.TransactionRecord) {
	s.transactions.set(cloneTransactions(v))
}

func (s *Store) ApplyKeys(v models.KeyPair) { s.keys.set(v) }

func (s *Store) ApplyPreferredCurrency(v amount.Currency) { s.preferred.set(v) }

// Loaded reports whether category c has had at least one successful apply.
func (s *Store) Loaded(c Category) bool {
	switch c {
	case CategoryStatus:
		return s.status.isLoaded()
	case CategoryStats:
		return s.stats.isLoaded()
	case CategoryBalances:
		return s.balances.isLoaded()
	case CategoryAddresses:
		return s.addresses.isLoaded()
	case CategoryTransactions:
		return s.transactions.isLoaded()
	case CategoryKeys:
		return s.keys.isLoaded()
	case CategoryPreferred:
		return s.preferred.isLoaded()
	}
	return false
}

// Snapshot is a point-in-time copy of every loaded category, used by the
// headless server. Unloaded categories are nil.
type Snapshot struct {
	Status            *models.NodeStatus         `json:"status"`
	Stats             *models.NetworkStats       `json:"stats"`
	Balances          *models.BalanceSnapshot    `json:"balances"`
	Addresses         models.AddressSet          `json:"addresses"`
	Transactions      []models.TransactionRecord `json:"transactions"`
	Keys              *models.KeyPair            `json:"keys,omitempty"`
	PreferredCurrency *amount.Currency           `json:"preferred_currency"`
}

// Snapshot copies all categories. Private keys are omitted unless
// includeKeys is set.
func (s *Store) Snapshot(includeKeys bool) Snapshot {
	var snap Snapshot
	if v, ok := s.GetStatus(); ok {
		snap.Status = &v
	}
	if v, ok := s.GetStats(); ok {
		snap.Stats = &v
	}
	if v, ok := s.GetBalances(); ok {
		snap.Balances = &v
	}
	if v, ok := s.GetAddresses(); ok {
		snap.Addresses = v
	}
	if v, ok := s.GetTransactions(); ok {
		snap.Transactions = v
	}
	if v, ok := s.GetKeys(); ok {
		if !includeKeys {
			v.PrivateKey = ""
		}
		snap.Keys = &v
	}
	if v, ok := s.GetPreferredCurrency(); ok {
		snap.PreferredCurrency = &v
	}
	return snap
}
