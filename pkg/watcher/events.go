package watcher

import (
	"time"

	"duxwatch/pkg/store"
)

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventStatusUpdated       EventType = "status_updated"
	EventStatsUpdated        EventType = "stats_updated"
	EventBalancesUpdated     EventType = "balances_updated"
	EventAddressesUpdated    EventType = "addresses_updated"
	EventTransactionsUpdated EventType = "transactions_updated"
	EventKeysUpdated         EventType = "keys_updated"
	EventRefreshFailed       EventType = "refresh_failed"
)

var updatedEvents = map[store.Category]EventType{
	store.CategoryStatus:       EventStatusUpdated,
	store.CategoryStats:        EventStatsUpdated,
	store.CategoryBalances:     EventBalancesUpdated,
	store.CategoryAddresses:    EventAddressesUpdated,
	store.CategoryTransactions: EventTransactionsUpdated,
	store.CategoryKeys:         EventKeysUpdated,
}

// Event is published after every refresh. Data is the freshly stored value,
// or the error text for EventRefreshFailed.
type Event struct {
	Type     EventType      `json:"type"`
	Category store.Category `json:"category"`
	Data     interface{}    `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
