package models

import (
	"encoding/json"
	"strings"
	"time"

	"duxwatch/pkg/amount"

	"github.com/shopspring/decimal"
)

// NodeStatus is the node's self-reported identity and connectivity.
type NodeStatus struct {
	NodeID          string  `json:"node_id"`
	DID             string  `json:"did"`
	IsOnline        bool    `json:"is_online"`
	UptimeSeconds   uint64  `json:"uptime_seconds"`
	ServicesCount   int     `json:"services_count"`
	ReputationScore float64 `json:"reputation_score"`
	PeersCount      int     `json:"peers_count"`
}

// DHTStats are the DHT counters from /stats.
type DHTStats struct {
	TotalEntries      int `json:"total_entries"`
	TotalPeers        int `json:"total_peers"`
	ServiceEntries    int `json:"service_entries"`
	ReputationEntries int `json:"reputation_entries"`
	EscrowEntries     int `json:"escrow_entries"`
}

// ReputationStats are the reputation counters from /stats.
type ReputationStats struct {
	TotalNodes        int     `json:"total_nodes"`
	TotalAttestations int     `json:"total_attestations"`
	AverageScore      float64 `json:"average_score"`
}

// EscrowStats are the escrow counters from /stats.
type EscrowStats struct {
	TotalContracts int        `json:"total_contracts"`
	Created        int        `json:"created"`
	Funded         int        `json:"funded"`
	InProgress     int        `json:"in_progress"`
	Completed      int        `json:"completed"`
	Disputed       int        `json:"disputed"`
	Refunded       int        `json:"refunded"`
	TotalAmount    amount.Raw `json:"total_amount"`
}

// TaskStats are the task engine counters from /stats.
type TaskStats struct {
	PendingCount    int `json:"pending_count"`
	ProcessingCount int `json:"processing_count"`
	CompletedCount  int `json:"completed_count"`
	TotalTasks      int `json:"total_tasks"`
}

// P2PStats describe the node's transport as seen from /stats.
type P2PStats struct {
	LocalPeerID      string   `json:"local_peer_id"`
	ConnectedPeers   int      `json:"connected_peers"`
	SubscribedTopics []string `json:"subscribed_topics"`
}

// NetworkStats is the full /stats payload.
type NetworkStats struct {
	DHT        DHTStats        `json:"dht"`
	Reputation ReputationStats `json:"reputation"`
	Escrow     EscrowStats     `json:"escrow"`
	Tasks      TaskStats       `json:"tasks"`
	Network    P2PStats        `json:"network"`
}

// BalanceSnapshot is one successful balances poll. It is replaced as a
// whole and never mutated in place.
type BalanceSnapshot struct {
	Balances  map[amount.Currency]amount.Raw `json:"balances"`
	TotalUSD  decimal.Decimal                `json:"total_usd"`
	FetchedAt time.Time                      `json:"fetched_at"`
}

// Clone returns a deep copy of s.
func (s BalanceSnapshot) Clone() BalanceSnapshot {
	cp := s
	cp.Balances = make(map[amount.Currency]amount.Raw, len(s.Balances))
	for k, v := range s.Balances {
		cp.Balances[k] = v
	}
	return cp
}

// AddressSet maps a currency to the wallet's receive address for it.
type AddressSet map[amount.Currency]string

// Clone returns a copy of a.
func (a AddressSet) Clone() AddressSet {
	cp := make(AddressSet, len(a))
	for k, v := range a {
		cp[k] = v
	}
	return cp
}

// KeyPair holds the wallet's base64 encoded keys.
type KeyPair struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Warning    string `json:"warning,omitempty"`
}

// TransactionStatus is the lifecycle state of a wallet transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusUnknown   TransactionStatus = "unknown"
)

// ParseTransactionStatus is case-insensitive; unrecognized values map to
// StatusUnknown.
func ParseTransactionStatus(s string) TransactionStatus {
	switch TransactionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending
	case StatusConfirmed:
		return StatusConfirmed
	case StatusFailed:
		return StatusFailed
	case StatusCancelled, "canceled":
		return StatusCancelled
	}
	return StatusUnknown
}

func (s *TransactionStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseTransactionStatus(raw)
	return nil
}

// TransactionRecord is a wallet transaction as reported by the node.
type TransactionRecord struct {
	ID            string            `json:"id"`
	From          string            `json:"from"`
	To            string            `json:"to"`
	Amount        amount.Raw        `json:"amount"`
	Fee           amount.Raw        `json:"fee"`
	Currency      amount.Currency   `json:"currency"`
	Status        TransactionStatus `json:"status"`
	Timestamp     int64             `json:"timestamp"`
	Memo          *string           `json:"memo,omitempty"`
	BlockHeight   *uint64           `json:"block_height,omitempty"`
	Confirmations uint32            `json:"confirmations"`
}

// Time returns the transaction timestamp as a time.Time.
func (t TransactionRecord) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// ServiceListing is a service returned by /services/search.
type ServiceListing struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           amount.Raw      `json:"price"`
	Currency        amount.Currency `json:"currency"`
	ProviderDID     string          `json:"provider_did"`
	ReputationScore float64         `json:"reputation_score"`
}

// WalletInfo is the /wallet/info summary.
type WalletInfo struct {
	DID               string            `json:"did"`
	PublicKey         string            `json:"public_key"`
	Addresses         map[string]string `json:"addresses"`
	Balances          map[string]string `json:"balances"`
	TotalTransactions int               `json:"total_transactions"`
	CreatedAt         int64             `json:"created_at"`
	LastActivity      int64             `json:"last_activity"`
}

// SendResult is the outcome of a successful /wallet/send call.
type SendResult struct {
	TransactionID string     `json:"transaction_id"`
	Message       string     `json:"message"`
	Fee           amount.Raw `json:"fee"`
}

// CheckReport is the output of the check command.
type CheckReport struct {
	ConfigPath string        `json:"config_path"`
	APIBaseURL string        `json:"api_base_url"`
	Status     *NodeStatus   `json:"status,omitempty"`
	Stats      *NetworkStats `json:"stats,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	OK         bool          `json:"ok"`
}
