package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"duxwatch/pkg/amount"
	"duxwatch/pkg/models"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var DefaultTimeout = 10 * time.Second

var (
	// ErrTransport wraps network failures and non-2xx responses.
	ErrTransport = errors.New("transport failure")
	// ErrDecode wraps bodies that are not the expected JSON.
	ErrDecode = errors.New("malformed response")
)

// APIError is a success:false reply. Message is shown to the user as-is.
type APIError struct {
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request rejected by node", e.Path)
	}
	return e.Message
}

// UserMessage returns the text to show for err. Node-provided messages are
// passed through verbatim; anything else is prefixed with fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if fallback == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", fallback, err)
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (r result) check(path string) error {
	if !r.Success {
		return &APIError{Path: path, Message: r.Message}
	}
	return nil
}

// Client talks to the node's JSON API under a fixed base path.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a client for baseURL (for example http://localhost:8080/api).
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: unexpected status code %d", ErrTransport, method, path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, err)
	}
	return nil
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (models.NodeStatus, error) {
	var status models.NodeStatus
	err := c.do(ctx, http.MethodGet, "/status", nil, &status)
	return status, err
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (models.NetworkStats, error) {
	var stats models.NetworkStats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &stats)
	return stats, err
}

// Reputation fetches GET /reputation/{did}.
func (c *Client) Reputation(ctx context.Context, did string) (float64, error) {
	var resp struct {
		result
		Reputation float64 `json:"reputation"`
	}
	path := "/reputation/" + url.PathEscape(did)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Reputation, resp.check(path)
}

// Balances fetches GET /wallet/balances.
func (c *Client) Balances(ctx context.Context) (models.BalanceSnapshot, error) {
	var resp struct {
		result
		Balances map[string]amount.Raw `json:"balances"`
		TotalUSD decimal.Decimal       `json:"total_usd"`
	}
	if err := c.do(ctx, http.MethodGet, "/wallet/balances", nil, &resp); err != nil {
		return models.BalanceSnapshot{}, err
	}
	if err := resp.check("/wallet/balances"); err != nil {
		return models.BalanceSnapshot{}, err
	}
	snap := models.BalanceSnapshot{
		Balances:  make(map[amount.Currency]amount.Raw, len(resp.Balances)),
		TotalUSD:  resp.TotalUSD,
		FetchedAt: time.Now(),
	}
	for code, raw := range resp.Balances {
		c, _ := amount.ParseCurrency(code)
		snap.Balances[c] = raw
	}
	return snap, nil
}

// Addresses fetches GET /wallet/addresses.
func (c *Client) Addresses(ctx context.Context) (models.AddressSet, error) {
	var resp struct {
		result
		Addresses map[string]string `json:"addresses"`
	}
	if err := c.do(ctx, http.MethodGet, "/wallet/addresses", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("/wallet/addresses"); err != nil {
		return nil, err
	}
	set := make(models.AddressSet, len(resp.Addresses))
	for code, addr := range resp.Addresses {
		c, _ := amount.ParseCurrency(code)
		set[c] = addr
	}
	return set, nil
}

// Transactions fetches GET /wallet/transactions. Order is preserved.
func (c *Client) Transactions(ctx context.Context) ([]models.TransactionRecord, error) {
	var resp struct {
		result
		Transactions []models.TransactionRecord `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/wallet/transactions", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("/wallet/transactions"); err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		resp.Transactions = []models.TransactionRecord{}
	}
	return resp.Transactions, nil
}

// Transaction fetches GET /wallet/transaction/{id}.
func (c *Client) Transaction(ctx context.Context, id string) (models.TransactionRecord, error) {
	var resp struct {
		result
		Transaction models.TransactionRecord `json:"transaction"`
	}
	path := "/wallet/transaction/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return models.TransactionRecord{}, err
	}
	return resp.Transaction, resp.check(path)
}

// Keys fetches GET /wallet/keys.
func (c *Client) Keys(ctx context.Context) (models.KeyPair, error) {
	var resp struct {
		result
		models.KeyPair
	}
	if err := c.do(ctx, http.MethodGet, "/wallet/keys", nil, &resp); err != nil {
		return models.KeyPair{}, err
	}
	return resp.KeyPair, resp.check("/wallet/keys")
}

// WalletInfo fetches GET /wallet/info.
func (c *Client) WalletInfo(ctx context.Context) (models.WalletInfo, error) {
	var resp struct {
		result
		Wallet models.WalletInfo `json:"wallet"`
	}
	if err := c.do(ctx, http.MethodGet, "/wallet/info", nil, &resp); err != nil {
		return models.WalletInfo{}, err
	}
	return resp.Wallet, resp.check("/wallet/info")
}

// Backup fetches GET /wallet/backup.
func (c *Client) Backup(ctx context.Context) (string, error) {
	var resp struct {
		result
		BackupData string `json:"backup_data"`
	}
	if err := c.do(ctx, http.MethodGet, "/wallet/backup", nil, &resp); err != nil {
		return "", err
	}
	return resp.BackupData, resp.check("/wallet/backup")
}

// Restore posts POST /wallet/restore.
func (c *Client) Restore(ctx context.Context, backupData string) (string, error) {
	var resp result
	body := map[string]string{"backup_data": backupData}
	if err := c.do(ctx, http.MethodPost, "/wallet/restore", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, resp.check("/wallet/restore")
}

// SetPreferredCurrency posts POST /wallet/preferred-currency.
func (c *Client) SetPreferredCurrency(ctx context.Context, cur amount.Currency) (string, error) {
	var resp result
	body := map[string]amount.Currency{"currency": cur}
	if err := c.do(ctx, http.MethodPost, "/wallet/preferred-currency", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, resp.check("/wallet/preferred-currency")
}

// SendRequest is the body of POST /wallet/send. A nil Memo is sent as null.
type SendRequest struct {
	ToAddress string          `json:"to_address"`
	Amount    amount.Raw      `json:"amount"`
	Currency  amount.Currency `json:"currency"`
	Memo      *string         `json:"memo"`
}

// Send posts POST /wallet/send.
func (c *Client) Send(ctx context.Context, req SendRequest) (models.SendResult, error) {
	var resp struct {
		result
		TransactionID string     `json:"transaction_id"`
		Fee           amount.Raw `json:"fee"`
	}
	if err := c.do(ctx, http.MethodPost, "/wallet/send", req, &resp); err != nil {
		return models.SendResult{}, err
	}
	if err := resp.check("/wallet/send"); err != nil {
		return models.SendResult{}, err
	}
	return models.SendResult{TransactionID: resp.TransactionID, Message: resp.Message, Fee: resp.Fee}, nil
}

// RegisterServiceRequest is the body of POST /services/register.
type RegisterServiceRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       amount.Raw      `json:"price"`
	Currency    amount.Currency `json:"currency"`
}

// RegisterService posts POST /services/register and returns the service id.
func (c *Client) RegisterService(ctx context.Context, req RegisterServiceRequest) (string, string, error) {
	var resp struct {
		result
		ServiceID string `json:"service_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/services/register", req, &resp); err != nil {
		return "", "", err
	}
	return resp.ServiceID, resp.Message, resp.check("/services/register")
}

// SearchServices posts POST /services/search.
func (c *Client) SearchServices(ctx context.Context, query string) ([]models.ServiceListing, string, error) {
	var resp struct {
		result
		Services []models.ServiceListing `json:"services"`
	}
	body := map[string]string{"query": query}
	if err := c.do(ctx, http.MethodPost, "/services/search", body, &resp); err != nil {
		return nil, "", err
	}
	return resp.Services, resp.Message, resp.check("/services/search")
}

// SubmitTaskRequest is the body of POST /tasks/submit.
type SubmitTaskRequest struct {
	ServiceID      string `json:"service_id"`
	Payload        string `json:"payload"`
	CPUCores       uint32 `json:"cpu_cores"`
	MemoryMB       uint32 `json:"memory_mb"`
	TimeoutSeconds uint32 `json:"timeout_seconds"`
}

// SubmitTask posts POST /tasks/submit and returns the task id.
func (c *Client) SubmitTask(ctx context.Context, req SubmitTaskRequest) (string, string, error) {
	var resp struct {
		result
		TaskID string `json:"task_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/submit", req, &resp); err != nil {
		return "", "", err
	}
	return resp.TaskID, resp.Message, resp.check("/tasks/submit")
}

// CreateEscrowRequest is the body of POST /escrow/create.
type CreateEscrowRequest struct {
	ServiceID string          `json:"service_id"`
	SellerDID string          `json:"seller_did"`
	Amount    amount.Raw      `json:"amount"`
	Currency  amount.Currency `json:"currency"`
}

// CreateEscrow posts POST /escrow/create and returns the escrow id.
func (c *Client) CreateEscrow(ctx context.Context, req CreateEscrowRequest) (string, string, error) {
	var resp struct {
		result
		EscrowID string `json:"escrow_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/escrow/create", req, &resp); err != nil {
		return "", "", err
	}
	return resp.EscrowID, resp.Message, resp.check("/escrow/create")
}
