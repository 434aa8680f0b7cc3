// Package actions implements the user-initiated calls that change node
// state. Input arrives as raw form values; every field is checked before
// anything is sent to the node.
package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"duxwatch/pkg/amount"
	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/rpc"
	"duxwatch/pkg/store"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
)

// ErrValidation marks input rejected before any request was made.
var ErrValidation = errors.New("invalid input")

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// Message returns the text shown for err: the reason for validation errors,
// the node's message for rejected requests, otherwise fallback plus err.
func Message(err error, fallback string) string {
	if errors.Is(err, ErrValidation) {
		return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	}
	return rpc.UserMessage(err, fallback)
}

// API is the subset of the node client the actions need.
type API interface {
	Send(ctx context.Context, req rpc.SendRequest) (models.SendResult, error)
	SetPreferredCurrency(ctx context.Context, cur amount.Currency) (string, error)
	RegisterService(ctx context.Context, req rpc.RegisterServiceRequest) (string, string, error)
	SearchServices(ctx context.Context, query string) ([]models.ServiceListing, string, error)
	SubmitTask(ctx context.Context, req rpc.SubmitTaskRequest) (string, string, error)
	CreateEscrow(ctx context.Context, req rpc.CreateEscrowRequest) (string, string, error)
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, backupData string) (string, error)
}

var _ API = (*rpc.Client)(nil)

type Notifier interface {
	Notify(message string, severity notify.Severity)
}

type Refresher interface {
	Refresh(c store.Category)
}

// Service runs actions and reports their outcome through the notifier.
type Service struct {
	api       API
	store     *store.Store
	notifier  Notifier
	refresher Refresher
	logger    *log.Logger
}

func NewService(api API, st *store.Store, n Notifier, r Refresher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{api: api, store: st, notifier: n, refresher: r, logger: logger}
}

func (s *Service) notify(msg string, sev notify.Severity) {
	if s.notifier != nil {
		s.notifier.Notify(msg, sev)
	}
}

func (s *Service) refresh(cats ...store.Category) {
	if s.refresher == nil {
		return
	}
	for _, c := range cats {
		s.refresher.Refresh(c)
	}
}

// finish notifies about err (if any) and returns it unchanged.
func (s *Service) finish(op string, err error, fallback string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) {
		s.logger.Debug("rejected input", "op", op, "err", err)
	} else {
		s.logger.Error("action failed", "op", op, "err", err)
	}
	s.notify(Message(err, fallback), notify.SeverityError)
	return err
}

func parseCurrency(field, value string) (amount.Currency, error) {
	if strings.TrimSpace(value) == "" {
		return "", invalid(field + " is required")
	}
	cur, ok := amount.ParseCurrency(value)
	if !ok {
		return "", invalid(fmt.Sprintf("unsupported currency %q", value))
	}
	return cur, nil
}

// parsePositive converts a decimal form value to a raw amount, rejecting
// zero along with anything ToRaw rejects.
func parsePositive(field, value string, cur amount.Currency) (amount.Raw, error) {
	if strings.TrimSpace(value) == "" {
		return amount.Raw{}, invalid(field + " is required")
	}
	raw, err := amount.ToRaw(value, cur)
	if err != nil {
		return amount.Raw{}, invalid(fmt.Sprintf("%s %q is not a valid amount", field, value))
	}
	if raw.IsZero() {
		return amount.Raw{}, invalid(field + " must be greater than zero")
	}
	return raw, nil
}

func required(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", invalid(field + " is required")
	}
	return v, nil
}

// SendInput are the raw send form values. Amount is a decimal in whole
// units of Currency.
type SendInput struct {
	ToAddress string
	Amount    string
	Currency  string
	Memo      string
}

func (in SendInput) request() (rpc.SendRequest, error) {
	to, err := required("recipient address", in.ToAddress)
	if err != nil {
		return rpc.SendRequest{}, err
	}
	cur, err := parseCurrency("currency", in.Currency)
	if err != nil {
		return rpc.SendRequest{}, err
	}
	if (cur == amount.ETH || cur == amount.USDC) && !common.IsHexAddress(to) {
		return rpc.SendRequest{}, invalid(fmt.Sprintf("%q is not a valid %s address", to, cur))
	}
	raw, err := parsePositive("amount", in.Amount, cur)
	if err != nil {
		return rpc.SendRequest{}, err
	}
	req := rpc.SendRequest{ToAddress: to, Amount: raw, Currency: cur}
	if memo := strings.TrimSpace(in.Memo); memo != "" {
		req.Memo = &memo
	}
	return req, nil
}

// Send transfers funds and refreshes balances and history on success.
func (s *Service) Send(ctx context.Context, in SendInput) (models.SendResult, error) {
	req, err := in.request()
	if err != nil {
		return models.SendResult{}, s.finish("send", err, "")
	}
	res, err := s.api.Send(ctx, req)
	if err != nil {
		return models.SendResult{}, s.finish("send", err, "Failed to send funds")
	}

	msg := fmt.Sprintf("Sent %s (tx %s)", amount.ToDisplay(req.Amount, req.Currency), res.TransactionID)
	if !res.Fee.IsZero() {
		msg += ", fee " + amount.ToDisplay(res.Fee, req.Currency)
	}
	s.logger.Info("funds sent", "tx", res.TransactionID, "currency", req.Currency, "amount", req.Amount.String())
	s.notify(msg, notify.SeveritySuccess)
	s.refresh(store.CategoryBalances, store.CategoryTransactions)
	return res, nil
}

// SetPreferredCurrency records the wallet's display currency.
func (s *Service) SetPreferredCurrency(ctx context.Context, currency string) error {
	cur, err := parseCurrency("currency", currency)
	if err != nil {
		return s.finish("preferred-currency", err, "")
	}
	msg, err := s.api.SetPreferredCurrency(ctx, cur)
	if err != nil {
		return s.finish("preferred-currency", err, "Failed to set preferred currency")
	}
	if s.store != nil {
		s.store.ApplyPreferredCurrency(cur)
	}
	if msg == "" {
		msg = "Preferred currency set to " + cur.Name()
	}
	s.notify(msg, notify.SeveritySuccess)
	s.refresh(store.CategoryBalances)
	return nil
}

// ServiceInput are the raw register-service form values.
type ServiceInput struct {
	Name        string
	Description string
	Price       string
	Currency    string
}

// RegisterService advertises a service and returns its id.
func (s *Service) RegisterService(ctx context.Context, in ServiceInput) (string, error) {
	req, err := func() (rpc.RegisterServiceRequest, error) {
		name, err := required("service name", in.Name)
		if err != nil {
			return rpc.RegisterServiceRequest{}, err
		}
		desc, err := required("description", in.Description)
		if err != nil {
			return rpc.RegisterServiceRequest{}, err
		}
		cur, err := parseCurrency("currency", in.Currency)
		if err != nil {
			return rpc.RegisterServiceRequest{}, err
		}
		price, err := parsePositive("price", in.Price, cur)
		if err != nil {
			return rpc.RegisterServiceRequest{}, err
		}
		return rpc.RegisterServiceRequest{Name: name, Description: desc, Price: price, Currency: cur}, nil
	}()
	if err != nil {
		return "", s.finish("register-service", err, "")
	}

	id, msg, err := s.api.RegisterService(ctx, req)
	if err != nil {
		return "", s.finish("register-service", err, "Failed to register service")
	}
	s.notify(orDefault(msg, "Service registered successfully"), notify.SeveritySuccess)
	return id, nil
}

// SearchServices looks up services; an empty query lists everything.
func (s *Service) SearchServices(ctx context.Context, query string) ([]models.ServiceListing, error) {
	services, msg, err := s.api.SearchServices(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, s.finish("search-services", err, "Failed to search services")
	}
	s.notify(orDefault(msg, fmt.Sprintf("Found %d services", len(services))), notify.SeveritySuccess)
	return services, nil
}

// TaskInput are the raw submit-task form values.
type TaskInput struct {
	ServiceID      string
	Payload        string
	CPUCores       uint32
	MemoryMB       uint32
	TimeoutSeconds uint32
}

// SubmitTask queues work on a service and returns the task id.
func (s *Service) SubmitTask(ctx context.Context, in TaskInput) (string, error) {
	req, err := func() (rpc.SubmitTaskRequest, error) {
		id, err := required("service id", in.ServiceID)
		if err != nil {
			return rpc.SubmitTaskRequest{}, err
		}
		if strings.TrimSpace(in.Payload) == "" {
			return rpc.SubmitTaskRequest{}, invalid("payload is required")
		}
		if in.CPUCores == 0 || in.MemoryMB == 0 || in.TimeoutSeconds == 0 {
			return rpc.SubmitTaskRequest{}, invalid("cpu cores, memory and timeout must be greater than zero")
		}
		return rpc.SubmitTaskRequest{
			ServiceID:      id,
			Payload:        in.Payload,
			CPUCores:       in.CPUCores,
			MemoryMB:       in.MemoryMB,
			TimeoutSeconds: in.TimeoutSeconds,
		}, nil
	}()
	if err != nil {
		return "", s.finish("submit-task", err, "")
	}

	id, msg, err := s.api.SubmitTask(ctx, req)
	if err != nil {
		return "", s.finish("submit-task", err, "Failed to submit task")
	}
	s.notify(orDefault(msg, "Task submitted successfully"), notify.SeveritySuccess)
	s.refresh(store.CategoryStats)
	return id, nil
}

// EscrowInput are the raw create-escrow form values.
type EscrowInput struct {
	ServiceID string
	SellerDID string
	Amount    string
	Currency  string
}

// CreateEscrow locks funds for a service purchase and returns the escrow id.
func (s *Service) CreateEscrow(ctx context.Context, in EscrowInput) (string, error) {
	req, err := func() (rpc.CreateEscrowRequest, error) {
		id, err := required("service id", in.ServiceID)
		if err != nil {
			return rpc.CreateEscrowRequest{}, err
		}
		seller, err := required("seller DID", in.SellerDID)
		if err != nil {
			return rpc.CreateEscrowRequest{}, err
		}
		if !strings.HasPrefix(seller, "did:") {
			return rpc.CreateEscrowRequest{}, invalid(fmt.Sprintf("%q is not a DID", seller))
		}
		cur, err := parseCurrency("currency", in.Currency)
		if err != nil {
			return rpc.CreateEscrowRequest{}, err
		}
		raw, err := parsePositive("amount", in.Amount, cur)
		if err != nil {
			return rpc.CreateEscrowRequest{}, err
		}
		return rpc.CreateEscrowRequest{ServiceID: id, SellerDID: seller, Amount: raw, Currency: cur}, nil
	}()
	if err != nil {
		return "", s.finish("create-escrow", err, "")
	}

	id, msg, err := s.api.CreateEscrow(ctx, req)
	if err != nil {
		return "", s.finish("create-escrow", err, "Failed to create escrow")
	}
	s.notify(orDefault(msg, "Escrow created successfully"), notify.SeveritySuccess)
	s.refresh(store.CategoryBalances, store.CategoryStats)
	return id, nil
}

// Backup returns the node's encoded wallet backup.
func (s *Service) Backup(ctx context.Context) (string, error) {
	data, err := s.api.Backup(ctx)
	if err != nil {
		return "", s.finish("backup", err, "Failed to backup wallet")
	}
	if data == "" {
		return "", s.finish("backup", errors.New("node returned an empty backup"), "Failed to backup wallet")
	}
	s.notify("Wallet backup created", notify.SeveritySuccess)
	return data, nil
}

// Restore replaces the node's wallet with backupData and reloads every
// wallet category.
func (s *Service) Restore(ctx context.Context, backupData string) error {
	data, err := required("backup data", backupData)
	if err != nil {
		return s.finish("restore", err, "")
	}
	msg, err := s.api.Restore(ctx, data)
	if err != nil {
		return s.finish("restore", err, "Failed to restore wallet")
	}
	s.notify(orDefault(msg, "Wallet restored successfully"), notify.SeveritySuccess)
	s.refresh(store.CategoryBalances, store.CategoryAddresses, store.CategoryTransactions, store.CategoryKeys)
	return nil
}

func orDefault(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}
