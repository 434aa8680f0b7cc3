package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"duxwatch/pkg/config"
	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/rpc"
	"duxwatch/pkg/store"

	"github.com/charmbracelet/log"
)

// DataSource defines the interface for fetching data.
type DataSource interface {
	Status(ctx context.Context) (models.NodeStatus, error)
	Stats(ctx context.Context) (models.NetworkStats, error)
	Balances(ctx context.Context) (models.BalanceSnapshot, error)
	Addresses(ctx context.Context) (models.AddressSet, error)
	Transactions(ctx context.Context) ([]models.TransactionRecord, error)
	Keys(ctx context.Context) (models.KeyPair, error)
}

var _ DataSource = (*rpc.Client)(nil)

// Notifier receives user-facing failure messages.
type Notifier interface {
	Notify(message string, severity notify.Severity)
}

// ErrNotRefreshable is returned for categories that have no fetch endpoint.
var ErrNotRefreshable = errors.New("category cannot be refreshed")

// silent categories poll on a timer; a dead node would otherwise raise the
// same error every cycle.
var silent = map[store.Category]bool{
	store.CategoryStats:    true,
	store.CategoryBalances: true,
}

var failureLabels = map[store.Category]string{
	store.CategoryStatus:       "Failed to load node status",
	store.CategoryStats:        "Failed to load network stats",
	store.CategoryBalances:     "Failed to load balances",
	store.CategoryAddresses:    "Failed to load addresses",
	store.CategoryTransactions: "Failed to load transaction history",
	store.CategoryKeys:         "Failed to load keys",
}

// Watcher owns the refresh cycles and writes their results to the store.
type Watcher struct {
	ds       DataSource
	store    *store.Store
	notifier Notifier
	logger   *log.Logger

	statsEvery    time.Duration
	balancesEvery time.Duration

	subscribers []Subscriber
	mu          sync.RWMutex

	runMu    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	unlinkFn func() bool
}

// NewWatcher creates a new Watcher instance. n may be nil.
func NewWatcher(cfg config.Config, ds DataSource, st *store.Store, n Notifier, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	statsEvery := cfg.StatsInterval()
	if statsEvery <= 0 {
		statsEvery = config.DefaultStatsIntervalSeconds * time.Second
	}
	balancesEvery := cfg.BalancesInterval()
	if balancesEvery <= 0 {
		balancesEvery = config.DefaultBalancesIntervalSeconds * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		ds:            ds,
		store:         st,
		notifier:      n,
		logger:        logger,
		statsEvery:    statsEvery,
		balancesEvery: balancesEvery,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Store returns the store the watcher writes to.
func (w *Watcher) Store() *store.Store {
	return w.store
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) publish(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			w.logger.Warn("subscriber is full, dropping event", "type", event.Type)
		}
	}
}

// Start launches the startup fetches and the recurring cycles: status and
// addresses once, stats and balances now and then on their intervals.
// Cancelling ctx has the same effect as Stop.
func (w *Watcher) Start(ctx context.Context) {
	w.runMu.Lock()
	if w.started || w.stopped {
		w.runMu.Unlock()
		return
	}
	w.started = true
	w.unlinkFn = context.AfterFunc(ctx, w.cancel)
	w.wg.Add(2)
	w.runMu.Unlock()

	w.logger.Info("watcher started", "stats_interval", w.statsEvery, "balances_interval", w.balancesEvery)

	w.Refresh(store.CategoryStatus)
	w.Refresh(store.CategoryAddresses)
	go w.cycle(store.CategoryStats, w.statsEvery)
	go w.cycle(store.CategoryBalances, w.balancesEvery)
}

// Stop cancels in-flight requests and waits for every cycle to exit. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.runMu.Lock()
	if w.stopped {
		w.runMu.Unlock()
		return
	}
	w.stopped = true
	w.cancel()
	if w.unlinkFn != nil {
		w.unlinkFn()
	}
	w.runMu.Unlock()

	w.wg.Wait()
	w.logger.Info("watcher stopped")
}

// cycle fetches c immediately and then on every tick. Every fetch runs in
// its own goroutine so a hung request never holds back the next tick.
func (w *Watcher) cycle(c store.Category, every time.Duration) {
	defer w.wg.Done()

	w.Refresh(c)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Refresh(c)
		case <-w.ctx.Done():
			return
		}
	}
}

// Refresh starts an asynchronous fetch of c. It does nothing once the
// watcher is stopped.
func (w *Watcher) Refresh(c store.Category) {
	w.runMu.Lock()
	if w.stopped {
		w.runMu.Unlock()
		return
	}
	w.wg.Add(1)
	w.runMu.Unlock()

	go func() {
		defer w.wg.Done()
		_ = w.RefreshNow(w.ctx, c)
	}()
}

// RefreshNow fetches c and applies the result before returning. Overlapping
// calls for the same category are not serialized: whichever response
// arrives last is the one left in the store.
func (w *Watcher) RefreshNow(ctx context.Context, c store.Category) error {
	switch c {
	case store.CategoryStatus:
		return run(w, ctx, c, w.ds.Status, w.store.ApplyStatus)
	case store.CategoryStats:
		return run(w, ctx, c, w.ds.Stats, w.store.ApplyStats)
	case store.CategoryBalances:
		return run(w, ctx, c, w.ds.Balances, w.store.ApplyBalances)
	case store.CategoryAddresses:
		return run(w, ctx, c, w.ds.Addresses, w.store.ApplyAddresses)
	case store.CategoryTransactions:
		return run(w, ctx, c, w.ds.Transactions, w.store.ApplyTransactions)
	case store.CategoryKeys:
		return run(w, ctx, c, w.ds.Keys, w.store.ApplyKeys)
	}
	return fmt.Errorf("%w: %s", ErrNotRefreshable, c)
}

func run[T any](w *Watcher, ctx context.Context, c store.Category, fetch func(context.Context) (T, error), apply func(T)) error {
	start := time.Now()
	v, err := fetch(ctx)
	if err != nil {
		w.fail(ctx, c, err)
		return err
	}
	apply(v)
	w.logger.Debug("refreshed", "category", c, "elapsed", time.Since(start))

	var data interface{} = v
	if kp, ok := data.(models.KeyPair); ok {
		kp.PrivateKey = ""
		data = kp
	}
	w.publish(Event{Type: updatedEvents[c], Category: c, Data: data, At: time.Now()})
	return nil
}

func (w *Watcher) fail(ctx context.Context, c store.Category, err error) {
	if ctx.Err() != nil {
		w.logger.Debug("refresh abandoned", "category", c, "reason", ctx.Err())
		return
	}

	w.publish(Event{Type: EventRefreshFailed, Category: c, Data: err.Error(), At: time.Now()})

	if silent[c] {
		w.logger.Warn("refresh failed", "category", c, "err", err)
		return
	}
	w.logger.Error("refresh failed", "category", c, "err", err)
	if w.notifier != nil {
		w.notifier.Notify(rpc.UserMessage(err, failureLabels[c]), notify.SeverityError)
	}
}
