package tui

import (
	"context"
	"time"

	"duxwatch/pkg/actions"
	"duxwatch/pkg/config"
	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/store"
	"duxwatch/pkg/tabs"
	"duxwatch/pkg/watcher"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

const maxHistory = 720

// --- Messages ---

type sendResultMsg struct {
	res models.SendResult
	err error
}

// sender is the part of actions.Service the renderer drives.
type sender interface {
	Send(ctx context.Context, in actions.SendInput) (models.SendResult, error)
	SetPreferredCurrency(ctx context.Context, currency string) error
}

// notifier posts transient messages to the shared notification bar.
type notifier interface {
	Notify(message string, severity notify.Severity)
}

// panes receives tab focus changes from the controller. It is shared by
// pointer so every copy of the model sees the same flags.
type panes struct {
	revealKeys bool
	historyTop bool
}

func (p *panes) Activate(t tabs.Tab) {
	if t == tabs.History {
		p.historyTop = true
	}
}

func (p *panes) Deactivate(t tabs.Tab) {
	if t == tabs.Keys {
		p.revealKeys = false
	}
}

// Send form fields.
const (
	fieldTo = iota
	fieldAmount
	fieldCurrency
	fieldMemo
)

// --- Model ---

type model struct {
	store        *store.Store
	tabs         *tabs.Controller
	panes        *panes
	actions      sender
	notifier     notifier
	events       watcher.Subscriber
	notes        chan notify.Notification
	keys         keyMap
	help         help.Model
	spinner      spinner.Model
	viewport     viewport.Model
	sendInputs   []textinput.Model
	sendFocus    int
	sending      bool
	submitting   bool
	width        int
	height       int
	loading      bool
	lastUpdate   time.Time
	notification notify.Notification
	failures     map[store.Category]string
	cursor       int
	privacyMode  bool
	showHelp     bool
	usdHistory   []float64
	peersHistory []float64
	config       config.Config
}

func newModel(st *store.Store, r tabs.Refresher, a sender, cfg config.Config) (model, error) {
	p := &panes{}
	initial, ok := tabs.ParseTab(cfg.DefaultTab)
	if !ok {
		initial = tabs.Balances
	}
	ctrl, err := tabs.New(initial, r, p)
	if err != nil {
		return model{}, err
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	inputs := make([]textinput.Model, 4)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Width = 50
	}
	inputs[fieldTo].Placeholder = "Recipient address"
	inputs[fieldAmount].Placeholder = "Amount (e.g. 0.5)"
	inputs[fieldCurrency].Placeholder = "Currency (BTC, ETH, USDC, LTC, XMR, DOGE)"
	inputs[fieldCurrency].CharLimit = 5
	inputs[fieldMemo].Placeholder = "Memo (Optional)"

	return model{
		store:       st,
		tabs:        ctrl,
		panes:       p,
		actions:     a,
		keys:        defaultKeyMap(),
		help:        help.New(),
		spinner:     s,
		viewport:    viewport.New(80, 10),
		sendInputs:  inputs,
		loading:     !st.Loaded(store.CategoryBalances),
		failures:    make(map[store.Category]string),
		privacyMode: cfg.PrivacyMode,
		config:      cfg,
	}, nil
}

func initialModel(w *watcher.Watcher, q *notify.Queue, svc *actions.Service, cfg config.Config) (model, error) {
	m, err := newModel(w.Store(), w, svc, cfg)
	if err != nil {
		return m, err
	}
	m.events = w.Subscribe()
	if q != nil {
		m.notifier = q
		m.notes = q.Subscribe()
	}
	return m, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		listenForWatcher(m.events),
		listenForNotifications(m.notes),
		loadActiveTab(m.tabs),
	)
}

// loadActiveTab requests the opening tab's data when the watcher's startup
// fetches do not already cover it.
func loadActiveTab(ctrl *tabs.Controller) tea.Cmd {
	switch ctrl.Active().Category() {
	case store.CategoryBalances, store.CategoryAddresses:
		return nil
	}
	return func() tea.Msg {
		_ = ctrl.Select(ctrl.Active())
		return nil
	}
}

// listenForWatcher waits for the next event on the model's single
// subscription.
func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

func listenForNotifications(ch chan notify.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return n
	}
}
