// Package tabs selects which of the dashboard's views is active and asks
// for that view's data whenever it is selected.
package tabs

import (
	"fmt"
	"strings"
	"sync"

	"duxwatch/pkg/store"
)

type Tab string

const (
	Balances Tab = "balances"
	Receive  Tab = "receive"
	History  Tab = "history"
	Keys     Tab = "keys"
)

// All lists the tabs in display order.
var All = []Tab{Balances, Receive, History, Keys}

var titles = map[Tab]string{
	Balances: "Balances",
	Receive:  "Receive",
	History:  "History",
	Keys:     "Keys",
}

func (t Tab) Title() string { return titles[t] }

// Category is the store slot a tab displays and refreshes.
func (t Tab) Category() store.Category {
	switch t {
	case Balances:
		return store.CategoryBalances
	case Receive:
		return store.CategoryAddresses
	case History:
		return store.CategoryTransactions
	case Keys:
		return store.CategoryKeys
	}
	return ""
}

func ParseTab(s string) (Tab, bool) {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Refresher starts an asynchronous fetch of one category.
type Refresher interface {
	Refresh(c store.Category)
}

// View is notified when its tab gains or loses focus.
type View interface {
	Activate(t Tab)
	Deactivate(t Tab)
}

// Controller keeps exactly one tab active.
type Controller struct {
	mu        sync.RWMutex
	active    Tab
	refresher Refresher
	views     []View
}

// New activates initial without fetching; the scheduler's startup cycles
// cover the first load.
func New(initial Tab, r Refresher, views ...View) (*Controller, error) {
	parsed, ok := ParseTab(string(initial))
	if !ok {
		return nil, fmt.Errorf("unknown tab %q", initial)
	}
	c := &Controller{active: parsed, refresher: r, views: views}
	for _, v := range views {
		v.Activate(parsed)
	}
	return c, nil
}

func (c *Controller) Active() Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Select deactivates the current tab, activates t and requests t's data.
// Selecting the active tab again only re-requests its data.
func (c *Controller) Select(t Tab) error {
	parsed, ok := ParseTab(string(t))
	if !ok {
		return fmt.Errorf("unknown tab %q", t)
	}
	t = parsed

	c.mu.Lock()
	prev := c.active
	c.active = t
	c.mu.Unlock()

	if prev != t {
		for _, v := range c.views {
			v.Deactivate(prev)
		}
		for _, v := range c.views {
			v.Activate(t)
		}
	}
	if c.refresher != nil {
		c.refresher.Refresh(t.Category())
	}
	return nil
}

// Next selects the tab after the active one, wrapping around.
func (c *Controller) Next() Tab {
	return c.step(1)
}

// Prev selects the tab before the active one, wrapping around.
func (c *Controller) Prev() Tab {
	return c.step(len(All) - 1)
}

func (c *Controller) step(delta int) Tab {
	cur := c.Active()
	idx := 0
	for i, t := range All {
		if t == cur {
			idx = i
			break
		}
	}
	next := All[(idx+delta)%len(All)]
	_ = c.Select(next)
	return next
}
