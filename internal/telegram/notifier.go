package telegram

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rewired-gh/retailfusion/internal/logger"
	"github.com/rewired-gh/retailfusion/internal/scheduler"
	"github.com/rewired-gh/retailfusion/internal/severity"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

// Messenger delivers notifications. *Client implements it.
type Messenger interface {
	SendOutage(cause error) error
	SendRecovery(failureCount int) error
	SendCritical(products []string) error
}

// Notifier turns scheduler cycles into notifications: one outage message per
// run of consecutive failures, one recovery message when it ends, and one
// message per applied snapshot that introduces new critical products.
type Notifier struct {
	messenger Messenger

	mu                  sync.Mutex
	consecutiveFailures int
	critical            map[string]bool
}

// NewNotifier creates a notifier that sends through m.
func NewNotifier(m Messenger) *Notifier {
	return &Notifier{messenger: m, critical: make(map[string]bool)}
}

// ObserveCycle is a scheduler.Observer.
func (n *Notifier) ObserveCycle(c scheduler.Cycle) {
	// Only outcomes the view store applied change what the dashboard shows
	if c.Discarded || !c.Applied {
		return
	}

	var sends []func() error
	n.mu.Lock()
	if c.Err != nil {
		n.consecutiveFailures++
		if n.consecutiveFailures == 1 {
			cause := c.Err
			sends = append(sends, func() error { return n.messenger.SendOutage(cause) })
		}
	} else {
		if n.consecutiveFailures > 0 {
			count := n.consecutiveFailures
			sends = append(sends, func() error { return n.messenger.SendRecovery(count) })
			n.consecutiveFailures = 0
		}
		if c.Snapshot != nil {
			if fresh := n.updateCritical(c); len(fresh) > 0 {
				sends = append(sends, func() error { return n.messenger.SendCritical(fresh) })
			}
		}
	}
	n.mu.Unlock()

	for _, send := range sends {
		if err := send(); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		}
	}
}

// updateCritical replaces the tracked critical set and returns products that were not in it.
func (n *Notifier) updateCritical(c scheduler.Cycle) []string {
	next := make(map[string]bool)
	var fresh []string
	for _, r := range c.Snapshot.Recommendations {
		class, _ := severity.Classify(r.Status)
		if class != severity.Critical {
			continue
		}
		next[r.Product] = true
		if !n.critical[r.Product] {
			fresh = append(fresh, r.Product)
		}
	}
	n.critical = next
	sort.Strings(fresh)
	return fresh
}

// ConsecutiveFailures returns the length of the current failure run.
func (n *Notifier) ConsecutiveFailures() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.consecutiveFailures
}

// FormatStatus summarizes the view state and scheduler for the /status command.
func FormatStatus(v viewstate.ViewState, stats scheduler.Stats) string {
	var b strings.Builder
	b.WriteString("📊 *Dashboard status*\n")
	fmt.Fprintf(&b, "Scheduler: %s, %d fetches issued\n", escapeMarkdownV2(stats.State), stats.Issued)

	snap, ok := v.Snapshot()
	if !ok {
		b.WriteString("No snapshot received yet\n")
	} else {
		critical := 0
		for _, r := range snap.Recommendations {
			if class, _ := severity.Classify(r.Status); class == severity.Critical {
				critical++
			}
		}
		fmt.Fprintf(&b, "Total stock: %d\n", snap.Metrics.TotalStock)
		fmt.Fprintf(&b, "Active anomalies: %d\n", snap.Metrics.ActiveAnomalies)
		fmt.Fprintf(&b, "Critical products: %d\n", critical)
		if !v.LastSuccess.IsZero() {
			fmt.Fprintf(&b, "Last success: %s\n", escapeMarkdownV2(v.LastSuccess.Format("2006-01-02 15:04:05")))
		}
	}
	if msg, degraded := v.LastError(); degraded {
		fmt.Fprintf(&b, "⚠️ %s\n", escapeMarkdownV2(msg))
	}
	return b.String()
}
