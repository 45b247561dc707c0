package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/retailfusion/internal/models"
	"github.com/rewired-gh/retailfusion/internal/scheduler"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Gaming_Mice", "Gaming\\_Mice"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Stock: 12.5", "Stock: 12\\.5"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"`code`", "\\`code\\`"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// Chat ID parsing happens before the bot is contacted
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func TestFormatMessages(t *testing.T) {
	outage := formatOutage(errors.New("snapshot fetch failed: unexpected status: 503"))
	if !strings.Contains(outage, "*Backend unavailable*") || !strings.Contains(outage, "503") {
		t.Errorf("outage = %q", outage)
	}

	recovery := formatRecovery(4)
	if !strings.Contains(recovery, "after 4 consecutive failure\\(s\\)") {
		t.Errorf("recovery = %q", recovery)
	}

	critical := formatCritical([]string{"Gaming Mice", "Portable SSDs"})
	if !strings.Contains(critical, "1\\. Gaming Mice\n") || !strings.Contains(critical, "2\\. Portable SSDs\n") {
		t.Errorf("critical = %q", critical)
	}
}

type fakeMessenger struct {
	outages    []error
	recoveries []int
	critical   [][]string
}

func (f *fakeMessenger) SendOutage(cause error) error {
	f.outages = append(f.outages, cause)
	return nil
}

func (f *fakeMessenger) SendRecovery(n int) error {
	f.recoveries = append(f.recoveries, n)
	return nil
}

func (f *fakeMessenger) SendCritical(products []string) error {
	f.critical = append(f.critical, products)
	return nil
}

func snapshotWith(statuses map[string]string) *models.Snapshot {
	snap := &models.Snapshot{}
	for product, status := range statuses {
		snap.Recommendations = append(snap.Recommendations, models.Recommendation{Product: product, Status: status})
	}
	return snap
}

func success(seq uint64, snap *models.Snapshot) scheduler.Cycle {
	return scheduler.Cycle{Seq: seq, Snapshot: snap, Applied: true}
}

func failure(seq uint64) scheduler.Cycle {
	return scheduler.Cycle{Seq: seq, Err: errors.New("connection refused"), Applied: true}
}

func TestNotifier_OutageOncePerRunAndRecovery(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m)

	n.ObserveCycle(success(1, &models.Snapshot{}))
	n.ObserveCycle(failure(2))
	n.ObserveCycle(failure(3))
	n.ObserveCycle(failure(4))
	if n.ConsecutiveFailures() != 3 {
		t.Errorf("ConsecutiveFailures() = %d, want 3", n.ConsecutiveFailures())
	}
	n.ObserveCycle(success(5, &models.Snapshot{}))
	n.ObserveCycle(success(6, &models.Snapshot{}))

	if len(m.outages) != 1 {
		t.Errorf("outages = %d, want 1", len(m.outages))
	}
	if len(m.recoveries) != 1 || m.recoveries[0] != 3 {
		t.Errorf("recoveries = %v, want [3]", m.recoveries)
	}

	n.ObserveCycle(failure(7))
	if len(m.outages) != 2 {
		t.Errorf("a new failure run should send a second outage, got %d", len(m.outages))
	}
}

func TestNotifier_NewlyCritical(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m)

	n.ObserveCycle(success(1, snapshotWith(map[string]string{"Gaming Mice": "critical", "Smart Watches": "healthy"})))
	n.ObserveCycle(success(2, snapshotWith(map[string]string{"Gaming Mice": "critical", "Smart Watches": "low"})))
	n.ObserveCycle(success(3, snapshotWith(map[string]string{"Gaming Mice": "critical", "Smart Watches": "critical", "Portable SSDs": "critical"})))
	// Gaming Mice leaves and re-enters the critical set
	n.ObserveCycle(success(4, snapshotWith(map[string]string{"Gaming Mice": "low"})))
	n.ObserveCycle(success(5, snapshotWith(map[string]string{"Gaming Mice": "critical"})))

	want := [][]string{
		{"Gaming Mice"},
		{"Portable SSDs", "Smart Watches"},
		{"Gaming Mice"},
	}
	if len(m.critical) != len(want) {
		t.Fatalf("critical messages = %v, want %v", m.critical, want)
	}
	for i := range want {
		if strings.Join(m.critical[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("message %d = %v, want %v", i, m.critical[i], want[i])
		}
	}
}

func TestNotifier_IgnoresUnappliedAndDiscarded(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m)

	dropped := success(1, snapshotWith(map[string]string{"Gaming Mice": "critical"}))
	dropped.Applied = false
	n.ObserveCycle(dropped)

	discarded := failure(2)
	discarded.Discarded = true
	n.ObserveCycle(discarded)

	unknown := success(3, snapshotWith(map[string]string{"Gaming Mice": "overstocked"}))
	n.ObserveCycle(unknown)

	if len(m.critical) != 0 || len(m.outages) != 0 {
		t.Errorf("unexpected notifications: critical=%v outages=%v", m.critical, m.outages)
	}
}

func TestNotifier_DroppedResultsDoNotRecover(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m)

	n.ObserveCycle(failure(2))
	// A straggler the store dropped under strict ordering
	late := success(1, &models.Snapshot{})
	late.Applied = false
	n.ObserveCycle(late)

	if len(m.recoveries) != 0 {
		t.Errorf("recoveries = %v, want none while the view still shows the error", m.recoveries)
	}
	if n.ConsecutiveFailures() != 1 {
		t.Errorf("ConsecutiveFailures() = %d, want 1", n.ConsecutiveFailures())
	}

	dropped := failure(0)
	dropped.Applied = false
	n.ObserveCycle(dropped)
	if n.ConsecutiveFailures() != 1 {
		t.Errorf("dropped failure counted: %d", n.ConsecutiveFailures())
	}

	n.ObserveCycle(success(3, &models.Snapshot{}))
	if len(m.recoveries) != 1 || m.recoveries[0] != 1 {
		t.Errorf("recoveries = %v, want [1]", m.recoveries)
	}
}

func TestFormatStatus(t *testing.T) {
	store := viewstate.New()
	stats := scheduler.Stats{State: "running", Issued: 7}

	text := FormatStatus(store.Current(), stats)
	if !strings.Contains(text, "No snapshot received yet") || !strings.Contains(text, "7 fetches issued") {
		t.Errorf("status = %q", text)
	}

	store.OnFetchSuccess(1, &models.Snapshot{
		Metrics: models.Metrics{TotalStock: 120, ActiveAnomalies: 2},
		Recommendations: []models.Recommendation{
			{Product: "Gaming Mice", Status: "critical"},
			{Product: "Smart Watches", Status: "healthy"},
		},
	})
	store.OnFetchFailure(2, "Backend unavailable.")

	text = FormatStatus(store.Current(), stats)
	for _, want := range []string{"Total stock: 120", "Active anomalies: 2", "Critical products: 1", "Backend unavailable\\."} {
		if !strings.Contains(text, want) {
			t.Errorf("status missing %q: %q", want, text)
		}
	}
}
