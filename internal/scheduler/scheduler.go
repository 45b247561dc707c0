// Package scheduler drives the recurring snapshot fetch.
//
// A Scheduler moves Idle → Running → Stopped exactly once. While Running it
// fetches immediately and then once per interval. Fetches may overlap; each
// is numbered so the view store can tell issue order from completion order.
// Once Stop returns, no fetch is issued and no result is applied.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/retailfusion/internal/logger"
	"github.com/rewired-gh/retailfusion/internal/models"
)

// DefaultInterval is the dashboard refresh cadence.
const DefaultInterval = 3500 * time.Millisecond

// ErrNotIdle is returned by Start on a scheduler that was already started or stopped.
var ErrNotIdle = errors.New("scheduler already started")

// Fetcher produces one snapshot per call.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// Sink receives fetch outcomes. Both methods report whether the result was applied.
type Sink interface {
	OnFetchSuccess(seq uint64, snapshot *models.Snapshot) bool
	OnFetchFailure(seq uint64, msg string) bool
}

// State is the scheduler lifecycle phase.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Cycle describes one completed fetch.
type Cycle struct {
	Seq         uint64
	Session     string
	IssuedAt    time.Time
	CompletedAt time.Time
	Snapshot    *models.Snapshot
	Err         error
	// Applied is false when the sink dropped the result or it was discarded.
	Applied bool
	// Discarded marks results that completed after teardown.
	Discarded bool
}

// Duration is the time from issue to completion.
func (c Cycle) Duration() time.Duration {
	return c.CompletedAt.Sub(c.IssuedAt)
}

// Observer is notified of every completed cycle, outside the scheduler lock.
// Observers run one at a time, in the order the cycles were handed to the sink.
type Observer func(Cycle)

// Config holds scheduler behavior.
type Config struct {
	Interval time.Duration
	// AdvisoryMessage is the user-facing text recorded on any fetch failure.
	AdvisoryMessage string
}

// Scheduler runs the fetch loop.
type Scheduler struct {
	fetcher   Fetcher
	sink      Sink
	config    Config
	session   string
	observers []Observer

	mu       sync.Mutex
	state    State
	seq      uint64
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
	latency  Latency

	// completed numbers cycles in sink order; observers run in that order.
	completed uint64

	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	notifyTurn uint64
}

// New creates an idle scheduler.
func New(fetcher Fetcher, sink Sink, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	s := &Scheduler{
		fetcher: fetcher,
		sink:    sink,
		config:  config,
		session: uuid.NewString(),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	return s
}

// Observe registers an observer. Must be called before Start.
func (s *Scheduler) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Session identifies this scheduler's run in journals and logs.
func (s *Scheduler) Session() string {
	return s.session
}

// Start fetches immediately and then on every interval until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Running
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	logger.Info("Refresh scheduler started (interval: %v, session: %s)", s.config.Interval, s.session)
	go s.loop(runCtx)
	return nil
}

// Stop tears the scheduler down. It waits for the loop and for in-flight
// fetches to return; their results are discarded. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	prev := s.state
	if prev == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	cancel := s.cancel
	done := s.loopDone
	s.mu.Unlock()

	if prev != Running {
		return
	}
	cancel()
	<-done
	s.inflight.Wait()
	logger.Info("Refresh scheduler stopped (session: %s)", s.session)
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats is a point-in-time summary of the scheduler.
type Stats struct {
	State   string       `json:"state"`
	Session string       `json:"session"`
	Issued  uint64       `json:"issued"`
	Latency LatencyStats `json:"latency"`
}

// Stats returns the current scheduler summary.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		State:   s.state.String(),
		Session: s.session,
		Issued:  s.seq,
		Latency: s.latency.Stats(),
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.issue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.issue(ctx)
		}
	}
}

// issue starts one fetch unless the scheduler has been torn down.
// A pending tick that races with Stop is dropped here.
func (s *Scheduler) issue(ctx context.Context) {
	s.mu.Lock()
	if s.state != Running || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	s.inflight.Add(1)
	s.mu.Unlock()

	logger.Debug("Issuing snapshot fetch #%d", seq)
	go s.run(ctx, seq, time.Now())
}

func (s *Scheduler) run(ctx context.Context, seq uint64, issuedAt time.Time) {
	defer s.inflight.Done()

	snapshot, err := s.fetcher.FetchSnapshot(ctx)
	cycle := Cycle{
		Seq:         seq,
		Session:     s.session,
		IssuedAt:    issuedAt,
		CompletedAt: time.Now(),
		Snapshot:    snapshot,
		Err:         err,
	}

	s.mu.Lock()
	switch {
	case s.state != Running || ctx.Err() != nil:
		cycle.Discarded = true
	case err != nil:
		cycle.Applied = s.sink.OnFetchFailure(seq, s.config.AdvisoryMessage)
	default:
		cycle.Applied = s.sink.OnFetchSuccess(seq, snapshot)
	}
	if !cycle.Discarded {
		s.latency.Add(cycle.Duration())
	}
	observers := s.observers
	turn := s.completed
	s.completed++
	s.mu.Unlock()

	switch {
	case cycle.Discarded:
		logger.Debug("Discarded fetch #%d completed after teardown", seq)
	case err != nil:
		logger.Warn("Snapshot fetch #%d failed after %v: %v", seq, cycle.Duration(), err)
	case !cycle.Applied:
		logger.Debug("Snapshot fetch #%d dropped as out of order", seq)
	default:
		logger.Debug("Snapshot fetch #%d applied in %v", seq, cycle.Duration())
	}

	s.notifyMu.Lock()
	for s.notifyTurn != turn {
		s.notifyCond.Wait()
	}
	for _, o := range observers {
		o(cycle)
	}
	s.notifyTurn++
	s.notifyCond.Broadcast()
	s.notifyMu.Unlock()
}
