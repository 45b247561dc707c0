// Package viewstate holds the dashboard's last good snapshot and last error.
//
// A failed fetch never discards a previously held snapshot: the view degrades
// to "last known good data plus a warning" and recovers on the next success.
package viewstate

import (
	"sync"
	"time"

	"github.com/rewired-gh/retailfusion/internal/models"
)

// ViewState is an immutable copy of the store at one instant.
// Both the snapshot and the error may be absent; accessors report presence.
type ViewState struct {
	snapshot  *models.Snapshot
	lastError string
	hasError  bool

	AppliedSeq          uint64
	LastSuccess         time.Time
	LastFailure         time.Time
	ConsecutiveFailures int
}

// Snapshot returns the last successfully fetched snapshot, if any.
func (v ViewState) Snapshot() (*models.Snapshot, bool) {
	return v.snapshot, v.snapshot != nil
}

// LastError returns the advisory message of the most recent failure, if the
// view has not recovered since.
func (v ViewState) LastError() (string, bool) {
	return v.lastError, v.hasError
}

// Degraded reports whether the view is showing an error banner.
func (v ViewState) Degraded() bool {
	return v.hasError
}

// Option configures a Store.
type Option func(*Store)

// WithStrictOrdering makes the store drop results issued before the most
// recently applied one, so a slow straggler cannot overwrite newer data.
func WithStrictOrdering() Option {
	return func(s *Store) { s.strict = true }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single writer target for fetch outcomes.
type Store struct {
	mu     sync.RWMutex
	state  ViewState
	strict bool
	now    func() time.Time
}

// New returns an empty store: no snapshot, no error.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFetchSuccess replaces the snapshot and clears the error.
// This is the only path that clears the error. It reports whether the result was applied.
func (s *Store) OnFetchSuccess(seq uint64, snapshot *models.Snapshot) bool {
	if snapshot == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale(seq) {
		return false
	}
	s.state.snapshot = snapshot
	s.state.lastError = ""
	s.state.hasError = false
	s.state.AppliedSeq = seq
	s.state.LastSuccess = s.now()
	s.state.ConsecutiveFailures = 0
	return true
}

// OnFetchFailure records msg as the current error and leaves the snapshot untouched.
// It reports whether the result was applied.
func (s *Store) OnFetchFailure(seq uint64, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale(seq) {
		return false
	}
	s.state.lastError = msg
	s.state.hasError = true
	s.state.AppliedSeq = seq
	s.state.LastFailure = s.now()
	s.state.ConsecutiveFailures++
	return true
}

// Current returns a copy of the view state.
func (s *Store) Current() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// stale reports whether a result issued as seq must be dropped.
// Callers hold s.mu.
func (s *Store) stale(seq uint64) bool {
	return s.strict && seq < s.state.AppliedSeq
}
