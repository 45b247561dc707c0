package storage

import (
	"github.com/rewired-gh/retailfusion/internal/logger"
	"github.com/rewired-gh/retailfusion/internal/scheduler"
	"github.com/rewired-gh/retailfusion/internal/severity"
)

// FromCycle converts a completed scheduler cycle into a journal row.
func FromCycle(c scheduler.Cycle) *CycleRecord {
	rec := &CycleRecord{
		Session:     c.Session,
		Seq:         c.Seq,
		IssuedAt:    c.IssuedAt,
		CompletedAt: c.CompletedAt,
	}
	switch {
	case c.Discarded:
		rec.Outcome = OutcomeDiscarded
	case c.Err != nil:
		rec.Outcome = OutcomeFailed
	case !c.Applied:
		rec.Outcome = OutcomeDropped
	default:
		rec.Outcome = OutcomeApplied
	}
	if c.Err != nil {
		rec.Error = c.Err.Error()
	}
	if snap := c.Snapshot; snap != nil {
		rec.TotalStock = snap.Metrics.TotalStock
		rec.Transactions = len(snap.Transactions)
		for _, r := range snap.Recommendations {
			if class, _ := severity.Classify(r.Status); class == severity.Critical {
				rec.CriticalReorder++
			}
		}
	}
	return rec
}

// ObserveCycle is a scheduler.Observer that journals every cycle.
func (s *Storage) ObserveCycle(c scheduler.Cycle) {
	if err := s.RecordCycle(FromCycle(c)); err != nil {
		logger.Warn("Failed to journal fetch #%d: %v", c.Seq, err)
	}
}
