// Package severity maps reorder recommendation statuses to presentation classes.
package severity

import (
	"errors"
	"fmt"
)

// Class is the presentation category of a recommendation.
type Class string

const (
	Critical Class = "critical"
	Low      Class = "low"
	Healthy  Class = "healthy"
	// Unknown is returned for statuses outside the backend vocabulary.
	// It is never produced for a recognized status.
	Unknown Class = "unknown"
)

// ErrUnknownStatus reports a status the classifier does not recognize.
var ErrUnknownStatus = errors.New("unknown recommendation status")

var classes = map[string]Class{
	"critical": Critical,
	"low":      Low,
	"healthy":  Healthy,
}

// Classify binds a recommendation status to its class. Matching is exact.
// An unrecognized status yields Unknown together with ErrUnknownStatus.
func Classify(status string) (Class, error) {
	if c, ok := classes[status]; ok {
		return c, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
}

// Rank orders classes for display: critical first, unknown last.
func (c Class) Rank() int {
	switch c {
	case Critical:
		return 0
	case Low:
		return 1
	case Healthy:
		return 2
	default:
		return 3
	}
}

// Style is the visual treatment of a class.
type Style struct {
	Label  string
	Color  string
	Border string
}

var styles = map[Class]Style{
	Critical: {Label: "critical", Color: "#fda4af", Border: "#f43f5e"},
	Low:      {Label: "low", Color: "#fcd34d", Border: "#f59e0b"},
	Healthy:  {Label: "healthy", Color: "#6ee7b7", Border: "#10b981"},
	Unknown:  {Label: "unknown", Color: "#cbd5e1", Border: "#64748b"},
}

// Style returns the visual treatment of c.
func (c Class) Style() Style {
	if s, ok := styles[c]; ok {
		return s
	}
	return styles[Unknown]
}
