// Package metrics records how conversation traversals behave: how long each
// node takes, how traversals end, and which way branches go.
package metrics

import (
	"context"
	"errors"
	"time"
)

// Outcome labels shared by node and traversal observations.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

// Recorder receives observations from the graph engine.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveNode records one node execution.
	ObserveNode(node string, duration time.Duration, err error)

	// ObserveBranch records which target a conditional edge selected.
	ObserveBranch(from, to string)

	// ObserveTraversal records a complete run from start to end or abort.
	ObserveTraversal(duration time.Duration, err error)
}

// Outcome classifies err into one of the outcome labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

// Noop discards every observation.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) ObserveNode(string, time.Duration, error) {}
func (Noop) ObserveBranch(string, string)             {}
func (Noop) ObserveTraversal(time.Duration, error)    {}
