package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDefinition indicates a graph definition failed validation.
	ErrInvalidDefinition = errors.New("invalid graph definition")

	// ErrNodeTimeout indicates a node exceeded the per-node timeout.
	ErrNodeTimeout = errors.New("node timed out")

	// ErrNodePanic indicates a node panicked.
	ErrNodePanic = errors.New("node panicked")

	// ErrCheckpointFailed indicates the state after a node could not be saved.
	ErrCheckpointFailed = errors.New("checkpoint failed")

	// ErrNoAnswer indicates a traversal reached End without producing an answer.
	ErrNoAnswer = errors.New("traversal ended without an answer")

	// ErrStepLimit indicates a traversal visited more nodes than the graph has.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrDefinitionRequired is returned by NewEngine when def is nil.
	ErrDefinitionRequired = errors.New("graph definition is required")

	// ErrCheckpointsRequired is returned by NewEngine without a checkpoint repository.
	ErrCheckpointsRequired = errors.New("checkpoint repository is required")
)

// NodeError reports the node at which a traversal aborted.
type NodeError struct {
	ThreadID string
	Node     string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("thread %q: node %q: %v", e.ThreadID, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
