package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/metrics"
	"github.com/poiesic/ragchat/storage"
)

// DefaultNodeTimeout bounds a single node execution.
const DefaultNodeTimeout = 60 * time.Second

// Option configures an Engine.
type Option func(*Engine)

// WithNodeTimeout sets the per-node timeout. Zero or negative disables it.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.nodeTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// Engine interprets a Definition. It holds no per-run state.
type Engine struct {
	def         *Definition
	checkpoints storage.CheckpointRepository
	nodeTimeout time.Duration
	logger      *slog.Logger
	recorder    metrics.Recorder
}

// Result is the outcome of a completed traversal.
type Result struct {
	State    *core.ConversationState
	Sequence uint64   // sequence of the last checkpoint written
	Path     []string // nodes visited, in order
}

// NewEngine creates an engine over def that checkpoints into checkpoints.
func NewEngine(def *Definition, checkpoints storage.CheckpointRepository, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, ErrDefinitionRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointsRequired
	}
	e := &Engine{
		def:         def,
		checkpoints: checkpoints,
		nodeTimeout: DefaultNodeTimeout,
		logger:      slog.Default().With("component", "graph"),
		recorder:    metrics.Noop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Definition returns the graph the engine runs.
func (e *Engine) Definition() *Definition {
	return e.def
}

// Run answers one question on a thread. It walks the graph from Start to
// End, saving a checkpoint after every node. Node failures are returned as
// *NodeError; the checkpoint of the failed node is never written.
func (e *Engine) Run(ctx context.Context, threadID, question string) (result *Result, err error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return nil, err
	}
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() {
		e.recorder.ObserveTraversal(time.Since(started), err)
	}()

	logger := e.logger.With("thread", threadID)
	state := core.NewConversationState(question)
	path := make([]string, 0, len(e.def.nodes))
	var sequence uint64

	current := e.def.entry
	for current != End {
		if len(path) >= len(e.def.nodes) {
			return nil, &NodeError{ThreadID: threadID, Node: current, Err: ErrStepLimit}
		}
		if err := ctx.Err(); err != nil {
			return nil, &NodeError{ThreadID: threadID, Node: current, Err: err}
		}

		update, err := e.runNode(ctx, current, state)
		if err != nil {
			logger.Warn("node failed", "node", current, "err", err)
			return nil, &NodeError{ThreadID: threadID, Node: current, Err: err}
		}
		state.Apply(update)

		sequence, err = e.checkpoints.SaveCheckpoint(ctx, threadID, current, state)
		if err != nil {
			logger.Error("checkpoint failed", "node", current, "err", err)
			return nil, &NodeError{ThreadID: threadID, Node: current, Err: fmt.Errorf("%w: %w", ErrCheckpointFailed, err)}
		}
		logger.Debug("node complete", "node", current, "updated", update.Fields(), "sequence", sequence)
		path = append(path, current)

		next, branched := e.def.Next(current, *state)
		if branched {
			e.recorder.ObserveBranch(current, next)
			logger.Debug("branch taken", "from", current, "to", next)
		}
		current = next
	}

	if state.Answer == nil {
		last := path[len(path)-1]
		return nil, &NodeError{ThreadID: threadID, Node: last, Err: ErrNoAnswer}
	}

	return &Result{State: state, Sequence: sequence, Path: path}, nil
}

type nodeResult struct {
	update core.StateUpdate
	err    error
}

// runNode executes one node on a copy of state under the per-node timeout.
// The engine stops waiting as soon as the node's context is done, even if
// the node itself ignores cancellation.
func (e *Engine) runNode(ctx context.Context, name string, state *core.ConversationState) (core.StateUpdate, error) {
	node := e.def.nodes[name]

	nodeCtx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	input := *state.Clone()
	done := make(chan nodeResult, 1)
	started := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- nodeResult{err: fmt.Errorf("%w: %v", ErrNodePanic, r)}
			}
		}()
		update, err := node(nodeCtx, input)
		done <- nodeResult{update: update, err: err}
	}()

	var res nodeResult
	select {
	case res = <-done:
	case <-nodeCtx.Done():
		res.err = nodeCtx.Err()
	}

	if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
		res.err = fmt.Errorf("%w after %s: %w", ErrNodeTimeout, e.nodeTimeout, res.err)
	}
	e.recorder.ObserveNode(name, time.Since(started), res.err)
	return res.update, res.err
}
