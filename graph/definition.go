package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/ragchat/core"
)

// Pseudo-node names. They cannot be used as real node names.
const (
	Start = "__start__"
	End   = "__end__"
)

// Node is one step of a traversal. It receives a copy of the current state
// and returns the fields it wants to change.
type Node func(ctx context.Context, state core.ConversationState) (core.StateUpdate, error)

// Edge is an unconditional transition.
type Edge struct {
	From string
	To   string
}

// Condition decides a Branch from the merged state.
type Condition func(state core.ConversationState) bool

// Branch is a conditional transition: Then when When reports true, Else otherwise.
type Branch struct {
	From string
	When Condition
	Then string
	Else string
}

// transition is the single way out of a node.
type transition struct {
	to     string
	branch *Branch
}

// Definition is an immutable, validated graph.
type Definition struct {
	nodes       map[string]Node
	transitions map[string]transition
	entry       string
}

// NewDefinition validates nodes and transitions and returns the definition.
// Every error wraps ErrInvalidDefinition.
func NewDefinition(nodes map[string]Node, edges []Edge, branches ...Branch) (*Definition, error) {
	d := &Definition{
		nodes:       make(map[string]Node, len(nodes)),
		transitions: make(map[string]transition, len(nodes)+1),
	}

	if len(nodes) == 0 {
		return nil, invalid("no nodes")
	}
	for name, node := range nodes {
		switch {
		case strings.TrimSpace(name) == "":
			return nil, invalid("empty node name")
		case name == Start || name == End:
			return nil, invalid("node name %q is reserved", name)
		case node == nil:
			return nil, invalid("node %q has no function", name)
		}
		d.nodes[name] = node
	}

	for _, edge := range edges {
		if err := d.checkSource(edge.From); err != nil {
			return nil, err
		}
		if err := d.checkTarget(edge.From, edge.To); err != nil {
			return nil, err
		}
		d.transitions[edge.From] = transition{to: edge.To}
	}

	for i := range branches {
		b := branches[i]
		if b.From == Start {
			return nil, invalid("start cannot branch")
		}
		if err := d.checkSource(b.From); err != nil {
			return nil, err
		}
		if b.When == nil {
			return nil, invalid("branch from %q has no condition", b.From)
		}
		if err := d.checkTarget(b.From, b.Then); err != nil {
			return nil, err
		}
		if err := d.checkTarget(b.From, b.Else); err != nil {
			return nil, err
		}
		d.transitions[b.From] = transition{branch: &b}
	}

	start, ok := d.transitions[Start]
	if !ok {
		return nil, invalid("no edge from start")
	}
	if start.to == End {
		return nil, invalid("start leads directly to end")
	}
	d.entry = start.to

	for _, name := range d.Nodes() {
		if _, ok := d.transitions[name]; !ok {
			return nil, invalid("node %q has no outgoing transition", name)
		}
	}

	if err := d.ensureAcyclic(); err != nil {
		return nil, err
	}
	if err := d.ensureReachable(); err != nil {
		return nil, err
	}
	return d, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// checkSource verifies from names Start or a node and has no transition yet.
func (d *Definition) checkSource(from string) error {
	if from != Start {
		if _, ok := d.nodes[from]; !ok {
			return invalid("transition from unknown node %q", from)
		}
	}
	if _, dup := d.transitions[from]; dup {
		return invalid("node %q has more than one outgoing transition", from)
	}
	return nil
}

// checkTarget verifies to names End or a node.
func (d *Definition) checkTarget(from, to string) error {
	if to == End {
		return nil
	}
	if to == Start {
		return invalid("transition from %q into start", from)
	}
	if _, ok := d.nodes[to]; !ok {
		return invalid("transition from %q to unknown node %q", from, to)
	}
	return nil
}

// targets lists every node a transition can lead to.
func (t transition) targets() []string {
	if t.branch != nil {
		return []string{t.branch.Then, t.branch.Else}
	}
	return []string{t.to}
}

// ensureAcyclic verifies that the graph does not contain directed cycles.
func (d *Definition) ensureAcyclic() error {
	const (
		stateUnvisited = iota
		stateVisiting
		stateVisited
	)
	states := make(map[string]int, len(d.nodes))
	stack := make([]string, 0, len(d.nodes))

	var visit func(string) error
	visit = func(node string) error {
		states[node] = stateVisiting
		stack = append(stack, node)

		for _, next := range d.transitions[node].targets() {
			if next == End {
				continue
			}
			switch states[next] {
			case stateVisiting:
				cycleStart := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[cycleStart:]), next)
				return invalid("cycle: %s", strings.Join(cycle, " -> "))
			case stateUnvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		states[node] = stateVisited
		return nil
	}

	for _, name := range d.Nodes() {
		if states[name] == stateUnvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureReachable verifies that End can be reached from the entry node and
// that no node is unreachable.
func (d *Definition) ensureReachable() error {
	queue := []string{d.entry}
	visited := make(map[string]bool, len(d.nodes)+1)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true
		if node == End {
			continue
		}
		queue = append(queue, d.transitions[node].targets()...)
	}

	if !visited[End] {
		return invalid("end not reachable from %q", d.entry)
	}
	for _, name := range d.Nodes() {
		if !visited[name] {
			return invalid("node %q is unreachable", name)
		}
	}
	return nil
}

// Entry returns the first node of every traversal.
func (d *Definition) Entry() string {
	return d.entry
}

// Nodes returns the real node names in sorted order.
func (d *Definition) Nodes() []string {
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Node returns the function registered under name.
func (d *Definition) Node(name string) (Node, bool) {
	node, ok := d.nodes[name]
	return node, ok
}

// Next resolves the transition out of from against the merged state.
// The second result reports whether a branch made the decision.
func (d *Definition) Next(from string, state core.ConversationState) (string, bool) {
	t := d.transitions[from]
	if t.branch == nil {
		return t.to, false
	}
	if t.branch.When(state) {
		return t.branch.Then, true
	}
	return t.branch.Else, true
}
