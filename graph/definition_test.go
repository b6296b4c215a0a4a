package graph

import (
	"context"
	"testing"

	"github.com/poiesic/ragchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, state core.ConversationState) (core.StateUpdate, error) {
	return core.StateUpdate{}, nil
}

func needsRetrieval(state core.ConversationState) bool {
	return state.RetrievalRequested()
}

func threeNodes() map[string]Node {
	return map[string]Node{"route": noop, "retrieve": noop, "generate": noop}
}

func conversationEdges() []Edge {
	return []Edge{
		{From: Start, To: "route"},
		{From: "retrieve", To: "generate"},
		{From: "generate", To: End},
	}
}

func conversationBranch() Branch {
	return Branch{From: "route", When: needsRetrieval, Then: "retrieve", Else: "generate"}
}

func TestNewDefinition_Valid(t *testing.T) {
	def, err := NewDefinition(threeNodes(), conversationEdges(), conversationBranch())
	require.NoError(t, err)

	assert.Equal(t, "route", def.Entry())
	assert.Equal(t, []string{"generate", "retrieve", "route"}, def.Nodes())

	_, ok := def.Node("retrieve")
	assert.True(t, ok)
	_, ok = def.Node(Start)
	assert.False(t, ok)

	direct := *core.NewConversationState("q")
	direct.NeedsRetrieval = core.Bool(false)
	next, branched := def.Next("route", direct)
	assert.True(t, branched)
	assert.Equal(t, "generate", next)

	retrieve := direct
	retrieve.NeedsRetrieval = core.Bool(true)
	next, _ = def.Next("route", retrieve)
	assert.Equal(t, "retrieve", next)

	next, branched = def.Next("retrieve", retrieve)
	assert.False(t, branched)
	assert.Equal(t, "generate", next)
}

func TestNewDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    map[string]Node
		edges    []Edge
		branches []Branch
		contains string
	}{
		{
			name:     "no nodes",
			nodes:    map[string]Node{},
			contains: "no nodes",
		},
		{
			name:     "reserved name",
			nodes:    map[string]Node{End: noop},
			contains: "reserved",
		},
		{
			name:     "nil node",
			nodes:    map[string]Node{"a": nil},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: End}},
			contains: "no function",
		},
		{
			name:     "edge from unknown node",
			nodes:    map[string]Node{"a": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: End}, {From: "ghost", To: End}},
			contains: "unknown node",
		},
		{
			name:     "edge to unknown node",
			nodes:    map[string]Node{"a": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: "ghost"}},
			contains: "unknown node",
		},
		{
			name:     "edge out of end",
			nodes:    map[string]Node{"a": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: End}, {From: End, To: "a"}},
			contains: "unknown node",
		},
		{
			name:     "edge into start",
			nodes:    map[string]Node{"a": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: Start}},
			contains: "into start",
		},
		{
			name:     "no start edge",
			nodes:    map[string]Node{"a": noop},
			edges:    []Edge{{From: "a", To: End}},
			contains: "no edge from start",
		},
		{
			name:     "two start edges",
			nodes:    map[string]Node{"a": noop, "b": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: Start, To: "b"}, {From: "a", To: End}, {From: "b", To: End}},
			contains: "more than one",
		},
		{
			name:     "start straight to end",
			nodes:    map[string]Node{"a": noop},
			edges:    []Edge{{From: Start, To: End}, {From: "a", To: End}},
			contains: "directly to end",
		},
		{
			name:     "node without transition",
			nodes:    map[string]Node{"a": noop, "b": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: "b"}},
			contains: `"b" has no outgoing transition`,
		},
		{
			name:     "edge and branch from same node",
			nodes:    threeNodes(),
			edges:    append(conversationEdges(), Edge{From: "route", To: "generate"}),
			branches: []Branch{conversationBranch()},
			contains: "more than one",
		},
		{
			name:     "branch without condition",
			nodes:    threeNodes(),
			edges:    conversationEdges(),
			branches: []Branch{{From: "route", Then: "retrieve", Else: "generate"}},
			contains: "no condition",
		},
		{
			name:     "branch to unknown node",
			nodes:    threeNodes(),
			edges:    conversationEdges(),
			branches: []Branch{{From: "route", When: needsRetrieval, Then: "search", Else: "generate"}},
			contains: "unknown node",
		},
		{
			name:     "branch from start",
			nodes:    threeNodes(),
			edges:    conversationEdges()[1:],
			branches: []Branch{{From: Start, When: needsRetrieval, Then: "route", Else: "generate"}},
			contains: "start cannot branch",
		},
		{
			name:     "cycle",
			nodes:    map[string]Node{"a": noop, "b": noop, "c": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: "b"}, {From: "c", To: End}},
			branches: []Branch{{From: "b", When: needsRetrieval, Then: "a", Else: "c"}},
			contains: "cycle: a -> b -> a",
		},
		{
			name:     "unreachable node",
			nodes:    map[string]Node{"a": noop, "orphan": noop},
			edges:    []Edge{{From: Start, To: "a"}, {From: "a", To: End}, {From: "orphan", To: End}},
			contains: `"orphan" is unreachable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinition(tt.nodes, tt.edges, tt.branches...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
