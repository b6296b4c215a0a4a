package rag

import (
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/graph"
)

// Node names of the conversation graph.
const (
	NodeRoute    = "route"
	NodeRetrieve = "retrieve"
	NodeGenerate = "generate"
)

// NewConversationGraph builds the route → (retrieve) → generate definition.
func NewConversationGraph(router *Router, retriever *Retriever, generator *Generator) (*graph.Definition, error) {
	if router == nil || retriever == nil || generator == nil {
		return nil, ErrNodeRequired
	}
	return graph.NewDefinition(
		map[string]graph.Node{
			NodeRoute:    router.Route,
			NodeRetrieve: retriever.Retrieve,
			NodeGenerate: generator.Generate,
		},
		[]graph.Edge{
			{From: graph.Start, To: NodeRoute},
			{From: NodeRetrieve, To: NodeGenerate},
			{From: NodeGenerate, To: graph.End},
		},
		graph.Branch{
			From: NodeRoute,
			When: func(s core.ConversationState) bool { return s.RetrievalRequested() },
			Then: NodeRetrieve,
			Else: NodeGenerate,
		},
	)
}
