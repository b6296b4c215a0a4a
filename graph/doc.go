// Package graph runs a conversation as a walk over a small directed state graph.
//
// A Definition is built once by NewDefinition, validated, and never changes
// afterwards. An Engine interprets a Definition: it creates a fresh
// core.ConversationState for each question, runs one node at a time, merges
// each node's core.StateUpdate field by field, and saves a checkpoint after
// every node. The engine itself keeps no per-run state, so one Engine may
// serve many threads concurrently.
//
// Start and End are pseudo-nodes. Every real node leaves through exactly one
// transition: a static Edge or a Branch, which picks one of two targets from
// the merged state.
//
//	def, err := graph.NewDefinition(
//	    map[string]graph.Node{"route": route, "retrieve": retrieve, "generate": generate},
//	    []graph.Edge{
//	        {From: graph.Start, To: "route"},
//	        {From: "retrieve", To: "generate"},
//	        {From: "generate", To: graph.End},
//	    },
//	    graph.Branch{From: "route", When: needsRetrieval, Then: "retrieve", Else: "generate"},
//	)
//	engine, err := graph.NewEngine(def, checkpoints, graph.WithNodeTimeout(30*time.Second))
//	result, err := engine.Run(ctx, threadID, "What are the skills?")
//
// A failing, timed-out or cancelled node aborts the run with a *NodeError and
// no checkpoint is written for it; the thread's previous checkpoint remains
// the latest.
package graph
