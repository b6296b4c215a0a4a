// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package rag implements the three nodes of the conversation graph and wires
// them into a graph definition.
//
// The Router asks the chat model whether a question needs the document index.
// The Retriever embeds the question and pulls the closest passages. The
// Generator answers, grounded in retrieved passages when there are any and
// directly otherwise.
//
//	route ──retrieve?──▶ retrieve ──▶ generate ──▶ end
//	  └──────────────── direct ──────────▲
//
// Each node method has the graph.Node signature and can be registered as is.
package rag
