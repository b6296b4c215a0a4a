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


// Package ai defines the language-model collaborators used by ragchat.
//
// The conversation graph depends only on the interfaces declared here:
//
//   - ChatModel: turns a message sequence into a reply
//   - Embedder: turns text into vectors for the passage index
//   - AIProvider: owns a ChatModel and an Embedder that share configuration
//
// # Implementation Packages
//
//   - ai/openai: any OpenAI-compatible endpoint (OpenAI, Ollama, vLLM) via langchaingo
//   - ai/gemini: Google Gemini chat via google.golang.org/genai
//   - ai/mock: test doubles with call recording and injectable behavior
//
// Public constructors return interfaces (openai.NewProvider returns
// ai.AIProvider). Mock constructors return concrete types so tests can
// inspect calls and swap behavior.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	reply, err := provider.ChatModel().Invoke(ctx, []ai.Message{
//	    ai.HumanMessage("What is a vector index?"),
//	})
package ai
