// Package gemini implements ai.ChatModel on Google Gemini using
// google.golang.org/genai.
//
// System messages become the request's system instruction; human and AI
// messages become user and model turns. Embeddings are not served by Gemini
// here: the provider pairs the Gemini chat model with the OpenAI-compatible
// embedder so the passage index keeps one embedding space.
package gemini
