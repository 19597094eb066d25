// Copyright 2025 Kadir Pekel
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

// Package llm is the LLM Client: retries, response cache, JSON-repair loop,
// cost attribution and per-agent budgets, built on top of any provider
// honouring the Anthropic-compatible messages.create shape.
package llm

import "context"

// Usage is the token accounting for a single completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolUse is a tool-call emitted by the model, when the provider supports
// function calling. The core's Tool Executor never requires it; it's
// carried through for providers/tools that want it.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// Response is what Complete returns on success.
type Response struct {
	Content   string
	Usage     Usage
	LatencyMs int64
	ToolUse   []ToolUse
	Cached    bool
}

// Options configures a single Complete call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	AgentID     string
	SkipCache   bool
}

// Provider is the consumed LLMProvider interface: any provider
// honouring the Anthropic-compatible messages.create shape is acceptable.
// Concrete adapters (OpenAI-compatible, Gemini) live in this package's
// provider_*.go files.
type Provider interface {
	// Complete sends one completion request and returns raw text, usage,
	// and any tool calls the model chose to make.
	Complete(ctx context.Context, system, user string, opts Options) (Response, error)
}
