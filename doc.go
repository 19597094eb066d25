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

// Package agentcore is the reasoning runtime for a fraud-and-risk
// decisioning platform.
//
// It runs autonomous agents that evaluate sellers, transactions, alerts,
// and policy rules by composing tool calls, LLM completions, and learned
// memory into auditable decisions. The core is a library, not a service:
// an HTTP/WebSocket gateway, a dashboard, CRUD services for sellers and
// rules, and the concrete fraud-domain tools are all external collaborators
// the core consumes through narrow interfaces.
//
// # Reasoning turn
//
// Every agent executes the same five-phase loop on each call to Reason:
//
//	Think -> Plan -> Act -> Observe -> Reflect -> Learn
//
// Think and Observe fall back to deterministic, rule-based behavior when no
// LLM is configured; Plan falls back to a single analyze action; Reflect is
// optional and runs at most once per turn.
//
// # Package layout
//
//	pkg/runtime      Runtime: the single construction point wiring every component
//	pkg/clock        injectable monotonic clock + timers
//	pkg/eventbus     in-process publish/subscribe with suffix wildcards
//	pkg/kvstore      KVStore facade contract + in-memory and SQL reference adapters
//	pkg/llm          LLM client: retries, cache, JSON-repair, cost tracking
//	pkg/memory       short-term (session, TTL) and long-term (importance) memory
//	pkg/knowledge    namespaced document/chunk store with text + vector search
//	pkg/pattern      feature -> outcome pattern memory, reinforcement and matching
//	pkg/chunking     sentence-aware text splitting with overlap
//	pkg/ranking      TF-IDF scoring and greedy token-budget allocation
//	pkg/context      context assembly: memory + retrieval + ranking -> prompt
//	pkg/calibration  bucketed confidence calibration
//	pkg/selfcorrect  prediction logging and accuracy-drop detection
//	pkg/retrieval    hit-rate / MRR / NDCG@k evaluation
//	pkg/circuit      per-(agent,tool) circuit breaker
//	pkg/toolexec     uniform tool invocation with tracing and metrics
//	pkg/obs          metrics, trace spans, decision logger
//	pkg/messenger    inbox routing, help-request correlation, broadcast
//	pkg/consensus    majority / unanimous / weighted voting sessions
//	pkg/router       capability + load + success-rate scored agent selection
//	pkg/orchestrator workflow execution, parallel dispatch, delegation, consensus
//	pkg/reasoning    BaseAgent: the five-phase reasoning loop
//	pkg/autonomous   AutonomousAgent: event buffer + interval scan scheduler
//	pkg/prompts      typed prompt builders and their JSON schemas
//	pkg/agents       specialized domain agents (onboarding, policy evolution)
//
// # License
//
// Apache-2.0 - see LICENSE for details.
package agentcore
