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

// Package runtime wires every collaborator package into one running
// instance: the KVStore facade, event bus, LLM client, memory, pattern and
// calibration stores, the knowledge base, observability, the specialized
// agents and the orchestrator that dispatches to them. Agents are looked
// up by id through the Coordinator rather than held as back-references, so
// nothing in this graph is cyclic: the Runtime is the single owner.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/riskforge/agentcore/pkg/agents"
	"github.com/riskforge/agentcore/pkg/autonomous"
	"github.com/riskforge/agentcore/pkg/calibration"
	"github.com/riskforge/agentcore/pkg/chunking"
	"github.com/riskforge/agentcore/pkg/circuit"
	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/knowledge"
	"github.com/riskforge/agentcore/pkg/kvstore"
	"github.com/riskforge/agentcore/pkg/llm"
	"github.com/riskforge/agentcore/pkg/memory"
	"github.com/riskforge/agentcore/pkg/messenger"
	"github.com/riskforge/agentcore/pkg/obs"
	"github.com/riskforge/agentcore/pkg/orchestrator"
	"github.com/riskforge/agentcore/pkg/pattern"
	"github.com/riskforge/agentcore/pkg/reasoning"
	"github.com/riskforge/agentcore/pkg/router"
	"github.com/riskforge/agentcore/pkg/selfcorrect"
	"github.com/riskforge/agentcore/pkg/toolexec"
)

// onboardingTaskType and policyEvolutionTaskType are the task types each
// specialized agent registers under in the Router, matching the "type"
// field their own scan input carries.
const (
	onboardingTaskType      = "seller-onboarding"
	policyEvolutionTaskType = "policy-evolution"
)

// ownedTables are the seven tables the core writes through the KVStore
// facade; EnsureTable is called for each one at startup when the backend
// is SQL-based.
var ownedTables = []string{
	kvstore.TableShortTermMemory,
	kvstore.TableLongTermMemory,
	kvstore.TableMetrics,
	kvstore.TableCosts,
	kvstore.TableDecisions,
	kvstore.TableCalibration,
	kvstore.TableFeedback,
}

// Runtime is every wired collaborator, reachable without holding a cyclic
// reference between agents and the orchestrator that dispatches to them.
type Runtime struct {
	cfg *Config

	Clock    clock.Clock
	KV       kvstore.Store
	Bus      eventbus.Bus
	Provider llm.Provider
	Cache    *llm.Cache
	Cost     *llm.Tracker
	LLM      *llm.Client

	Memory      *memory.Store
	Patterns    *pattern.Store
	Calibrator  *calibration.Calibrator
	SelfCorrect *selfcorrect.Tracker
	Knowledge   *knowledge.Store

	Breaker  *circuit.Breaker
	Executor *toolexec.Executor

	Metrics   *obs.Metrics
	Decisions *obs.DecisionLogger

	Onboarding      *agents.Onboarding
	PolicyEvolution *agents.PolicyEvolution

	Coordinator  *orchestrator.Coordinator
	Orchestrator *orchestrator.Orchestrator
	Router       *router.Router
	Messenger    *messenger.Messenger

	tracerShutdown func(context.Context) error
	cancelFlush    func()
}

// Option customizes a Runtime's construction, mainly for dependency
// injection in tests.
type Option func(*options)

type options struct {
	clock    clock.Clock
	bus      eventbus.Bus
	kv       kvstore.Store
	provider llm.Provider
}

// WithClock overrides the real clock, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithEventBus overrides the default in-process bus.
func WithEventBus(b eventbus.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithKVStore overrides the store New would otherwise build from
// cfg.Storage, for tests that want a shared in-memory store across
// multiple Runtimes.
func WithKVStore(kv kvstore.Store) Option {
	return func(o *options) { o.kv = kv }
}

// WithLLMProvider overrides the provider New would otherwise build from
// cfg.LLM, for tests that want a fake provider.
func WithLLMProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New builds a Runtime from cfg. Callers should call Load after New to
// hydrate every persisted store from kv, then Start to begin the
// autonomous agents' scan schedulers.
func New(cfg *Config, opts ...Option) (*Runtime, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	rt := &Runtime{cfg: cfg}

	rt.Clock = o.clock
	if rt.Clock == nil {
		rt.Clock = clock.New()
	}

	rt.Bus = o.bus
	if rt.Bus == nil {
		rt.Bus = eventbus.New()
	}

	kv, err := buildKVStore(cfg, o.kv)
	if err != nil {
		return nil, fmt.Errorf("runtime: build kv store: %w", err)
	}
	rt.KV = kv

	rt.Provider = o.provider
	if rt.Provider == nil {
		switch cfg.LLM.Provider {
		case "openai":
			rt.Provider = llm.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL)
		case "gemini":
			gemini, err := llm.NewGeminiProvider(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
			if err != nil {
				return nil, fmt.Errorf("runtime: build gemini provider: %w", err)
			}
			rt.Provider = gemini
		}
	}
	rt.Cache = llm.NewCache(rt.Clock, cfg.LLM.Cache.TTL, cfg.LLM.Cache.MaxEntries)
	rt.Cost = llm.NewTracker(rt.Clock, rt.Bus)
	rt.LLM = llm.NewClient(rt.Provider, rt.Cache, rt.Cost, rt.Clock)

	rt.Memory = memory.NewStore(rt.KV, rt.Clock)
	rt.Patterns = pattern.NewStore(rt.KV, rt.Clock, rt.Bus)
	rt.Calibrator = calibration.NewWithStore(rt.KV)
	rt.SelfCorrect = selfcorrect.New(rt.Clock)

	knowledgeStore, err := buildKnowledge(cfg, rt.Provider)
	if err != nil {
		return nil, fmt.Errorf("runtime: build knowledge store: %w", err)
	}
	rt.Knowledge = knowledgeStore

	rt.Metrics = obs.NewMetrics(cfg.Observability.Namespace)
	rt.Decisions = obs.NewDecisionLogger(rt.KV)

	rt.Breaker = circuit.New(rt.Clock)
	rt.Executor = toolexec.New(rt.Breaker, rt.Metrics, rt.Clock)

	onboarding, policyEvolution := rt.buildAgents(cfg)
	rt.Onboarding = onboarding
	rt.PolicyEvolution = policyEvolution

	rt.Coordinator = orchestrator.NewCoordinator(map[string]orchestrator.Agent{
		"onboarding":       agentAdapter{rt.Onboarding.Base},
		"policy-evolution": agentAdapter{rt.PolicyEvolution.Base},
	})
	rt.Orchestrator = orchestrator.New(rt.Coordinator)

	rt.Router = router.New()
	rt.Router.Register(onboardingTaskType, "onboarding")
	rt.Router.Register(policyEvolutionTaskType, "policy-evolution")

	rt.Messenger = messenger.New()
	rt.Messenger.Register("onboarding", rt.helpInbox("onboarding"))
	rt.Messenger.Register("policy-evolution", rt.helpInbox("policy-evolution"))

	return rt, nil
}

// helpInbox builds the Inbox a specialized agent registers with the
// Messenger: a HelpRequest addressed to agentID is answered by delegating
// its content to that agent's reasoning loop through the Coordinator, and
// the result is mailed back as a HelpResponse carrying the same
// correlation id. Any other message type is logged and dropped — the
// specialized agents don't otherwise consume inter-agent chatter.
func (rt *Runtime) helpInbox(agentID string) messenger.InboxFunc {
	return func(msg messenger.Message) {
		if msg.Type != messenger.HelpRequest {
			slog.Debug("runtime: inbox dropped non-help message", "agent_id", agentID, "type", msg.Type)
			return
		}
		input, _ := msg.Content.(map[string]any)
		if input == nil {
			input = map[string]any{"content": msg.Content}
		}
		ctx, cancel := context.WithTimeout(context.Background(), orchestrator.DefaultDispatchTimeout)
		defer cancel()

		results := rt.Coordinator.DispatchParallel(ctx, []string{agentID}, orchestrator.Task{
			Goal:  fmt.Sprintf("help request from %s", msg.From),
			Input: input,
		}, orchestrator.DefaultDispatchTimeout)

		response := messenger.Message{
			MessageID:     uuid.NewString(),
			From:          agentID,
			To:            msg.From,
			Type:          messenger.HelpResponse,
			CorrelationID: msg.CorrelationID,
		}
		if len(results) > 0 && results[0].Status == orchestrator.StatusCompleted {
			response.Content = results[0].Result
		} else {
			response.Content = fmt.Sprintf("agent %q could not help: %s", agentID, results[0].Status)
		}
		if err := rt.Messenger.Send(response); err != nil {
			slog.Warn("runtime: help response delivery failed", "agent_id", agentID, "error", err)
		}
	}
}

func buildKVStore(cfg *Config, override kvstore.Store) (kvstore.Store, error) {
	if override != nil {
		return override, nil
	}
	switch cfg.Storage.Backend {
	case "", "memory":
		return kvstore.NewInMemory(), nil
	case "sqlite3", "postgres", "mysql":
		sqlStore, err := kvstore.OpenSQL(cfg.Storage.Backend, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		ctx := context.Background()
		for _, table := range ownedTables {
			if err := sqlStore.EnsureTable(ctx, table); err != nil {
				return nil, err
			}
		}
		return sqlStore, nil
	default:
		return nil, fmt.Errorf("runtime: unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildKnowledge(cfg *Config, provider llm.Provider) (*knowledge.Store, error) {
	chunkCfg := chunking.Config{Size: cfg.Knowledge.ChunkSize, Overlap: cfg.Knowledge.ChunkOverlap}
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	chunker := chunking.New(chunkCfg)

	var vector knowledge.VectorSearch
	switch cfg.Knowledge.Backend {
	case "", "chromem":
		vector = knowledge.NewChromemBackend()
	case "qdrant":
		backend, err := knowledge.NewQdrantBackend(knowledge.QdrantConfig{
			Host:   cfg.Knowledge.Qdrant.Host,
			Port:   cfg.Knowledge.Qdrant.Port,
			APIKey: cfg.Knowledge.Qdrant.APIKey,
			UseTLS: cfg.Knowledge.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, err
		}
		vector = backend
	case "pinecone":
		backend, err := knowledge.NewPineconeBackend(knowledge.PineconeConfig{
			APIKey:    cfg.Knowledge.Pinecone.APIKey,
			Host:      cfg.Knowledge.Pinecone.Host,
			IndexName: cfg.Knowledge.Pinecone.IndexName,
		})
		if err != nil {
			return nil, err
		}
		vector = backend
	default:
		return nil, fmt.Errorf("runtime: unknown knowledge backend %q", cfg.Knowledge.Backend)
	}

	var embedder knowledge.Embedder
	if openai, ok := provider.(*llm.OpenAIProvider); ok && cfg.LLM.EmbeddingModel != "" {
		model := cfg.LLM.EmbeddingModel
		embedder = func(ctx context.Context, text string) ([]float32, error) {
			return openai.Embed(ctx, model, text)
		}
	}

	return knowledge.New(chunker, vector, embedder), nil
}

func (rt *Runtime) buildAgents(cfg *Config) (*agents.Onboarding, *agents.PolicyEvolution) {
	onboarding := agents.NewOnboarding(
		reasoning.Config{
			AgentID:     "onboarding",
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			LLM:         rt.LLM,
			Memory:      rt.Memory,
			Patterns:    rt.Patterns,
			Calibrator:  rt.Calibrator,
			SelfCorrect: rt.SelfCorrect,
			Knowledge:   rt.Knowledge,
			Executor:    rt.Executor,
			Metrics:     rt.Metrics,
			Decisions:   rt.Decisions,
			Bus:         rt.Bus,
			Clock:       rt.Clock,
			Autonomy:    autonomyThresholds(cfg),
		},
		autonomous.Config{
			ScanIntervalMs:             cfg.Agents.Onboarding.ScanInterval.Milliseconds(),
			EventAccelerationThreshold: cfg.Agents.Onboarding.EventAccelerationThreshold,
		},
	)

	policyEvolution := agents.NewPolicyEvolution(
		reasoning.Config{
			AgentID:     "policy-evolution",
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			LLM:         rt.LLM,
			Memory:     rt.Memory,
			Patterns:   rt.Patterns,
			Calibrator: rt.Calibrator,
			SelfCorrect: rt.SelfCorrect,
			Knowledge:  rt.Knowledge,
			Executor:   rt.Executor,
			Metrics:    rt.Metrics,
			Decisions:  rt.Decisions,
			Bus:        rt.Bus,
			Clock:      rt.Clock,
			Autonomy:   autonomyThresholds(cfg),
		},
		autonomous.Config{
			ScanIntervalMs:             cfg.Agents.PolicyEvolution.ScanInterval.Milliseconds(),
			EventAccelerationThreshold: cfg.Agents.PolicyEvolution.EventAccelerationThreshold,
		},
	)

	return onboarding, policyEvolution
}

func autonomyThresholds(cfg *Config) reasoning.Thresholds {
	return reasoning.Thresholds{
		AutoApproveMaxRisk: cfg.Autonomy.AutoApproveMaxRisk,
		AutoRejectMinRisk:  cfg.Autonomy.AutoRejectMinRisk,
		EscalateMinRisk:    cfg.Autonomy.EscalateMinRisk,
	}
}

// agentAdapter bridges a reasoning.BaseAgent (input/turnContext map-shaped
// Reason) to orchestrator.Agent (Task-shaped Reason), so the orchestrator
// package never has to import reasoning directly.
type agentAdapter struct {
	base *reasoning.BaseAgent
}

// Reason implements orchestrator.Agent.
func (a agentAdapter) Reason(ctx context.Context, task orchestrator.Task) (orchestrator.Result, error) {
	input := task.Input
	if input == nil {
		input = map[string]any{}
	}
	input["goal"] = task.Goal

	thought := a.base.Reason(ctx, input, nil)
	if thought.Error != "" {
		return orchestrator.Result{Success: false, Err: fmt.Errorf("%s", thought.Error)}, nil
	}
	return orchestrator.Result{
		Success:        thought.Result.Success,
		Recommendation: string(thought.Result.Recommendation),
		Confidence:     thought.Result.Confidence,
		Summary:        thought.Result.Summary,
		Data: map[string]any{
			"riskScore":   thought.Result.RiskScore,
			"keyFindings": thought.Result.KeyFindings,
			"traceId":     thought.TraceID,
		},
	}, nil
}

// Load hydrates every persisted store from kv: pattern memory, the
// calibrator and the decision log. Call once after New, before Start.
func (rt *Runtime) Load(ctx context.Context) error {
	if err := rt.Patterns.Load(ctx); err != nil {
		return fmt.Errorf("runtime: load patterns: %w", err)
	}
	if err := rt.Calibrator.Load(ctx); err != nil {
		return fmt.Errorf("runtime: load calibrator: %w", err)
	}
	if err := rt.Decisions.Load(ctx); err != nil {
		return fmt.Errorf("runtime: load decisions: %w", err)
	}

	shutdown, err := obs.InitTracer(ctx, obs.TracerConfig{
		Enabled:     rt.cfg.Observability.Tracing.Enabled,
		ServiceName: rt.cfg.Observability.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("runtime: init tracer: %w", err)
	}
	rt.tracerShutdown = shutdown
	return nil
}

// flushInterval is how often cost and metric snapshots are written through
// the KVStore facade while the runtime is running.
const flushInterval = time.Minute

// Start begins every enabled specialized agent's autonomous scan
// scheduler and arms the periodic cost/metrics snapshot flush. Each runs
// until Stop or ctx cancellation.
func (rt *Runtime) Start(ctx context.Context) {
	if rt.cfg.Agents.Onboarding.Enabled {
		rt.Onboarding.Scanner.Start(ctx)
	}
	if rt.cfg.Agents.PolicyEvolution.Enabled {
		rt.PolicyEvolution.Scanner.Start(ctx)
	}
	if rt.cancelFlush == nil {
		rt.cancelFlush = rt.Clock.SetInterval(func() { rt.FlushSnapshots(ctx) }, flushInterval)
	}
}

// FlushSnapshots writes the current cost and metrics snapshots through the
// KVStore facade. Start arms it on a timer; it is also safe to call
// directly (e.g. during shutdown).
func (rt *Runtime) FlushSnapshots(ctx context.Context) {
	if err := rt.Cost.Flush(ctx, rt.KV); err != nil {
		slog.Warn("runtime: cost snapshot flush failed", "error", err)
	}
	if err := rt.Metrics.Flush(ctx, rt.KV); err != nil {
		slog.Warn("runtime: metrics snapshot flush failed", "error", err)
	}
}

// Stop halts every running scan scheduler and the snapshot flush timer.
func (rt *Runtime) Stop() {
	rt.Onboarding.Scanner.Stop()
	rt.PolicyEvolution.Scanner.Stop()
	if rt.cancelFlush != nil {
		rt.cancelFlush()
		rt.cancelFlush = nil
	}
}

// Close releases resources that outlive a single reasoning call: the
// tracer's exporter and, for SQL-backed storage, the database connection.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.tracerShutdown != nil {
		if err := rt.tracerShutdown(ctx); err != nil {
			return fmt.Errorf("runtime: shutdown tracer: %w", err)
		}
	}
	if closer, ok := rt.KV.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("runtime: close storage: %w", err)
		}
	}
	return nil
}
