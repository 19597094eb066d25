package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/kvstore"
)

// SystemAgent is the cost-tracker attribution bucket used when no agentId
// is supplied to a completion.
const SystemAgent = "SYSTEM"

// Pricing is the per-million-token USD rate for a model. Rates are
// approximate list prices; callers needing exact accounting should
// override via SetPricing.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Record is the per-agent running total.
type Record struct {
	InputTokens  int
	OutputTokens int
	TotalCostUsd float64
	Calls        int
	LastCallAtMs int64
}

// Budget bounds an agent's spend.
type Budget struct {
	MaxCostUsd     float64
	AlertThreshold float64 // fraction of MaxCostUsd, in [0,1]
}

// Tracker is the Cost Tracker: per-agent token -> USD conversion and budget
// alerts. recordCost increments are atomic; alert firing is idempotent
// per (agentId, kind) until the budget is reset.
type Tracker struct {
	mu       sync.Mutex
	clock    clock.Clock
	bus      eventbus.Bus
	pricing  map[string]Pricing
	records  map[string]*Record
	budgets  map[string]Budget
	alerted  map[string]map[string]bool // agentId -> kind -> fired
	global   Record
}

// NewTracker creates a cost tracker. bus may be nil, in which case budget
// alerts are computed but never published.
func NewTracker(clk clock.Clock, bus eventbus.Bus) *Tracker {
	return &Tracker{
		clock:   clk,
		bus:     bus,
		pricing: defaultPricing(),
		records: make(map[string]*Record),
		budgets: make(map[string]Budget),
		alerted: make(map[string]map[string]bool),
	}
}

func defaultPricing() map[string]Pricing {
	return map[string]Pricing{
		"claude-3-5-sonnet": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-3-haiku":    {InputPerMTok: 0.25, OutputPerMTok: 1.25},
		"gpt-4o":            {InputPerMTok: 2.5, OutputPerMTok: 10.0},
		"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.6},
		"gemini-1.5-pro":    {InputPerMTok: 1.25, OutputPerMTok: 5.0},
	}
}

// SetPricing overrides the per-million-token rate for a model.
func (t *Tracker) SetPricing(model string, p Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[model] = p
}

// SetBudget sets the spend budget for an agent and clears any alerts
// already fired for it, so a budget reset can re-trigger warnings.
func (t *Tracker) SetBudget(agentID string, b Budget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budgets[agentID] = b
	delete(t.alerted, agentID)
}

// RecordCost attributes a completion's token usage to agentID (or
// SystemAgent if empty), returning the fired alert kinds, if any
// ("budget_warning", "budget_exceeded").
func (t *Tracker) RecordCost(agentID, model string, usage Usage) []string {
	if agentID == "" {
		agentID = SystemAgent
	}

	t.mu.Lock()
	price := t.pricing[model]
	cost := float64(usage.InputTokens)/1_000_000*price.InputPerMTok +
		float64(usage.OutputTokens)/1_000_000*price.OutputPerMTok

	rec, ok := t.records[agentID]
	if !ok {
		rec = &Record{}
		t.records[agentID] = rec
	}
	rec.InputTokens += usage.InputTokens
	rec.OutputTokens += usage.OutputTokens
	rec.TotalCostUsd += cost
	rec.Calls++
	rec.LastCallAtMs = t.clock.Now()

	t.global.InputTokens += usage.InputTokens
	t.global.OutputTokens += usage.OutputTokens
	t.global.TotalCostUsd += cost
	t.global.Calls++
	t.global.LastCallAtMs = rec.LastCallAtMs

	total := rec.TotalCostUsd
	fired := t.checkBudgetLocked(agentID, total)
	t.mu.Unlock()

	for _, kind := range fired {
		if t.bus != nil {
			t.bus.Publish("agent:cost:"+kind, map[string]any{
				"agentId":      agentID,
				"totalCostUsd": total,
			})
		}
	}
	return fired
}

// checkBudgetLocked must be called with t.mu held.
func (t *Tracker) checkBudgetLocked(agentID string, total float64) []string {
	budget, ok := t.budgets[agentID]
	if !ok || budget.MaxCostUsd <= 0 {
		return nil
	}

	fired := t.alerted[agentID]
	if fired == nil {
		fired = make(map[string]bool)
		t.alerted[agentID] = fired
	}

	var kinds []string
	warnAt := budget.AlertThreshold * budget.MaxCostUsd
	if total >= warnAt && !fired["budget_warning"] {
		fired["budget_warning"] = true
		kinds = append(kinds, "budget_warning")
	}
	if total >= budget.MaxCostUsd && !fired["budget_exceeded"] {
		fired["budget_exceeded"] = true
		kinds = append(kinds, "budget_exceeded")
	}
	return kinds
}

// costPartition is the kvstore partition flushed cost records live under.
const costPartition = "GLOBAL"

// globalCostID is the id the process-wide total is flushed under.
const globalCostID = "GLOBAL"

// Flush writes a snapshot of every agent's record plus the global total
// through the KVStore facade. Updates may race the snapshot; whatever the
// next flush sees wins, so nothing is ever lost for longer than one flush
// interval.
func (t *Tracker) Flush(ctx context.Context, kv kvstore.Store) error {
	t.mu.Lock()
	snapshot := make(map[string]Record, len(t.records)+1)
	for agentID, rec := range t.records {
		snapshot[agentID] = *rec
	}
	snapshot[globalCostID] = t.global
	t.mu.Unlock()

	for id, rec := range snapshot {
		blob, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("llm: marshal cost record %s: %w", id, err)
		}
		if _, ok, _ := kv.GetByID(ctx, kvstore.TableCosts, costPartition, id); ok {
			if err := kv.Update(ctx, kvstore.TableCosts, costPartition, id, blob); err != nil {
				return fmt.Errorf("llm: flush cost record %s: %w", id, err)
			}
			continue
		}
		if err := kv.Insert(ctx, kvstore.TableCosts, costPartition, id, blob); err != nil {
			return fmt.Errorf("llm: flush cost record %s: %w", id, err)
		}
	}
	return nil
}

// RecordFor returns a copy of the current record for an agent.
func (t *Tracker) RecordFor(agentID string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[agentID]; ok {
		return *r
	}
	return Record{}
}

// Global returns a copy of the process-wide running total.
func (t *Tracker) Global() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global
}
