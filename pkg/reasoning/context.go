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

package reasoning

import (
	"context"
	"strings"

	contextengine "github.com/riskforge/agentcore/pkg/context"
	"github.com/riskforge/agentcore/pkg/knowledge"
	"github.com/riskforge/agentcore/pkg/memory"
)

// assembleContext gathers every available context source and hands them to
// the context engine. Short-term memory, RAG results, long-term memory and
// domain context are all best-effort: a retrieval error on any of them is
// recorded as a Source error, which the context engine then drops silently
// rather than failing the turn.
func (a *BaseAgent) assembleContext(ctx context.Context, input map[string]any) (contextengine.Assembled, error) {
	taskText := mustJSON(input)

	sources := []contextengine.Source{
		{Name: "system", Text: a.cfg.SystemPrompt},
		{Name: "task", Text: taskText},
	}

	if a.cfg.Memory != nil {
		if entries, err := a.cfg.Memory.GetShortTerm(ctx, a.cfg.AgentID, a.cfg.SessionID); err != nil {
			sources = append(sources, contextengine.Source{Name: "shortTermMemory", Err: err})
		} else {
			sources = append(sources, contextengine.Source{Name: "shortTermMemory", Text: renderShortTerm(entries)})
		}

		if entries, err := a.cfg.Memory.Query(ctx, a.cfg.AgentID, taskText, 5); err != nil {
			sources = append(sources, contextengine.Source{Name: "longTermMemory", Err: err})
		} else {
			sources = append(sources, contextengine.Source{Name: "longTermMemory", Text: renderLongTerm(entries)})
		}
	}

	if a.cfg.Knowledge != nil {
		results, err := a.cfg.Knowledge.Search(ctx, a.cfg.KnowledgeNamespace, taskText, 5)
		if err != nil {
			sources = append(sources, contextengine.Source{Name: "ragResults", Err: err})
		} else {
			sources = append(sources, contextengine.Source{Name: "ragResults", Text: renderRAGResults(results)})
		}
	}

	if a.cfg.DomainContext != nil {
		text, err := a.cfg.DomainContext(ctx, input)
		if err != nil {
			sources = append(sources, contextengine.Source{Name: "domainContext", Err: err})
		} else {
			sources = append(sources, contextengine.Source{Name: "domainContext", Text: text})
		}
	}

	budget := a.cfg.TokenBudget
	if budget <= 0 {
		budget = contextengine.DefaultBudget
	}
	return contextengine.Assemble(sources, contextengine.Options{Budget: budget}), nil
}

func renderShortTerm(entries []memory.ShortTermEntry) string {
	var lines []string
	for _, e := range entries {
		lines = append(lines, mustJSON(e.Entry))
	}
	return strings.Join(lines, "\n")
}

func renderLongTerm(entries []memory.LongTermEntry) string {
	var lines []string
	for _, e := range entries {
		lines = append(lines, mustJSON(e.Content))
	}
	return strings.Join(lines, "\n")
}

func renderRAGResults(results []knowledge.SearchResult) string {
	var lines []string
	for _, r := range results {
		lines = append(lines, r.Content)
	}
	return strings.Join(lines, "\n")
}
