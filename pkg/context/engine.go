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

// Package context assembles the prompt an agent's reasoning turn runs
// against: system prompt, task, short-term memory, knowledge-base results,
// long-term memory, and domain context, each protected by its own token
// ceiling and an optional global TF-IDF rerank pass over everything
// combined.
package context

import (
	"fmt"
	"strings"

	"github.com/riskforge/agentcore/pkg/ranking"
)

// charsPerToken is the fallback token estimate used only when the tiktoken
// encoding couldn't be loaded (see tokens.go).
const charsPerToken = 4

// DefaultBudget is the total token budget assembleContext targets absent an
// explicit override.
const DefaultBudget = 4000

// sourceSpec is one row of the source priority table: lower Priority means
// more protected (included first, truncated least willingly).
type sourceSpec struct {
	Name       string
	Priority   int
	MaxTokens  int
	BestEffort bool // true: skip silently on error; false: include the text even when Err is set
}

var sourceOrder = []sourceSpec{
	{Name: "system", Priority: 1, MaxTokens: 200, BestEffort: false},
	{Name: "task", Priority: 2, MaxTokens: 500, BestEffort: false},
	{Name: "shortTermMemory", Priority: 3, MaxTokens: 500, BestEffort: true},
	{Name: "ragResults", Priority: 4, MaxTokens: 800, BestEffort: true},
	{Name: "longTermMemory", Priority: 5, MaxTokens: 400, BestEffort: true},
	{Name: "domainContext", Priority: 6, MaxTokens: 300, BestEffort: true},
}

// Source is one named piece of raw content a caller wants included, plus
// the error (if any) that occurred producing it.
type Source struct {
	Name string
	Text string
	Err  error
}

// Section is one source after truncation to its ceiling.
type Section struct {
	Name       string
	Text       string
	TokenCount int
}

// Options configures one assembleContext call.
type Options struct {
	// Budget is the total token budget. DefaultBudget if zero.
	Budget int
	// Rerank turns on the global TF-IDF rerank + greedy allocation pass
	// across every source's content, instead of each source simply being
	// truncated to its own ceiling independently.
	Rerank bool
	// Query drives the rerank pass; required when Rerank is true.
	Query string
}

// Assembled is assembleContext's result.
type Assembled struct {
	Prompt     string
	Sections   []Section
	Sources    []string // names of sources that ended up included
	TokenCount int
}

// Assemble builds a prompt from sources honoring each source's per-name
// ceiling (best-effort sources are dropped silently on error, not failed),
// then either formats every truncated section directly or, when
// opts.Rerank is set, reranks every source's content as competing items
// and greedily allocates opts.Budget (or DefaultBudget) across them with
// system+task reserved first.
func Assemble(sources []Source, opts Options) Assembled {
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	bySourceName := make(map[string]Source, len(sources))
	for _, s := range sources {
		bySourceName[s.Name] = s
	}

	var truncated []Section
	for _, spec := range sourceOrder {
		src, ok := bySourceName[spec.Name]
		if !ok || src.Text == "" {
			continue
		}
		if src.Err != nil {
			if spec.BestEffort {
				continue
			}
		}
		text := truncateToTokens(src.Text, spec.MaxTokens)
		truncated = append(truncated, Section{Name: spec.Name, Text: text, TokenCount: estimateTokens(text)})
	}

	if opts.Rerank {
		return assembleWithRerank(truncated, opts.Query, budget)
	}
	return assembleDirect(truncated)
}

func assembleDirect(sections []Section) Assembled {
	var sb strings.Builder
	var sourceNames []string
	total := 0
	for _, sec := range sections {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", sec.Name, sec.Text)
		sourceNames = append(sourceNames, sec.Name)
		total += sec.TokenCount
	}
	return Assembled{Prompt: sb.String(), Sections: sections, Sources: sourceNames, TokenCount: total}
}

// assembleWithRerank reserves system+task tokens, then reranks every other
// section's content against query and greedily allocates the remaining
// budget across them.
func assembleWithRerank(sections []Section, query string, budget int) Assembled {
	var reserved []Section
	var competing []Section
	reservedTokens := 0
	for _, sec := range sections {
		if sec.Name == "system" || sec.Name == "task" {
			reserved = append(reserved, sec)
			reservedTokens += sec.TokenCount
			continue
		}
		competing = append(competing, sec)
	}

	candidates := make([]ranking.Candidate, len(competing))
	for i, sec := range competing {
		candidates[i] = ranking.Candidate{ID: sec.Name, Content: sec.Text, TokenCount: sec.TokenCount}
	}
	scored := ranking.New().Rank(query, candidates)
	alloc := ranking.Allocate(scored, budget, reservedTokens)

	allocatedByName := make(map[string]bool, len(alloc.Items))
	for _, a := range alloc.Items {
		allocatedByName[a.ID] = true
	}

	var finalSections []Section
	var sourceNames []string
	total := reservedTokens
	for _, sec := range reserved {
		finalSections = append(finalSections, sec)
		sourceNames = append(sourceNames, sec.Name)
	}
	// Preserve source-priority order among the allocated competing sections
	// rather than rerank-score order, so assembled prompts read system →
	// task → memory → rag → ... consistently.
	for _, sec := range competing {
		if !allocatedByName[sec.Name] {
			continue
		}
		finalSections = append(finalSections, sec)
		sourceNames = append(sourceNames, sec.Name)
		total += sec.TokenCount
	}

	var sb strings.Builder
	for _, sec := range finalSections {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", sec.Name, sec.Text)
	}
	return Assembled{Prompt: sb.String(), Sections: finalSections, Sources: sourceNames, TokenCount: total}
}

