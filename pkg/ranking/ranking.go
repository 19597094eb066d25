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

// Package ranking reranks retrieved candidates against a query by TF-IDF
// cosine similarity, and greedily packs the highest-scoring candidates into
// a fixed token budget. Unlike the LLM-based reranking an agent's
// context engine might also reach for, this ranker never makes a network
// call: it runs on every context assembly, not just the expensive ones.
package ranking

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Candidate is one piece of text competing for a slot in the assembled
// context.
type Candidate struct {
	ID         string
	Content    string
	TokenCount int
}

// Scored pairs a Candidate with its similarity to the query.
type Scored struct {
	Candidate
	Score float64
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are dropped before scoring so high-frequency function words
// never dominate a similarity score.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "it": true, "in": true,
	"on": true, "at": true, "to": true, "of": true, "for": true, "and": true,
	"or": true, "but": true, "not": true, "with": true, "by": true, "from": true,
	"as": true, "be": true, "was": true, "were": true, "are": true, "been": true,
	"has": true, "had": true, "have": true, "do": true, "will": true, "would": true,
	"could": true, "should": true, "this": true, "that": true, "these": true, "those": true,
}

func tokenize(s string) []string {
	all := tokenRe.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if len(t) > 1 && !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// Ranker scores and selects candidates using TF-IDF cosine similarity
// against a query, computing IDF across the candidate pool itself (there is
// no separate corpus to draw document frequencies from).
type Ranker struct{}

// New builds a Ranker.
func New() *Ranker { return &Ranker{} }

// Rank scores every candidate against query and returns them sorted by
// descending score. Candidates that share no terms with the query score 0
// and are still included, at the end of the list.
func (r *Ranker) Rank(query string, candidates []Candidate) []Scored {
	if len(candidates) == 0 {
		return nil
	}

	docTokens := make([][]string, len(candidates))
	for i, c := range candidates {
		docTokens[i] = tokenize(c.Content)
	}
	idf := documentFrequencies(docTokens)

	queryVec := tfidfVector(tokenize(query), idf)

	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		docVec := tfidfVector(docTokens[i], idf)
		out[i] = Scored{Candidate: c, Score: cosineSimilarity(queryVec, docVec)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Allocation is the outcome of packing scored candidates into a token
// budget: which items made it, which were dropped for lack of room, and
// how the budget was spent.
type Allocation struct {
	Items            []Scored
	Dropped          []Scored
	TotalTokens      int
	GuaranteedTokens int
	RemainingBudget  int
}

// Allocate greedily packs scored candidates (assumed already sorted by
// descending score, as Rank returns them) into budget tokens, after
// reserving guaranteed tokens off the top for content the caller always
// includes (system prompt, task). A candidate that wouldn't fit is dropped
// in favor of a smaller one further down the list.
func Allocate(scored []Scored, budget, guaranteed int) Allocation {
	remaining := budget - guaranteed
	if remaining < 0 {
		remaining = 0
	}
	alloc := Allocation{GuaranteedTokens: guaranteed}
	for _, s := range scored {
		cost := s.TokenCount
		if cost <= 0 {
			cost = len(tokenize(s.Content))
		}
		if cost <= remaining {
			alloc.Items = append(alloc.Items, s)
			alloc.TotalTokens += cost
			remaining -= cost
		} else {
			alloc.Dropped = append(alloc.Dropped, s)
		}
	}
	alloc.RemainingBudget = remaining
	return alloc
}

func documentFrequencies(docs [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool, len(doc))
		for _, t := range doc {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log(n/float64(count)) + 1
	}
	return idf
}

func tfidfVector(tokens []string, idf map[string]float64) map[string]float64 {
	tf := make(map[string]float64)
	for _, t := range tokens {
		tf[t]++
	}
	total := float64(len(tokens))
	vec := make(map[string]float64, len(tf))
	for term, count := range tf {
		termFreq := count / math.Max(total, 1)
		vec[term] = termFreq * idf[term]
	}
	return vec
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, va := range a {
		normA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
