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

// Package retrieval scores a ranked result list against a set of known
// relevant IDs: hit-rate, mean reciprocal rank, and NDCG@k, the standard
// trio for judging whether pkg/ranking and pkg/knowledge are actually
// surfacing what a query needs.
package retrieval

import "math"

// Result is one evaluation over a single ranked list.
type Result struct {
	HitRate float64
	MRR     float64
	NDCG    float64
	K       int
}

// Evaluate scores ranked (ordered best-first, truncated to k before scoring)
// against relevant, the set of IDs that should have been retrieved.
func Evaluate(ranked []string, relevant map[string]bool, k int) Result {
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	top := ranked[:k]

	return Result{
		HitRate: hitRate(top, relevant),
		MRR:     reciprocalRank(top, relevant),
		NDCG:    ndcg(top, relevant),
		K:       k,
	}
}

// hitRate is the fraction of relevant IDs that appear anywhere in top.
func hitRate(top []string, relevant map[string]bool) float64 {
	if len(relevant) == 0 {
		return 0
	}
	found := 0
	seen := make(map[string]bool, len(top))
	for _, id := range top {
		seen[id] = true
	}
	for id := range relevant {
		if seen[id] {
			found++
		}
	}
	return float64(found) / float64(len(relevant))
}

// reciprocalRank is 1/rank of the first relevant ID in top, or 0 if none
// appear.
func reciprocalRank(top []string, relevant map[string]bool) float64 {
	for i, id := range top {
		if relevant[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// ndcg is normalized discounted cumulative gain over top, with binary
// relevance gains (1 for a relevant ID, 0 otherwise).
func ndcg(top []string, relevant map[string]bool) float64 {
	dcg := 0.0
	for i, id := range top {
		if relevant[id] {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}

	idealHits := len(relevant)
	if idealHits > len(top) {
		idealHits = len(top)
	}
	idcg := 0.0
	for i := 0; i < idealHits; i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}
