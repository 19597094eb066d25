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

// Package pattern is Pattern Memory: it learns feature -> outcome patterns
// from observed cases, reinforces them as more evidence arrives, and
// matches new cases against what it has learned to recommend an action.
package pattern

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Outcome is the label a pattern was learned from.
type Outcome string

const (
	FraudConfirmed      Outcome = "FRAUD_CONFIRMED"
	LegitimateConfirmed Outcome = "LEGITIMATE_CONFIRMED"
	Suspicious          Outcome = "SUSPICIOUS"
	FalsePositive       Outcome = "FALSE_POSITIVE"
)

// Recommendation is the action a matched outcome maps to.
type Recommendation string

const (
	Approve Recommendation = "APPROVE"
	Review  Recommendation = "REVIEW"
	Block   Recommendation = "BLOCK"
)

var outcomeRecommendation = map[Outcome]Recommendation{
	FraudConfirmed:      Block,
	Suspicious:          Review,
	LegitimateConfirmed: Approve,
	FalsePositive:       Approve,
}

const (
	minConfidence = 0.10
	maxConfidence = 0.99
	// similarityThreshold is the minimum feature overlap for Learn
	// to reinforce an existing pattern instead of creating a new one.
	similarityThreshold = 0.7
	// numericTolerance bounds the relative difference a numeric feature
	// comparison still scores partial credit for.
	numericTolerance = 0.2
)

// Pattern is a learned (features -> outcome) rule.
type Pattern struct {
	PatternID        string
	Type             string
	Features         map[string]any
	Outcome          Outcome
	Confidence       float64
	Occurrences      int
	Reinforcements   int
	SuccessRate      float64
	TotalValidations int
	CreatedAt        int64
	UpdatedAt        int64
	Source           string
}

// LearnInput is the input to Learn.
type LearnInput struct {
	Type       string
	Features   map[string]any
	Outcome    Outcome
	Confidence float64
	Source     string
}

// Match is one scored pattern against a case's features.
type Match struct {
	Pattern *Pattern
	Score   float64
}

// MatchResult is the result of matching a case's features against every
// learned pattern.
type MatchResult struct {
	Matches        []Match
	TotalMatched   int
	Recommendation Recommendation
}

func isPositiveOutcome(o Outcome) bool {
	return o == FraudConfirmed || o == LegitimateConfirmed
}

func clampConfidence(c float64) float64 {
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// normalizeFeatureKey renders a feature/value pair into an index key:
// bool -> "true"/"false"; number -> nearest multiple of 10; string ->
// trimmed + lowercased.
func normalizeFeatureKey(name string, value any) string {
	return fmt.Sprintf("%s:%s", name, normalizeFeatureValue(value))
}

func normalizeFeatureValue(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		bucket := math.Round(v/10) * 10
		return strconv.FormatFloat(bucket, 'f', -1, 64)
	case int:
		return normalizeFeatureValue(float64(v))
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// newPatternID returns a fresh PATTERN-<uuid> identifier.
func newPatternID() string {
	return "PATTERN-" + uuid.NewString()
}

// toFloat coerces a case feature value to float64 for numeric/range
// comparison, accepting the json.Unmarshal-produced float64 as well as a
// plain int for callers that build features by hand.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// featureScore compares a single learned feature value against the
// corresponding value on a case being matched and returns a 0..1 score:
//   - bool/string: exact match (case-insensitive, trimmed for strings)
//   - number: 1 - diff/tolerance where tolerance = numericTolerance *
//     |patternValue|, scored 0 once diff exceeds that tolerance
//   - range {"min":_, "max":_}: 1 when the case value falls in [min,max],
//     else 0
func featureScore(patternValue, caseValue any) float64 {
	switch pv := patternValue.(type) {
	case bool:
		cv, ok := caseValue.(bool)
		if !ok {
			return 0
		}
		if pv == cv {
			return 1
		}
		return 0
	case string:
		cv, ok := caseValue.(string)
		if !ok {
			return 0
		}
		if strings.EqualFold(strings.TrimSpace(pv), strings.TrimSpace(cv)) {
			return 1
		}
		return 0
	case int:
		return featureScore(float64(pv), caseValue)
	case map[string]any:
		lo, hasLo := toFloat(pv["min"])
		hi, hasHi := toFloat(pv["max"])
		if !hasLo || !hasHi {
			return 0
		}
		cv, ok := toFloat(caseValue)
		if !ok {
			return 0
		}
		if cv >= lo && cv <= hi {
			return 1
		}
		return 0
	case float64:
		cv, ok := toFloat(caseValue)
		if !ok {
			return 0
		}
		diff := math.Abs(pv - cv)
		tolerance := numericTolerance * math.Abs(pv)
		if tolerance == 0 {
			if diff == 0 {
				return 1
			}
			return 0
		}
		if diff > tolerance {
			return 0
		}
		return 1 - diff/tolerance
	default:
		return 0
	}
}

// weightedFeatureScore is spec's matchPatterns scoring: the sum of every
// patternFeatures entry's featureScore against the matching case feature
// (0 when the case lacks that feature), divided by |patternFeatures|.
// Unlike featureOverlap (Jaccard over bucketed index keys, used only for
// Learn's duplicate probe), this compares raw feature values directly so a
// numeric feature a little off its learned value still scores partial
// credit instead of falling into a different index bucket.
func weightedFeatureScore(patternFeatures, caseFeatures map[string]any) float64 {
	if len(patternFeatures) == 0 {
		return 0
	}
	var sum float64
	for name, pv := range patternFeatures {
		cv, ok := caseFeatures[name]
		if !ok {
			continue
		}
		sum += featureScore(pv, cv)
	}
	return sum / float64(len(patternFeatures))
}
