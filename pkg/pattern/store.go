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

package pattern

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/kvstore"
)

// globalPartition is the kvstore partition key patterns are written under:
// patterns are cross-agent knowledge, not scoped to the agent that learned
// them.
const globalPartition = "GLOBAL"

// Store is Pattern Memory. It keeps an in-process index for matching and
// persists every pattern through the KVStore facade so it survives restarts.
type Store struct {
	mu    sync.RWMutex
	kv    kvstore.Store
	clock clock.Clock
	bus   eventbus.Bus

	patterns  map[string]*Pattern
	byType    map[string][]string
	byFeature map[string][]string
	byOutcome map[Outcome][]string
}

// NewStore builds an empty Pattern Memory. Call Load to hydrate it from kv.
func NewStore(kv kvstore.Store, clk clock.Clock, bus eventbus.Bus) *Store {
	return &Store{
		kv:        kv,
		clock:     clk,
		bus:       bus,
		patterns:  make(map[string]*Pattern),
		byType:    make(map[string][]string),
		byFeature: make(map[string][]string),
		byOutcome: make(map[Outcome][]string),
	}
}

// Load rebuilds the in-process index from whatever was previously persisted.
func (s *Store) Load(ctx context.Context) error {
	blobs, err := s.kv.GetAll(ctx, kvstore.TableLongTermMemory, 0, 0)
	if err != nil {
		return fmt.Errorf("pattern: load: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, blob := range blobs {
		var p Pattern
		if err := json.Unmarshal(blob, &p); err != nil || p.PatternID == "" {
			continue
		}
		s.indexLocked(&p)
	}
	return nil
}

// indexLocked adds or replaces p in every index. Must hold s.mu.
func (s *Store) indexLocked(p *Pattern) {
	if _, exists := s.patterns[p.PatternID]; !exists {
		s.byType[p.Type] = append(s.byType[p.Type], p.PatternID)
		s.byOutcome[p.Outcome] = append(s.byOutcome[p.Outcome], p.PatternID)
		for name, value := range p.Features {
			key := normalizeFeatureKey(name, value)
			s.byFeature[key] = append(s.byFeature[key], p.PatternID)
		}
	}
	s.patterns[p.PatternID] = p
}

func (s *Store) persist(ctx context.Context, p *Pattern) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("pattern: marshal: %w", err)
	}
	if _, ok, _ := s.kv.GetByID(ctx, kvstore.TableLongTermMemory, globalPartition, p.PatternID); ok {
		return s.kv.Update(ctx, kvstore.TableLongTermMemory, globalPartition, p.PatternID, blob)
	}
	return s.kv.Insert(ctx, kvstore.TableLongTermMemory, globalPartition, p.PatternID, blob)
}

// Learn records a new observation. If an existing pattern of the same type
// and outcome shares at least similarityThreshold of its normalized feature
// keys with in, that pattern is reinforced instead of a duplicate being
// created.
func (s *Store) Learn(ctx context.Context, in LearnInput) (*Pattern, bool, error) {
	s.mu.Lock()
	candidate := s.bestMatchLocked(in.Type, in.Outcome, in.Features)
	s.mu.Unlock()

	if candidate != nil {
		reinforced, err := s.Reinforce(ctx, candidate.PatternID, in.Outcome, in.Confidence)
		return reinforced, true, err
	}

	now := s.clock.Now()
	p := &Pattern{
		PatternID:        newPatternID(),
		Type:             in.Type,
		Features:         in.Features,
		Outcome:          in.Outcome,
		Confidence:       clampConfidence(in.Confidence),
		Occurrences:      1,
		TotalValidations: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
		Source:           in.Source,
	}
	// The learning observation itself counts as the first validation: a
	// confirmed outcome starts successful, an unconfirmed one (suspicious,
	// false positive) starts at zero until feedback raises it.
	if isPositiveOutcome(in.Outcome) {
		p.SuccessRate = 1.0
	}

	s.mu.Lock()
	s.indexLocked(p)
	s.mu.Unlock()

	if err := s.persist(ctx, p); err != nil {
		return nil, false, err
	}
	if s.bus != nil {
		s.bus.Publish("pattern:learned", p)
	}
	return p, false, nil
}

// bestMatchLocked returns the highest-overlap existing pattern of the same
// type and outcome whose overlap with features meets similarityThreshold,
// or nil. Must hold s.mu (read or write).
func (s *Store) bestMatchLocked(typ string, outcome Outcome, features map[string]any) *Pattern {
	var best *Pattern
	var bestScore float64
	for _, id := range s.byType[typ] {
		p := s.patterns[id]
		if p == nil || p.Outcome != outcome {
			continue
		}
		score := featureOverlap(p.Features, features)
		if score >= similarityThreshold && score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

// featureOverlap is the Jaccard similarity of the two feature sets'
// normalized keys.
func featureOverlap(a, b map[string]any) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setA := make(map[string]bool, len(a))
	for name, value := range a {
		setA[normalizeFeatureKey(name, value)] = true
	}
	setB := make(map[string]bool, len(b))
	for name, value := range b {
		setB[normalizeFeatureKey(name, value)] = true
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Reinforce blends a pattern's confidence with newConfidence
// (0.7*old + 0.3*new, clamped to [0.10, 0.99]), counts the reinforcing
// observation as a validation, and folds its outcome into the
// running-mean success rate.
func (s *Store) Reinforce(ctx context.Context, patternID string, outcome Outcome, newConfidence float64) (*Pattern, error) {
	s.mu.Lock()
	p, ok := s.patterns[patternID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("pattern: %s not found", patternID)
	}
	p.Confidence = clampConfidence(0.7*p.Confidence + 0.3*newConfidence)
	p.Occurrences++
	p.Reinforcements++
	observed := 0.0
	if isPositiveOutcome(outcome) {
		observed = 1.0
	}
	p.SuccessRate = (p.SuccessRate*float64(p.TotalValidations) + observed) / float64(p.TotalValidations+1)
	p.TotalValidations++
	p.UpdatedAt = s.clock.Now()
	clone := *p
	s.mu.Unlock()

	if err := s.persist(ctx, &clone); err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.Publish("pattern:reinforced", &clone)
	}
	return &clone, nil
}

// ProvideFeedback records whether a pattern's recommendation was correct,
// updating its running-mean successRate and nudging confidence up 5% (capped
// at maxConfidence) or down 10% (floored at minConfidence).
func (s *Store) ProvideFeedback(ctx context.Context, patternID string, wasCorrect bool) (*Pattern, error) {
	s.mu.Lock()
	p, ok := s.patterns[patternID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("pattern: %s not found", patternID)
	}
	outcome := 0.0
	if wasCorrect {
		outcome = 1.0
		p.Confidence = clampConfidence(p.Confidence * 1.05)
	} else {
		p.Confidence = clampConfidence(p.Confidence * 0.9)
	}
	p.SuccessRate = (p.SuccessRate*float64(p.TotalValidations) + outcome) / float64(p.TotalValidations+1)
	p.TotalValidations++
	p.UpdatedAt = s.clock.Now()
	clone := *p
	s.mu.Unlock()

	if err := s.persist(ctx, &clone); err != nil {
		return nil, err
	}
	if err := s.persistFeedback(ctx, patternID, wasCorrect); err != nil {
		return nil, err
	}
	return &clone, nil
}

// feedbackRecord is one audit row of ground truth applied to a pattern.
type feedbackRecord struct {
	FeedbackID string `json:"feedbackId"`
	PatternID  string `json:"patternId"`
	WasCorrect bool   `json:"wasCorrect"`
	RecordedAt int64  `json:"recordedAt"`
}

func (s *Store) persistFeedback(ctx context.Context, patternID string, wasCorrect bool) error {
	rec := feedbackRecord{
		FeedbackID: uuid.NewString(),
		PatternID:  patternID,
		WasCorrect: wasCorrect,
		RecordedAt: s.clock.Now(),
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("pattern: marshal feedback: %w", err)
	}
	if err := s.kv.Insert(ctx, kvstore.TableFeedback, globalPartition, rec.FeedbackID, blob); err != nil {
		return fmt.Errorf("pattern: persist feedback: %w", err)
	}
	return nil
}

// maxMatches caps the matches MatchResult returns, highest-ranked first.
const maxMatches = 10

// Match scores every pattern of typ (all types if typ is empty) against
// features, using spec's per-feature weighted scoring (weightedFeatureScore),
// and returns a weighted-majority recommendation over at most maxMatches
// top-scored matches.
func (s *Store) Match(typ string, features map[string]any) MatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byType[typ]
	if typ == "" {
		ids = nil
		for id := range s.patterns {
			ids = append(ids, id)
		}
	}

	var matches []Match
	for _, id := range ids {
		p := s.patterns[id]
		if p == nil {
			continue
		}
		score := weightedFeatureScore(p.Features, features)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Pattern: p, Score: score})
	}
	// Score stays the raw feature similarity; ranking additionally weighs
	// how trusted and how validated each pattern is.
	sort.Slice(matches, func(i, j int) bool { return rankWeight(matches[i]) > rankWeight(matches[j]) })

	totalMatched := len(matches)
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	return MatchResult{
		Matches:        matches,
		TotalMatched:   totalMatched,
		Recommendation: weightedRecommendation(matches),
	}
}

// rankWeight is the sort key for matches: feature similarity weighted by
// the pattern's confidence and validated success rate.
func rankWeight(m Match) float64 {
	return m.Score * m.Pattern.Confidence * m.Pattern.SuccessRate
}

// weightedRecommendation runs a weighted-majority vote over matches, keyed
// by the recommendation each match's pattern outcome implies. Review is the
// safe default when nothing matched.
func weightedRecommendation(matches []Match) Recommendation {
	if len(matches) == 0 {
		return Review
	}
	weights := make(map[Recommendation]float64)
	for _, m := range matches {
		rec, ok := outcomeRecommendation[m.Pattern.Outcome]
		if !ok {
			rec = Review
		}
		weights[rec] += rankWeight(m)
	}

	var best Recommendation = Review
	var bestWeight float64 = -1
	for rec, w := range weights {
		if w > bestWeight {
			best, bestWeight = rec, w
		}
	}
	return best
}

// Get returns a single pattern by ID.
func (s *Store) Get(patternID string) (*Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[patternID]
	return p, ok
}

// ByOutcome returns every pattern learned from outcome.
func (s *Store) ByOutcome(outcome Outcome) []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byOutcome[outcome]
	out := make([]*Pattern, 0, len(ids))
	for _, id := range ids {
		if p := s.patterns[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of learned patterns, optionally filtered by
// type when typ is non-empty.
func (s *Store) Count(typ string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if typ == "" {
		return len(s.patterns)
	}
	return len(s.byType[typ])
}
