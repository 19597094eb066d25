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

// Package consensus runs majority/unanimous/weighted voting sessions across
// a set of agent decisions.
package consensus

import (
	"context"
	"fmt"

	"github.com/riskforge/agentcore/pkg/memory"
)

// Strategy is how a session's votes are evaluated.
type Strategy string

const (
	Majority  Strategy = "majority"
	Unanimous Strategy = "unanimous"
	Weighted  Strategy = "weighted"
)

// weightedWinThreshold is the minimum weight share a decision needs to win
// under the weighted strategy.
const weightedWinThreshold = 0.6

// Vote is one agent's decision in a session.
type Vote struct {
	AgentID    string
	Decision   string
	Confidence float64
	Summary    string
}

// Status is the lifecycle state of a Session.
type Status string

const (
	Open   Status = "open"
	Closed Status = "closed"
)

// Result is the outcome of evaluating a session.
type Result struct {
	Consensus bool
	Decision  string
	Strategy  Strategy
	Votes     []Vote
}

// Session collects votes from requiredVoters and evaluates them exactly
// once under strategy.
type Session struct {
	ID             string
	Strategy       Strategy
	RequiredVoters []string
	Status         Status

	votes map[string]Vote
	voted map[string]bool
}

// NewSession opens a session for requiredVoters under strategy.
func NewSession(id string, strategy Strategy, requiredVoters []string) *Session {
	return &Session{
		ID:             id,
		Strategy:       strategy,
		RequiredVoters: requiredVoters,
		Status:         Open,
		votes:          make(map[string]Vote),
		voted:          make(map[string]bool),
	}
}

// ErrAlreadyVoted is returned when an agent tries to vote a second time in
// the same session.
var ErrAlreadyVoted = fmt.Errorf("consensus: agent already voted in this session")

// ErrSessionClosed is returned when voting or evaluating a closed session.
var ErrSessionClosed = fmt.Errorf("consensus: session is closed")

// Vote records v's vote. Each agent may vote at most once.
func (s *Session) Vote(v Vote) error {
	if s.Status == Closed {
		return ErrSessionClosed
	}
	if s.voted[v.AgentID] {
		return ErrAlreadyVoted
	}
	s.voted[v.AgentID] = true
	s.votes[v.AgentID] = v
	return nil
}

// Evaluate closes the session and scores its votes under Strategy. Only
// the first call has effect; subsequent calls return ErrSessionClosed.
func (s *Session) Evaluate() (Result, error) {
	if s.Status == Closed {
		return Result{}, ErrSessionClosed
	}
	s.Status = Closed

	votes := make([]Vote, 0, len(s.votes))
	for _, v := range s.votes {
		votes = append(votes, v)
	}

	var res Result
	switch s.Strategy {
	case Unanimous:
		res = evaluateUnanimous(votes)
	case Weighted:
		res = evaluateWeighted(votes)
	default:
		res = evaluateMajority(votes)
	}
	res.Strategy = s.Strategy
	res.Votes = votes
	return res, nil
}

func evaluateMajority(votes []Vote) Result {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.Decision]++
	}
	decision, count := topCount(counts)
	return Result{Consensus: len(votes) > 0 && count*2 > len(votes), Decision: decision}
}

func evaluateUnanimous(votes []Vote) Result {
	if len(votes) == 0 {
		return Result{}
	}
	first := votes[0].Decision
	for _, v := range votes[1:] {
		if v.Decision != first {
			return Result{Consensus: false}
		}
	}
	return Result{Consensus: true, Decision: first}
}

func evaluateWeighted(votes []Vote) Result {
	weights := make(map[string]float64)
	var total float64
	for _, v := range votes {
		weights[v.Decision] += v.Confidence
		total += v.Confidence
	}
	decision, weight := topWeight(weights)
	if total == 0 {
		return Result{}
	}
	return Result{Consensus: weight/total > weightedWinThreshold, Decision: decision}
}

func topCount(counts map[string]int) (string, int) {
	var best string
	var bestCount int
	for decision, c := range counts {
		if c > bestCount {
			best, bestCount = decision, c
		}
	}
	return best, bestCount
}

func topWeight(weights map[string]float64) (string, float64) {
	var best string
	var bestWeight float64
	for decision, w := range weights {
		if w > bestWeight {
			best, bestWeight = decision, w
		}
	}
	return best, bestWeight
}

// RecordDisagreement writes a correction long-term memory entry (importance
// 0.7) for every voter in votes, recording the session ID and that voter's
// own decision and confidence.
// Called when a session fails to reach consensus.
func RecordDisagreement(ctx context.Context, store *memory.Store, sessionID string, votes []Vote) error {
	const disagreementImportance = 0.7
	for _, v := range votes {
		_, err := store.SaveLongTerm(ctx, v.AgentID, memory.TypeCorrection, map[string]any{
			"sessionId":  sessionID,
			"ownVote":    v.Decision,
			"confidence": v.Confidence,
		}, disagreementImportance)
		if err != nil {
			return fmt.Errorf("consensus: record disagreement for %s: %w", v.AgentID, err)
		}
	}
	return nil
}
