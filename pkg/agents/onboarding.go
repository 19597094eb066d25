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

// Package agents holds the illustrative domain agents: values that compose
// a reasoning BaseAgent with an autonomous scan scheduler rather than
// subclassing either.
package agents

import (
	"fmt"

	"github.com/riskforge/agentcore/pkg/autonomous"
	"github.com/riskforge/agentcore/pkg/reasoning"
)

// onboardingTopics are the events that feed a seller-onboarding scan.
var onboardingTopics = []string{"seller:registered", "kyc:submitted", "kyc:updated"}

const onboardingSystemPrompt = "You are a seller-onboarding risk reviewer. " +
	"Given newly registered sellers and their KYC submissions, flag sellers " +
	"whose identity evidence or business profile looks inconsistent, " +
	"incomplete, or patterned after known fraud, and recommend whether " +
	"onboarding should proceed, be reviewed, or be blocked."

// Onboarding watches seller registration and KYC events and runs a scan
// cycle over whatever has accumulated since the last one.
type Onboarding struct {
	Base    *reasoning.BaseAgent
	Scanner *autonomous.Agent
}

// NewOnboarding builds an Onboarding agent. cfg's Role and SystemPrompt
// default to onboarding-specific values when left empty, so callers only
// need to supply collaborators (LLM, Memory, Patterns, Bus, Clock, ...).
func NewOnboarding(cfg reasoning.Config, scan autonomous.Config) *Onboarding {
	if cfg.Role == "" {
		cfg.Role = "seller-onboarding reviewer"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = onboardingSystemPrompt
	}
	base := reasoning.NewBaseAgent(cfg)

	scan.AgentID = cfg.AgentID
	scan.Base = base
	if scan.Bus == nil {
		scan.Bus = cfg.Bus
	}
	if scan.Clock == nil {
		scan.Clock = cfg.Clock
	}
	if len(scan.SubscribedTopics) == 0 {
		scan.SubscribedTopics = onboardingTopics
	}
	if scan.BuildScanInput == nil {
		scan.BuildScanInput = buildOnboardingScanInput
	}

	return &Onboarding{Base: base, Scanner: autonomous.New(scan)}
}

// buildOnboardingScanInput partitions buffered events into sellers and KYC
// submissions and hands both to the reasoning loop as one scan input.
func buildOnboardingScanInput(events []autonomous.Event) (map[string]any, error) {
	var sellers, kyc []any
	for _, e := range events {
		switch e.Topic {
		case "seller:registered":
			sellers = append(sellers, e.Data)
		case "kyc:submitted", "kyc:updated":
			kyc = append(kyc, e.Data)
		}
	}
	if len(sellers) == 0 && len(kyc) == 0 {
		return nil, fmt.Errorf("onboarding: no seller or KYC events to scan")
	}
	return map[string]any{
		"type":    "seller-onboarding",
		"sellers": sellers,
		"kyc":     kyc,
	}, nil
}
