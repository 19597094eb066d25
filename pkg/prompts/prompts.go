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

// Package prompts builds the {system, user} template pairs and JSON
// schemas the reasoning loop's LLM calls use. Field names on the
// schema types are fixed so downstream parsing and tests can pin them.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Template is one LLM call's rendered prompt.
type Template struct {
	System string
	User   string
}

// Tool is one entry of the catalog rendered into Plan and re-plan prompts;
// only tools in the catalog may be used in a Plan's actions.
type Tool struct {
	Name        string
	Description string
}

func renderCatalog(tools []Tool) string {
	var sb strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
	}
	return sb.String()
}

// schemaJSON renders T's JSON schema, inlined and without $ref/$schema
// noise, for embedding into a prompt.
func schemaJSON[T any]() string {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))
	b, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ThinkOutput is the Think phase's schema.
type ThinkOutput struct {
	Understanding     string   `json:"understanding" jsonschema:"required,description=What the agent understands about the input"`
	KeyRisks          []string `json:"key_risks" jsonschema:"description=Risks the agent has identified"`
	Confidence        float64  `json:"confidence" jsonschema:"required,minimum=0,maximum=1"`
	SuggestedApproach string   `json:"suggested_approach" jsonschema:"required"`
}

// BuildThink renders the Think phase's prompt.
func BuildThink(agentRole, input, assembledContext string) (Template, string) {
	system := fmt.Sprintf(
		"You are %s. Think through the input below before acting. "+
			"Respond with ONLY JSON matching the schema.\n\n%s",
		agentRole, schemaJSON[ThinkOutput]())
	user := fmt.Sprintf("Input:\n%s\n\nContext:\n%s", input, assembledContext)
	return Template{System: system, User: user}, schemaJSON[ThinkOutput]()
}

// PlanAction is one planned tool call.
type PlanAction struct {
	Tool      string         `json:"tool" jsonschema:"required"`
	Params    map[string]any `json:"params"`
	Rationale string         `json:"rationale"`
}

// PlanOutput is the Plan phase's schema.
type PlanOutput struct {
	Goal      string       `json:"goal" jsonschema:"required"`
	Reasoning string       `json:"reasoning"`
	Actions   []PlanAction `json:"actions"`
}

// BuildPlan renders the Plan phase's prompt, including the tool catalog so
// the model only proposes registered tools.
func BuildPlan(agentRole, understanding string, tools []Tool) Template {
	system := fmt.Sprintf(
		"You are %s. Plan actions using only the tools listed below. "+
			"Respond with ONLY JSON matching the schema.\n\nTools:\n%s\n%s",
		agentRole, renderCatalog(tools), schemaJSON[PlanOutput]())
	user := fmt.Sprintf("Understanding:\n%s", understanding)
	return Template{System: system, User: user}
}

// ObserveOutput is the Observe phase's schema.
type ObserveOutput struct {
	Summary        string   `json:"summary" jsonschema:"required"`
	RiskScore      float64  `json:"risk_score" jsonschema:"required,minimum=0,maximum=100"`
	Recommendation string   `json:"recommendation" jsonschema:"required,enum=APPROVE,enum=REVIEW,enum=REJECT,enum=BLOCK,enum=MONITOR"`
	Confidence     float64  `json:"confidence" jsonschema:"required,minimum=0,maximum=1"`
	Reasoning      string   `json:"reasoning"`
	KeyFindings    []string `json:"key_findings"`
}

// BuildObserve renders the Observe phase's prompt from the actions taken
// so far, each rendered as "tool -> outcome".
func BuildObserve(agentRole string, actionSummaries []string) Template {
	system := fmt.Sprintf(
		"You are %s. Summarize the actions taken and produce a recommendation. "+
			"Respond with ONLY JSON matching the schema.\n\n%s",
		agentRole, schemaJSON[ObserveOutput]())
	user := "Actions taken:\n" + strings.Join(actionSummaries, "\n")
	return Template{System: system, User: user}
}

// ReflectOutput is the Reflect phase's schema. RevisedAction and
// RevisedConfidence are optional: the model only sets them when proposing
// a revision.
type ReflectOutput struct {
	ShouldRevise         bool     `json:"shouldRevise" jsonschema:"required"`
	RevisedAction        string   `json:"revisedAction,omitempty"`
	RevisedConfidence    *float64 `json:"revisedConfidence,omitempty"`
	Concerns             []string `json:"concerns"`
	ContraArgument       string   `json:"contraArgument"`
	ReflectionConfidence float64  `json:"reflectionConfidence" jsonschema:"required,minimum=0,maximum=1"`
}

// BuildReflect renders the second-opinion Reflect prompt against an
// already-produced observation.
func BuildReflect(agentRole, observationSummary string, observeConfidence float64) Template {
	system := fmt.Sprintf(
		"You are %s, acting as a skeptical second reviewer of another analyst's conclusion. "+
			"Argue the contrary position before agreeing. "+
			"Respond with ONLY JSON matching the schema.\n\n%s",
		agentRole, schemaJSON[ReflectOutput]())
	user := fmt.Sprintf("Observation (confidence %.2f):\n%s", observeConfidence, observationSummary)
	return Template{System: system, User: user}
}

// SelfQueryOutput is the retrieval self-query schema: it turns a
// free-form retrieval request into structured filters plus a cleaned
// query string for the knowledge base.
type SelfQueryOutput struct {
	Filters      map[string]any `json:"filters"`
	CleanedQuery string         `json:"cleanedQuery" jsonschema:"required"`
}

// BuildSelfQuery renders the self-query prompt.
func BuildSelfQuery(rawQuery string) Template {
	system := "Extract structured filters from the retrieval request and clean the remaining query text. " +
		"Respond with ONLY JSON matching the schema.\n\n" + schemaJSON[SelfQueryOutput]()
	return Template{System: system, User: rawQuery}
}

// CitationOutput is the citation-enrichment schema: it attributes
// a claim made in an observation to the tool result that supports it.
type CitationOutput struct {
	Claim           string  `json:"claim" jsonschema:"required"`
	ToolName        string  `json:"toolName" jsonschema:"required"`
	Index           int     `json:"index"`
	Confidence      float64 `json:"confidence" jsonschema:"required,minimum=0,maximum=1"`
	EvidenceSnippet string  `json:"evidenceSnippet,omitempty"`
}

// BuildCitation renders the citation-enrichment prompt for one claim
// against the tool results available to support it.
func BuildCitation(claim string, toolResults []string) Template {
	system := "Identify which tool result (if any) supports the claim and cite it. " +
		"Respond with ONLY JSON matching the schema.\n\n" + schemaJSON[CitationOutput]()
	user := fmt.Sprintf("Claim:\n%s\n\nTool results:\n%s", claim, strings.Join(toolResults, "\n---\n"))
	return Template{System: system, User: user}
}

// RePlanOutput reuses PlanOutput's shape: a re-plan still proposes a fresh
// action list against the same tool catalog.
type RePlanOutput = PlanOutput

// BuildRePlan renders the re-plan prompt: the original goal, the
// failed action types, and the tool catalog, inviting a revised plan.
func BuildRePlan(agentRole, goal string, successes, failures []string, tools []Tool) Template {
	system := fmt.Sprintf(
		"You are %s. The previous plan failed more than half its actions. "+
			"Propose a revised action list using only the tools listed below. "+
			"Respond with ONLY JSON matching the schema.\n\nTools:\n%s\n%s",
		agentRole, renderCatalog(tools), schemaJSON[RePlanOutput]())
	user := fmt.Sprintf(
		"Original goal:\n%s\n\nActions that succeeded:\n%s\n\nActions that failed:\n%s",
		goal, strings.Join(successes, ", "), strings.Join(failures, ", "))
	return Template{System: system, User: user}
}
