package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildThinkIncludesSchemaFields(t *testing.T) {
	tmpl, schema := BuildThink("a fraud analyst", "transaction tx-1", "assembled context")
	assert.Contains(t, tmpl.System, "fraud analyst")
	assert.Contains(t, tmpl.User, "tx-1")
	assert.Contains(t, schema, "understanding")
	assert.Contains(t, schema, "confidence")
}

func TestBuildPlanRendersToolCatalog(t *testing.T) {
	tools := []Tool{
		{Name: "checkSanctionsList", Description: "Checks a name against sanctions lists"},
		{Name: "lookupTransactionHistory", Description: "Fetches a customer's prior transactions"},
	}
	tmpl := BuildPlan("a fraud analyst", "understanding text", tools)
	assert.Contains(t, tmpl.System, "- checkSanctionsList: Checks a name against sanctions lists")
	assert.Contains(t, tmpl.System, "- lookupTransactionHistory: Fetches a customer's prior transactions")
}

func TestBuildObserveJoinsActionSummaries(t *testing.T) {
	tmpl := BuildObserve("an analyst", []string{"checkSanctionsList -> no match", "lookupHistory -> 3 prior txns"})
	assert.True(t, strings.Contains(tmpl.User, "checkSanctionsList -> no match"))
	assert.True(t, strings.Contains(tmpl.User, "3 prior txns"))
}

func TestBuildReflectIncludesObserveConfidence(t *testing.T) {
	tmpl := BuildReflect("a reviewer", "summary text", 0.75)
	assert.Contains(t, tmpl.User, "0.75")
}

func TestBuildSelfQueryUsesRawQueryAsUser(t *testing.T) {
	tmpl := BuildSelfQuery("transactions over $5000 in the last week")
	assert.Equal(t, "transactions over $5000 in the last week", tmpl.User)
	assert.Contains(t, tmpl.System, "cleanedQuery")
}

func TestBuildCitationJoinsToolResults(t *testing.T) {
	tmpl := BuildCitation("the transaction exceeds the velocity threshold", []string{"result one", "result two"})
	assert.Contains(t, tmpl.User, "result one")
	assert.Contains(t, tmpl.User, "result two")
}

func TestParseCitationsExtractsMarkersInOrder(t *testing.T) {
	text := "High velocity [cite:lookupTransactionHistory:0] and sanctions hit [cite:checkSanctionsList:2]."
	citations := ParseCitations(text)
	assert.Equal(t, []Citation{
		{ToolName: "lookupTransactionHistory", Index: 0},
		{ToolName: "checkSanctionsList", Index: 2},
	}, citations)
}

func TestParseCitationsEmptyInput(t *testing.T) {
	assert.Empty(t, ParseCitations(""))
	assert.NotNil(t, ParseCitations(""))
}

func TestStripCitationsRemovesMarkersAndTidiesSpacing(t *testing.T) {
	text := "High velocity [cite:lookupTransactionHistory:0] from a new account."
	assert.Equal(t, "High velocity from a new account.", StripCitations(text))
}

func TestStripCitationsEmptyInput(t *testing.T) {
	assert.Equal(t, "", StripCitations(""))
}

func TestBuildRePlanIncludesGoalAndFailures(t *testing.T) {
	tools := []Tool{{Name: "checkSanctionsList", Description: "desc"}}
	tmpl := BuildRePlan("an analyst", "determine fraud risk", []string{"lookupHistory"}, []string{"checkSanctionsList"}, tools)
	assert.Contains(t, tmpl.User, "determine fraud risk")
	assert.Contains(t, tmpl.User, "checkSanctionsList")
	assert.Contains(t, tmpl.System, "- checkSanctionsList: desc")
}
