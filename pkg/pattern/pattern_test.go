package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureScoreBoolAndStringAreExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, featureScore(true, true))
	assert.Equal(t, 0.0, featureScore(true, false))
	assert.Equal(t, 1.0, featureScore("Nigeria", "  nigeria  "))
	assert.Equal(t, 0.0, featureScore("nigeria", "canada"))
	assert.Equal(t, 0.0, featureScore("nigeria", 5000.0))
}

func TestFeatureScoreNumberGivesPartialCreditWithinTolerance(t *testing.T) {
	// diff=200, tolerance=0.2*5000=1000 -> 1-200/1000 = 0.8
	assert.InDelta(t, 0.8, featureScore(5000.0, 5200.0), 1e-9)
	// diff=1200 > tolerance=1000 -> 0
	assert.Equal(t, 0.0, featureScore(5000.0, 6200.0))
	assert.Equal(t, 1.0, featureScore(5000.0, 5000.0))
}

func TestFeatureScoreRangeIsInOrOutOfBounds(t *testing.T) {
	rng := map[string]any{"min": 10.0, "max": 20.0}
	assert.Equal(t, 1.0, featureScore(rng, 15.0))
	assert.Equal(t, 1.0, featureScore(rng, 10.0))
	assert.Equal(t, 0.0, featureScore(rng, 25.0))
}

func TestWeightedFeatureScoreAveragesOverPatternFeatures(t *testing.T) {
	pattern := map[string]any{"country": "nigeria", "amount": 5000.0}
	score := weightedFeatureScore(pattern, map[string]any{"country": "nigeria", "amount": 5200.0})
	// (1 + 0.8) / 2 = 0.9
	assert.InDelta(t, 0.9, score, 1e-9)
}

func TestWeightedFeatureScoreTreatsMissingCaseFeatureAsZero(t *testing.T) {
	pattern := map[string]any{"country": "nigeria", "amount": 5000.0}
	score := weightedFeatureScore(pattern, map[string]any{"country": "nigeria"})
	// (1 + 0) / 2 = 0.5
	assert.InDelta(t, 0.5, score, 1e-9)
}
