package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidatePromotesGroupsOfThreeOrMore(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.SaveShortTerm(ctx, "a", "sess", map[string]any{"type": "velocity_check", "n": i})
	}
	s.SaveShortTerm(ctx, "a", "sess", map[string]any{"type": "kyc_review", "n": 0})

	promoted, err := s.Consolidate(ctx, "a", "sess")
	require.NoError(t, err)
	require.Len(t, promoted, 1)

	patterns, err := s.GetByType(ctx, "a", TypePattern)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "velocity_check", patterns[0].Content["groupKey"])
	assert.InDelta(t, 0.6, patterns[0].Importance, 1e-9)
	assert.Len(t, patterns[0].Content["examples"], 3)
}

func TestConsolidateCapsImportanceAtOne(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		s.SaveShortTerm(ctx, "a", "sess", map[string]any{"type": "repeat", "n": i})
	}

	_, err := s.Consolidate(ctx, "a", "sess")
	require.NoError(t, err)

	patterns, _ := s.GetByType(ctx, "a", TypePattern)
	require.Len(t, patterns, 1)
	assert.Equal(t, 1.0, patterns[0].Importance)
}
