package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/chunking"
)

func newTestStore() *Store {
	return New(chunking.New(chunking.Config{Size: 200, Overlap: 20}), nil, nil)
}

func TestIngestAssignsIDAndIndexesChunks(t *testing.T) {
	s := newTestStore()
	id, err := s.Ingest(context.Background(), Document{
		Namespace: "policies",
		Name:      "velocity-policy.txt",
		Content:   "Sellers shipping from high risk countries with new accounts get extra scrutiny. Velocity spikes trigger review.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, s.Count("policies"))
}

func TestSearchFallsBackToTextSearchWithoutVectorBackend(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Ingest(ctx, Document{Namespace: "policies", Name: "a.txt", Content: "High velocity transactions from new sellers in nigeria are flagged."})
	s.Ingest(ctx, Document{Namespace: "policies", Name: "b.txt", Content: "Gardening tips for spring planting season."})

	results, err := s.Search(ctx, "policies", "velocity nigeria seller", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "nigeria")
}

func TestDeleteRemovesDocumentChunks(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id, err := s.Ingest(ctx, Document{Namespace: "policies", Name: "a.txt", Content: "Some policy text about chargebacks."})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "policies", id))
	assert.Equal(t, 0, s.Count("policies"))

	results, err := s.Search(ctx, "policies", "chargebacks", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetReturnsIngestedDocument(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id, err := s.Ingest(ctx, Document{Namespace: "policies", Name: "a.txt", Content: "Some content."})
	require.NoError(t, err)

	doc, ok := s.Get("policies", id)
	require.True(t, ok)
	assert.Equal(t, "a.txt", doc.Name)
}

func TestIngestRequiresNamespace(t *testing.T) {
	s := newTestStore()
	_, err := s.Ingest(context.Background(), Document{Name: "a.txt", Content: "x"})
	assert.Error(t, err)
}
