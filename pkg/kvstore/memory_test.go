package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryInsertGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	require.NoError(t, s.Insert(ctx, TableLongTermMemory, "agent-1", "mem-1", []byte("v1")))

	blob, ok, err := s.GetByID(ctx, TableLongTermMemory, "agent-1", "mem-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), blob)

	require.NoError(t, s.Update(ctx, TableLongTermMemory, "agent-1", "mem-1", []byte("v2")))
	blob, _, _ = s.GetByID(ctx, TableLongTermMemory, "agent-1", "mem-1")
	assert.Equal(t, []byte("v2"), blob)

	n, err := s.Count(ctx, TableLongTermMemory)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, TableLongTermMemory, "agent-1", "mem-1"))
	_, ok, _ = s.GetByID(ctx, TableLongTermMemory, "agent-1", "mem-1")
	assert.False(t, ok)
}

func TestInMemoryInsertRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Insert(ctx, TableCosts, "a", "id-1", []byte("x")))
	err := s.Insert(ctx, TableCosts, "a", "id-1", []byte("y"))
	assert.Error(t, err)
}

func TestInMemoryGetAllRespectsLimitAndOffsetInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	for _, id := range []string{"1", "2", "3", "4"} {
		require.NoError(t, s.Insert(ctx, TableDecisions, "a", id, []byte(id)))
	}

	all, err := s.GetAll(ctx, TableDecisions, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("1"), []byte("2"), []byte("3"), []byte("4")}, all)

	page, err := s.GetAll(ctx, TableDecisions, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("2"), []byte("3")}, page)
}
