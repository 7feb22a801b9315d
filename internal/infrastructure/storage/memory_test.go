package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryObjectStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryObjectStorage()

	data := []byte("report")
	require.NoError(t, m.Put(ctx, "a/1.json", data, "application/json"))
	require.NoError(t, m.Put(ctx, "a/2.json", []byte("second"), "application/json"))
	require.NoError(t, m.Put(ctx, "b/1.json", []byte("other"), "application/json"))
	data[0] = 'X'

	got, err := m.Get(ctx, "a/1.json")
	require.NoError(t, err)
	assert.Equal(t, "report", string(got), "stored bytes are copied")

	assert.Equal(t, []string{"a/1.json", "a/2.json"}, m.Keys("a/"))

	exists, err := m.Exists(ctx, "b/1.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, m.Delete(ctx, "b/1.json"))
	require.NoError(t, m.Delete(ctx, "b/1.json"))
	_, err = m.Get(ctx, "b/1.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.ErrorIs(t, m.Put(ctx, "", nil, ""), ErrEmptyKey)
}
