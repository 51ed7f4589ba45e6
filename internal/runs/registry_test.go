package runs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry()

	entry := r.Add("export.csv", nil)
	require.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "export.csv", entry.FileName)
	assert.WithinDuration(t, time.Now().UTC(), entry.StartedAt, time.Minute)

	got, err := r.Get(entry.ID)
	require.NoError(t, err)
	assert.Same(t, entry, got)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(uuid.New())
	assert.Error(t, err)
}

func TestRegistry_ListMostRecentFirst(t *testing.T) {
	r := NewRegistry()

	first := r.Add("a.csv", nil)
	second := r.Add("b.csv", nil)
	second.StartedAt = first.StartedAt.Add(time.Second)
	third := r.Add("c.csv", nil)
	third.StartedAt = first.StartedAt.Add(2 * time.Second)

	entries := r.List()
	require.Len(t, entries, 3)
	assert.Equal(t, "c.csv", entries[0].FileName)
	assert.Equal(t, "b.csv", entries[1].FileName)
	assert.Equal(t, "a.csv", entries[2].FileName)
}
