package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	counts := map[string]int{"host": 5, "bot": 3}
	in := Match{Room: "ABC123", Seed: "s1", Size: 5, Winner: "host", WinKind: "line", MarkCounts: counts}
	require.NoError(t, m.Save(ctx, in))

	recent, err := m.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	saved := recent[0]
	assert.NotEqual(t, uuid.Nil, saved.ID, "an id is minted on save")
	assert.False(t, saved.FinishedAt.IsZero())

	counts["host"] = 99
	got, err := m.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.MarkCounts["host"], "stored counts are not aliased")

	_, err = m.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, m.Save(ctx, Match{Room: "R", Seed: string(rune('a' + i)), FinishedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	recent, err := m.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].Seed)
	assert.Equal(t, "d", recent[1].Seed)
	assert.Equal(t, "c", recent[2].Seed)

	all, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
