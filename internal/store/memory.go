package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps matches in a map; everything is lost on restart.
type Memory struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]Match
}

func NewMemory() *Memory {
	return &Memory{matches: make(map[uuid.UUID]Match)}
}

func (m *Memory) Save(_ context.Context, match Match) error {
	match = normalize(match)
	match.MarkCounts = maps.Clone(match.MarkCounts)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[match.ID] = match
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if match, ok := m.matches[id]; ok {
		return match, nil
	}
	return Match{}, ErrNotFound
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	m.mu.RLock()
	out := slices.Collect(maps.Values(m.matches))
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Match) int {
		return cmp.Or(b.FinishedAt.Compare(a.FinishedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
