package board

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"github.com/DoyleJ11/tinybingo-backend/internal/goals"
)

var ErrInvalidSize = errors.New("board size must be 3, 4 or 5")
var ErrCatalogTooSmall = errors.New("catalog has too few distinct goals for board size")

func ValidSize(size int) bool {
	return size >= 3 && size <= 5
}

// Rand returns a PRNG whose sequence depends only on seed.
func Rand(seed string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	s := h.Sum64()
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Build derives the ordered goal ids of a size×size board. The same catalog,
// size and seed always produce the same board.
func Build(cat *goals.Catalog, size int, seed string, freeCenter bool) ([]string, error) {
	if !ValidSize(size) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	need := size * size

	weighted := make([]string, 0, cat.Len())
	for _, g := range cat.Goals() {
		w := min(max(1, g.Weight), goals.MaxWeight)
		for range w {
			weighted = append(weighted, g.ID)
		}
	}

	r := Rand(seed)
	for i := len(weighted) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		weighted[i], weighted[j] = weighted[j], weighted[i]
	}

	ids := make([]string, 0, need)
	seen := make(map[string]bool, need)
	for _, id := range weighted {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if len(ids) == need {
			break
		}
	}

	if len(ids) < need {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrCatalogTooSmall, need, len(ids))
	}

	if freeCenter && size == 5 {
		ids[Center(size)] = goals.FreeID
	}
	return ids, nil
}
