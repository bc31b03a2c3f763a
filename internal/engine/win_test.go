package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tinybingo-backend/internal/board"
)

// noLines holds 15 A cells and 10 B cells with no single-owner line.
const noLines = "AABABBABAABAABAABABAABAAB"

func marksFrom(pattern string) map[int][]string {
	m := map[int][]string{}
	for i, ch := range pattern {
		if ch != '.' {
			m[i] = []string{string(ch)}
		}
	}
	return m
}

func TestEvaluateLines(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		cells []int
		kind  board.LineKind
		index int
	}{
		{"row", 5, []int{10, 11, 12, 13, 14}, board.LineRow, 2},
		{"column", 4, []int{1, 5, 9, 13}, board.LineCol, 1},
		{"main diagonal", 5, []int{0, 6, 12, 18, 24}, board.LineDiag, 0},
		{"anti diagonal", 5, []int{4, 8, 12, 16, 20}, board.LineDiag, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[int][]string{}
			for _, c := range tt.cells {
				m[c] = []string{"A"}
			}
			res := Evaluate(testBoard(tt.size), m, tt.size, ModeStandard, DefaultQuantityThreshold)
			require.True(t, res.Won)
			assert.Equal(t, WinLine, res.Kind)
			assert.Equal(t, "A", res.Owner)
			require.NotNil(t, res.Line)
			assert.Equal(t, tt.kind, res.Line.Kind)
			assert.Equal(t, tt.index, res.Line.Index)
		})
	}
}

func TestEvaluateNoDiagonalsOnSmallBoards(t *testing.T) {
	m := marksFrom("A...A...A")
	res := Evaluate(testBoard(3), m, 3, ModeStandard, DefaultQuantityThreshold)
	assert.False(t, res.Won)
}

func TestEvaluateLineNeedsOneOwner(t *testing.T) {
	// Row 0 is fully marked but its cells are owned by different tokens.
	m := map[int][]string{0: {"A"}, 1: {"A"}, 2: {"B", "A"}, 3: {"A"}, 4: {"A"}}
	res := Evaluate(testBoard(5), m, 5, ModeStandard, DefaultQuantityThreshold)
	assert.False(t, res.Won)
}

func TestEvaluateQuantity(t *testing.T) {
	m := marksFrom(noLines)

	res := Evaluate(testBoard(5), m, 5, ModeStandard, 13)
	require.True(t, res.Won)
	assert.Equal(t, WinQuantity, res.Kind)
	assert.Equal(t, "A", res.Owner)
	assert.Equal(t, 15, res.Count)
	assert.Nil(t, res.Line)

	assert.False(t, Evaluate(testBoard(5), m, 5, ModeStandard, 16).Won, "no false win below the threshold")
}

func TestEvaluateQuantityPrefersFirstAppearance(t *testing.T) {
	res := Evaluate(testBoard(5), marksFrom(noLines), 5, ModeStandard, 10)
	require.True(t, res.Won)
	assert.Equal(t, "A", res.Owner, "A appears first in cell order")
}

func TestEvaluateCountsSharedCells(t *testing.T) {
	m := marksFrom(noLines)
	for i, ch := range noLines {
		if ch == 'A' {
			m[i] = append(m[i], "B")
		}
	}
	// B now appears in every cell; first marks are unchanged.
	res := Evaluate(testBoard(5), m, 5, ModeStandard, 25)
	require.True(t, res.Won)
	assert.Equal(t, "B", res.Owner)
	assert.Equal(t, 25, res.Count)
}

func TestEvaluateBlackout(t *testing.T) {
	row := map[int][]string{0: {"A"}, 1: {"A"}, 2: {"A"}}
	assert.False(t, Evaluate(testBoard(3), row, 3, ModeBlackout, DefaultQuantityThreshold).Won, "lines do not count")

	full := map[int][]string{}
	for i := range 9 {
		full[i] = []string{"A"}
	}
	res := Evaluate(testBoard(3), full, 3, ModeBlackout, DefaultQuantityThreshold)
	require.True(t, res.Won)
	assert.Equal(t, WinQuantity, res.Kind)
	assert.Equal(t, 9, res.Count)
}

func TestEvaluateIgnoresMismatchedBoard(t *testing.T) {
	assert.False(t, Evaluate(testBoard(3), marksFrom(noLines), 5, ModeStandard, 1).Won)
}
