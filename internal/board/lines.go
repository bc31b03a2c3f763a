package board

import "fmt"

type LineKind string

const (
	LineRow  LineKind = "row"
	LineCol  LineKind = "col"
	LineDiag LineKind = "diag"
)

// Line is a row, column or diagonal. Diagonal index 0 is the main diagonal,
// 1 the anti-diagonal.
type Line struct {
	Kind  LineKind `json:"kind"`
	Index int      `json:"index"`
	Cells []int    `json:"cells"`
}

func (l Line) String() string {
	if l.Kind == LineDiag {
		if l.Index == 0 {
			return "main diagonal"
		}
		return "anti-diagonal"
	}
	return fmt.Sprintf("%s %d", l.Kind, l.Index+1)
}

// HasDiagonals reports whether diagonals count as lines for this size.
func HasDiagonals(size int) bool { return size == 5 }

// Lines enumerates every line in scan order: rows ascending, columns
// ascending, then the main and anti diagonals (5×5 only).
func Lines(size int) []Line {
	out := make([]Line, 0, 2*size+2)
	for r := 0; r < size; r++ {
		cells := make([]int, size)
		for c := range size {
			cells[c] = r*size + c
		}
		out = append(out, Line{Kind: LineRow, Index: r, Cells: cells})
	}
	for c := 0; c < size; c++ {
		cells := make([]int, size)
		for r := range size {
			cells[r] = r*size + c
		}
		out = append(out, Line{Kind: LineCol, Index: c, Cells: cells})
	}
	if HasDiagonals(size) {
		main := make([]int, size)
		anti := make([]int, size)
		for i := range size {
			main[i] = i*size + i
			anti[i] = i*size + (size - 1 - i)
		}
		out = append(out,
			Line{Kind: LineDiag, Index: 0, Cells: main},
			Line{Kind: LineDiag, Index: 1, Cells: anti},
		)
	}
	return out
}

// LinesThrough returns the lines that contain cell.
func LinesThrough(cell, size int) []Line {
	var out []Line
	for _, l := range Lines(size) {
		for _, c := range l.Cells {
			if c == cell {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

// Center is the geometric center index, or -1 for even sizes.
func Center(size int) int {
	if size%2 == 0 {
		return -1
	}
	return (size/2)*size + size/2
}

func Corners(size int) []int {
	return []int{0, size - 1, size * (size - 1), size*size - 1}
}

// Edges are the border cells that are not corners.
func Edges(size int) []int {
	var out []int
	for i := 1; i < size-1; i++ {
		out = append(out, i, i*size, (i+1)*size-1, (size-1)*size+i)
	}
	return out
}

// PositionPriority ranks cells for tie-breaking: corners, center, edges,
// diagonal cells, everything else.
func PositionPriority(cell, size int) int {
	row, col := cell/size, cell%size
	last := size - 1
	switch {
	case (row == 0 || row == last) && (col == 0 || col == last):
		return 5
	case cell == Center(size):
		return 4
	case row == 0 || row == last || col == 0 || col == last:
		return 3
	case row == col || row+col == last:
		return 2
	default:
		return 1
	}
}
