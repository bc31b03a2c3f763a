package engine

import (
	"fmt"

	"github.com/DoyleJ11/tinybingo-backend/internal/board"
)

type WinKind string

const (
	WinLine     WinKind = "line"
	WinQuantity WinKind = "quantity"
)

type Result struct {
	Won   bool        `json:"won"`
	Kind  WinKind     `json:"kind,omitempty"`
	Owner string      `json:"owner,omitempty"`
	Line  *board.Line `json:"line,omitempty"`
	Count int         `json:"count,omitempty"`
}

func (r Result) Describe() string {
	switch {
	case !r.Won:
		return "no winner yet"
	case r.Kind == WinLine && r.Line != nil:
		return fmt.Sprintf("won by completing %s", r.Line)
	default:
		return fmt.Sprintf("won by marking %d cells", r.Count)
	}
}

// Evaluate decides whether the marks on the board constitute a win. Lines are
// checked first in fixed scan order, using each cell's first mark as its owner;
// otherwise every token in a cell's list counts toward the quantity threshold.
// Blackout mode disables line wins and requires every cell.
func Evaluate(ids []string, marks map[int][]string, size int, mode Mode, threshold int) Result {
	cells := size * size
	if size <= 0 || len(ids) != cells {
		return Result{}
	}

	if mode == ModeBlackout {
		threshold = cells
	} else {
		for _, l := range board.Lines(size) {
			if owner, ok := lineOwner(l, marks); ok {
				line := l
				return Result{Won: true, Kind: WinLine, Owner: owner, Line: &line}
			}
		}
	}
	if threshold <= 0 {
		return Result{}
	}

	counts := map[string]int{}
	var order []string
	for i := 0; i < cells; i++ {
		for _, tok := range marks[i] {
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}
	for _, tok := range order {
		if counts[tok] >= threshold {
			return Result{Won: true, Kind: WinQuantity, Owner: tok, Count: counts[tok]}
		}
	}
	return Result{}
}

func lineOwner(l board.Line, marks map[int][]string) (string, bool) {
	var owner string
	for i, c := range l.Cells {
		list := marks[c]
		if len(list) == 0 {
			return "", false
		}
		if i == 0 {
			owner = list[0]
		} else if list[0] != owner {
			return "", false
		}
	}
	return owner, owner != ""
}
