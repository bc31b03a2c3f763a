package bot

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/tinybingo-backend/internal/board"
	"github.com/DoyleJ11/tinybingo-backend/internal/goals"
)

// Token is the mark the bot leaves on a cell.
const Token = "bot"

var ErrNoFreeCell = errors.New("bot has no free cell to mark")

type Tier int

const (
	TierThreat Tier = iota + 1
	TierDynamicLine
	TierStrategic
	TierPotentialLine
	TierNearComplete
	TierOpportunisticBlock
	TierQuantity
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierThreat:
		return "threat"
	case TierDynamicLine:
		return "dynamic-line"
	case TierStrategic:
		return "strategic"
	case TierPotentialLine:
		return "potential-line"
	case TierNearComplete:
		return "near-complete"
	case TierOpportunisticBlock:
		return "opportunistic-block"
	case TierQuantity:
		return "quantity"
	case TierFallback:
		return "fallback"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

type Strategy string

const (
	StrategyAggressive Strategy = "aggressive"
	StrategyDefensive  Strategy = "defensive"
	StrategyBalanced   Strategy = "balanced"
)

// Input is everything the bot looks at. Nothing is remembered between calls.
type Input struct {
	Board   []string
	Marks   map[int][]string
	Size    int
	Catalog *goals.Catalog
	Profile Profile
	// LastOpponentMove breaks ties between equally dangerous threats; -1 if unknown.
	LastOpponentMove int
}

type Move struct {
	Index    int
	Tier     Tier
	Strategy Strategy
	Reason   string
}

// lineStat is one line seen from the bot's side.
type lineStat struct {
	line board.Line
	bot  int
	opp  int
	free []int // ordered by difficulty, then index
}

type view struct {
	in    Input
	lines []lineStat
	free  []int
}

func (v *view) difficulty(cell int) int {
	return v.in.Catalog.Difficulty(v.in.Board[cell])
}

func (v *view) isBot(cell int) bool {
	return slices.Contains(v.in.Marks[cell], Token)
}

func (v *view) isFree(cell int) bool {
	return len(v.in.Marks[cell]) == 0
}

// byDifficulty orders cells by goal difficulty, then by index.
func (v *view) byDifficulty(cells []int) []int {
	out := slices.Clone(cells)
	slices.SortFunc(out, func(a, b int) int {
		return cmp.Or(cmp.Compare(v.difficulty(a), v.difficulty(b)), cmp.Compare(a, b))
	})
	return out
}

func newView(in Input) *view {
	v := &view{in: in}
	for i := range in.Board {
		if v.isFree(i) {
			v.free = append(v.free, i)
		}
	}
	for _, l := range board.Lines(in.Size) {
		st := lineStat{line: l}
		var free []int
		for _, c := range l.Cells {
			switch {
			case v.isBot(c):
				st.bot++
			case v.isFree(c):
				free = append(free, c)
			default:
				st.opp++
			}
		}
		st.free = v.byDifficulty(free)
		v.lines = append(v.lines, st)
	}
	return v
}

// SelectMove picks the bot's next cell. The tiers are tried in order and the
// first one that yields a cell wins. rng is consulted only for the
// probabilistic blocking tiers.
func SelectMove(in Input, rng *rand.Rand) (Move, error) {
	if in.Size <= 0 || len(in.Board) != in.Size*in.Size {
		return Move{}, fmt.Errorf("%w: board has %d cells for size %d", ErrNoFreeCell, len(in.Board), in.Size)
	}
	v := newView(in)
	if len(v.free) == 0 {
		return Move{}, ErrNoFreeCell
	}

	tiers := []func(*view, *rand.Rand) (Move, bool){
		threatResponse,
		dynamicLine,
		strategicPosition,
		potentialLine,
		nearComplete,
		opportunisticBlock,
		quantity,
	}
	for _, tier := range tiers {
		if m, ok := tier(v, rng); ok {
			return m, nil
		}
	}
	return fallback(v), nil
}

func chance(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

func threatResponse(v *view, rng *rand.Rand) (Move, bool) {
	n := v.in.Size
	var critical, high []lineStat
	for _, st := range v.lines {
		if len(st.free) == 0 || st.bot > 0 {
			continue
		}
		switch {
		case st.opp >= n-1:
			critical = append(critical, st)
		case st.opp == n-2 && n-2 >= 2:
			high = append(high, st)
		}
	}

	if st, ok := v.worstThreat(critical); ok {
		return Move{
			Index:    st.free[0],
			Tier:     TierThreat,
			Strategy: StrategyDefensive,
			Reason:   fmt.Sprintf("blocking %s, one cell from completion", st.line),
		}, true
	}
	if len(high) > 0 && chance(rng, v.in.Profile.BlockPlayerChance) {
		st, _ := v.worstThreat(high)
		return Move{
			Index:    st.free[0],
			Tier:     TierThreat,
			Strategy: StrategyDefensive,
			Reason:   fmt.Sprintf("blocking %s, two cells from completion", st.line),
		}, true
	}
	return Move{}, false
}

// worstThreat prefers the line the opponent just played into, then scan order.
func (v *view) worstThreat(lines []lineStat) (lineStat, bool) {
	if len(lines) == 0 {
		return lineStat{}, false
	}
	for _, st := range lines {
		if slices.Contains(st.line.Cells, v.in.LastOpponentMove) {
			return st, true
		}
	}
	return lines[0], true
}

func dynamicLine(v *view, _ *rand.Rand) (Move, bool) {
	var best *lineStat
	bestScore := 0.0
	for i := range v.lines {
		st := &v.lines[i]
		if st.bot < 2 || st.opp >= 2 || len(st.free) == 0 {
			continue
		}
		sum := 0
		for _, c := range st.free {
			sum += v.difficulty(c)
		}
		avg := float64(sum) / float64(len(st.free))
		score := float64(st.bot) * (3 - avg)
		if best == nil || score > bestScore {
			best, bestScore = st, score
		}
	}
	if best == nil {
		return Move{}, false
	}
	return Move{
		Index:    best.free[0],
		Tier:     TierDynamicLine,
		Strategy: StrategyAggressive,
		Reason:   fmt.Sprintf("extending %s (%d marked)", best.line, best.bot),
	}, true
}

func strategicPosition(v *view, _ *rand.Rand) (Move, bool) {
	var cand []int
	if c := board.Center(v.in.Size); c >= 0 && v.isFree(c) {
		cand = append(cand, c)
	}
	for _, c := range board.Corners(v.in.Size) {
		if v.isFree(c) {
			cand = append(cand, c)
		}
	}
	limit := v.in.Profile.StrategicMaxDifficulty
	cand = slices.DeleteFunc(cand, func(c int) bool { return v.difficulty(c) > limit })
	if len(cand) == 0 {
		return Move{}, false
	}
	// Stable so the center keeps precedence over corners of equal difficulty.
	slices.SortStableFunc(cand, func(a, b int) int {
		return cmp.Compare(v.difficulty(a), v.difficulty(b))
	})
	return Move{
		Index:    cand[0],
		Tier:     TierStrategic,
		Strategy: StrategyAggressive,
		Reason:   "taking a strategic position",
	}, true
}

func (st lineStat) marked() int { return st.bot + st.opp }

// potentialLine joins lines that already have two marked cells of any owner,
// as long as the opponent holds fewer than two of them.
func potentialLine(v *view, _ *rand.Rand) (Move, bool) {
	var best *lineStat
	for i := range v.lines {
		st := &v.lines[i]
		if st.marked() < 2 || st.opp >= 2 || len(st.free) == 0 {
			continue
		}
		if best == nil ||
			st.marked() > best.marked() ||
			(st.marked() == best.marked() && v.difficulty(st.free[0]) < v.difficulty(best.free[0])) {
			best = st
		}
	}
	if best == nil {
		return Move{}, false
	}
	return Move{
		Index:    best.free[0],
		Tier:     TierPotentialLine,
		Strategy: StrategyAggressive,
		Reason:   fmt.Sprintf("building on %s (%d marked)", best.line, best.marked()),
	}, true
}

func nearComplete(v *view, _ *rand.Rand) (Move, bool) {
	for _, st := range v.lines {
		if st.bot >= 3 && len(st.free) > 0 {
			return Move{
				Index:    st.free[0],
				Tier:     TierNearComplete,
				Strategy: StrategyAggressive,
				Reason:   fmt.Sprintf("finishing %s", st.line),
			}, true
		}
	}
	return Move{}, false
}

func opportunisticBlock(v *view, rng *rand.Rand) (Move, bool) {
	var best *lineStat
	for i := range v.lines {
		st := &v.lines[i]
		if st.opp < 2 || len(st.free) == 0 {
			continue
		}
		if best == nil || st.opp > best.opp {
			best = st
		}
	}
	if best == nil || !chance(rng, v.in.Profile.BlockPlayerChance) {
		return Move{}, false
	}
	return Move{
		Index:    best.free[0],
		Tier:     TierOpportunisticBlock,
		Strategy: StrategyDefensive,
		Reason:   fmt.Sprintf("getting in the way on %s", best.line),
	}, true
}

// usefulForLine reports whether cell sits on a line the bot can still build.
func (v *view) usefulForLine(cell int) bool {
	for _, st := range v.lines {
		if st.bot >= 2 && st.opp < 2 && slices.Contains(st.line.Cells, cell) {
			return true
		}
	}
	return false
}

func quantity(v *view, _ *rand.Rand) (Move, bool) {
	if len(v.free) == 0 {
		return Move{}, false
	}
	spare := slices.DeleteFunc(slices.Clone(v.free), v.usefulForLine)
	reason := "racing for quantity"
	if len(spare) == 0 {
		spare = v.free
		reason = "boxed in, racing for quantity"
	}
	return Move{
		Index:    v.byDifficulty(spare)[0],
		Tier:     TierQuantity,
		Strategy: StrategyBalanced,
		Reason:   reason,
	}, true
}

// fallback always returns a free cell when one exists.
func fallback(v *view) Move {
	size := v.in.Size
	var strategic []int
	for _, c := range v.free {
		if p := board.PositionPriority(c, size); p >= 3 {
			strategic = append(strategic, c)
		}
	}
	if len(strategic) > 0 {
		slices.SortFunc(strategic, func(a, b int) int {
			return cmp.Or(
				cmp.Compare(v.difficulty(a), v.difficulty(b)),
				cmp.Compare(board.PositionPriority(b, size), board.PositionPriority(a, size)),
				cmp.Compare(a, b),
			)
		})
		return Move{Index: strategic[0], Tier: TierFallback, Strategy: StrategyAggressive, Reason: "taking any strategic cell"}
	}
	if len(v.free) > 0 {
		return Move{Index: v.byDifficulty(v.free)[0], Tier: TierFallback, Strategy: StrategyBalanced, Reason: "easiest free cell"}
	}
	return Move{Index: -1, Tier: TierFallback, Strategy: StrategyBalanced, Reason: "no free cell"}
}
