package goals

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// FreeID is the reserved board id for the free center space.
const FreeID = "__FREE__"

const FreeText = "Free Space"

// DefaultDifficulty is used wherever a goal carries no difficulty.
const DefaultDifficulty = 2

// MaxWeight bounds how many times one goal may enter the board draw.
const MaxWeight = 100

var ErrInvalidGoal = errors.New("invalid goal")
var ErrDuplicateGoal = errors.New("duplicate goal id")
var ErrEmptyCatalog = errors.New("empty goal catalog")

type Goal struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Difficulty int    `json:"difficulty,omitempty"` // 1..3, 0 = unset
	Weight     int    `json:"weight,omitempty"`     // 0 = unset (counts as 1)
}

// Catalog is an immutable, ordered lookup of goals by id.
type Catalog struct {
	order []string
	byID  map[string]Goal
}

// NewCatalog validates every goal and reports all problems at once.
func NewCatalog(list []Goal) (*Catalog, error) {
	if len(list) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		order: make([]string, 0, len(list)),
		byID:  make(map[string]Goal, len(list)),
	}

	var errs error
	for i, g := range list {
		switch {
		case g.ID == "":
			errs = multierr.Append(errs, fmt.Errorf("%w: row %d has no id", ErrInvalidGoal, i))
			continue
		case g.ID == FreeID:
			errs = multierr.Append(errs, fmt.Errorf("%w: row %d uses reserved id %q", ErrInvalidGoal, i, FreeID))
			continue
		case g.Text == "":
			errs = multierr.Append(errs, fmt.Errorf("%w: %q has no text", ErrInvalidGoal, g.ID))
			continue
		case g.Difficulty < 0 || g.Difficulty > 3:
			errs = multierr.Append(errs, fmt.Errorf("%w: %q difficulty %d out of range", ErrInvalidGoal, g.ID, g.Difficulty))
			continue
		case g.Weight < 0 || g.Weight > MaxWeight:
			errs = multierr.Append(errs, fmt.Errorf("%w: %q weight %d out of range", ErrInvalidGoal, g.ID, g.Weight))
			continue
		}
		if _, dup := c.byID[g.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%w: %q", ErrDuplicateGoal, g.ID))
			continue
		}
		c.order = append(c.order, g.ID)
		c.byID[g.ID] = g
	}

	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// Get resolves an id; FreeID always resolves to the synthetic free goal.
func (c *Catalog) Get(id string) (Goal, bool) {
	if id == FreeID {
		return Goal{ID: FreeID, Text: FreeText}, true
	}
	if c == nil {
		return Goal{}, false
	}
	g, ok := c.byID[id]
	return g, ok
}

// Goals returns the goals in catalog order.
func (c *Catalog) Goals() []Goal {
	if c == nil {
		return nil
	}
	out := make([]Goal, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Difficulty returns the goal's difficulty, or DefaultDifficulty when the id is
// unknown or the goal has none (the free space included).
func (c *Catalog) Difficulty(id string) int {
	g, ok := c.Get(id)
	if !ok || g.Difficulty == 0 {
		return DefaultDifficulty
	}
	return g.Difficulty
}

// Label is the display text for a board id, falling back to the id itself.
func (c *Catalog) Label(id string) string {
	if g, ok := c.Get(id); ok {
		return g.Text
	}
	return id
}
