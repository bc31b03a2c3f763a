package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("match not found")

// Match is the archived summary of one finished match.
type Match struct {
	ID            uuid.UUID      `json:"id"`
	Room          string         `json:"room"`
	Seed          string         `json:"seed"`
	Size          int            `json:"size"`
	Mode          string         `json:"mode"`
	GameMode      string         `json:"gameMode"`
	BotDifficulty string         `json:"botDifficulty,omitempty"`
	Winner        string         `json:"winner,omitempty"`
	WinnerName    string         `json:"winnerName,omitempty"`
	WinKind       string         `json:"winKind,omitempty"`
	DurationSec   int            `json:"durationSec"`
	MarkCounts    map[string]int `json:"markCounts"`
	FinishedAt    time.Time      `json:"finishedAt"`
}

// Archive persists finished matches. Implementations must be safe for
// concurrent use.
type Archive interface {
	Save(ctx context.Context, m Match) error
	Get(ctx context.Context, id uuid.UUID) (Match, error)
	// Recent returns up to limit matches, newest first.
	Recent(ctx context.Context, limit int) ([]Match, error)
}

// DefaultRecentLimit bounds Recent when the caller passes limit <= 0.
const DefaultRecentLimit = 20

func normalize(m Match) Match {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.FinishedAt.IsZero() {
		m.FinishedAt = time.Now().UTC()
	}
	return m
}
