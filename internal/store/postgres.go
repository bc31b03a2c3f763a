package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type matchRow struct {
	ID            uuid.UUID      `gorm:"primaryKey;type:uuid"`
	Room          string         `gorm:"index;size:16;not null"`
	Seed          string         `gorm:"not null"`
	Size          int            `gorm:"not null"`
	Mode          string         `gorm:"type:varchar(16);not null"`
	GameMode      string         `gorm:"type:varchar(8);not null"`
	BotDifficulty string         `gorm:"type:varchar(16)"`
	Winner        string         `gorm:"index"`
	WinnerName    string         `gorm:"size:64"`
	WinKind       string         `gorm:"type:varchar(16)"`
	DurationSec   int            `gorm:"default:0"`
	MarkCounts    map[string]int `gorm:"serializer:json"`
	FinishedAt    time.Time      `gorm:"index;not null"`
	CreatedAt     time.Time
}

func (matchRow) TableName() string { return "matches" }

func rowFrom(m Match) matchRow {
	return matchRow{
		ID:            m.ID,
		Room:          m.Room,
		Seed:          m.Seed,
		Size:          m.Size,
		Mode:          m.Mode,
		GameMode:      m.GameMode,
		BotDifficulty: m.BotDifficulty,
		Winner:        m.Winner,
		WinnerName:    m.WinnerName,
		WinKind:       m.WinKind,
		DurationSec:   m.DurationSec,
		MarkCounts:    m.MarkCounts,
		FinishedAt:    m.FinishedAt,
	}
}

func (r matchRow) match() Match {
	return Match{
		ID:            r.ID,
		Room:          r.Room,
		Seed:          r.Seed,
		Size:          r.Size,
		Mode:          r.Mode,
		GameMode:      r.GameMode,
		BotDifficulty: r.BotDifficulty,
		Winner:        r.Winner,
		WinnerName:    r.WinnerName,
		WinKind:       r.WinKind,
		DurationSec:   r.DurationSec,
		MarkCounts:    r.MarkCounts,
		FinishedAt:    r.FinishedAt,
	}
}

// Gorm archives matches through gorm; NewPostgres is the production setup.
type Gorm struct {
	db *gorm.DB
}

// NewPostgres connects to dsn and migrates the matches table.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	g, err := NewGorm(ctx, db)
	if err != nil {
		return nil, err
	}
	logger.Info("match archive ready", zap.String("backend", "postgres"))
	return g, nil
}

func NewGorm(ctx context.Context, db *gorm.DB) (*Gorm, error) {
	if err := db.WithContext(ctx).AutoMigrate(&matchRow{}); err != nil {
		return nil, fmt.Errorf("migrate matches: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Save(ctx context.Context, m Match) error {
	row := rowFrom(normalize(m))
	if err := g.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save match %s: %w", row.ID, err)
	}
	return nil
}

func (g *Gorm) Get(ctx context.Context, id uuid.UUID) (Match, error) {
	var row matchRow
	err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Match{}, ErrNotFound
	}
	if err != nil {
		return Match{}, fmt.Errorf("get match %s: %w", id, err)
	}
	return row.match(), nil
}

func (g *Gorm) Recent(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var rows []matchRow
	if err := g.db.WithContext(ctx).Order("finished_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.match())
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
