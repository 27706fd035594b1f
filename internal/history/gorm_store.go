package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type entryModel struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement"`
	GameID     string         `gorm:"column:game_id;index"`
	Symbol     string         `gorm:"column:symbol"`
	Prediction int            `gorm:"column:prediction"`
	Success    bool           `gorm:"column:success"`
	Points     float64        `gorm:"column:points"`
	Rank       int            `gorm:"column:rank"`
	FirstPrice float64        `gorm:"column:first_price"`
	LastPrice  float64        `gorm:"column:last_price"`
	Series     datatypes.JSON `gorm:"column:series"`
	RecordedAt int64          `gorm:"column:recorded_at"`
}

func (entryModel) TableName() string { return "history_entries" }

func toModel(e Entry) entryModel {
	series, _ := json.Marshal(e.Series)
	return entryModel{
		GameID:     e.GameID,
		Symbol:     e.Symbol,
		Prediction: e.Prediction,
		Success:    e.Success,
		Points:     e.Points,
		Rank:       e.Rank,
		FirstPrice: e.FirstPrice,
		LastPrice:  e.LastPrice,
		Series:     datatypes.JSON(series),
		RecordedAt: e.RecordedAt.UnixMilli(),
	}
}

func (m entryModel) toEntry() Entry {
	var series []float64
	if len(m.Series) > 0 {
		_ = json.Unmarshal(m.Series, &series)
	}
	return Entry{
		GameID:     m.GameID,
		Symbol:     m.Symbol,
		Prediction: m.Prediction,
		Success:    m.Success,
		Points:     m.Points,
		Rank:       m.Rank,
		FirstPrice: m.FirstPrice,
		LastPrice:  m.LastPrice,
		Series:     series,
		RecordedAt: time.UnixMilli(m.RecordedAt).UTC(),
	}
}

// GormStore persists the full log in SQLite; row id gives append order.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history: sqlite path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a single writer keeps appends strictly ordered
	sqlDB.SetMaxOpenConns(1)
	return &GormStore{db: db}, nil
}

// Append inserts the entries in order inside one transaction.
func (s *GormStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			m := toModel(e)
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("%s/%s: %w", e.GameID, e.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

func (s *GormStore) Recent(ctx context.Context, k int) ([]Entry, error) {
	if k <= 0 {
		return []Entry{}, nil
	}
	var rows []entryModel
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(k).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row.toEntry()
	}
	return out, nil
}

func (s *GormStore) All(ctx context.Context) ([]Entry, error) {
	var rows []entryModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: all: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntry())
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
