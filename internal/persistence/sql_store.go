package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// saveRecord is one row of the saves table.
type saveRecord struct {
	Slot      string         `gorm:"primaryKey;size:64"`
	Wave      int            `gorm:"not null;default:0"`
	Score     int            `gorm:"not null;default:0"`
	SavedAt   time.Time      `gorm:"index"`
	Body      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (saveRecord) TableName() string {
	return "saves"
}

// SQLStore keeps saves in a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenSQLite opens (or creates) a SQLite database file. An empty path uses
// a private in-memory database.
func OpenSQLite(path string) (*SQLStore, error) {
	memory := path == ""
	if memory {
		path = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return NewSQLStore(db)
}

// OpenPostgres connects to Postgres with dsn.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewSQLStore(db)
}

// NewSQLStore migrates the saves table on db.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&saveRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate saves table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts or replaces the slot.
func (s *SQLStore) Save(ctx context.Context, slot string, save SaveState) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	body, err := json.Marshal(save)
	if err != nil {
		return fmt.Errorf("failed to encode save: %w", err)
	}
	record := saveRecord{
		Slot:    slot,
		Wave:    save.Wave,
		Score:   save.Score,
		SavedAt: save.SavedAt,
		Body:    datatypes.JSON(body),
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("failed to store save: %w", err)
	}
	return nil
}

// Load reads the slot.
func (s *SQLStore) Load(ctx context.Context, slot string) (SaveState, error) {
	if err := ValidateSlot(slot); err != nil {
		return SaveState{}, err
	}
	var record saveRecord
	err := s.db.WithContext(ctx).Where("slot = ?", slot).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SaveState{}, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	if err != nil {
		return SaveState{}, fmt.Errorf("failed to load save: %w", err)
	}
	var save SaveState
	if err := json.Unmarshal(record.Body, &save); err != nil {
		return SaveState{}, fmt.Errorf("failed to decode save %s: %w", slot, err)
	}
	return save, nil
}

// List returns every slot, newest first.
func (s *SQLStore) List(ctx context.Context) ([]Summary, error) {
	var records []saveRecord
	err := s.db.WithContext(ctx).
		Select("slot", "wave", "score", "saved_at").
		Order("saved_at desc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	summaries := make([]Summary, len(records))
	for i, r := range records {
		summaries[i] = Summary{Slot: r.Slot, Wave: r.Wave, Score: r.Score, SavedAt: r.SavedAt}
	}
	return summaries, nil
}

// Delete removes the slot.
func (s *SQLStore) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("slot = ?", slot).Delete(&saveRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete save: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
