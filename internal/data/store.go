// Package data persists player records across sessions.
package data

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PlayerRecord contains the state restored for a player when they log back in.
type PlayerRecord struct {
	ID       uint64 `gorm:"primaryKey"`
	Name     string `gorm:"uniqueIndex; not null"`
	LastSeen time.Time
	X        float64
	Y        float64
	Z        float64
}

// Store wraps the sqlite database holding player records.
type Store struct {
	db *gorm.DB
}

// Open initializes the database under filename, creating the schema if needed.
func Open(filename string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening player database %s: %w", filename, err)
	}

	if err := db.AutoMigrate(&PlayerRecord{}); err != nil {
		return nil, fmt.Errorf("migrating player database: %w", err)
	}

	return &Store{db: db}, nil
}

// FindPlayer returns the record for a player name, or nil if there is no match.
func (s *Store) FindPlayer(name string) (*PlayerRecord, error) {
	var record PlayerRecord
	err := s.db.Where("name = ?", name).First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SavePlayer upserts a record, keyed by player name.
func (s *Store) SavePlayer(record *PlayerRecord) error {
	existing, err := s.FindPlayer(record.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		record.ID = existing.ID
	}
	return s.db.Save(record).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
