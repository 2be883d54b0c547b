// Package store persists the watchlist, price snapshots, and dismissals in
// SQLite through GORM. All reads and writes go through a Store value so
// tests can run against an in-memory database.
package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&cardRecord{}, &snapshotRecord{}, &dismissalRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// cardRecord is the persisted form of a watchlist card. GradesMonitored is
// stored as a comma-joined string; SQLite has no native list type.
type cardRecord struct {
	ID              string `gorm:"primaryKey"`
	Player          string `gorm:"index"`
	Sport           string
	Year            int
	Brand           string
	SetName         string
	Parallel        string
	GradesMonitored string
	PriorityScore   int
	Active          bool `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (cardRecord) TableName() string { return "watchlist_cards" }

// snapshotRecord is one cohort summary for one collection date. The unique
// index enforces at most one snapshot per (card, date, grade, grader); a
// rerun on the same day supersedes via upsert.
type snapshotRecord struct {
	ID           uint   `gorm:"primaryKey"`
	CardID       string `gorm:"uniqueIndex:idx_cohort_date;index"`
	SnapshotDate string `gorm:"uniqueIndex:idx_cohort_date"`
	Grade        string `gorm:"uniqueIndex:idx_cohort_date"`
	Grader       string `gorm:"uniqueIndex:idx_cohort_date"`
	Mean         float64
	Median       float64
	P25          float64
	P75          float64
	StdDev       float64
	Volume       int
	Confidence   int
	CreatedAt    time.Time
}

func (snapshotRecord) TableName() string { return "price_snapshots" }

type dismissalRecord struct {
	ID             string `gorm:"primaryKey"`
	ItemID         string `gorm:"uniqueIndex"`
	CardID         string
	Title          string
	CurrentPrice   float64
	SellerUsername string
	URL            string
	ImageURL       string
	Note           string
	DismissedAt    time.Time
	ExpiresAt      time.Time `gorm:"index"`
}

func (dismissalRecord) TableName() string { return "dismissals" }

func joinGrades(grades []string) string {
	return strings.Join(grades, ",")
}

func splitGrades(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
