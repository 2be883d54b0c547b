package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slabwatch/slabwatch/internal/model"
)

// cohortConflict targets the unique (card, date, grade, grader) index so a
// same-day rerun overwrites its earlier snapshot instead of failing.
var cohortConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "card_id"}, {Name: "snapshot_date"}, {Name: "grade"}, {Name: "grader"},
	},
	DoUpdates: clause.AssignmentColumns([]string{
		"mean", "median", "p25", "p75", "std_dev", "volume", "confidence",
	}),
}

// UpsertSnapshots stores a batch of cohort summaries. On a batch failure it
// falls back to per-record upserts so one bad row cannot sink a whole
// collection run; the count of stored records is returned either way.
func (s *Store) UpsertSnapshots(snaps []model.PriceSnapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	recs := make([]snapshotRecord, len(snaps))
	for i, sn := range snaps {
		recs[i] = snapshotFromModel(sn)
	}

	if err := s.db.Clauses(cohortConflict).Create(&recs).Error; err == nil {
		return len(recs), nil
	}

	stored := 0
	var lastErr error
	for i := range recs {
		rec := recs[i]
		rec.ID = 0
		if err := s.db.Clauses(cohortConflict).Create(&rec).Error; err != nil {
			lastErr = err
			continue
		}
		stored++
	}
	if stored == 0 {
		return 0, fmt.Errorf("storing snapshots: %w", lastErr)
	}
	return stored, nil
}

// LatestSnapshot returns the most recent snapshot for a cohort, or nil when
// the cohort has never been collected.
func (s *Store) LatestSnapshot(cardID, grader, grade string) (*model.PriceSnapshot, error) {
	var rec snapshotRecord
	err := s.db.
		Where("card_id = ? AND grader = ? AND grade = ?", cardID, grader, grade).
		Order("snapshot_date DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s/%s %s: %w", cardID, grader, grade, err)
	}
	snap := rec.toModel()
	return &snap, nil
}

// SnapshotHistory returns all snapshots for a card, newest first.
func (s *Store) SnapshotHistory(cardID string) ([]model.PriceSnapshot, error) {
	var recs []snapshotRecord
	err := s.db.
		Where("card_id = ?", cardID).
		Order("snapshot_date DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("loading snapshot history for %s: %w", cardID, err)
	}
	snaps := make([]model.PriceSnapshot, len(recs))
	for i, r := range recs {
		snaps[i] = r.toModel()
	}
	return snaps, nil
}

func (r snapshotRecord) toModel() model.PriceSnapshot {
	return model.PriceSnapshot{
		CardID:       r.CardID,
		SnapshotDate: r.SnapshotDate,
		Grade:        r.Grade,
		Grader:       r.Grader,
		Mean:         r.Mean,
		Median:       r.Median,
		P25:          r.P25,
		P75:          r.P75,
		StdDev:       r.StdDev,
		Volume:       r.Volume,
		Confidence:   r.Confidence,
	}
}

func snapshotFromModel(sn model.PriceSnapshot) snapshotRecord {
	return snapshotRecord{
		CardID:       sn.CardID,
		SnapshotDate: sn.SnapshotDate,
		Grade:        sn.Grade,
		Grader:       sn.Grader,
		Mean:         sn.Mean,
		Median:       sn.Median,
		P25:          sn.P25,
		P75:          sn.P75,
		StdDev:       sn.StdDev,
		Volume:       sn.Volume,
		Confidence:   sn.Confidence,
	}
}
