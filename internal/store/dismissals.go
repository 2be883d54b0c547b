package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/slabwatch/slabwatch/internal/model"
)

// DefaultDismissalTTL is how long a dismissed listing stays suppressed.
const DefaultDismissalTTL = 30 * 24 * time.Hour

// Dismiss suppresses a listing until the TTL lapses. Re-dismissing the same
// listing resets its clock.
func (s *Store) Dismiss(d model.DismissalRecord, ttl time.Duration) (model.DismissalRecord, error) {
	if ttl <= 0 {
		ttl = DefaultDismissalTTL
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now()
	d.DismissedAt = now
	d.ExpiresAt = now.Add(ttl)

	rec := dismissalRecord{
		ID:             d.ID,
		ItemID:         d.ItemID,
		CardID:         d.CardID,
		Title:          d.Title,
		CurrentPrice:   d.CurrentPrice,
		SellerUsername: d.SellerUsername,
		URL:            d.URL,
		ImageURL:       d.ImageURL,
		Note:           d.Note,
		DismissedAt:    d.DismissedAt,
		ExpiresAt:      d.ExpiresAt,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "current_price", "seller_username", "url", "image_url",
			"note", "dismissed_at", "expires_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return model.DismissalRecord{}, fmt.Errorf("dismissing %s: %w", d.ItemID, err)
	}
	return d, nil
}

// DismissedItemIDs returns the set of item IDs with an unexpired dismissal.
// The scanner consults this once per run rather than per listing.
func (s *Store) DismissedItemIDs(now time.Time) (map[string]struct{}, error) {
	var ids []string
	err := s.db.Model(&dismissalRecord{}).
		Where("expires_at > ?", now).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("loading dismissed items: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ActiveDismissals lists unexpired dismissals, newest first.
func (s *Store) ActiveDismissals(now time.Time) ([]model.DismissalRecord, error) {
	var recs []dismissalRecord
	err := s.db.
		Where("expires_at > ?", now).
		Order("dismissed_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("loading dismissals: %w", err)
	}
	out := make([]model.DismissalRecord, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// Restore lifts a dismissal early, letting the listing surface again on the
// next scan.
func (s *Store) Restore(itemID string) error {
	res := s.db.Delete(&dismissalRecord{}, "item_id = ?", itemID)
	if res.Error != nil {
		return fmt.Errorf("restoring %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CleanupExpiredDismissals deletes lapsed records and returns the count.
func (s *Store) CleanupExpiredDismissals(now time.Time) (int, error) {
	res := s.db.Delete(&dismissalRecord{}, "expires_at <= ?", now)
	if res.Error != nil {
		return 0, fmt.Errorf("cleaning up dismissals: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r dismissalRecord) toModel() model.DismissalRecord {
	return model.DismissalRecord{
		ID:             r.ID,
		ItemID:         r.ItemID,
		CardID:         r.CardID,
		Title:          r.Title,
		CurrentPrice:   r.CurrentPrice,
		SellerUsername: r.SellerUsername,
		URL:            r.URL,
		ImageURL:       r.ImageURL,
		Note:           r.Note,
		DismissedAt:    r.DismissedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}
