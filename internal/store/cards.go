package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slabwatch/slabwatch/internal/model"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("not found")

// ActiveCards returns the watchlist cards eligible for scanning.
func (s *Store) ActiveCards() ([]model.WatchlistCard, error) {
	var recs []cardRecord
	if err := s.db.Where("active = ?", true).Order("priority_score DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("loading active cards: %w", err)
	}
	cards := make([]model.WatchlistCard, len(recs))
	for i, r := range recs {
		cards[i] = r.toModel()
	}
	return cards, nil
}

// AllCards returns the full watchlist, active or not.
func (s *Store) AllCards() ([]model.WatchlistCard, error) {
	var recs []cardRecord
	if err := s.db.Order("priority_score DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("loading cards: %w", err)
	}
	cards := make([]model.WatchlistCard, len(recs))
	for i, r := range recs {
		cards[i] = r.toModel()
	}
	return cards, nil
}

// GetCard looks up one card by ID.
func (s *Store) GetCard(id string) (model.WatchlistCard, error) {
	var rec cardRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.WatchlistCard{}, ErrNotFound
	}
	if err != nil {
		return model.WatchlistCard{}, fmt.Errorf("loading card %s: %w", id, err)
	}
	return rec.toModel(), nil
}

// CreateCard inserts a new watchlist card, assigning an ID when absent.
func (s *Store) CreateCard(card model.WatchlistCard) (model.WatchlistCard, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	rec := cardFromModel(card)
	if err := s.db.Create(&rec).Error; err != nil {
		return model.WatchlistCard{}, fmt.Errorf("creating card: %w", err)
	}
	return rec.toModel(), nil
}

// UpdateCard replaces a card's fields.
func (s *Store) UpdateCard(card model.WatchlistCard) error {
	rec := cardFromModel(card)
	res := s.db.Model(&cardRecord{}).Where("id = ?", card.ID).Updates(map[string]any{
		"player":           rec.Player,
		"sport":            rec.Sport,
		"year":             rec.Year,
		"brand":            rec.Brand,
		"set_name":         rec.SetName,
		"parallel":         rec.Parallel,
		"grades_monitored": rec.GradesMonitored,
		"priority_score":   rec.PriorityScore,
		"active":           rec.Active,
	})
	if res.Error != nil {
		return fmt.Errorf("updating card %s: %w", card.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCard removes a card from the watchlist. Its snapshots are kept;
// history stays useful if the card is re-added.
func (s *Store) DeleteCard(id string) error {
	res := s.db.Delete(&cardRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting card %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r cardRecord) toModel() model.WatchlistCard {
	return model.WatchlistCard{
		ID:              r.ID,
		Player:          r.Player,
		Sport:           r.Sport,
		Year:            r.Year,
		Brand:           r.Brand,
		SetName:         r.SetName,
		Parallel:        r.Parallel,
		GradesMonitored: splitGrades(r.GradesMonitored),
		PriorityScore:   r.PriorityScore,
		Active:          r.Active,
	}
}

func cardFromModel(c model.WatchlistCard) cardRecord {
	return cardRecord{
		ID:              c.ID,
		Player:          c.Player,
		Sport:           c.Sport,
		Year:            c.Year,
		Brand:           c.Brand,
		SetName:         c.SetName,
		Parallel:        c.Parallel,
		GradesMonitored: joinGrades(c.GradesMonitored),
		PriorityScore:   c.PriorityScore,
		Active:          c.Active,
	}
}
