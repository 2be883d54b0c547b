package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slabwatch/slabwatch/internal/model"
	"github.com/slabwatch/slabwatch/internal/report"
	"github.com/slabwatch/slabwatch/internal/store"
)

// getOpportunities serves the most recent scan's ranked feed.
func (s *Server) getOpportunities(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastScanAt.IsZero() {
		c.JSON(http.StatusOK, gin.H{
			"opportunities": []model.Opportunity{},
			"scanned_at":    nil,
			"message":       "no scan has completed yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"opportunities": s.lastScan,
		"scanned_at":    s.lastScanAt,
		"count":         len(s.lastScan),
	})
}

// exportOpportunities downloads the cached feed as CSV.
func (s *Server) exportOpportunities(c *gin.Context) {
	s.mu.RLock()
	opps := make([]model.Opportunity, len(s.lastScan))
	copy(opps, s.lastScan)
	s.mu.RUnlock()

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+report.Filename(time.Now().Format("2006-01-02")))
	if err := report.WriteOpportunitiesCSV(c.Writer, opps); err != nil {
		s.log.Error().Err(err).Msg("csv export failed")
	}
}

// triggerScan starts a scan unless one is already running. The scan runs in
// the background; poll /api/opportunities for the result.
func (s *Server) triggerScan(c *gin.Context) {
	if s.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "marketplace credentials not configured"})
		return
	}

	s.mu.Lock()
	if s.scanRunning {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
		return
	}
	s.scanRunning = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.scanRunning = false
			s.mu.Unlock()
		}()

		opps, err := s.scanner.Scan(context.Background())
		if err != nil {
			s.log.Error().Err(err).Msg("manual scan failed")
			return
		}
		s.mu.Lock()
		s.lastScan = opps
		s.lastScanAt = time.Now()
		s.mu.Unlock()
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

// RunScan executes a scan synchronously and caches the result. The
// scheduler calls this on its cron cadence.
func (s *Server) RunScan() error {
	if s.scanner == nil {
		return errors.New("scanner not configured")
	}
	opps, err := s.scanner.Scan(context.Background())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lastScan = opps
	s.lastScanAt = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Server) listCards(c *gin.Context) {
	cards, err := s.store.AllCards()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

func (s *Server) getCard(c *gin.Context) {
	card, err := s.store.GetCard(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) createCard(c *gin.Context) {
	var card model.WatchlistCard
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if card.Player == "" || card.Year == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player and year are required"})
		return
	}

	created, err := s.store.CreateCard(card)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateCard(c *gin.Context) {
	var card model.WatchlistCard
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card.ID = c.Param("id")

	err := s.store.UpdateCard(card)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) deleteCard(c *gin.Context) {
	err := s.store.DeleteCard(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) cardHistory(c *gin.Context) {
	snaps, err := s.store.SnapshotHistory(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *Server) listDismissals(c *gin.Context) {
	active, err := s.store.ActiveDismissals(time.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dismissals": active})
}

func (s *Server) dismiss(c *gin.Context) {
	var rec model.DismissalRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rec.ItemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
		return
	}

	saved, err := s.store.Dismiss(rec, store.DefaultDismissalTTL)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Drop the listing from the cached feed immediately rather than waiting
	// for the next scan.
	s.mu.Lock()
	kept := s.lastScan[:0]
	for _, opp := range s.lastScan {
		if opp.ListingID != saved.ItemID {
			kept = append(kept, opp)
		}
	}
	s.lastScan = kept
	s.mu.Unlock()

	c.JSON(http.StatusCreated, saved)
}

func (s *Server) restore(c *gin.Context) {
	err := s.store.Restore(c.Param("itemId"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "dismissal not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}

func (s *Server) cleanupDismissals(c *gin.Context) {
	n, err := s.store.CleanupExpiredDismissals(time.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

// triggerCollection runs a historical collection synchronously; runs are
// long but infrequent, and the caller wants the summary.
func (s *Server) triggerCollection(c *gin.Context) {
	if s.collector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "marketplace credentials not configured"})
		return
	}

	summary, err := s.collector.Run(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunCollection executes a collection run for the scheduler.
func (s *Server) RunCollection() error {
	if s.collector == nil {
		return errors.New("collector not configured")
	}
	_, err := s.collector.Run(context.Background())
	return err
}

func (s *Server) fail(c *gin.Context, err error) {
	s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
