// Package scanner runs the full opportunity pipeline: watchlist iteration,
// marketplace search, validation, fair-value comparison, threshold scoring,
// and ranking.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/slabwatch/slabwatch/internal/fairvalue"
	"github.com/slabwatch/slabwatch/internal/metrics"
	"github.com/slabwatch/slabwatch/internal/model"
	"github.com/slabwatch/slabwatch/internal/validate"
)

// Acceptance thresholds per channel, in percent below fair value (or ROI%
// for raw cards). The escape valve admits exceptional deals on any channel.
const (
	AuctionThreshold     = 20.0
	BINThreshold         = 30.0
	RawROIThreshold      = 40.0
	EscapeValveThreshold = 50.0
)

// Marketplace searches all three channel variants for one card.
type Marketplace interface {
	SearchCard(ctx context.Context, card model.WatchlistCard, perChannel int) ([]model.Item, error)
}

// CardSource supplies the active watchlist.
type CardSource interface {
	ActiveCards() ([]model.WatchlistCard, error)
}

// DismissalSource supplies the set of suppressed item IDs.
type DismissalSource interface {
	DismissedItemIDs(now time.Time) (map[string]struct{}, error)
}

// FairValueSource resolves a cohort's historical estimate.
type FairValueSource interface {
	Resolve(cardID, grader, grade string) (fairvalue.Estimate, error)
}

// ROIModel prices the grading play for an ungraded card.
type ROIModel interface {
	Estimate(rawPrice float64, cardID string) model.RawROI
}

// Config tunes a Scanner.
type Config struct {
	// PerChannelLimit is the live-result cap per channel query.
	PerChannelLimit int
	// MaxOpportunities bounds the ranked output. This is a feed bound,
	// not a page size.
	MaxOpportunities int
}

// Scanner wires the pipeline stages together.
type Scanner struct {
	cfg        Config
	market     Marketplace
	cards      CardSource
	dismissals DismissalSource
	fairValues FairValueSource
	roi        ROIModel
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// New builds a scanner. The limiter paces card-to-card progress so a full
// watchlist sweep stays inside the marketplace's usage policy.
func New(cfg Config, market Marketplace, cards CardSource, dismissals DismissalSource, fairValues FairValueSource, roi ROIModel, limiter *rate.Limiter, log zerolog.Logger) *Scanner {
	if cfg.PerChannelLimit <= 0 {
		cfg.PerChannelLimit = 4
	}
	if cfg.MaxOpportunities <= 0 {
		cfg.MaxOpportunities = 200
	}
	return &Scanner{
		cfg:        cfg,
		market:     market,
		cards:      cards,
		dismissals: dismissals,
		fairValues: fairValues,
		roi:        roi,
		limiter:    limiter,
		log:        log.With().Str("component", "scanner").Logger(),
	}
}

// Scan sweeps every active watchlist card and returns the ranked
// opportunity list. A failing card is logged and skipped; the sweep always
// runs to the end of the watchlist.
func (s *Scanner) Scan(ctx context.Context) ([]model.Opportunity, error) {
	started := time.Now()

	cards, err := s.cards.ActiveCards()
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}

	dismissed, err := s.dismissals.DismissedItemIDs(started)
	if err != nil {
		// Dismissals are a filter, not a gate: scan without them rather
		// than returning nothing.
		s.log.Warn().Err(err).Msg("dismissal set unavailable, scanning unfiltered")
		dismissed = map[string]struct{}{}
	}
	metrics.DismissalsActive.Set(float64(len(dismissed)))

	seen := make(map[string]struct{})
	var found []model.Opportunity

	for _, card := range cards {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("scan interrupted: %w", err)
		}

		metrics.ScanCardsTotal.Inc()
		opps, err := s.scanCard(ctx, card, dismissed, seen)
		if err != nil {
			metrics.ScanCardFailures.Inc()
			s.log.Error().Err(err).Str("player", card.Player).Msg("card scan failed, continuing")
			continue
		}
		found = append(found, opps...)
	}

	rankOpportunities(found)
	if len(found) > s.cfg.MaxOpportunities {
		found = found[:s.cfg.MaxOpportunities]
	}

	metrics.ScanDuration.Observe(time.Since(started).Seconds())
	metrics.OpportunitiesFound.Set(float64(len(found)))
	s.log.Info().
		Int("cards", len(cards)).
		Int("opportunities", len(found)).
		Dur("elapsed", time.Since(started)).
		Msg("scan complete")
	return found, nil
}

func (s *Scanner) scanCard(ctx context.Context, card model.WatchlistCard, dismissed, seen map[string]struct{}) ([]model.Opportunity, error) {
	items, err := s.market.SearchCard(ctx, card, s.cfg.PerChannelLimit)
	if err != nil {
		return nil, fmt.Errorf("marketplace search: %w", err)
	}

	var opps []model.Opportunity
	for _, item := range items {
		if _, dup := seen[item.ItemID]; dup {
			continue
		}
		seen[item.ItemID] = struct{}{}

		if _, gone := dismissed[item.ItemID]; gone {
			continue
		}

		verdict := validate.Classify(item, item.Source)
		if !verdict.Accept {
			metrics.ItemsRejected.WithLabelValues(verdict.Rule).Inc()
			continue
		}

		opp, ok := s.score(card, item)
		if !ok {
			continue
		}
		metrics.OpportunitiesByReason.WithLabelValues(reasonTier(opp)).Inc()
		opps = append(opps, opp)
	}
	return opps, nil
}

// score decides whether one validated item clears its channel threshold and
// builds the opportunity if so.
func (s *Scanner) score(card model.WatchlistCard, item model.Item) (model.Opportunity, bool) {
	grade := validate.ExtractGrade(item.Title)
	channel := validate.DecideChannel(item)
	price := item.EffectivePrice()

	opp := model.Opportunity{
		ListingID:         item.ItemID,
		CardID:            card.ID,
		Title:             item.Title,
		CurrentPrice:      price,
		SellerUsername:    item.SellerUsername,
		SellerFeedback:    item.SellerFeedback,
		SellerPositivePct: item.SellerPositivePct,
		URL:               item.URL,
		ImageURL:          item.ImageURL,
		Grade:             grade.Grade,
		Grader:            grade.Grader,
		GradeNumber:       grade.Number,
		Channel:           channel,
		Card: model.CardInfo{
			Player:        card.Player,
			Year:          card.Year,
			Brand:         card.Brand,
			SetName:       card.SetName,
			Parallel:      card.Parallel,
			PriorityScore: card.PriorityScore,
		},
		FoundAt: time.Now(),
	}
	if channel != model.ListingAuction && item.Price > 0 {
		opp.BuyItNowPrice = item.Price
	}
	if !item.EndTime.IsZero() {
		opp.HoursRemaining = time.Until(item.EndTime).Hours()
	}

	// Raw cards are a grading play: score on ROI, not on discount.
	if item.Source == model.ChannelRaw && grade.Raw() {
		est := s.roi.Estimate(price, card.ID)
		if est.ROIPercentage < RawROIThreshold {
			return model.Opportunity{}, false
		}
		opp.RawROI = &est
		opp.PercentBelow = est.ROIPercentage
		opp.FairValue = est.ExpectedValue
		opp.Confidence = est.Confidence
		opp.UsesRealData = est.UsesRealData
		opp.AlertReason = fmt.Sprintf("Raw grading play: %.0f%% projected ROI", est.ROIPercentage)
		return opp, true
	}

	fv, confidence, usesReal, ok := s.fairValueFor(card.ID, grade)
	if !ok || fv <= 0 {
		return model.Opportunity{}, false
	}
	percentBelow := (fv - price) / fv * 100
	if !clearsThreshold(channel, percentBelow, usesReal) {
		return model.Opportunity{}, false
	}

	opp.FairValue = fv
	opp.PercentBelow = percentBelow
	opp.Confidence = confidence
	opp.UsesRealData = usesReal
	opp.AlertReason = alertReason(channel, percentBelow, usesReal)
	if opp.HoursRemaining > 0 && opp.HoursRemaining <= endingSoonHours {
		opp.AlertReason += fmt.Sprintf(", ending in %.0fh", opp.HoursRemaining)
	}
	return opp, true
}

// endingSoonHours marks auctions closing soon in the alert reason.
const endingSoonHours = 24.0

// fairValueFor resolves the cohort's snapshot-backed estimate. ok is false
// when the cohort has never been collected or the lookup fails; usesReal is
// false when a snapshot exists but its confidence is too thin to treat as
// evidence.
func (s *Scanner) fairValueFor(cardID string, grade model.GradeInfo) (fv, confidence float64, usesReal, ok bool) {
	est, err := s.fairValues.Resolve(cardID, string(grade.Grader), grade.Grade)
	if err != nil {
		s.log.Debug().Err(err).Str("grade", grade.Grade).Msg("fair-value lookup failed, listing skipped")
		return 0, 0, false, false
	}
	if !est.HasData {
		return 0, 0, false, false
	}
	return est.Average, float64(est.Confidence), est.Reliable(), true
}

// clearsThreshold applies the per-channel bars. A discount computed against
// a thin-confidence average qualifies only through the escape valve; a
// price-derived fair value would put every listing a fixed percentage below
// itself and turn the channel thresholds into no-ops.
func clearsThreshold(channel model.ListingChannel, percentBelow float64, usesReal bool) bool {
	if percentBelow >= EscapeValveThreshold {
		return true
	}
	if !usesReal {
		return false
	}
	switch channel {
	case model.ListingBIN:
		return percentBelow >= BINThreshold
	default:
		// Pure auctions and hybrid listings can be won at the bid price.
		return percentBelow >= AuctionThreshold
	}
}

func alertReason(channel model.ListingChannel, percentBelow float64, usesReal bool) string {
	basis := "historical average"
	if !usesReal {
		basis = "limited sales history"
	}
	if percentBelow >= EscapeValveThreshold {
		return fmt.Sprintf("Exceptional deal: %.0f%% below %s", percentBelow, basis)
	}
	switch channel {
	case model.ListingBIN:
		return fmt.Sprintf("Buy It Now %.0f%% below %s", percentBelow, basis)
	default:
		return fmt.Sprintf("Auction %.0f%% below %s", percentBelow, basis)
	}
}

// reasonTier buckets an opportunity for metrics; the free-text alert reason
// is too high-cardinality for a label.
func reasonTier(opp model.Opportunity) string {
	switch {
	case opp.RawROI != nil:
		return "raw_roi"
	case opp.PercentBelow >= EscapeValveThreshold:
		return "exceptional"
	case opp.Channel == model.ListingBIN:
		return "bin"
	default:
		return "auction"
	}
}

// rankOpportunities orders by discount depth, breaking ties with the
// watchlist priority score.
func rankOpportunities(opps []model.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].PercentBelow != opps[j].PercentBelow {
			return opps[i].PercentBelow > opps[j].PercentBelow
		}
		return opps[i].Card.PriorityScore > opps[j].Card.PriorityScore
	})
}
