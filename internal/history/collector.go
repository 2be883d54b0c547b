// Package history runs the historical collection job: completed-sale
// sampling per card and grade cohort, outlier-resistant summarization, and
// snapshot persistence.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/slabwatch/slabwatch/internal/ebay"
	"github.com/slabwatch/slabwatch/internal/metrics"
	"github.com/slabwatch/slabwatch/internal/model"
	"github.com/slabwatch/slabwatch/internal/stats"
	"github.com/slabwatch/slabwatch/internal/validate"
)

// minSampleSize is the smallest completed-sale sample worth summarizing.
// Below it the fallback source is consulted; still below it, the cohort is
// skipped for this run.
const minSampleSize = 3

// completedResultLimit is the per-cohort result cap for sold searches.
const completedResultLimit = 50

// cohort is one (grader, grade) bucket collected per card.
type cohort struct {
	Grader model.Grader
	Grade  string
}

// defaultCohorts covers the grades the fair-value resolver and ROI model
// actually consult, plus the raw bucket.
var defaultCohorts = []cohort{
	{model.GraderPSA, "PSA 10"},
	{model.GraderPSA, "PSA 9"},
	{model.GraderPSA, "PSA 8"},
	{model.GraderPSA, "PSA 7"},
	{model.GraderBGS, "BGS 9.5"},
	{model.GraderBGS, "BGS 9"},
	{model.GraderBGS, "BGS 8"},
	{model.GraderSGC, "SGC 10"},
	{model.GraderSGC, "SGC 9"},
	{model.GraderNone, "Raw"},
}

// CompletedSource searches the marketplace's sold-listings view.
type CompletedSource interface {
	SearchCompleted(ctx context.Context, query string, limit int) ([]model.CompletedSale, error)
}

// FallbackSource is a secondary sold-sales feed consulted when the primary
// sample is too thin. May be nil.
type FallbackSource interface {
	SoldSales(ctx context.Context, query string) ([]model.CompletedSale, error)
}

// CardSource supplies the cards to collect for.
type CardSource interface {
	ActiveCards() ([]model.WatchlistCard, error)
}

// SnapshotStore persists cohort summaries.
type SnapshotStore interface {
	UpsertSnapshots(snaps []model.PriceSnapshot) (int, error)
}

// RunSummary reports what one collection run accomplished.
type RunSummary struct {
	Cards           int       `json:"cards"`
	SnapshotsStored int       `json:"snapshots_stored"`
	CohortsSkipped  int       `json:"cohorts_skipped"`
	StartedAt       time.Time `json:"started_at"`
	Elapsed         string    `json:"elapsed"`
}

// Collector gathers completed sales and writes price snapshots.
type Collector struct {
	completed CompletedSource
	fallback  FallbackSource
	cards     CardSource
	snapshots SnapshotStore
	limiter   *rate.Limiter
	now       func() time.Time
	log       zerolog.Logger
}

// NewCollector builds a collector. fallback may be nil.
func NewCollector(completed CompletedSource, fallback FallbackSource, cards CardSource, snapshots SnapshotStore, limiter *rate.Limiter, log zerolog.Logger) *Collector {
	return &Collector{
		completed: completed,
		fallback:  fallback,
		cards:     cards,
		snapshots: snapshots,
		limiter:   limiter,
		now:       time.Now,
		log:       log.With().Str("component", "history").Logger(),
	}
}

// Run collects every active card's cohorts and persists the snapshots in
// one batch. A failing card is logged and skipped.
func (c *Collector) Run(ctx context.Context) (RunSummary, error) {
	started := c.now()

	cards, err := c.cards.ActiveCards()
	if err != nil {
		return RunSummary{}, fmt.Errorf("loading watchlist: %w", err)
	}

	var batch []model.PriceSnapshot
	skipped := 0
	for _, card := range cards {
		if err := c.limiter.Wait(ctx); err != nil {
			return RunSummary{}, fmt.Errorf("collection interrupted: %w", err)
		}

		snaps, skip, err := c.collectCard(ctx, card)
		if err != nil {
			c.log.Error().Err(err).Str("player", card.Player).Msg("card collection failed, continuing")
			continue
		}
		batch = append(batch, snaps...)
		skipped += skip
	}

	stored, err := c.snapshots.UpsertSnapshots(batch)
	if err != nil {
		return RunSummary{}, fmt.Errorf("persisting snapshots: %w", err)
	}
	metrics.SnapshotsStored.Add(float64(stored))
	metrics.CollectionRunDuration.Observe(time.Since(started).Seconds())

	summary := RunSummary{
		Cards:           len(cards),
		SnapshotsStored: stored,
		CohortsSkipped:  skipped,
		StartedAt:       started,
		Elapsed:         time.Since(started).Round(time.Millisecond).String(),
	}
	c.log.Info().
		Int("cards", summary.Cards).
		Int("stored", summary.SnapshotsStored).
		Int("skipped", summary.CohortsSkipped).
		Msg("collection run complete")
	return summary, nil
}

func (c *Collector) collectCard(ctx context.Context, card model.WatchlistCard) ([]model.PriceSnapshot, int, error) {
	// One targeted sold query per cohort so each grade gets the full result
	// cap; a shared query would split the cap ten ways and starve every
	// cohort's sample.
	date := c.now().Format("2006-01-02")

	var snaps []model.PriceSnapshot
	skipped := 0
	for _, co := range defaultCohorts {
		sales, err := c.completed.SearchCompleted(ctx, cohortQuery(card, co), completedResultLimit)
		if err != nil {
			metrics.SnapshotsSkipped.WithLabelValues("search_error").Inc()
			return nil, 0, fmt.Errorf("sold search %s: %w", co.Grade, err)
		}

		cohortSales := matchingGrade(sales, co.Grade)
		if len(cohortSales) < minSampleSize {
			cohortSales = c.supplement(ctx, card, co, cohortSales)
		}
		if len(cohortSales) < minSampleSize {
			metrics.SnapshotsSkipped.WithLabelValues("thin_sales").Inc()
			skipped++
			continue
		}

		prices := make([]float64, len(cohortSales))
		newest := cohortSales[0].SoldAt
		for i, sale := range cohortSales {
			prices[i] = sale.Price
			if sale.SoldAt.After(newest) {
				newest = sale.SoldAt
			}
		}

		sum := stats.Summarize(prices)
		days := int(c.now().Sub(newest).Hours() / 24)
		snaps = append(snaps, model.PriceSnapshot{
			CardID:       card.ID,
			SnapshotDate: date,
			Grade:        co.Grade,
			Grader:       string(co.Grader),
			Mean:         sum.Mean,
			Median:       sum.Median,
			P25:          sum.P25,
			P75:          sum.P75,
			StdDev:       sum.StdDev,
			Volume:       sum.Kept,
			Confidence:   stats.Confidence(sum.Kept, days),
		})
	}
	return snaps, skipped, nil
}

// cohortQuery targets the sold search at one cohort: the grade term joins
// the card's identity tokens, and the raw cohort uses the ungraded query
// variant instead.
func cohortQuery(card model.WatchlistCard, co cohort) string {
	if co.Grader == model.GraderNone {
		return ebay.BuildRawQuery(card)
	}
	return ebay.BuildQuery(card) + " " + co.Grade
}

// matchingGrade keeps the sales whose title grade matches the cohort,
// deduplicated by item ID. A grade-targeted query still returns neighboring
// grades and relisted duplicates.
func matchingGrade(sales []model.CompletedSale, grade string) []model.CompletedSale {
	seen := make(map[string]struct{}, len(sales))
	var kept []model.CompletedSale
	for _, sale := range sales {
		if validate.ExtractGrade(sale.Title).Grade != grade {
			continue
		}
		if _, dup := seen[sale.ItemID]; dup {
			continue
		}
		seen[sale.ItemID] = struct{}{}
		kept = append(kept, sale)
	}
	return kept
}

// supplement pads a thin cohort from the fallback feed.
func (c *Collector) supplement(ctx context.Context, card model.WatchlistCard, co cohort, have []model.CompletedSale) []model.CompletedSale {
	if c.fallback == nil {
		return have
	}

	extra, err := c.fallback.SoldSales(ctx, cohortQuery(card, co))
	if err != nil {
		c.log.Debug().Err(err).Str("grade", co.Grade).Msg("fallback sold feed unavailable")
		return have
	}

	seen := make(map[string]struct{}, len(have))
	for _, sale := range have {
		seen[sale.ItemID] = struct{}{}
	}
	for _, sale := range extra {
		if validate.ExtractGrade(sale.Title).Grade != co.Grade {
			continue
		}
		if _, dup := seen[sale.ItemID]; dup {
			continue
		}
		seen[sale.ItemID] = struct{}{}
		have = append(have, sale)
	}
	return have
}

