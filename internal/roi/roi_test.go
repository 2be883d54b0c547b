package roi

import (
	"errors"
	"math"
	"testing"

	"github.com/slabwatch/slabwatch/internal/fairvalue"
)

// fakeResolver serves canned estimates keyed by grade label.
type fakeResolver struct {
	estimates map[string]fairvalue.Estimate
	err       error
}

func (f *fakeResolver) Resolve(cardID, grader, grade string) (fairvalue.Estimate, error) {
	if f.err != nil {
		return fairvalue.Estimate{}, f.err
	}
	return f.estimates[grade], nil
}

func within(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.4f, want %.4f", name, got, want)
	}
}

func TestEstimateWithFullRealData(t *testing.T) {
	r := &fakeResolver{estimates: map[string]fairvalue.Estimate{
		"PSA 7":  {Average: 100, Confidence: 80, Volume: 10, HasData: true},
		"PSA 8":  {Average: 175, Confidence: 80, Volume: 10, HasData: true},
		"PSA 9":  {Average: 300, Confidence: 80, Volume: 10, HasData: true},
		"PSA 10": {Average: 600, Confidence: 80, Volume: 10, HasData: true},
	}}
	m := NewModel(r, DefaultPolicy())

	got := m.Estimate(50, "card-1")

	// gross = .05*600 + .30*300 + .50*175 + .15*100 = 222.5
	// net   = 222.5 * 0.87 = 193.575
	// cost  = 50 + 35 = 85; profit = 108.575; roi = 127.7%
	within(t, "expected value", got.ExpectedValue, 193.575, 1e-9)
	within(t, "profit", got.PotentialProfit, 108.575, 1e-9)
	within(t, "roi", got.ROIPercentage, 127.735294, 1e-4)
	within(t, "confidence", got.Confidence, 80, 1e-9)
	if !got.UsesRealData {
		t.Error("full real data should be flagged UsesRealData")
	}
	if got.GradingCost != 35 {
		t.Errorf("grading cost = %v, want 35", got.GradingCost)
	}
}

func TestEstimateBackfillsFromAdjacentGrade(t *testing.T) {
	// Only PSA 9 has real data: 7 has no adjacent-8 data so it falls to the
	// raw multiplier, 8 derives from 9 at 0.7x, 10 derives from 9 at 2.5x.
	r := &fakeResolver{estimates: map[string]fairvalue.Estimate{
		"PSA 9": {Average: 200, Confidence: 90, Volume: 8, HasData: true},
	}}
	p := DefaultPolicy()
	m := NewModel(r, p)

	got := m.Estimate(40, "card-1")

	g7 := 40 * p.Optimistic.G7 // 80
	g8 := 200 * 0.7            // 140
	g9 := 200.0
	g10 := 200 * 2.5 // 500
	gross := 0.05*g10 + 0.30*g9 + 0.50*g8 + 0.15*g7
	within(t, "expected value", got.ExpectedValue, gross*0.87, 1e-9)
	if !got.UsesRealData {
		t.Error("one reliable cohort should count as real data")
	}
	// Confidence blends the single real cohort against zeros.
	within(t, "confidence", got.Confidence, 0.30*90, 1e-9)
}

func TestEstimateNoDataUsesConservativeTable(t *testing.T) {
	m := NewModel(&fakeResolver{estimates: map[string]fairvalue.Estimate{}}, DefaultPolicy())

	got := m.Estimate(50, "card-1")

	// gross = 50 * (.05*8 + .30*4 + .50*2.5 + .15*1.5) = 50 * 3.075 = 153.75
	within(t, "expected value", got.ExpectedValue, 153.75*0.87, 1e-9)
	within(t, "confidence", got.Confidence, 25, 1e-9)
	if got.UsesRealData {
		t.Error("no-data estimate must not claim real data")
	}
}

func TestEstimateLowConfidenceDataIsNotReal(t *testing.T) {
	// Snapshots exist but none clears the 50-confidence gate, so the whole
	// model falls back to the conservative table.
	r := &fakeResolver{estimates: map[string]fairvalue.Estimate{
		"PSA 8": {Average: 175, Confidence: 40, Volume: 2, HasData: true},
		"PSA 9": {Average: 300, Confidence: 35, Volume: 1, HasData: true},
	}}
	m := NewModel(r, DefaultPolicy())

	got := m.Estimate(50, "card-1")
	if got.UsesRealData {
		t.Error("sub-50 confidence cohorts must not count as real data")
	}
	within(t, "confidence", got.Confidence, 25, 1e-9)
}

func TestEstimateResolverErrorDegrades(t *testing.T) {
	m := NewModel(&fakeResolver{err: errors.New("store offline")}, DefaultPolicy())

	got := m.Estimate(50, "card-1")

	within(t, "confidence", got.Confidence, 10, 1e-9)
	if got.UsesRealData {
		t.Error("degraded path must not claim real data")
	}
	// Same conservative table as the no-data path.
	within(t, "expected value", got.ExpectedValue, 153.75*0.87, 1e-9)
}
