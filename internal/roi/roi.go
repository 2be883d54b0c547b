// Package roi models the expected value of buying an ungraded card and
// submitting it for grading: probability-weighted proceeds across grade
// outcomes, minus grading costs and marketplace fees.
package roi

import (
	"github.com/slabwatch/slabwatch/internal/fairvalue"
	"github.com/slabwatch/slabwatch/internal/model"
)

// Resolver is the fair-value lookup the model depends on.
type Resolver interface {
	Resolve(cardID string, grader, grade string) (fairvalue.Estimate, error)
}

// GradeValues holds one per-grade number set (values or multipliers) for the
// PSA 7-10 outcome grades.
type GradeValues struct {
	G7, G8, G9, G10 float64
}

// Policy is the single source of truth for the model's constants. The
// multiplier tables are a business decision, not a derived quantity, so they
// are configuration rather than hard-coded values.
type Policy struct {
	GradingCost float64 // flat fee per submission, shipping included
	FeeRate     float64 // marketplace + payment fee on gross proceeds

	// Probability of each grade outcome for a typical raw submission.
	// Also the weights for blending per-grade confidence.
	P7, P8, P9, P10 float64

	// Raw-price multipliers used for a grade with no snapshot and no
	// adjacent snapshot, when at least one other grade has real data.
	Optimistic GradeValues

	// Raw-price multipliers when no grade has real data at all, and for
	// the degraded path when lookups error out.
	Conservative GradeValues
}

// DefaultPolicy mirrors observed grading-population outcomes and current
// PSA economy-tier pricing.
func DefaultPolicy() Policy {
	return Policy{
		GradingCost:  35,
		FeeRate:      0.13,
		P7:           0.15,
		P8:           0.50,
		P9:           0.30,
		P10:          0.05,
		Optimistic:   GradeValues{G7: 2.0, G8: 3.5, G9: 6.0, G10: 12.0},
		Conservative: GradeValues{G7: 1.5, G8: 2.5, G9: 4.0, G10: 8.0},
	}
}

// Confidence constants for the two estimate-only paths.
const (
	estimateConfidence = 25
	degradedConfidence = 10
)

// Model computes raw-card ROI against resolved PSA cohort values.
type Model struct {
	policy   Policy
	resolver Resolver
}

// NewModel builds a model over a fair-value resolver.
func NewModel(resolver Resolver, policy Policy) *Model {
	return &Model{policy: policy, resolver: resolver}
}

// Estimate computes the ROI breakdown for buying card cardID raw at
// rawPrice. Grades PSA 7-10 are resolved independently; grades without real
// data are backfilled from the nearest available grade by fixed ratio, then
// from raw-price multipliers. When nothing is evidence-backed the
// conservative multiplier set applies and the result is flagged
// UsesRealData=false.
func (m *Model) Estimate(rawPrice float64, cardID string) model.RawROI {
	grader := string(model.GraderPSA)

	e7, err7 := m.resolver.Resolve(cardID, grader, "PSA 7")
	e8, err8 := m.resolver.Resolve(cardID, grader, "PSA 8")
	e9, err9 := m.resolver.Resolve(cardID, grader, "PSA 9")
	e10, err10 := m.resolver.Resolve(cardID, grader, "PSA 10")

	if err7 != nil || err8 != nil || err9 != nil || err10 != nil {
		// Lookup failure is deeper uncertainty than mere data absence:
		// use the conservative table with minimal confidence.
		return m.fromMultipliers(rawPrice, m.policy.Conservative, degradedConfidence)
	}

	anyReal := e7.Reliable() || e8.Reliable() || e9.Reliable() || e10.Reliable()
	if !anyReal {
		return m.fromMultipliers(rawPrice, m.policy.Conservative, estimateConfidence)
	}

	opt := m.policy.Optimistic
	values := GradeValues{
		G7:  pick(e7, adjacent(e8, 0.6), rawPrice*opt.G7),
		G8:  pick(e8, adjacent(e9, 0.7), rawPrice*opt.G8),
		G9:  pick(e9, adjacent(e10, 0.4), rawPrice*opt.G9),
		G10: pick(e10, adjacent(e9, 2.5), rawPrice*opt.G10),
	}

	confidence := m.policy.P7*float64(e7.Confidence) +
		m.policy.P8*float64(e8.Confidence) +
		m.policy.P9*float64(e9.Confidence) +
		m.policy.P10*float64(e10.Confidence)

	result := m.compute(rawPrice, values)
	result.Confidence = confidence
	result.UsesRealData = true
	return result
}

// pick resolves a grade's value: its own snapshot first, then the
// adjacent-grade ratio, then the raw-price multiplier.
func pick(own fairvalue.Estimate, adjacentValue, multiplierValue float64) float64 {
	if own.HasData {
		return own.Average
	}
	if adjacentValue > 0 {
		return adjacentValue
	}
	return multiplierValue
}

// adjacent derives a missing grade from a neighboring cohort, or 0 when the
// neighbor has no data either.
func adjacent(neighbor fairvalue.Estimate, ratio float64) float64 {
	if !neighbor.HasData {
		return 0
	}
	return neighbor.Average * ratio
}

func (m *Model) fromMultipliers(rawPrice float64, mult GradeValues, confidence float64) model.RawROI {
	values := GradeValues{
		G7:  rawPrice * mult.G7,
		G8:  rawPrice * mult.G8,
		G9:  rawPrice * mult.G9,
		G10: rawPrice * mult.G10,
	}
	result := m.compute(rawPrice, values)
	result.Confidence = confidence
	result.UsesRealData = false
	return result
}

// compute runs the fixed-probability expected value arithmetic. Rounding is
// left to presentation.
func (m *Model) compute(rawPrice float64, values GradeValues) model.RawROI {
	gross := m.policy.P10*values.G10 +
		m.policy.P9*values.G9 +
		m.policy.P8*values.G8 +
		m.policy.P7*values.G7

	net := gross * (1 - m.policy.FeeRate)
	totalCost := rawPrice + m.policy.GradingCost
	profit := net - totalCost

	return model.RawROI{
		ROIPercentage:   profit / totalCost * 100,
		ExpectedValue:   net,
		GradingCost:     m.policy.GradingCost,
		PotentialProfit: profit,
	}
}
