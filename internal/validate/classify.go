package validate

import (
	"regexp"
	"strings"

	"github.com/slabwatch/slabwatch/internal/model"
)

// Absolute price sanity band. Below the floor is shill/junk noise; above the
// ceiling is almost certainly a mis-listed lot or typo.
const (
	MinPrice = 1.0
	MaxPrice = 50000.0
)

// Bundle, lot and multi-card indicators. Any one rejects the item: cohort
// statistics are only meaningful for single base cards.
var bundleTerms = []string{
	"lot of", "choose", "pick", "you pick",
	"entire set", "complete set", "full set", "base set",
	"mixed lot", "random", "mystery", "grab bag",
	"commons", "base cards", "duplicates", "extras",
	"binder", "collection", "bulk", "wholesale",
}

// Premium-variant indicators. Rejected on every channel so that valuation
// comparisons stay apples-to-apples against base cards.
var premiumTerms = []string{
	"autograph", "auto ", "/25", "/50", "/75", "/99",
	"patch", "jersey", "game used", "worn", "relic",
	"memorabilia", "dual", "triple", "quad",
	"signature", "signed",
}

// Grading-company terms that must not appear in a raw-channel title.
var gradedTerms = []string{
	"psa", "bgs", "sgc", "graded", "certified", "authenticated",
}

// Grade number followed by a qualitative condition word, e.g. "9 mint".
var gradeNumberPattern = regexp.MustCompile(`(?i)\b(10|[1-9])(\.\d+)?\s*(gem|mint|excellent|good|poor|authentic|grade|graded)\b`)

// Verdict is the classifier's accept/reject decision. Rule is a stable,
// low-cardinality label for metrics; Reason carries the specific term.
type Verdict struct {
	Accept bool
	Rule   string
	Reason string
}

func reject(rule, reason string) Verdict { return Verdict{Rule: rule, Reason: reason} }

// Classify applies the rejection rules in order: price band, bundle terms,
// premium-variant terms, and (raw channel only) graded-card
// leakage. Any single rule rejects.
func Classify(item model.Item, channel model.SearchChannel) Verdict {
	price := item.EffectivePrice()
	if price < MinPrice {
		return reject("price_band", "price below floor")
	}
	if price > MaxPrice {
		return reject("price_band", "price above ceiling")
	}

	title := strings.ToLower(item.Title)

	for _, term := range bundleTerms {
		if strings.Contains(title, term) {
			return reject("bundle", "bundle indicator: "+term)
		}
	}

	for _, term := range premiumTerms {
		if strings.Contains(title, term) {
			return reject("premium", "premium variant: "+term)
		}
	}

	if channel == model.ChannelRaw {
		// "ungraded" contains "graded" but means the opposite.
		rawTitle := strings.ReplaceAll(title, "ungraded", "")
		for _, term := range gradedTerms {
			if strings.Contains(rawTitle, term) {
				return reject("graded_leak", "graded card in raw search: "+term)
			}
		}
		if gradeNumberPattern.MatchString(rawTitle) {
			return reject("graded_leak", "graded card in raw search: grade number pattern")
		}
	}

	return Verdict{Accept: true}
}
