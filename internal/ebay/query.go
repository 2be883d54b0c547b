package ebay

import (
	"strconv"
	"strings"

	"github.com/slabwatch/slabwatch/internal/model"
)

// Negative keywords appended to every live query to keep premium variants,
// lots, and damaged cards out of the candidate pool before validation even
// runs. Grouped the way sellers actually title listings.
var negativeKeywords = []string{
	// Premium card exclusions
	"-auto", "-autograph", "-autographed", "-signed", "-signature",
	"-patch", "-jersey", "-game-used", "-worn", "-relic",
	"-memorabilia", "-dual", "-triple", "-quad",

	// Numbered/premium parallel exclusions
	"-/25", "-/50", "-/75", "-/99", "-/100", "-/199", "-/299",
	"-silver", "-gold", "-platinum", "-black", "-red", "-blue", "-green",
	"-prizm", "-refractor", "-chrome", "-shimmer", "-crystal",
	"-rainbow", "-disco", "-atomic", "-laser", "-holo",

	// Lot/set exclusions
	"-lot", "-set", "-collection", "-complete", "-full",
	"-choose", "-pick", "-\"you pick\"", "-random", "-mystery",
	"-commons", "-\"base cards\"", "-duplicates", "-extras",
	"-bulk", "-wholesale", "-mixed",

	// Condition exclusions
	"-damaged", "-crease", "-corner", "-edge", "-surface",
	"-\"off-center\"", "-miscut", "-\"print line\"", "-stain",

	// Low-value exclusions
	"-reprint", "-reproduction", "-facsimile", "-copy",
	"-custom", "-proxy", "-alter", "-sketch",
}

// NegativeKeywords returns the shared exclusion suffix as one string.
func NegativeKeywords() string {
	return strings.Join(negativeKeywords, " ")
}

// BuildQuery assembles the graded-search query for a card from its identity
// tokens. The parallel name is included only when it is a real variant.
func BuildQuery(card model.WatchlistCard) string {
	parts := []string{
		card.Player,
		strconv.Itoa(card.Year),
		card.Brand,
		card.SetName,
		"card",
	}
	if card.Parallel != "" && !strings.EqualFold(card.Parallel, "Base") {
		parts = append(parts, card.Parallel)
	}
	return strings.Join(parts, " ")
}

// BuildRawQuery assembles the ungraded-search variant of the query.
func BuildRawQuery(card model.WatchlistCard) string {
	parts := []string{
		card.Player,
		strconv.Itoa(card.Year),
		card.Brand,
		card.SetName,
		"card",
		"ungraded",
	}
	if card.Parallel != "" && !strings.EqualFold(card.Parallel, "Base") {
		parts = append(parts, card.Parallel)
	}
	return strings.Join(parts, " ")
}

// apiQuery trims a query to what the search service tolerates: a bounded
// number of core terms plus a channel-appropriate subset of the negative
// keywords. The full exclusion list overflows the service's query length cap.
func apiQuery(query string, channel model.SearchChannel) string {
	words := strings.Fields(query)

	if channel == model.ChannelRaw {
		if len(words) > 6 {
			words = words[:6]
		}
		return strings.Join(words, " ") +
			" -auto -autograph -patch -jersey -/25 -/50 -/99 -silver -gold -prizm"
	}

	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ") + " -auto -autograph -patch -jersey -/25 -/50"
}
