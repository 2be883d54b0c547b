package model

import "time"

// WatchlistCard is one tracked card definition. Immutable during a scan
// cycle; only the admin API mutates it.
type WatchlistCard struct {
	ID              string   `json:"id"`
	Player          string   `json:"player"`
	Sport           string   `json:"sport"`
	Year            int      `json:"year"`
	Brand           string   `json:"brand"`
	SetName         string   `json:"set_name"`
	Parallel        string   `json:"parallel,omitempty"`
	GradesMonitored []string `json:"grades_monitored"`
	PriorityScore   int      `json:"priority_score"`
	Active          bool     `json:"active"`
}

// SearchChannel identifies which of the per-card query variants produced an
// item, and doubles as the classifier's requested-channel argument.
type SearchChannel string

const (
	ChannelAuction   SearchChannel = "auction"
	ChannelBIN       SearchChannel = "bin"
	ChannelRaw       SearchChannel = "raw"
	ChannelCompleted SearchChannel = "completed"
)

// Item is one normalized marketplace listing. Constructed fresh per API
// response, folded into an Opportunity or discarded.
type Item struct {
	ItemID            string
	Title             string
	Price             float64
	BidPrice          float64 // current bid, 0 when no bids / not an auction
	Currency          string
	Condition         string
	SellerUsername    string
	SellerFeedback    int
	SellerPositivePct float64
	URL               string
	ImageURL          string
	EndTime           time.Time // zero when the listing has no end time
	BuyingOptions     []string
	Source            SearchChannel // query variant that returned this item
}

// EffectivePrice prefers the live bid over the list price, matching how the
// marketplace reports auctions in progress.
func (it Item) EffectivePrice() float64 {
	if it.BidPrice > 0 {
		return it.BidPrice
	}
	return it.Price
}

// Grader is a closed enumeration of grading companies.
type Grader string

const (
	GraderPSA  Grader = "PSA"
	GraderBGS  Grader = "BGS"
	GraderSGC  Grader = "SGC"
	GraderNone Grader = ""
)

// GradeInfo is derived once per item title and never mutated.
type GradeInfo struct {
	Grader Grader  `json:"grader,omitempty"`
	Grade  string  `json:"grade"` // "PSA 9", "BGS 9.5", or "Raw"
	Number float64 `json:"grade_number,omitempty"`
}

// Raw reports whether no grading company was recognized in the title.
func (g GradeInfo) Raw() bool {
	return g.Grader == GraderNone
}

// ListingChannel is the closed classification of how a listing can be bought.
type ListingChannel string

const (
	ListingAuction    ListingChannel = "Auction"
	ListingBIN        ListingChannel = "BIN"
	ListingAuctionBIN ListingChannel = "Auction+BIN"
)

// CompletedSale is one historical sold listing.
type CompletedSale struct {
	ItemID    string
	Title     string
	Price     float64
	SoldAt    time.Time
	Condition string
	Grader    Grader
	Grade     string
}

// PriceSnapshot is the persisted statistical summary for one
// (card, grader, grade) cohort on one collection date. At most one current
// snapshot exists per cohort; a new run supersedes, never merges.
type PriceSnapshot struct {
	CardID       string  `json:"card_id"`
	SnapshotDate string  `json:"snapshot_date"` // YYYY-MM-DD
	Grade        string  `json:"grade"`
	Grader       string  `json:"grader"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	P25          float64 `json:"p25"`
	P75          float64 `json:"p75"`
	StdDev       float64 `json:"stddev"`
	Volume       int     `json:"volume"`
	Confidence   int     `json:"confidence_score"` // 0-100
}

// RawROI is the expected-value breakdown for grading an ungraded card.
type RawROI struct {
	ROIPercentage   float64 `json:"roi_percentage"`
	ExpectedValue   float64 `json:"expected_value"`
	GradingCost     float64 `json:"grading_cost"`
	PotentialProfit float64 `json:"potential_profit"`
	Confidence      float64 `json:"confidence_score"`
	UsesRealData    bool    `json:"uses_real_data"`
}

// CardInfo is the slice of a WatchlistCard carried on an Opportunity.
type CardInfo struct {
	Player        string `json:"player"`
	Year          int    `json:"year"`
	Brand         string `json:"brand"`
	SetName       string `json:"set_name"`
	Parallel      string `json:"parallel,omitempty"`
	PriorityScore int    `json:"priority_score"`
}

// Opportunity is one validated listing that cleared a unicorn threshold,
// enriched with fair-value context. Constructed fresh each scan.
type Opportunity struct {
	ListingID         string         `json:"listing_id"`
	CardID            string         `json:"card_id"`
	Title             string         `json:"title"`
	CurrentPrice      float64        `json:"current_price"`
	BuyItNowPrice     float64        `json:"buy_it_now_price,omitempty"`
	HoursRemaining    float64        `json:"time_remaining_hours"`
	SellerUsername    string         `json:"seller_username"`
	SellerFeedback    int            `json:"seller_feedback_score"`
	SellerPositivePct float64        `json:"seller_positive_percentage"`
	URL               string         `json:"url"`
	ImageURL          string         `json:"image_url,omitempty"`
	ThumbnailURL      string         `json:"thumbnail_url,omitempty"`
	Grade             string         `json:"grade"`
	Grader            Grader         `json:"grader,omitempty"`
	GradeNumber       float64        `json:"grade_number,omitempty"`
	Channel           ListingChannel `json:"listing_type"`
	Card              CardInfo       `json:"card_info"`
	FairValue         float64        `json:"average_price"`
	PercentBelow      float64        `json:"percent_below_avg"`
	Confidence        float64        `json:"confidence_score"`
	UsesRealData      bool           `json:"uses_real_data"`
	AlertReason       string         `json:"alert_reason"`
	RawROI            *RawROI        `json:"raw_roi,omitempty"`
	FoundAt           time.Time      `json:"found_at"`
}

// DismissalRecord suppresses a listing from opportunity output until expiry.
type DismissalRecord struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	CardID         string    `json:"card_id"`
	Title          string    `json:"title"`
	CurrentPrice   float64   `json:"current_price"`
	SellerUsername string    `json:"seller_username"`
	URL            string    `json:"url,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	Note           string    `json:"note,omitempty"`
	DismissedAt    time.Time `json:"dismissed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// DaysRemaining returns whole days until the dismissal lapses, floored at 0.
func (d DismissalRecord) DaysRemaining(now time.Time) int {
	if !d.ExpiresAt.After(now) {
		return 0
	}
	return int(d.ExpiresAt.Sub(now).Hours()/24) + 1
}
