package validate

import (
	"github.com/slabwatch/slabwatch/internal/model"
)

// Marketplace buying-option flag values.
const (
	optionFixedPrice = "FIXED_PRICE"
	optionAuction    = "AUCTION"
)

// DecideChannel maps a listing's buying-option flags to the closed channel
// classification. When the marketplace omits the flags, it falls back to a
// field-presence heuristic: a list price with neither a live bid nor an end
// time reads as fixed-price, an end time with a live bid reads as auction.
func DecideChannel(item model.Item) model.ListingChannel {
	var fixed, auction bool
	for _, opt := range item.BuyingOptions {
		switch opt {
		case optionFixedPrice:
			fixed = true
		case optionAuction:
			auction = true
		}
	}

	switch {
	case fixed && auction:
		return model.ListingAuctionBIN
	case fixed:
		return model.ListingBIN
	case auction:
		return model.ListingAuction
	}

	if item.Price > 0 && item.BidPrice == 0 && item.EndTime.IsZero() {
		return model.ListingBIN
	}
	if !item.EndTime.IsZero() && item.BidPrice > 0 {
		return model.ListingAuction
	}
	return model.ListingBIN
}
