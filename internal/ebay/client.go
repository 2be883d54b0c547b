// Package ebay adapts the marketplace's Browse-style search service into
// the scanner's item model: query construction, channel filters, bearer
// auth, and normalization of the live and completed-sale response shapes.
package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/slabwatch/slabwatch/internal/metrics"
	"github.com/slabwatch/slabwatch/internal/model"
)

const (
	defaultBaseURL = "https://api.ebay.com"
	searchPath     = "/buy/browse/v1/item_summary/search"

	// Sports Trading Cards category.
	categorySportsCards = "212"

	// The service caps a single request far above anything we ask for.
	maxRequestLimit = 200
)

// Config holds client construction parameters. BaseURL is overridable for
// tests against a fake service.
type Config struct {
	BaseURL       string
	MarketplaceID string // e.g. EBAY_US
	Timeout       time.Duration
}

// Client queries the marketplace search service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *TokenProvider
	log        zerolog.Logger
}

// NewClient builds a search client over a token provider.
func NewClient(cfg Config, tokens *TokenProvider, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = "EBAY_US"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		log:        log.With().Str("component", "ebay").Logger(),
	}
}

// Browse-style response shapes.

type moneyValue struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type itemSummary struct {
	ItemID          string      `json:"itemId"`
	Title           string      `json:"title"`
	Price           *moneyValue `json:"price"`
	CurrentBidPrice *moneyValue `json:"currentBidPrice"`
	Condition       string      `json:"condition"`
	Seller          *struct {
		Username           string `json:"username"`
		FeedbackPercentage string `json:"feedbackPercentage"`
		FeedbackScore      int    `json:"feedbackScore"`
	} `json:"seller"`
	ItemWebURL  string `json:"itemWebUrl"`
	ItemEndDate string `json:"itemEndDate"`
	Image       *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	BuyingOptions []string `json:"buyingOptions"`
}

type browseResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

// SearchChannel runs one live search on the given channel and returns
// normalized items tagged with that channel.
func (c *Client) SearchChannel(ctx context.Context, query string, channel model.SearchChannel, limit int) ([]model.Item, error) {
	params := url.Values{}
	params.Set("q", apiQuery(query, channel))
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("category_ids", categorySportsCards)
	params.Set("sort", "EndTimeSoonest")

	switch channel {
	case model.ChannelAuction:
		params.Set("filter", "buyingOptions:{AUCTION}")
	case model.ChannelBIN:
		params.Set("filter", "buyingOptions:{FIXED_PRICE}")
	case model.ChannelRaw:
		// Ungraded condition bucket; graded slabs list under "Graded".
		params.Set("filter", "conditionIds:{1000,1500,2000,2500,3000}")
	}

	var resp browseResponse
	if err := c.get(ctx, params, channel, &resp); err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(resp.ItemSummaries))
	for _, s := range resp.ItemSummaries {
		item, ok := normalizeSummary(s, channel)
		if !ok {
			continue // malformed item, dropped silently
		}
		items = append(items, item)
	}
	return items, nil
}

// SearchCard runs the three per-card query variants (auction, buy-it-now,
// raw) concurrently, merges the results, and deduplicates by item ID with
// first occurrence winning. A failing channel contributes zero items and the
// card continues on whatever the other channels returned; only when every
// channel fails does the card's search error.
func (c *Client) SearchCard(ctx context.Context, card model.WatchlistCard, perChannel int) ([]model.Item, error) {
	gradedQuery := BuildQuery(card)
	rawQuery := BuildRawQuery(card)

	searches := []struct {
		query   string
		channel model.SearchChannel
	}{
		{gradedQuery, model.ChannelAuction},
		{gradedQuery, model.ChannelBIN},
		{rawQuery, model.ChannelRaw},
	}

	results := make([][]model.Item, len(searches))
	errs := make([]error, len(searches))
	var wg sync.WaitGroup
	for i, s := range searches {
		wg.Add(1)
		go func(i int, query string, channel model.SearchChannel) {
			defer wg.Done()
			items, err := c.SearchChannel(ctx, query, channel, perChannel)
			if err != nil {
				errs[i] = err
				c.log.Warn().Err(err).
					Str("channel", string(channel)).
					Str("player", card.Player).
					Msg("channel search failed, contributing zero items")
				return
			}
			results[i] = items
		}(i, s.query, s.channel)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(searches) {
		return nil, fmt.Errorf("all channels failed: %w", errors.Join(errs...))
	}

	seen := make(map[string]struct{})
	var merged []model.Item
	for _, items := range results {
		for _, item := range items {
			if _, dup := seen[item.ItemID]; dup {
				continue
			}
			seen[item.ItemID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged, nil
}

// SearchCompleted queries the sold-items view of the search service and
// normalizes its distinct response shape into completed sales.
func (c *Client) SearchCompleted(ctx context.Context, query string, limit int) ([]model.CompletedSale, error) {
	params := url.Values{}
	params.Set("q", stripNegativeKeywords(query))
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("category_ids", categorySportsCards)
	params.Set("sort", "EndTimeSoonest")
	params.Set("filter", "conditions:{USED,NEW},soldItems:true")

	var resp browseResponse
	if err := c.get(ctx, params, model.ChannelCompleted, &resp); err != nil {
		return nil, err
	}

	sales := make([]model.CompletedSale, 0, len(resp.ItemSummaries))
	for _, s := range resp.ItemSummaries {
		price, ok := parseMoney(s.Price)
		if !ok || price < 1 {
			continue
		}
		sale := model.CompletedSale{
			ItemID:    s.ItemID,
			Title:     s.Title,
			Price:     price,
			Condition: s.Condition,
		}
		// A missing or unparseable end date stays the zero time so recency
		// scoring treats the sale as stale rather than fresh.
		if t, err := time.Parse(time.RFC3339, s.ItemEndDate); err == nil {
			sale.SoldAt = t
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (c *Client) get(ctx context.Context, params url.Values, channel model.SearchChannel, out *browseResponse) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		metrics.MarketplaceRequests.WithLabelValues(string(channel), "auth_error").Inc()
		return fmt.Errorf("acquiring token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.cfg.MarketplaceID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.MarketplaceRequests.WithLabelValues(string(channel), "transport_error").Inc()
		return fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.MarketplaceRequests.WithLabelValues(string(channel), strconv.Itoa(resp.StatusCode)).Inc()
		return fmt.Errorf("search returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	metrics.MarketplaceRequests.WithLabelValues(string(channel), "ok").Inc()

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing search response: %w", err)
	}
	return nil
}

// normalizeSummary folds one response item into the internal shape. Items
// without a parseable price are rejected here rather than poisoning
// downstream statistics.
func normalizeSummary(s itemSummary, channel model.SearchChannel) (model.Item, bool) {
	price, priceOK := parseMoney(s.Price)
	bid, _ := parseMoney(s.CurrentBidPrice)
	if !priceOK && bid == 0 {
		return model.Item{}, false
	}
	if s.ItemID == "" || s.Title == "" {
		return model.Item{}, false
	}

	item := model.Item{
		ItemID:        s.ItemID,
		Title:         s.Title,
		Price:         price,
		BidPrice:      bid,
		Condition:     s.Condition,
		URL:           s.ItemWebURL,
		BuyingOptions: s.BuyingOptions,
		Source:        channel,
	}
	if s.Price != nil {
		item.Currency = s.Price.Currency
	}
	if s.Seller != nil {
		item.SellerUsername = s.Seller.Username
		item.SellerFeedback = s.Seller.FeedbackScore
		if pct, err := strconv.ParseFloat(s.Seller.FeedbackPercentage, 64); err == nil {
			item.SellerPositivePct = pct
		} else {
			item.SellerPositivePct = 100
		}
	}
	if s.Image != nil {
		item.ImageURL = s.Image.ImageURL
	}
	if s.ItemEndDate != "" {
		if t, err := time.Parse(time.RFC3339, s.ItemEndDate); err == nil {
			item.EndTime = t
		}
	}
	return item, true
}

func parseMoney(m *moneyValue) (float64, bool) {
	if m == nil || m.Value == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var negativeKeywordPattern = regexp.MustCompile(`-\S+`)

// stripNegativeKeywords removes exclusion terms: the sold-items view
// rejects queries carrying them.
func stripNegativeKeywords(query string) string {
	cleaned := negativeKeywordPattern.ReplaceAllString(query, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > maxRequestLimit {
		return maxRequestLimit
	}
	return limit
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
