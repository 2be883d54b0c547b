// Package soldprice scrapes a sold-listing aggregator as a fallback source
// of completed sales when the marketplace's own sold view returns too few
// results for a cohort.
package soldprice

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"

	"github.com/slabwatch/slabwatch/internal/model"
)

const defaultBaseURL = "https://130point.com/sales/"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// Config holds scraper construction parameters.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	MaxResults     int
}

// Client scrapes sold-listing pages. It is a degraded-mode source: callers
// treat an error as "no fallback data" rather than a scan failure.
type Client struct {
	config Config
	client *http.Client
}

// NewClient builds a scraper. Zero-value config fields get production
// defaults; BaseURL is overridable for tests.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 20 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.MaxResults == 0 {
		config.MaxResults = 50
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
	}
}

// SoldSales fetches recent sold listings matching the query.
func (c *Client) SoldSales(ctx context.Context, query string) ([]model.CompletedSale, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*attempt) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		sales, err := c.fetch(ctx, query)
		if err == nil {
			return sales, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("sold-price fetch failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) fetch(ctx context.Context, query string) ([]model.CompletedSale, error) {
	searchURL := fmt.Sprintf("%s?search=%s", c.config.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing sold-listing page: %w", err)
	}

	return c.parseSales(doc), nil
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Referer", "https://www.google.com/")
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// parseSales walks the result rows. Rows with an unparseable price are
// skipped rather than failing the page.
func (c *Client) parseSales(doc *goquery.Document) []model.CompletedSale {
	var sales []model.CompletedSale

	doc.Find("tr.sale-row, .sold-item").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if len(sales) >= c.config.MaxResults {
			return false
		}

		title := strings.TrimSpace(row.Find(".item-title, .title").First().Text())
		priceText := strings.TrimSpace(row.Find(".sale-price, .price").First().Text())
		dateText := strings.TrimSpace(row.Find(".sale-date, .date").First().Text())

		price, ok := parsePrice(priceText)
		if !ok || title == "" {
			return true
		}

		sale := model.CompletedSale{
			ItemID: itemIDFromRow(row, i),
			Title:  title,
			Price:  price,
			SoldAt: parseSaleDate(dateText),
		}
		sales = append(sales, sale)
		return true
	})

	return sales
}

func itemIDFromRow(row *goquery.Selection, i int) string {
	if id, ok := row.Attr("data-item-id"); ok && id != "" {
		return id
	}
	if href, ok := row.Find("a").First().Attr("href"); ok {
		if idx := strings.LastIndex(href, "/"); idx >= 0 && idx < len(href)-1 {
			return href[idx+1:]
		}
	}
	return fmt.Sprintf("scraped-%d", i)
}

func parsePrice(text string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", "USD", "").Replace(text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "Jan 2, 2006"}

// parseSaleDate returns the zero time when no layout matches. Scraped dates
// are the least trustworthy input on the page; an unknown date must score as
// stale, never as fresh.
func parseSaleDate(text string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}
