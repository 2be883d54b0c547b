package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/slabwatch/slabwatch/internal/model"
)

func newTokenServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var mints int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Error("token request missing basic auth")
		}
		atomic.AddInt32(&mints, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   7200,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &mints
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	srv, mints := newTokenServer(t)
	p := NewTokenProvider("id", "secret", srv.URL)

	for i := 0; i < 4; i++ {
		tok, err := p.Token(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if tok != "tok-123" {
			t.Fatalf("token = %q", tok)
		}
	}
	if n := atomic.LoadInt32(mints); n != 1 {
		t.Errorf("minted %d tokens, want 1", n)
	}
}

func TestTokenRefreshesInsideMargin(t *testing.T) {
	srv, mints := newTokenServer(t)
	p := NewTokenProvider("id", "secret", srv.URL)

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Force the cached token inside the refresh margin.
	p.mu.Lock()
	p.expiresAt = time.Now().Add(-time.Second)
	p.mu.Unlock()

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(mints); n != 2 {
		t.Errorf("minted %d tokens, want 2", n)
	}
}

func TestTokenWithoutCredentials(t *testing.T) {
	p := NewTokenProvider("", "", "")
	if p.Configured() {
		t.Error("empty credentials reported as configured")
	}
	if _, err := p.Token(context.Background()); err == nil {
		t.Error("expected error without credentials")
	}
}

// fakeBrowse serves canned item summaries and records the filters it saw.
func fakeBrowse(t *testing.T, tokenURL string, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL}, NewTokenProvider("id", "secret", tokenURL), zerolog.Nop())
	return c, srv
}

func summaryJSON(id, title, price string) map[string]any {
	return map[string]any{
		"itemId": id,
		"title":  title,
		"price":  map[string]string{"value": price, "currency": "USD"},
		"seller": map[string]any{
			"username":           "cardshop",
			"feedbackPercentage": "99.8",
			"feedbackScore":      4200,
		},
		"itemWebUrl":    "https://example.com/itm/" + id,
		"itemEndDate":   time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339),
		"buyingOptions": []string{"FIXED_PRICE"},
	}
}

func TestSearchChannelNormalizesItems(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	c, _ := fakeBrowse(t, tokenSrv.URL, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.Header.Get("X-EBAY-C-MARKETPLACE-ID"); got != "EBAY_US" {
			t.Errorf("marketplace header = %q", got)
		}
		if got := r.URL.Query().Get("filter"); got != "buyingOptions:{AUCTION}" {
			t.Errorf("auction filter = %q", got)
		}
		if got := r.URL.Query().Get("category_ids"); got != "212" {
			t.Errorf("category = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total": 3,
			"itemSummaries": []map[string]any{
				summaryJSON("v1|111|0", "2023 Prizm Wembanyama PSA 9", "250.00"),
				summaryJSON("v1|222|0", "2023 Prizm Wembanyama PSA 10", "not-a-price"),
				summaryJSON("v1|333|0", "2023 Prizm Wembanyama BGS 9.5", "410.50"),
			},
		})
	})

	items, err := c.SearchChannel(context.Background(), "wembanyama prizm", model.ChannelAuction, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (malformed price dropped)", len(items))
	}
	first := items[0]
	if first.ItemID != "v1|111|0" || first.Price != 250 || first.Source != model.ChannelAuction {
		t.Errorf("unexpected item: %+v", first)
	}
	if first.SellerPositivePct != 99.8 || first.SellerFeedback != 4200 {
		t.Errorf("seller fields not mapped: %+v", first)
	}
	if first.EndTime.IsZero() {
		t.Error("end time not parsed")
	}
}

func TestSearchChannelErrorStatus(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	c, _ := fakeBrowse(t, tokenSrv.URL, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"rate limited"}]}`, http.StatusTooManyRequests)
	})

	if _, err := c.SearchChannel(context.Background(), "q", model.ChannelBIN, 10); err == nil {
		t.Error("expected error on 429")
	}
}

func TestSearchCardMergesAndDedupes(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	c, _ := fakeBrowse(t, tokenSrv.URL, func(w http.ResponseWriter, r *http.Request) {
		// The same listing comes back on every channel; it must appear once.
		json.NewEncoder(w).Encode(map[string]any{
			"total": 2,
			"itemSummaries": []map[string]any{
				summaryJSON("dup|1|0", "2023 Prizm Wembanyama", "99.99"),
				summaryJSON(r.URL.Query().Get("filter"), "2023 Prizm Wembanyama", "120.00"),
			},
		})
	})

	items, err := c.SearchCard(context.Background(), model.WatchlistCard{
		Player: "Victor Wembanyama", Year: 2023, Brand: "Panini", SetName: "Prizm",
	}, 5)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]int{}
	for _, it := range items {
		seen[it.ItemID]++
	}
	if seen["dup|1|0"] != 1 {
		t.Errorf("duplicate listing appeared %d times, want 1", seen["dup|1|0"])
	}
	// The filter-keyed IDs differ per channel, so three channels yield
	// three distinct extras plus the shared listing.
	if len(items) != 4 {
		t.Errorf("got %d merged items, want 4", len(items))
	}
}

func TestSearchCardSurvivesChannelFailure(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	c, _ := fakeBrowse(t, tokenSrv.URL, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") == "buyingOptions:{AUCTION}" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"itemSummaries": []map[string]any{
				summaryJSON("ok|"+r.URL.Query().Get("filter"), "2023 Prizm Wembanyama", "75.00"),
			},
		})
	})

	items, err := c.SearchCard(context.Background(), model.WatchlistCard{
		Player: "Victor Wembanyama", Year: 2023, Brand: "Panini", SetName: "Prizm",
	}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items from surviving channels, want 2", len(items))
	}
}

func TestSearchCardErrorsWhenAllChannelsFail(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	c, _ := fakeBrowse(t, tokenSrv.URL, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.SearchCard(context.Background(), model.WatchlistCard{
		Player: "Victor Wembanyama", Year: 2023, Brand: "Panini", SetName: "Prizm",
	}, 5)
	if err == nil {
		t.Error("expected error when every channel fails")
	}
}

func TestSearchCompleted(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	c, _ := fakeBrowse(t, tokenSrv.URL, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); !strings.Contains(got, "soldItems:true") {
			t.Errorf("completed filter = %q", got)
		}
		if q := r.URL.Query().Get("q"); strings.Contains(q, "-auto") {
			t.Errorf("negative keywords leaked into sold query: %q", q)
		}
		undated := summaryJSON("s3", "2023 Prizm Wembanyama PSA 9", "230.00")
		delete(undated, "itemEndDate")
		json.NewEncoder(w).Encode(map[string]any{
			"total": 3,
			"itemSummaries": []map[string]any{
				summaryJSON("s1", "2023 Prizm Wembanyama PSA 9", "240.00"),
				summaryJSON("s2", "2023 Prizm Wembanyama PSA 9", "0.50"),
				undated,
			},
		})
	})

	sales, err := c.SearchCompleted(context.Background(), "wembanyama prizm -auto -patch", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(sales) != 2 {
		t.Fatalf("got %d sales, want 2 (sub-dollar sale dropped)", len(sales))
	}
	if sales[0].Price != 240 || sales[0].SoldAt.IsZero() {
		t.Errorf("unexpected sale: %+v", sales[0])
	}
	// The sale without an end date keeps the zero time; fabricating "now"
	// would hand full recency credit to the least dated data.
	if !sales[1].SoldAt.IsZero() {
		t.Errorf("undated sale got a timestamp: %v", sales[1].SoldAt)
	}
}
