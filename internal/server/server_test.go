package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabwatch/slabwatch/internal/model"
	"github.com/slabwatch/slabwatch/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	return New(Config{Port: 0}, st, nil, nil, zerolog.Nop())
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpportunitiesBeforeFirstScan(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/opportunities", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Opportunities []model.Opportunity `json:"opportunities"`
		Message       string              `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Opportunities)
	assert.NotEmpty(t, resp.Message)
}

func TestScanWithoutCredentials(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWatchlistCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/watchlist", model.WatchlistCard{
		Player: "Victor Wembanyama", Year: 2023, Brand: "Panini", SetName: "Prizm",
		GradesMonitored: []string{"PSA 10", "Raw"}, PriorityScore: 90, Active: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.WatchlistCard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = doJSON(t, s, http.MethodGet, "/api/watchlist/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	created.PriorityScore = 99
	w = doJSON(t, s, http.MethodPut, "/api/watchlist/"+created.ID, created)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Cards []model.WatchlistCard `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Cards, 1)
	assert.Equal(t, 99, list.Cards[0].PriorityScore)

	w = doJSON(t, s, http.MethodDelete, "/api/watchlist/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/watchlist/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCardValidation(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/watchlist", model.WatchlistCard{Brand: "Topps"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDismissalEndpointsAndFeedPruning(t *testing.T) {
	s := newTestServer(t)

	// Seed a cached feed so dismissal can prune it.
	s.mu.Lock()
	s.lastScan = []model.Opportunity{
		{ListingID: "keep", Title: "keeper"},
		{ListingID: "drop", Title: "dismissed one"},
	}
	s.mu.Unlock()

	w := doJSON(t, s, http.MethodPost, "/api/dismissals", model.DismissalRecord{
		ItemID: "drop", Title: "dismissed one",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	s.mu.RLock()
	require.Len(t, s.lastScan, 1)
	assert.Equal(t, "keep", s.lastScan[0].ListingID)
	s.mu.RUnlock()

	w = doJSON(t, s, http.MethodGet, "/api/dismissals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Dismissals []model.DismissalRecord `json:"dismissals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Dismissals, 1)

	w = doJSON(t, s, http.MethodDelete, "/api/dismissals/drop", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/dismissals/drop", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDismissRequiresItemID(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/dismissals", model.DismissalRecord{Title: "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportOpportunitiesCSV(t *testing.T) {
	s := newTestServer(t)
	s.mu.Lock()
	s.lastScan = []model.Opportunity{{
		ListingID:    "a1",
		Card:         model.CardInfo{Player: "Victor Wembanyama", Year: 2023},
		CurrentPrice: 75, FairValue: 100, PercentBelow: 25,
	}}
	s.mu.Unlock()

	w := doJSON(t, s, http.MethodGet, "/api/opportunities/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "Victor Wembanyama")
}

func TestCollectWithoutCredentials(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/admin/collect", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
