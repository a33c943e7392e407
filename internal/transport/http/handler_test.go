package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiniela-service/internal/app"
	"quiniela-service/internal/domain"
	"quiniela-service/internal/infra/memory"
)

func newTestServer(t *testing.T, brand domain.Brand, now *time.Time) *httptest.Server {
	t.Helper()
	store := memory.NewContestStore()
	store.AddBrand(brand)

	catalog := []domain.Question{
		{Key: "winner", Category: "deportivas", Type: domain.QuestionSelect, Difficulty: domain.DifficultyEasy, Active: true},
		{Key: "score", Category: "deportivas", Type: domain.QuestionScore, Difficulty: domain.DifficultyMedium, Active: true},
	}
	service := app.NewContestServiceWithClock(app.Repositories{
		Brands:       store,
		Catalog:      memory.NewCatalogRepository(memory.NewStaticCatalogLoader(catalog), time.Minute),
		Participants: store,
		Predictions:  store,
		Results:      store.Results(),
	}, func() time.Time { return *now })

	mux := http.NewServeMux()
	NewAPIHandler(service, nil).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestContestFlowOverHTTP(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	brand := domain.Brand{ID: "b1", Slug: "acme", Name: "Acme", AdminSecret: "s3cret", Active: true}
	server := newTestServer(t, brand, &now)
	admin := map[string]string{"X-Admin-Secret": "s3cret"}

	resp := postJSON(t, server.URL+"/api/acme/participants", map[string]string{
		"name":  "Alice",
		"email": "alice@example.com",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	var registered struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &registered)

	resp = postJSON(t, server.URL+"/api/acme/predictions", map[string]any{
		"userId": registered.ID,
		"predictions": map[string]any{
			"winner": "TeamA",
			"score":  map[string]string{"team1": "4", "team2": "1"},
		},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("predictions status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Admin endpoints reject a missing or wrong secret.
	resp = postJSON(t, server.URL+"/api/acme/admin/results", map[string]any{
		"results": map[string]any{"winner": "TeamA"},
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/acme/admin/results", map[string]any{
		"results": map[string]any{
			"winner": "teamA",
			"score":  map[string]string{"team1": "4", "team2": "1"},
		},
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/acme/admin/calculate", nil, admin)
	var calc struct {
		Updated int `json:"updated"`
	}
	decodeBody(t, resp, &calc)
	if calc.Updated != 1 {
		t.Fatalf("expected 1 updated, got %d", calc.Updated)
	}

	lbResp, err := http.Get(server.URL + "/api/acme/leaderboard")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var lb domain.Leaderboard
	decodeBody(t, lbResp, &lb)
	if len(lb.Entries) != 1 {
		t.Fatalf("expected one entry, got %+v", lb.Entries)
	}
	// 10 + 15 base, +15 category, +50 all-perfect.
	if lb.Entries[0].Score != 90 || lb.Entries[0].CorrectPredictions != 2 {
		t.Fatalf("unexpected standings %+v", lb.Entries[0])
	}
}

func TestPredictionsRejectedAfterLock(t *testing.T) {
	now := time.Date(2026, 2, 8, 19, 0, 0, 0, time.UTC)
	brand := domain.Brand{
		ID: "b1", Slug: "acme", Name: "Acme", AdminSecret: "s3cret", Active: true,
		PredictionsLockAt: time.Date(2026, 2, 8, 18, 30, 0, 0, time.UTC),
	}
	server := newTestServer(t, brand, &now)

	resp := postJSON(t, server.URL+"/api/acme/participants", map[string]string{
		"name":  "Late Larry",
		"email": "larry@example.com",
	}, nil)
	var registered struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &registered)

	resp = postJSON(t, server.URL+"/api/acme/predictions", map[string]any{
		"userId":      registered.ID,
		"predictions": map[string]any{"winner": "TeamA"},
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 after lock, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnknownBrandIs404(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	server := newTestServer(t, domain.Brand{ID: "b1", Slug: "acme", Active: true}, &now)

	resp, err := http.Get(server.URL + "/api/globex/leaderboard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
