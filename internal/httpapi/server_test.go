package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"greenpulse/internal/greenpulse/repository"
	"greenpulse/internal/greenpulse/service"
	"greenpulse/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	registry := prometheus.NewRegistry()
	opts := service.Options{
		ChartMonths: 3,
		Metrics:     metrics.New(registry),
		Now:         func() time.Time { return fixedNow },
	}
	srv := New(Config{Addr: ":0", Gatherer: registry},
		service.NewImpactService(store, opts),
		service.NewPerUserCoordinator(store, opts),
	)
	return srv, store
}

func seed(t *testing.T, store *repository.MemoryStore) {
	t.Helper()
	put := func(path []string, data map[string]interface{}) {
		require.NoError(t, store.Put(path, data))
	}
	put(append(repository.EnergyRecordsPath("u1"), "e1"), map[string]interface{}{
		"value": 120.0, "timestamp": time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), "device": "Solar",
	})
	put(repository.DonationPath("d1"), map[string]interface{}{
		"userId": "u1", "amountCoins": 60.0, "beneficiaryType": "auto", "createdAt": time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	})
	put(repository.TotalCreditsPath("u1"), map[string]interface{}{
		"totalReceived": 40.0,
		"donationHistory": []interface{}{
			map[string]interface{}{"amount": 40.0, "fromUserEmail": "a@example.com", "timestamp": time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)},
		},
	})
}

func do(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDashboard(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	rec := do(t, srv, http.MethodGet, "/v1/users/u1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, 120.0, body["coinsGenerated"])
	assert.Equal(t, 60.0, body["coinsDonated"])
	assert.Equal(t, 2.0, body["familiesHelped"])
	monthly := body["monthly"].(map[string]interface{})
	assert.Len(t, monthly["generated"], 3)
}

func TestGetDashboardInvalidMonths(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/users/u1/dashboard?months=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["kind"])

	rec = do(t, srv, http.MethodGet, "/v1/users/u1/dashboard?months=99", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLedger(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	rec := do(t, srv, http.MethodGet, "/v1/users/u1/ledger?category=credits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	txs := body["transactions"].([]interface{})
	require.Len(t, txs, 1)
	assert.Equal(t, "credit", txs[0].(map[string]interface{})["category"])

	rec = do(t, srv, http.MethodGet, "/v1/users/nobody/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["transactions"])
}

func TestGetCoverage(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	rec := do(t, srv, http.MethodGet, "/v1/users/u1/coverage?bill=8", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	coverage := decode(t, rec)["coverage"].(map[string]interface{})
	assert.Equal(t, 50.0, coverage["percent"])
	assert.Equal(t, true, coverage["defined"])

	rec = do(t, srv, http.MethodGet, "/v1/users/u1/coverage", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostDonationUpdatesCommunityGoal(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/donations", []byte(`{"userId":"u1","amountCoins":75}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	event := decode(t, rec)
	assert.Equal(t, "auto", event["beneficiaryType"])
	assert.NotEmpty(t, event["id"])

	rec = do(t, srv, http.MethodGet, "/v1/community-goal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	goal := decode(t, rec)
	assert.Equal(t, 75.0, goal["totalCoins"])
	assert.Equal(t, 2.0, goal["familiesHelped"])
	assert.Equal(t, true, goal["lastUpdatedKnown"])
}

func TestPostDonationValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []string{
		`{"userId":"u1","amountCoins":0}`,
		`{"userId":"u1","amountCoins":5000}`,
		`{"userId":"","amountCoins":5}`,
		`{"userId":"u1","amountCoins":5,"beneficiaryType":"manual"}`,
		`not json`,
	}
	for _, body := range cases {
		rec := do(t, srv, http.MethodPost, "/v1/donations", []byte(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, false, decode(t, rec)["retryable"], body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/donations", []byte(`{"userId":"u1","amountCoins":5}`))

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "greenpulse_donation_submissions_total"))
}
