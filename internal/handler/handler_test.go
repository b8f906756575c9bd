package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdusco/affiliated/internal/db"
	"github.com/abdusco/affiliated/internal/repo"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	sqlDB, err := db.Init(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	Register(e, repo.NewStore(sqlDB))
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAffiliateFlow(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/api/partners", `{"name":"Acme","platform":"ShareASale","api_key":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
	partner := decode[PartnerEnvelope](t, rec).Partner
	assert.Equal(t, "active", partner.Status)

	rec = do(t, e, http.MethodPost, "/api/links",
		fmt.Sprintf(`{"partner_id":%d,"brand_name":"Acme Shoes","affiliate_url":"https://x.co/a"}`, partner.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	link := decode[LinkEnvelope](t, rec).Link
	assert.Equal(t, "active", link.Status)
	assert.Equal(t, "Acme", link.PartnerName)

	for range 3 {
		rec = do(t, e, http.MethodPost, fmt.Sprintf("/api/links/%d/click", link.ID), "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "https://x.co/a", decode[RecordClickResponse](t, rec).RedirectURL)
	}

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/go/%d", link.ID), "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://x.co/a", rec.Header().Get(echo.HeaderLocation))

	rec = do(t, e, http.MethodPost, "/api/transactions",
		fmt.Sprintf(`{"link_id":%d,"amount_collected":50.004,"status":"pending"}`, link.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[TransactionEnvelope](t, rec).Transaction
	assert.Equal(t, 50.0, tx.AmountCollected)
	assert.Equal(t, "USD", tx.Currency)
	assert.Nil(t, tx.PayoutDate)

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/links/%d", link.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[LinkEnvelope](t, rec).Link.Stats
	require.NotNil(t, stats)
	assert.Equal(t, LinkStatsResponse{
		TotalClicks:    4,
		TotalCollected: 50.00,
		TotalPaid:      0,
		PendingAmount:  50.00,
		ConversionRate: 25.00,
	}, *stats)

	rec = do(t, e, http.MethodPut, fmt.Sprintf("/api/transactions/%d", tx.ID), `{"status":"paid","amount_paid":45}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, decode[TransactionEnvelope](t, rec).Transaction.PayoutDate)

	for _, path := range []string{"/api/analytics/partner/%d", "/api/analytics/partners/%d"} {
		rec = do(t, e, http.MethodGet, fmt.Sprintf(path, partner.ID), "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		overview := decode[PartnerOverviewResponse](t, rec)
		assert.Equal(t, "Acme", overview.Partner.Name)
		assert.Equal(t, int64(1), overview.Stats.TotalLinks)
		assert.Equal(t, 45.0, overview.Stats.TotalPaid)
		assert.Equal(t, 0.0, overview.Stats.PendingAmount)
	}

	rec = do(t, e, http.MethodGet, "/api/analytics/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	system := decode[OverviewResponse](t, rec)
	assert.Equal(t, int64(1), system.Overview.ActivePartners)
	assert.Equal(t, int64(4), system.Overview.TotalClicks)
	assert.Equal(t, 45.0, system.Overview.TotalPaid)
	assert.Len(t, system.RecentClicks, 4)
	assert.Len(t, system.RecentTransactions, 1)
	require.Len(t, system.TopLinks, 1)
	assert.Equal(t, link.ID, system.TopLinks[0].Link.ID)
	assert.Equal(t, 50.0, system.TopLinks[0].Revenue)
	require.NotNil(t, system.TopLinks[0].Link.Stats)
	assert.Equal(t, int64(4), system.TopLinks[0].Link.Stats.TotalClicks)

	raw := decode[map[string]json.RawMessage](t, rec)
	assert.Contains(t, raw, "overview")
	assert.NotContains(t, raw, "total_clicks")

	rec = do(t, e, http.MethodGet, "/api/partners", "")
	require.Equal(t, http.StatusOK, rec.Code)
	partners := decode[[]PartnerResponse](t, rec)
	require.Len(t, partners, 1)
	assert.Equal(t, int64(1), partners[0].TotalLinks)

	rec = do(t, e, http.MethodDelete, fmt.Sprintf("/api/partners/%d", partner.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/links/%d", link.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/transactions/%d", tx.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorStatusCodes(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		kind   string
	}{
		{"missing partner", http.MethodGet, "/api/partners/42", "", http.StatusNotFound, "not_found"},
		{"missing link redirect", http.MethodGet, "/go/42", "", http.StatusNotFound, "not_found"},
		{"unknown partner reference", http.MethodPost, "/api/links", `{"partner_id":42,"brand_name":"x","affiliate_url":"u"}`, http.StatusBadRequest, "reference"},
		{"missing fields", http.MethodPost, "/api/partners", `{}`, http.StatusBadRequest, "validation"},
		{"bad status", http.MethodPost, "/api/partners", `{"name":"a","platform":"b","status":"gone"}`, http.StatusBadRequest, "validation"},
		{"malformed body", http.MethodPost, "/api/partners", `{"name":`, http.StatusBadRequest, ""},
		{"bad id", http.MethodGet, "/api/links/abc", "", http.StatusBadRequest, ""},
		{"bad filter", http.MethodGet, "/api/links?partner_id=x", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())

			body := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/api/partners", `{"platform":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{"name"}, body.Fields)
	assert.Contains(t, body.Error, "name")
}

func TestListFilters(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/api/partners", `{"name":"Acme","platform":"x"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	partner := decode[PartnerEnvelope](t, rec).Partner

	for _, status := range []string{"active", "expired"} {
		rec = do(t, e, http.MethodPost, "/api/links",
			fmt.Sprintf(`{"partner_id":%d,"brand_name":"%s","affiliate_url":"u","status":"%s"}`, partner.ID, status, status))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/links?partner_id=%d&status=expired", partner.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	links := decode[[]LinkResponse](t, rec)
	require.Len(t, links, 1)
	assert.Equal(t, "expired", links[0].BrandName)

	rec = do(t, e, http.MethodGet, "/api/links", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LinkResponse](t, rec), 2)

	rec = do(t, e, http.MethodGet, "/api/transactions?status=paid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRejectsUnknownStatus(t *testing.T) {
	e := newTestServer(t)

	for _, path := range []string{"/api/links?status=bogus", "/api/transactions?status=bogus"} {
		rec := do(t, e, http.MethodGet, path, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, path)

		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, "validation", body.Kind)
		assert.Equal(t, []string{"status"}, body.Fields)
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, round2(100.0/3))
	assert.Equal(t, 0.0, round2(0))
	assert.Equal(t, 1.01, round2(1.005000001))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "2001:db8::2")
	assert.Equal(t, "2001:db8::2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}
