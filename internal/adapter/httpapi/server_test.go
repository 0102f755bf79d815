package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
	"github.com/couchcryptid/grant-data-etl/internal/observability"
)

type mockStatsStore struct {
	stateTotals   []domain.StateTotal
	yearTotals    []domain.YearTotal
	perCapita     []domain.PerCapitaStat
	cancellations []domain.CancellationStat
	directorates  []domain.DirectorateTotal

	stateCalls int
	err        error
	pingErr    error
}

func (m *mockStatsStore) StateTotals(_ context.Context, _ int) ([]domain.StateTotal, error) {
	m.stateCalls++
	return m.stateTotals, m.err
}

func (m *mockStatsStore) DirectorateTotals(_ context.Context, _ int) ([]domain.DirectorateTotal, error) {
	return m.directorates, m.err
}

func (m *mockStatsStore) YearTotals(_ context.Context) ([]domain.YearTotal, error) {
	return m.yearTotals, m.err
}

func (m *mockStatsStore) CancellationsByDirectorate(_ context.Context) ([]domain.CancellationStat, error) {
	return m.cancellations, m.err
}

func (m *mockStatsStore) PerCapita(_ context.Context, _ int) ([]domain.PerCapitaStat, error) {
	return m.perCapita, m.err
}

func (m *mockStatsStore) Ping(_ context.Context) error { return m.pingErr }

func newTestServer(t *testing.T, store *mockStatsStore) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	metrics := observability.NewMetricsForTesting()
	return NewServer(":0", store, metrics, logger, []string{"*"}, 16)
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, &mockStatsStore{})

	rec := doRequest(t, s, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_Ready(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		s := newTestServer(t, &mockStatsStore{})

		rec := doRequest(t, s, "/readyz")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		s := newTestServer(t, &mockStatsStore{pingErr: errors.New("closed")})

		rec := doRequest(t, s, "/readyz")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestServer_StateTotals(t *testing.T) {
	store := &mockStatsStore{
		stateTotals: []domain.StateTotal{
			{State: "CA", Year: 2020, GrantsCount: 2, TotalAmount: decimal.RequireFromString("300.50")},
			{State: "NY", Year: 2020, GrantsCount: 1, TotalAmount: decimal.RequireFromString("125.00")},
		},
	}
	s := newTestServer(t, store)

	rec := doRequest(t, s, "/api/stats/states?year=2020")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"year": 2020,
		"data": [
			{"state":"CA","year":2020,"grants_count":2,"total_amount":"300.5"},
			{"state":"NY","year":2020,"grants_count":1,"total_amount":"125"}
		]
	}`, rec.Body.String())
}

func TestServer_StateTotals_AllYearsDefault(t *testing.T) {
	store := &mockStatsStore{
		stateTotals: []domain.StateTotal{
			{State: "CA", GrantsCount: 3, TotalAmount: decimal.RequireFromString("600.50")},
		},
	}
	s := newTestServer(t, store)

	rec := doRequest(t, s, "/api/stats/states")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"year":0,"data":[{"state":"CA","year":0,"grants_count":3,"total_amount":"600.5"}]}`, rec.Body.String())
}

func TestServer_InvalidYear(t *testing.T) {
	s := newTestServer(t, &mockStatsStore{})

	for _, path := range []string{
		"/api/stats/states?year=abc",
		"/api/stats/directorates?year=-1",
		"/api/stats/per-capita?year=20.5",
	} {
		rec := doRequest(t, s, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestServer_StoreError(t *testing.T) {
	s := newTestServer(t, &mockStatsStore{err: errors.New("db gone")})

	rec := doRequest(t, s, "/api/stats/states")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_CacheHitSkipsStore(t *testing.T) {
	store := &mockStatsStore{
		stateTotals: []domain.StateTotal{{State: "CA", TotalAmount: decimal.RequireFromString("1.00")}},
	}
	s := newTestServer(t, store)

	first := doRequest(t, s, "/api/stats/states?year=2020")
	second := doRequest(t, s, "/api/stats/states?year=2020")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, store.stateCalls)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestServer_CacheKeyIncludesQuery(t *testing.T) {
	store := &mockStatsStore{
		stateTotals: []domain.StateTotal{{State: "CA", TotalAmount: decimal.RequireFromString("1.00")}},
	}
	s := newTestServer(t, store)

	doRequest(t, s, "/api/stats/states?year=2020")
	doRequest(t, s, "/api/stats/states?year=2021")

	assert.Equal(t, 2, store.stateCalls)
}

func TestServer_YearTotals(t *testing.T) {
	store := &mockStatsStore{
		yearTotals: []domain.YearTotal{
			{Year: 2020, GrantsCount: 3, TotalAmount: decimal.RequireFromString("425.50")},
			{Year: 2021, GrantsCount: 1, TotalAmount: decimal.RequireFromString("175.00")},
		},
	}
	s := newTestServer(t, store)

	rec := doRequest(t, s, "/api/stats/years")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"year": 0,
		"data": [
			{"year":2020,"grants_count":3,"total_amount":"425.5"},
			{"year":2021,"grants_count":1,"total_amount":"175"}
		]
	}`, rec.Body.String())
}

func TestServer_Cancellations(t *testing.T) {
	store := &mockStatsStore{
		cancellations: []domain.CancellationStat{
			{
				Directorate: "GEO",
				BaseCount:   0,
				CancelCount: 2,
				LostAmount:  decimal.RequireFromString("50.00"),
				Rate:        2.0,
			},
		},
	}
	s := newTestServer(t, store)

	rec := doRequest(t, s, "/api/stats/cancellations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"GEO"`)
}
