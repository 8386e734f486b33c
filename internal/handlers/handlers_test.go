package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/eo-datahub/stac-gateway/internal/handlers"
	"github.com/eo-datahub/stac-gateway/internal/logger"
	"github.com/eo-datahub/stac-gateway/internal/sas"
	"github.com/eo-datahub/stac-gateway/internal/tokencache"
	"github.com/eo-datahub/stac-gateway/test/fixtures"
)

func TestHealthCheck(t *testing.T) {
	router := fixtures.SetupTestRouter(t)
	router.GET("/health", handlers.NewHealthHandler("collection").HealthCheck)
	router.GET("/bare", handlers.NewHealthHandler("").HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","strategy":"collection"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bare", nil))
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func setupTokens(t *testing.T) (*tokencache.Cache, http.Handler) {
	t.Helper()
	fakeClock := clocktesting.NewFakeClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	cache := tokencache.New(logger.Nop(), 20*time.Minute, 5*time.Minute, tokencache.WithClock(fakeClock))

	issue := func(_ context.Context, scope string) (*sas.Token, error) {
		if scope == "private" {
			return nil, sas.ErrUnavailable
		}
		return &sas.Token{Value: "secret-" + scope, ExpiresAt: fakeClock.Now().Add(time.Hour)}, nil
	}
	for _, scope := range []string{"landsat/c2", "naip", "private"} {
		cache.GetOrRefresh(t.Context(), scope, issue)
	}

	tokensHandler := handlers.NewTokensHandler(logger.Nop(), cache)
	router := fixtures.SetupTestRouter(t)
	router.GET("/debug/tokens", tokensHandler.ListTokens)
	router.DELETE("/debug/tokens/*scope", tokensHandler.InvalidateToken)
	return cache, router
}

func TestListTokens(t *testing.T) {
	_, router := setupTokens(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/tokens", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "secret-", "token values must never be exposed")

	var response struct {
		Count   int                    `json:"count"`
		Entries []tokencache.EntryInfo `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 3, response.Count)
	require.Len(t, response.Entries, 3)
	assert.Equal(t, "landsat/c2", response.Entries[0].ScopeKey)
	assert.False(t, response.Entries[0].Unavailable)
	assert.Equal(t, "private", response.Entries[2].ScopeKey)
	assert.True(t, response.Entries[2].Unavailable)
}

func TestInvalidateToken(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedLen    int
	}{
		{name: "scope with slash", path: "/debug/tokens/landsat/c2", expectedStatus: http.StatusNoContent, expectedLen: 2},
		{name: "unavailable marker", path: "/debug/tokens/private", expectedStatus: http.StatusNoContent, expectedLen: 2},
		{name: "unknown scope", path: "/debug/tokens/sentinel", expectedStatus: http.StatusNotFound, expectedLen: 3},
		{name: "empty scope", path: "/debug/tokens/", expectedStatus: http.StatusBadRequest, expectedLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, router := setupTokens(t)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedLen, cache.Len())
		})
	}
}

type mockTokenCache struct {
	mock.Mock
}

func (m *mockTokenCache) Snapshot() []tokencache.EntryInfo {
	args := m.Called()
	return args.Get(0).([]tokencache.EntryInfo) //nolint:forcetypeassert // test double
}

func (m *mockTokenCache) Invalidate(scopeKey string) bool {
	args := m.Called(scopeKey)
	return args.Bool(0)
}

func TestTokensHandler_UsesCache(t *testing.T) {
	cache := &mockTokenCache{}
	cache.On("Snapshot").Return([]tokencache.EntryInfo{}).Once()
	cache.On("Invalidate", "eodatahub/stac-items/scene.tif").Return(true).Once()

	tokensHandler := handlers.NewTokensHandler(nil, cache)
	router := fixtures.SetupTestRouter(t)
	router.GET("/debug/tokens", tokensHandler.ListTokens)
	router.DELETE("/debug/tokens/*scope", tokensHandler.InvalidateToken)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/tokens", nil))
	assert.JSONEq(t, `{"count":0,"entries":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/debug/tokens/eodatahub/stac-items/scene.tif", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	cache.AssertExpectations(t)
}
