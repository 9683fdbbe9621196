package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatrouter/auth"
	"chatrouter/service/chat"
)

func TestHealthzAlwaysOK(t *testing.T) {
	engine := NewEngine(chat.NewStatistics(), auth.NoneAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsUnauthenticatedWithNoneAuthenticator(t *testing.T) {
	stats := chat.NewStatistics()
	stats.AddConnection(7)
	engine := NewEngine(stats, auth.NoneAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/stats?user_id=7", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsGatedBehindConfiguredAuthenticator(t *testing.T) {
	engine := NewEngine(chat.NewStatistics(), auth.NewBasicAuthenticator(auth.BasicConfig{Username: "a", Password: "b"}))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatsUnknownUserIsNotFound(t *testing.T) {
	engine := NewEngine(chat.NewStatistics(), auth.NoneAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/stats?user_id=404", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointServesPrometheusExposition(t *testing.T) {
	engine := NewEngine(chat.NewStatistics(), auth.NoneAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
