package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/babelduck/pkg/intelligence"
)

func TestPing(t *testing.T) {
	handler := New(Config{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "I'm still alive.", payload.Status)

	_, err := time.Parse(time.RFC3339, payload.Timestamp)
	assert.NoError(t, err)
}

func TestTempToken(t *testing.T) {
	handler := New(Config{TrialToken: "abc123"}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/temp_token", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "abc123", payload.Token)
}

func TestTempTokenNotConfigured(t *testing.T) {
	handler := New(Config{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/temp_token", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var payload struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Token not found", payload.Error)
}

func TestTempTokenFeedsFreeTrialTokenSource(t *testing.T) {
	srv := httptest.NewServer(New(Config{TrialToken: "trial-xyz"}).Handler())
	t.Cleanup(srv.Close)

	token, err := intelligence.NewHTTPTokenSource(srv.URL + "/api/temp_token").FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trial-xyz", token)
}
