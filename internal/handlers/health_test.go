package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubHealthStorage struct {
	pingErr error
}

func (s *stubHealthStorage) Ping(ctx context.Context) error { return s.pingErr }

type stubAgentStatus struct {
	ready   bool
	address string
}

func (s *stubAgentStatus) Ready() bool          { return s.ready }
func (s *stubAgentStatus) AgentAddress() string { return s.address }

func getHealth(t *testing.T, store HealthStorage, agent AgentStatus) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthHandler(store, agent))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	var payload HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return resp.Code, payload
}

func TestHealthHandler_AgentReady(t *testing.T) {
	code, payload := getHealth(t, &stubHealthStorage{}, &stubAgentStatus{ready: true, address: testDelegate})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", payload.Status)
	require.True(t, payload.AgentReady)
	require.Equal(t, testDelegate, payload.Agent)
	require.Equal(t, "ok", payload.Storage)
	require.NotEmpty(t, payload.Timestamp)
}

func TestHealthHandler_AgentInitializing(t *testing.T) {
	code, payload := getHealth(t, &stubHealthStorage{}, &stubAgentStatus{})
	require.Equal(t, http.StatusOK, code)
	require.False(t, payload.AgentReady)
	require.Equal(t, "initializing", payload.Agent)
}

func TestHealthHandler_NilAgent(t *testing.T) {
	code, payload := getHealth(t, &stubHealthStorage{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.False(t, payload.AgentReady)
}

func TestHealthHandler_StorageDownStill200(t *testing.T) {
	code, payload := getHealth(t, &stubHealthStorage{pingErr: errors.New("connection refused")}, &stubAgentStatus{ready: true, address: testDelegate})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "unavailable", payload.Storage)
}
