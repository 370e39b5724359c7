package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dhruv457457/AutoPay/internal/storage"
	"github.com/dhruv457457/AutoPay/pkg/types"
)

func seedAttempts(t *testing.T, store *storage.MemoryStore) {
	t.Helper()
	attempts := []*types.PaymentAttempt{
		{ID: "a1", Subscriber: types.NormalizeAddress(testSubscriber), Status: types.AttemptStatusConfirmed, StartedAt: time.Now()},
		{ID: "a2", Subscriber: types.NormalizeAddress(testSubscriber), Status: types.AttemptStatusFailed, StartedAt: time.Now()},
		{ID: "a3", Subscriber: types.NormalizeAddress(testDelegate), Status: types.AttemptStatusConfirmed, StartedAt: time.Now()},
	}
	for _, a := range attempts {
		require.NoError(t, store.CreatePaymentAttempt(context.Background(), a))
	}
}

func listAttempts(t *testing.T, store AttemptStorage, query string) (int, ListAttemptsResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/payments/attempts", ListPaymentAttemptsHandler(store))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/payments/attempts"+query, nil))

	var payload ListAttemptsResponse
	if resp.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	}
	return resp.Code, payload
}

func TestListPaymentAttemptsHandler_All(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAttempts(t, store)

	code, payload := listAttempts(t, store, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 3, payload.Total)
}

func TestListPaymentAttemptsHandler_Filters(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAttempts(t, store)

	code, payload := listAttempts(t, store, "?subscriber="+testSubscriber)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, payload.Total)

	code, payload = listAttempts(t, store, "?status="+types.AttemptStatusConfirmed)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, payload.Total)

	code, payload = listAttempts(t, store, "?subscriber="+testSubscriber+"&status="+types.AttemptStatusFailed)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, payload.Total)

	code, payload = listAttempts(t, store, "?limit=1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, payload.Total)
}

func TestListPaymentAttemptsHandler_BadParams(t *testing.T) {
	store := storage.NewMemoryStore()

	code, _ := listAttempts(t, store, "?subscriber=nope")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = listAttempts(t, store, "?limit=-1")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = listAttempts(t, store, "?limit=abc")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestListPaymentAttemptsHandler_Empty(t *testing.T) {
	code, payload := listAttempts(t, storage.NewMemoryStore(), "")
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, payload.Total)
	require.NotNil(t, payload.Attempts)
}
