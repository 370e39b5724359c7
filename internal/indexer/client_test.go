package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

func TestSubscriptionDueAt_BoundaryInclusive(t *testing.T) {
	sub := types.Subscription{
		LastPaymentTimestamp: 1000,
		Frequency:            100,
	}

	assert.False(t, sub.DueAt(1099), "one second early must not be due")
	assert.True(t, sub.DueAt(1100), "boundary is inclusive")
	assert.True(t, sub.DueAt(1500))
}

func TestFetchDue_FiltersByTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Query, "isActive")

		// frequency/lastPaymentTimestamp come back as strings from the indexer
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"Subscription":[
			{"id":"1","owner":"0xaaa0000000000000000000000000000000000001","subscriber":"0xbbb0000000000000000000000000000000000001","frequency":"100","lastPaymentTimestamp":"1000","isActive":true},
			{"id":"2","owner":"0xaaa0000000000000000000000000000000000002","subscriber":"0xbbb0000000000000000000000000000000000002","frequency":"100","lastPaymentTimestamp":"1050","isActive":true}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	due := client.FetchDue(context.Background(), time.Unix(1100, 0))

	require.Len(t, due, 1)
	assert.Equal(t, "1", due[0].ID)
}

func TestFetchDue_QueryFailureReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	due := client.FetchDue(context.Background(), time.Now())
	assert.Empty(t, due)
}

func TestFetchActive_SurfacesGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"field Subscription not found"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.FetchActive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field Subscription not found")
}
