package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dhruv457457/AutoPay/internal/logger"
	"github.com/dhruv457457/AutoPay/pkg/types"
)

// activeSubscriptionsQuery asks the indexer for every subscription still
// marked active. Due filtering happens client-side against wall-clock time.
const activeSubscriptionsQuery = `query GetActiveSubscriptions {
  Subscription(where: { isActive: { _eq: true } }) {
    id owner subscriber recipient token amount frequency lastPaymentTimestamp isActive
  }
}`

// Client queries the external GraphQL indexer. It holds no state between
// cycles; every fetch re-queries from scratch.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient builds an indexer client for the given GraphQL endpoint.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type gqlRequest struct {
	Query string `json:"query"`
}

type gqlResponse struct {
	Data struct {
		Subscription []types.Subscription `json:"Subscription"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchActive returns all subscriptions the indexer reports as active.
func (c *Client) FetchActive(ctx context.Context) ([]types.Subscription, error) {
	body, err := json.Marshal(gqlRequest{Query: activeSubscriptionsQuery})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build indexer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("indexer query error: %s", parsed.Errors[0].Message)
	}

	return parsed.Data.Subscription, nil
}

// FetchDue returns the subset of active subscriptions whose next payment time
// has passed at now. A query failure yields an empty result and a log line,
// never an error: a missed cycle self-heals because obligations stay due.
func (c *Client) FetchDue(ctx context.Context, now time.Time) []types.Subscription {
	all, err := c.FetchActive(ctx)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("failed to fetch subscriptions from indexer")
		return nil
	}

	nowUnix := uint64(now.Unix())
	due := make([]types.Subscription, 0, len(all))
	for _, sub := range all {
		if sub.DueAt(nowUnix) {
			due = append(due, sub)
		}
	}
	return due
}
