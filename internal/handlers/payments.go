package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dhruv457457/AutoPay/internal/logger"
	"github.com/dhruv457457/AutoPay/pkg/types"
)

// AttemptStorage captures the activity-log queries the payments handlers
// need.
type AttemptStorage interface {
	ListPaymentAttempts(ctx context.Context, filter types.AttemptFilter) ([]*types.PaymentAttempt, error)
}

// ListAttemptsResponse wraps the activity feed with a count.
type ListAttemptsResponse struct {
	Attempts []*types.PaymentAttempt `json:"attempts"`
	Total    int                     `json:"total"`
}

// ListPaymentAttemptsHandler handles GET /api/v1/payments/attempts with
// optional subscriber, status and limit query filters.
func ListPaymentAttemptsHandler(store AttemptStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := types.AttemptFilter{
			Subscriber: c.Query("subscriber"),
			Status:     c.Query("status"),
		}
		if filter.Subscriber != "" && !types.IsHexAddress(filter.Subscriber) {
			c.JSON(http.StatusBadRequest, errorResponse(&types.ValidationError{Field: "subscriber", Reason: "must be a 0x-prefixed 20-byte hex address"}))
			return
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, errorResponse(&types.ValidationError{Field: "limit", Reason: "must be a non-negative integer"}))
				return
			}
			filter.Limit = limit
		}

		attempts, err := store.ListPaymentAttempts(c.Request.Context(), filter)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("failed to list payment attempts")
			c.JSON(http.StatusInternalServerError, errorResponse(err))
			return
		}
		if attempts == nil {
			attempts = []*types.PaymentAttempt{}
		}
		c.JSON(http.StatusOK, ListAttemptsResponse{Attempts: attempts, Total: len(attempts)})
	}
}
