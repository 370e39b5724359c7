package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dhruv457457/AutoPay/internal/logger"
	"github.com/dhruv457457/AutoPay/pkg/types"
)

// DelegationStorage captures the storage operations the delegation handlers
// need.
type DelegationStorage interface {
	UpsertDelegation(ctx context.Context, subscriber string, d types.Delegation) (*types.StoredDelegation, error)
	GetDelegation(ctx context.Context, subscriber string) (*types.StoredDelegation, error)
	ListDelegations(ctx context.Context) ([]*types.StoredDelegation, error)
	DeleteDelegation(ctx context.Context, subscriber string) error
}

// StoreDelegationRequest is the body of POST /api/v1/delegations.
type StoreDelegationRequest struct {
	Subscriber string           `json:"subscriber"`
	Delegation types.Delegation `json:"delegation"`
}

// ListDelegationsResponse wraps the full stored set with a count.
type ListDelegationsResponse struct {
	Delegations []*types.StoredDelegation `json:"delegations"`
	Total       int                       `json:"total"`
}

func errorResponse(err error) gin.H {
	resp := gin.H{"error": err.Error()}
	if kind := types.ErrorKind(err); kind != "" {
		resp["kind"] = kind
	}
	return resp
}

// StoreDelegationHandler handles POST /api/v1/delegations.
// Upserts the signed delegation keyed by the subscriber smart account.
func StoreDelegationHandler(store DelegationStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StoreDelegationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(&types.ValidationError{Field: "body", Reason: err.Error()}))
			return
		}
		if !types.IsHexAddress(req.Subscriber) {
			c.JSON(http.StatusBadRequest, errorResponse(&types.ValidationError{Field: "subscriber", Reason: "must be a 0x-prefixed 20-byte hex address"}))
			return
		}
		if err := req.Delegation.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}

		stored, err := store.UpsertDelegation(c.Request.Context(), req.Subscriber, req.Delegation)
		if err != nil {
			logger.Logger.Error().Err(err).Str("subscriber", req.Subscriber).Msg("failed to store delegation")
			c.JSON(http.StatusInternalServerError, errorResponse(err))
			return
		}
		logger.Logger.Info().Str("subscriber", stored.Subscriber).Msg("delegation stored")
		c.JSON(http.StatusOK, stored)
	}
}

// GetDelegationHandler handles GET /api/v1/delegations/:address.
func GetDelegationHandler(store DelegationStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Param("address")
		if !types.IsHexAddress(address) {
			c.JSON(http.StatusBadRequest, errorResponse(&types.ValidationError{Field: "address", Reason: "must be a 0x-prefixed 20-byte hex address"}))
			return
		}

		stored, err := store.GetDelegation(c.Request.Context(), address)
		if err != nil {
			if types.ErrorKind(err) == types.KindNotFound {
				c.JSON(http.StatusNotFound, errorResponse(err))
				return
			}
			logger.Logger.Error().Err(err).Str("subscriber", address).Msg("failed to load delegation")
			c.JSON(http.StatusInternalServerError, errorResponse(err))
			return
		}
		c.JSON(http.StatusOK, stored)
	}
}

// ListDelegationsHandler handles GET /api/v1/delegations.
func ListDelegationsHandler(store DelegationStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		delegations, err := store.ListDelegations(c.Request.Context())
		if err != nil {
			logger.Logger.Error().Err(err).Msg("failed to list delegations")
			c.JSON(http.StatusInternalServerError, errorResponse(err))
			return
		}
		if delegations == nil {
			delegations = []*types.StoredDelegation{}
		}
		c.JSON(http.StatusOK, ListDelegationsResponse{Delegations: delegations, Total: len(delegations)})
	}
}

// DeleteDelegationHandler handles DELETE /api/v1/delegations/:address.
func DeleteDelegationHandler(store DelegationStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Param("address")
		if !types.IsHexAddress(address) {
			c.JSON(http.StatusBadRequest, errorResponse(&types.ValidationError{Field: "address", Reason: "must be a 0x-prefixed 20-byte hex address"}))
			return
		}

		if err := store.DeleteDelegation(c.Request.Context(), address); err != nil {
			if types.ErrorKind(err) == types.KindNotFound {
				c.JSON(http.StatusNotFound, errorResponse(err))
				return
			}
			logger.Logger.Error().Err(err).Str("subscriber", address).Msg("failed to delete delegation")
			c.JSON(http.StatusInternalServerError, errorResponse(err))
			return
		}
		logger.Logger.Info().Str("subscriber", types.NormalizeAddress(address)).Msg("delegation deleted")
		c.JSON(http.StatusOK, gin.H{"deleted": types.NormalizeAddress(address)})
	}
}
