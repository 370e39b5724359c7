package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Execution is one opaque call descriptor the downstream delegation framework
// understands: a target contract and pre-encoded calldata. Amounts and tokens
// were fixed at subscription-creation time on chain and are never re-derived
// here, so Value stays zero for payment executions.
type Execution struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// Payment attempt lifecycle states.
const (
	AttemptStatusPending   = "pending"
	AttemptStatusSubmitted = "submitted"
	AttemptStatusConfirmed = "confirmed"
	AttemptStatusSkipped   = "skipped"
	AttemptStatusFailed    = "failed"
)

// PaymentAttempt records one processed payment group, whether it reached the
// relay or was skipped before submission. The activity feed in the front end
// renders these.
type PaymentAttempt struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	Subscriber      string     `json:"subscriber"`
	SubscriptionIDs []string   `json:"subscription_ids"`
	Status          string     `json:"status"`
	UserOpHash      string     `json:"user_op_hash,omitempty"`
	TxHash          string     `json:"tx_hash,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AttemptFilter narrows payment-attempt queries.
type AttemptFilter struct {
	Subscriber string
	Status     string
	Limit      int
}
