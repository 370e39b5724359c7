package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/dhruv457457/AutoPay/internal/chain"
	"github.com/dhruv457457/AutoPay/internal/logger"
	"github.com/dhruv457457/AutoPay/internal/relay"
	"github.com/dhruv457457/AutoPay/pkg/types"
)

// DueFetcher supplies the obligations whose payment time has passed.
type DueFetcher interface {
	FetchDue(ctx context.Context, now time.Time) []types.Subscription
}

// DelegationStore captures the storage operations the payment pipeline needs:
// delegation lookup and the activity log. The pipeline never writes
// delegations.
type DelegationStore interface {
	GetDelegation(ctx context.Context, subscriber string) (*types.StoredDelegation, error)
	CreatePaymentAttempt(ctx context.Context, attempt *types.PaymentAttempt) error
	UpdatePaymentAttempt(ctx context.Context, attempt *types.PaymentAttempt) error
}

// Relay is the bundler surface the submitter drives.
type Relay interface {
	GetUserOperationGasPrice(ctx context.Context) (*relay.GasPrice, error)
	SendUserOperation(ctx context.Context, op *relay.UserOperation) (common.Hash, error)
	WaitForUserOperationReceipt(ctx context.Context, hash common.Hash) (*relay.Receipt, error)
}

// Service runs one payment cycle: fetch due obligations, group them per
// payer, and redeem each group's delegation through the relay. Groups are
// processed sequentially; a failure in one never aborts the others.
type Service struct {
	fetcher             DueFetcher
	store               DelegationStore
	relay               Relay
	identity            *chain.Identity
	subscriptionManager common.Address
	now                 func() time.Time
}

// NewService wires the payment pipeline. The identity must already be
// bootstrapped; the scheduler must not start without one.
func NewService(fetcher DueFetcher, store DelegationStore, rly Relay, identity *chain.Identity, subscriptionManager common.Address) *Service {
	return &Service{
		fetcher:             fetcher,
		store:               store,
		relay:               rly,
		identity:            identity,
		subscriptionManager: subscriptionManager,
		now:                 time.Now,
	}
}

// Group outcome statuses in CycleReport.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// GroupOutcome is the per-group result of one cycle.
type GroupOutcome struct {
	Owner         string
	Subscriber    string
	Subscriptions int
	Status        string
	UserOpHash    string
	TxHash        string
	Err           error
}

// CycleReport summarises one scheduler cycle.
type CycleReport struct {
	StartedAt time.Time
	Duration  time.Duration
	DueCount  int
	Succeeded int
	Skipped   int
	Failed    int
	Outcomes  []GroupOutcome
}

// RunCycle executes one full fetch→group→validate→encode→submit pass.
// Per-group errors are logged and folded into the report; the cycle itself
// never fails.
func (s *Service) RunCycle(ctx context.Context) CycleReport {
	start := s.now()
	report := CycleReport{StartedAt: start}

	due := s.fetcher.FetchDue(ctx, start)
	report.DueCount = len(due)
	if len(due) == 0 {
		logger.Logger.Debug().Msg("no payments due this cycle")
		report.Duration = s.now().Sub(start)
		return report
	}
	logger.Logger.Info().Int("due", len(due)).Msg("found due subscriptions")

	groups, rejected := GroupByOwner(due)
	for _, integrityErr := range rejected {
		logger.Logger.Error().
			Str("owner", integrityErr.Owner).
			Strs("subscribers", integrityErr.Subscribers).
			Msg("rejecting inconsistent payment group")
		report.Outcomes = append(report.Outcomes, GroupOutcome{
			Owner:  integrityErr.Owner,
			Status: OutcomeFailed,
			Err:    integrityErr,
		})
		report.Failed++
	}

	for _, group := range groups {
		outcome := s.processGroup(ctx, group)
		report.Outcomes = append(report.Outcomes, outcome)
		switch outcome.Status {
		case OutcomeSucceeded:
			report.Succeeded++
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	report.Duration = s.now().Sub(start)
	logger.Logger.Info().
		Int("due", report.DueCount).
		Int("succeeded", report.Succeeded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("payment cycle complete")
	return report
}

// processGroup validates the group's delegation, encodes its payments and
// drives the relay submission to a receipt. The returned outcome classifies
// skip conditions (no delegation, wrong delegate) apart from hard failures.
func (s *Service) processGroup(ctx context.Context, group Group) GroupOutcome {
	outcome := GroupOutcome{
		Owner:         group.Owner,
		Subscriber:    group.Subscriber,
		Subscriptions: len(group.Subscriptions),
	}
	logger.Logger.Info().
		Str("subscriber", group.Subscriber).
		Int("payments", len(group.Subscriptions)).
		Msg("processing payment group")

	attempt := s.beginAttempt(ctx, group)

	stored, err := s.validateDelegation(ctx, group.Subscriber)
	if err != nil {
		return s.finishAttempt(ctx, attempt, outcome, err)
	}

	executions := make([]types.Execution, 0, len(group.Subscriptions))
	for _, sub := range group.Subscriptions {
		callData, err := EncodeExecutePayment(sub.ID)
		if err != nil {
			return s.finishAttempt(ctx, attempt, outcome, fmt.Errorf("encode payment %s: %w", sub.ID, err))
		}
		executions = append(executions, types.Execution{Target: s.subscriptionManager, CallData: callData})
	}

	redeemCallData, err := EncodeRedeemDelegations(stored.Delegation, executions)
	if err != nil {
		return s.finishAttempt(ctx, attempt, outcome, fmt.Errorf("encode redeem payload: %w", err))
	}

	quote, err := s.relay.GetUserOperationGasPrice(ctx)
	if err != nil {
		return s.finishAttempt(ctx, attempt, outcome, &types.SubmissionError{Stage: "quote", Err: err})
	}

	op, err := s.buildUserOperation(redeemCallData, quote)
	if err != nil {
		return s.finishAttempt(ctx, attempt, outcome, &types.SubmissionError{Stage: "submit", Err: err})
	}

	opHash, err := s.relay.SendUserOperation(ctx, op)
	if err != nil {
		return s.finishAttempt(ctx, attempt, outcome, &types.SubmissionError{Stage: "submit", Err: err})
	}
	outcome.UserOpHash = opHash.Hex()
	logger.Logger.Info().Str("user_op_hash", outcome.UserOpHash).Msg("user operation submitted, awaiting receipt")

	if attempt != nil {
		attempt.Status = types.AttemptStatusSubmitted
		attempt.UserOpHash = outcome.UserOpHash
		s.saveAttempt(ctx, attempt)
	}

	receipt, err := s.relay.WaitForUserOperationReceipt(ctx, opHash)
	if err != nil {
		return s.finishAttempt(ctx, attempt, outcome, &types.SubmissionError{Stage: "receipt", Err: err})
	}
	if !receipt.Success {
		return s.finishAttempt(ctx, attempt, outcome, &types.SubmissionError{
			Stage: "receipt",
			Err:   fmt.Errorf("user operation reverted on chain (tx %s)", receipt.Receipt.TransactionHash.Hex()),
		})
	}

	outcome.Status = OutcomeSucceeded
	outcome.TxHash = receipt.Receipt.TransactionHash.Hex()
	logger.Logger.Info().
		Str("subscriber", group.Subscriber).
		Str("tx_hash", outcome.TxHash).
		Msg("payment group confirmed")
	return s.finishAttempt(ctx, attempt, outcome, nil)
}

// validateDelegation fetches and checks the stored delegation for a
// subscriber. A record naming another delegate means the stored authorization
// is stale or was issued against a different agent deployment.
func (s *Service) validateDelegation(ctx context.Context, subscriber string) (*types.StoredDelegation, error) {
	stored, err := s.store.GetDelegation(ctx, subscriber)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			return nil, &types.MissingAuthorizationError{Subscriber: subscriber}
		}
		return nil, fmt.Errorf("delegation lookup for %s: %w", subscriber, err)
	}

	agentAccount := s.identity.SmartAccount.Hex()
	if !types.SameAddress(stored.Delegation.Delegate, agentAccount) {
		return nil, &types.WrongDelegateError{
			Subscriber: subscriber,
			Delegate:   stored.Delegation.Delegate,
			Agent:      agentAccount,
		}
	}
	return stored, nil
}

func (s *Service) buildUserOperation(redeemCallData []byte, quote *relay.GasPrice) (*relay.UserOperation, error) {
	digest := crypto.Keccak256(redeemCallData)
	signature, err := s.identity.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("sign user operation: %w", err)
	}
	return &relay.UserOperation{
		Sender: s.identity.SmartAccount,
		Calls: []relay.BatchCall{
			{To: s.identity.Env.DelegationManager, Data: redeemCallData},
		},
		MaxFeePerGas:         (*hexutil.Big)(quote.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(quote.MaxPriorityFeePerGas),
		Signature:            signature,
	}, nil
}

func (s *Service) beginAttempt(ctx context.Context, group Group) *types.PaymentAttempt {
	ids := make([]string, 0, len(group.Subscriptions))
	for _, sub := range group.Subscriptions {
		ids = append(ids, sub.ID)
	}
	attempt := &types.PaymentAttempt{
		ID:              uuid.NewString(),
		Owner:           group.Owner,
		Subscriber:      group.Subscriber,
		SubscriptionIDs: ids,
		Status:          types.AttemptStatusPending,
		StartedAt:       s.now().UTC(),
	}
	if err := s.store.CreatePaymentAttempt(ctx, attempt); err != nil {
		// The activity log is best effort; payments proceed without it.
		logger.Logger.Warn().Err(err).Str("subscriber", group.Subscriber).Msg("failed to record payment attempt")
		return nil
	}
	return attempt
}

// finishAttempt folds the terminal error (or success) into the outcome and
// the attempt row. Skip conditions and failures are classified here so the
// scheduler only counts them.
func (s *Service) finishAttempt(ctx context.Context, attempt *types.PaymentAttempt, outcome GroupOutcome, err error) GroupOutcome {
	if err == nil {
		outcome.Status = OutcomeSucceeded
		if attempt != nil {
			attempt.Status = types.AttemptStatusConfirmed
			attempt.TxHash = outcome.TxHash
			attempt.UserOpHash = outcome.UserOpHash
			now := s.now().UTC()
			attempt.CompletedAt = &now
			s.saveAttempt(ctx, attempt)
		}
		return outcome
	}

	outcome.Err = err

	var (
		missing  *types.MissingAuthorizationError
		wrongDel *types.WrongDelegateError
	)
	switch {
	case errors.As(err, &missing):
		outcome.Status = OutcomeSkipped
		logger.Logger.Warn().
			Str("subscriber", outcome.Subscriber).
			Msg("no delegation on file, skipping group until one is stored")
	case errors.As(err, &wrongDel):
		outcome.Status = OutcomeSkipped
		logger.Logger.Error().
			Str("subscriber", outcome.Subscriber).
			Str("delegate", wrongDel.Delegate).
			Str("agent", wrongDel.Agent).
			Msg("stored delegation names a different agent, skipping group")
	default:
		outcome.Status = OutcomeFailed
		logger.Logger.Error().Err(err).
			Str("owner", outcome.Owner).
			Str("subscriber", outcome.Subscriber).
			Msg("payment group failed")
	}

	if attempt != nil {
		if outcome.Status == OutcomeSkipped {
			attempt.Status = types.AttemptStatusSkipped
		} else {
			attempt.Status = types.AttemptStatusFailed
		}
		attempt.UserOpHash = outcome.UserOpHash
		attempt.ErrorKind = types.ErrorKind(err)
		attempt.ErrorMessage = err.Error()
		now := s.now().UTC()
		attempt.CompletedAt = &now
		s.saveAttempt(ctx, attempt)
	}
	return outcome
}

func (s *Service) saveAttempt(ctx context.Context, attempt *types.PaymentAttempt) {
	if err := s.store.UpdatePaymentAttempt(ctx, attempt); err != nil {
		logger.Logger.Warn().Err(err).Str("attempt_id", attempt.ID).Msg("failed to update payment attempt")
	}
}
