package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to HTTP callers as a machine-readable discriminator.
const (
	KindValidation           = "validation_error"
	KindNotFound             = "not_found"
	KindMissingAuthorization = "missing_authorization"
	KindWrongDelegate        = "wrong_delegate"
	KindIntegrity            = "integrity_error"
	KindSubmission           = "submission_error"
)

// ValidationError rejects malformed input before any store or chain
// interaction happens.
type ValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	if e.Field == "caveats" {
		return fmt.Sprintf("invalid %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError signals that no delegation is stored for an address.
type NotFoundError struct {
	Subscriber string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no delegation stored for %s", e.Subscriber)
}

// MissingAuthorizationError skips a payment group whose subscriber has no
// stored delegation. The group is retried naturally next cycle because the
// obligation stays due.
type MissingAuthorizationError struct {
	Subscriber string
}

func (e *MissingAuthorizationError) Error() string {
	return fmt.Sprintf("no delegation on file for subscriber %s", e.Subscriber)
}

// WrongDelegateError marks a stored delegation that names a delegate other
// than this agent. This means the stored authorization data is stale or was
// issued to a different agent deployment.
type WrongDelegateError struct {
	Subscriber string
	Delegate   string
	Agent      string
}

func (e *WrongDelegateError) Error() string {
	return fmt.Sprintf("delegation for %s names delegate %s, this agent is %s", e.Subscriber, e.Delegate, e.Agent)
}

// IntegrityError marks a grouping invariant violation: obligations grouped
// under one owner pointed at different subscriber accounts. Treated as a bug
// signal, never silently merged.
type IntegrityError struct {
	Owner       string
	Subscribers []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("owner %s has due subscriptions across %d distinct subscriber accounts", e.Owner, len(e.Subscribers))
}

// SubmissionError wraps a relay failure during quote, submit or receipt wait.
// It is scoped to one payment group and never aborts the cycle.
type SubmissionError struct {
	Stage string // "quote", "submit", "receipt"
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("relay %s failed: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ErrorKind maps an error to its wire discriminator, or "" if the error is
// not part of the taxonomy.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ma *MissingAuthorizationError
		wd *WrongDelegateError
		ie *IntegrityError
		se *SubmissionError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ma):
		return KindMissingAuthorization
	case errors.As(err, &wd):
		return KindWrongDelegate
	case errors.As(err, &ie):
		return KindIntegrity
	case errors.As(err, &se):
		return KindSubmission
	}
	return ""
}
