package apperrors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for the conversation engine. Callers classify outcomes
// with errors.Is rather than string matching.
var (
	// ErrOracleUnavailable - the reasoning service cannot be reached or timed
	// out; the matcher must fall back to rule-based evaluation, never fail the turn.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrOracleMalformed - the reasoning service answered with something that
	// could not be parsed even after repair; treated as an empty result upstream.
	ErrOracleMalformed = errors.New("oracle response malformed")

	// ErrSessionExpired - the session id is unknown or past its retention
	// window; the caller should start a new session.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidAnswer - answer submitted for an unknown or superseded
	// question id; rejected locally with no state change.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrSequenceGap - the offline queue detected a missing sequence number.
	ErrSequenceGap = errors.New("sequence gap")
)

// OracleError wraps a failure talking to the oracle with enough detail to
// decide between retrying and falling back.
type OracleError struct {
	Op         string // extract, reason, phrase
	StatusCode int    // HTTP status if applicable
	Err        error
}

func (e *OracleError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("oracle %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("oracle %s failed: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// NewOracleError creates an OracleError for the given operation.
func NewOracleError(op string, statusCode int, err error) *OracleError {
	return &OracleError{Op: op, StatusCode: statusCode, Err: err}
}

// QueueGapError reports a hole in the offline queue's sequence numbers.
type QueueGapError struct {
	Missing int
}

func (e *QueueGapError) Error() string {
	return fmt.Sprintf("sequence gap: action %d was never enqueued", e.Missing)
}

func (e *QueueGapError) Unwrap() error {
	return ErrSequenceGap
}

// InvalidAnswerError carries the rejected question id for logging.
type InvalidAnswerError struct {
	QuestionID string
	Reason     string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid answer for question %q: %s", e.QuestionID, e.Reason)
}

func (e *InvalidAnswerError) Unwrap() error {
	return ErrInvalidAnswer
}

// IsTransient reports whether an oracle call error is worth retrying.
// Network failures and throttling/server statuses are transient; parse
// failures and client errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrOracleMalformed) {
		return false
	}

	var oracleErr *OracleError
	if errors.As(err, &oracleErr) && oracleErr.StatusCode > 0 {
		return isTransientHTTPStatus(oracleErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
