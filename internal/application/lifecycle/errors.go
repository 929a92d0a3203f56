package lifecycle

import (
	"fmt"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/workflow"
)

// TransitionNotAllowedError reports an action the eligibility evaluator
// forbids for the invoice's current status. Recoverable by the caller
// choosing a valid action; never retried automatically.
type TransitionNotAllowedError struct {
	CurrentStatus   status.Internal
	RequestedAction workflow.Action
}

func (e *TransitionNotAllowedError) Error() string {
	return fmt.Sprintf("transition not allowed: %s from status %s", e.RequestedAction, e.CurrentStatus)
}

// StaleStateError reports that the snapshot used to decide eligibility was
// superseded by a concurrent write. The caller must reload and retry; the
// engine never retries silently.
type StaleStateError struct {
	InvoiceID string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale state for invoice %s: reload and retry", e.InvoiceID)
}

// ValidationError reports a missing or malformed request field, such as an
// absent mandatory reason. Surfaced directly to the caller, never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ExternalSubmissionError reports a failed or timed-out tax authority
// submission. The failure is also recorded into the invoice's tax status,
// making ResendToTax the designated repair path. Never retried inline.
type ExternalSubmissionError struct {
	InvoiceID string
	Cause     error
}

func (e *ExternalSubmissionError) Error() string {
	return fmt.Sprintf("tax authority submission failed for invoice %s: %v", e.InvoiceID, e.Cause)
}

func (e *ExternalSubmissionError) Unwrap() error {
	return e.Cause
}

// LinkageError reports a derivative creation request against an original
// that does not exist or is not issued.
type LinkageError struct {
	OriginalInvoiceID string
	Message           string
}

func (e *LinkageError) Error() string {
	return fmt.Sprintf("invalid linkage to invoice %s: %s", e.OriginalInvoiceID, e.Message)
}
