package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// Coordinator drives tax authority submissions. A submission is a legal
// filing, so the coordinator is deliberately conservative: it persists an
// in-flight marker before the remote call, never cancels a submission
// mid-flight because the caller hung up, and on an ambiguous outcome it
// re-fetches the invoice before deciding whether the filing happened.
type Coordinator struct {
	invoices  port.InvoiceRepository
	history   port.TransitionHistoryRepository
	txManager port.TransactionManager
	client    port.TaxAuthorityClient
	logger    *zap.Logger
	timeout   time.Duration
}

// SubmitAndReconcile submits the invoice to the tax authority and records
// the outcome. Called by the engine with the per-invoice lock held and
// eligibility already checked.
//
// Outcomes:
//   - definitive acceptance: tax status Accepted (or the authority's
//     success code), invoice advances to Issued;
//   - definitive rejection: the authority's error code is persisted into
//     the tax status, the internal status does not move, and the caller
//     gets ExternalSubmissionError (ResendToTax is the repair path);
//   - ambiguous failure (timeout, transport error): re-fetch; if the
//     filing is recorded as done, report success instead of triggering a
//     duplicate filing, otherwise persist Failed and surface the error.
func (c *Coordinator) SubmitAndReconcile(ctx context.Context, inv *entity.Invoice, req TransitionRequest) (*entity.Invoice, error) {
	if !inv.NumberAssigned() {
		return nil, &ValidationError{Field: "invoice_number", Message: "cannot submit an unnumbered invoice"}
	}

	if inv.TaxStatus == status.TaxPending {
		resolved, done, err := c.resolveOrphanedAttempt(ctx, inv, req)
		if done {
			return resolved, err
		}
	}

	marked, err := c.markInFlight(ctx, inv)
	if err != nil {
		return nil, err
	}

	authorityCode, submitErr := c.submit(ctx, marked)
	if submitErr == nil {
		return c.recordAcceptance(ctx, marked, req, authorityCode)
	}

	var authErr *port.AuthorityError
	if errors.As(submitErr, &authErr) {
		return c.recordRejection(ctx, marked, req, authErr)
	}

	return c.reconcileAmbiguous(ctx, marked, req, submitErr)
}

// resolveOrphanedAttempt handles a snapshot that still carries the
// in-flight marker: an earlier attempt never recorded its outcome, most
// likely because the process that started it died. That earlier filing may
// have succeeded server-side, so the authority is consulted before a new
// submission is allowed; filing again blindly could submit the same
// invoice twice. Returns done=false only when the earlier filing is
// definitively dead (rejected, or the authority has no record of it).
func (c *Coordinator) resolveOrphanedAttempt(ctx context.Context, inv *entity.Invoice, req TransitionRequest) (*entity.Invoice, bool, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	code, err := c.client.LookupStatus(lookupCtx, inv.ID)
	if err != nil {
		return nil, true, &ExternalSubmissionError{InvoiceID: inv.ID, Cause: fmt.Errorf("verify earlier submission: %w", err)}
	}

	verdict, ok := status.ParseTaxCode(code)
	if !ok {
		return nil, true, &ExternalSubmissionError{InvoiceID: inv.ID, Cause: fmt.Errorf("verify earlier submission: unknown authority code %q", code)}
	}

	switch {
	case verdict.IsSuccess():
		c.logger.Info("earlier submission already accepted by tax authority",
			zap.String("invoice_id", inv.ID),
			zap.String("authority_code", code))
		resolved, err := c.recordAcceptance(ctx, inv, req, code)
		return resolved, true, err

	case verdict.IsError(), verdict == status.TaxKQ04:
		c.logger.Info("earlier submission not on record at tax authority, filing again",
			zap.String("invoice_id", inv.ID),
			zap.String("authority_code", code))
		return nil, false, nil

	default:
		return nil, true, &ExternalSubmissionError{InvoiceID: inv.ID, Cause: fmt.Errorf("earlier submission still being processed (authority code %s)", code)}
	}
}

// markInFlight persists the submission-in-flight marker so that an
// out-of-process observer can tell an attempt was started even if this
// process dies before recording the outcome.
func (c *Coordinator) markInFlight(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	marked := inv.Clone()
	marked.TaxStatus = status.TaxPending
	marked.TaxStatusCode = status.TaxPending.Code()
	marked.UpdatedAt = time.Now()

	if err := c.invoices.Save(ctx, marked, inv.Version); err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return nil, &StaleStateError{InvoiceID: inv.ID}
		}
		return nil, fmt.Errorf("mark submission in flight: %w", err)
	}
	return marked, nil
}

// submit performs the remote call. The attempt gets its own deadline,
// detached from the caller's context: a client that disconnects must not
// abort a filing the authority may already be processing.
func (c *Coordinator) submit(ctx context.Context, inv *entity.Invoice) (string, error) {
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	c.logger.Info("submitting invoice to tax authority",
		zap.String("invoice_id", inv.ID),
		zap.Int64("invoice_number", int64(inv.InvoiceNumber)),
		zap.String("template_serial", inv.TemplateSerial))

	return c.client.Submit(submitCtx, &port.InvoiceSubmission{
		InvoiceID:      inv.ID,
		InvoiceNumber:  int64(inv.InvoiceNumber),
		TemplateSerial: inv.TemplateSerial,
		CustomerID:     inv.CustomerID,
		IssueDate:      inv.IssueDate,
		TotalAmount:    inv.TotalAmount,
	})
}

func (c *Coordinator) recordAcceptance(ctx context.Context, inv *entity.Invoice, req TransitionRequest, authorityCode string) (*entity.Invoice, error) {
	accepted := inv.Clone()
	accepted.TaxStatus = status.TaxAccepted
	accepted.TaxStatusCode = authorityCode
	if parsed, ok := status.ParseTaxCode(authorityCode); ok && parsed.IsSuccess() {
		accepted.TaxStatus = parsed
	}

	previous := inv.InternalStatus
	accepted.InternalStatus = status.Issued
	accepted.UpdatedAt = time.Now()

	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.invoices.Save(txCtx, accepted, inv.Version); err != nil {
			return err
		}
		return c.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      inv.ID,
			Action:         req.Action.String(),
			PreviousStatus: previous,
			NewStatus:      status.Issued,
			Actor:          actorOrSystem(req.Actor),
			CreatedAt:      accepted.UpdatedAt,
		})
	})
	if err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return nil, &StaleStateError{InvoiceID: inv.ID}
		}
		return nil, fmt.Errorf("record authority acceptance: %w", err)
	}

	c.logger.Info("tax authority accepted invoice",
		zap.String("invoice_id", inv.ID),
		zap.String("authority_code", authorityCode))
	return accepted, nil
}

func (c *Coordinator) recordRejection(ctx context.Context, inv *entity.Invoice, req TransitionRequest, authErr *port.AuthorityError) (*entity.Invoice, error) {
	rejected := inv.Clone()
	rejected.TaxStatus = status.TaxRejected
	rejected.TaxStatusCode = authErr.Code
	if parsed, ok := status.ParseTaxCode(authErr.Code); ok {
		rejected.TaxStatus = parsed
	}
	rejected.UpdatedAt = time.Now()

	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.invoices.Save(txCtx, rejected, inv.Version); err != nil {
			return err
		}
		return c.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      inv.ID,
			Action:         req.Action.String(),
			PreviousStatus: inv.InternalStatus,
			NewStatus:      rejected.InternalStatus,
			Reason:         authErr.Error(),
			Actor:          actorOrSystem(req.Actor),
			CreatedAt:      rejected.UpdatedAt,
		})
	})
	if err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return nil, &StaleStateError{InvoiceID: inv.ID}
		}
		return nil, fmt.Errorf("record authority rejection: %w", err)
	}

	c.logger.Warn("tax authority rejected invoice",
		zap.String("invoice_id", inv.ID),
		zap.String("authority_code", authErr.Code),
		zap.String("authority_message", authErr.Message))
	return rejected, &ExternalSubmissionError{InvoiceID: inv.ID, Cause: authErr}
}

// reconcileAmbiguous handles timeouts and transport failures, where the
// authority may or may not have processed the filing. The stored record
// is re-fetched first: if another party has already recorded the filing
// as done, this attempt reports success rather than inviting a retry
// that would file the same invoice twice.
func (c *Coordinator) reconcileAmbiguous(ctx context.Context, inv *entity.Invoice, req TransitionRequest, submitErr error) (*entity.Invoice, error) {
	fresh, err := c.invoices.GetByID(ctx, inv.ID)
	if err == nil && (fresh.InternalStatus == status.Issued || fresh.TaxStatus.IsSuccess()) {
		c.logger.Info("ambiguous submission already recorded as accepted",
			zap.String("invoice_id", inv.ID),
			zap.Error(submitErr))
		return fresh, nil
	}

	failed := inv.Clone()
	failed.TaxStatus = status.TaxFailed
	failed.TaxStatusCode = status.TaxFailed.Code()
	failed.UpdatedAt = time.Now()

	saveErr := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.invoices.Save(txCtx, failed, inv.Version); err != nil {
			return err
		}
		return c.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      inv.ID,
			Action:         req.Action.String(),
			PreviousStatus: inv.InternalStatus,
			NewStatus:      failed.InternalStatus,
			Reason:         submitErr.Error(),
			Actor:          actorOrSystem(req.Actor),
			CreatedAt:      failed.UpdatedAt,
		})
	})
	if saveErr != nil && !errors.Is(saveErr, port.ErrVersionConflict) {
		c.logger.Error("failed to record ambiguous submission outcome",
			zap.String("invoice_id", inv.ID),
			zap.Error(saveErr))
	}

	c.logger.Warn("tax authority submission outcome unknown",
		zap.String("invoice_id", inv.ID),
		zap.Error(submitErr))
	return nil, &ExternalSubmissionError{InvoiceID: inv.ID, Cause: submitErr}
}
