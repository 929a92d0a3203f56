// Package lifecycle implements the invoice lifecycle engine: it validates
// requested transitions against the shared eligibility evaluator, applies
// them under per-invoice mutual exclusion with optimistic concurrency at
// the storage layer, and delegates tax authority submissions to the
// coordinator.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/workflow"
	"github.com/dinhan2610/EVM-DMS-sub001/pkg/utils"
)

// TransitionRequest carries a caller's transition payload. Reason is
// mandatory for Reject and Cancel; Actor defaults to "system".
type TransitionRequest struct {
	Action workflow.Action
	Reason string
	Actor  string
}

// DraftInput is the authoring payload for a new Draft invoice. CustomerID
// carries the buyer's tax identification number when known; deeper content
// validation is an authoring concern.
type DraftInput struct {
	TemplateSerial string
	CustomerID     string
	IssueDate      *time.Time
	TotalAmount    float64
	Actor          string
}

// Engine orchestrates invoice lifecycle transitions.
type Engine struct {
	invoices    port.InvoiceRepository
	history     port.TransitionHistoryRepository
	txManager   port.TransactionManager
	coordinator *Coordinator
	locks       *lockTable
	logger      *zap.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithSubmitTimeout bounds each tax authority submission attempt.
func WithSubmitTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.coordinator.timeout = d
	}
}

// NewEngine creates a lifecycle engine. The coordinator shares the
// engine's lock table so transitions and submissions for one invoice are
// mutually exclusive.
func NewEngine(
	invoices port.InvoiceRepository,
	history port.TransitionHistoryRepository,
	txManager port.TransactionManager,
	taxClient port.TaxAuthorityClient,
	logger *zap.Logger,
	opts ...EngineOption,
) *Engine {
	locks := newLockTable()
	e := &Engine{
		invoices:  invoices,
		history:   history,
		txManager: txManager,
		locks:     locks,
		logger:    logger,
		coordinator: &Coordinator{
			invoices:  invoices,
			history:   history,
			txManager: txManager,
			client:    taxClient,
			logger:    logger,
			timeout:   30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateDraft creates a new Draft invoice. Lifecycle entry point for
// invoice authoring; the aggregate starts unnumbered with no tax status.
func (e *Engine) CreateDraft(ctx context.Context, in DraftInput) (*entity.Invoice, error) {
	serial := strings.TrimSpace(in.TemplateSerial)
	if serial == "" {
		return nil, &ValidationError{Field: "template_serial", Message: "template serial is required"}
	}
	if err := utils.ValidateTemplateSerial(serial); err != nil {
		return nil, &ValidationError{Field: "template_serial", Message: err.Error()}
	}
	if in.CustomerID != "" {
		if err := utils.ValidateTaxID(in.CustomerID); err != nil {
			return nil, &ValidationError{Field: "customer_id", Message: err.Error()}
		}
	}
	// Zero means the total has not been authored yet; anything else must
	// be a valid amount.
	if in.TotalAmount != 0 {
		if err := utils.ValidateAmount(in.TotalAmount); err != nil {
			return nil, &ValidationError{Field: "total_amount", Message: err.Error()}
		}
	}

	now := time.Now()
	inv := &entity.Invoice{
		ID:             uuid.NewString(),
		TemplateSerial: serial,
		CustomerID:     in.CustomerID,
		IssueDate:      in.IssueDate,
		TotalAmount:    in.TotalAmount,
		InternalStatus: status.Draft,
		TaxStatus:      status.TaxNotSent,
		InvoiceType:    entity.TypeOriginal,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.invoices.Create(txCtx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return e.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      inv.ID,
			Action:         "CREATE",
			PreviousStatus: status.Draft,
			NewStatus:      status.Draft,
			Actor:          actorOrSystem(in.Actor),
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice draft created",
		zap.String("invoice_id", inv.ID),
		zap.String("template_serial", inv.TemplateSerial))
	return inv, nil
}

// GetInvoice returns the current invoice snapshot.
func (e *Engine) GetInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	return e.invoices.GetByID(ctx, id)
}

// ListInvoices returns invoices with pagination.
func (e *Engine) ListInvoices(ctx context.Context, limit, offset int) ([]*entity.Invoice, error) {
	return e.invoices.List(ctx, limit, offset)
}

// EligibleActions returns the actions currently legal for the invoice.
func (e *Engine) EligibleActions(ctx context.Context, id string) ([]workflow.Action, error) {
	inv, err := e.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return workflow.Eligible(inv), nil
}

// History returns the invoice's transition audit trail.
func (e *Engine) History(ctx context.Context, id string) ([]*entity.TransitionRecord, error) {
	if _, err := e.invoices.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return e.history.GetByInvoiceID(ctx, id)
}

// RequestTransition validates and applies the requested action on the
// invoice. All transitions for one invoice id are serialized; a snapshot
// superseded during decision-making surfaces as StaleStateError.
func (e *Engine) RequestTransition(ctx context.Context, invoiceID string, req TransitionRequest) (*entity.Invoice, error) {
	if !req.Action.IsValid() {
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", req.Action)}
	}
	req.Reason = utils.SanitizeString(req.Reason)

	e.locks.Lock(invoiceID)
	defer e.locks.Unlock(invoiceID)

	inv, err := e.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if !workflow.Can(inv, req.Action) {
		return nil, &TransitionNotAllowedError{CurrentStatus: inv.InternalStatus, RequestedAction: req.Action}
	}

	if req.Action.RequiresReason() && strings.TrimSpace(req.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: fmt.Sprintf("%s requires a reason", req.Action)}
	}

	switch req.Action {
	case workflow.ActionIssue, workflow.ActionResendToTax:
		// Submission to the tax authority; the in-flight marker is
		// persisted before the remote call so an out-of-process observer
		// can reconcile an interrupted attempt.
		return e.coordinator.SubmitAndReconcile(ctx, inv, req)

	case workflow.ActionEdit, workflow.ActionPrint, workflow.ActionDownloadPdf:
		// Eligibility-gated but not transitions: content editing and
		// document rendering belong to external collaborators.
		return inv, nil

	case workflow.ActionCreateAdjustment, workflow.ActionCreateReplacement:
		// Derivative creation spawns a new invoice instead of moving this
		// one; it goes through the linker.
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("%s creates a derivative invoice; use the derivatives operation", req.Action)}

	default:
		return e.applyTransition(ctx, inv, req)
	}
}

// applyTransition fires the state machine and persists the outcome with
// the snapshot's version. Called with the per-invoice lock held.
func (e *Engine) applyTransition(ctx context.Context, inv *entity.Invoice, req TransitionRequest) (*entity.Invoice, error) {
	machine := workflow.BuildInvoiceLifecycle(inv)
	previous := inv.InternalStatus

	if err := machine.Fire(ctx, req.Action); err != nil {
		// Second gate behind Eligible; reachable only if the two ever
		// disagree, which the tests pin down.
		if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrGuardFailed) {
			return nil, &TransitionNotAllowedError{CurrentStatus: previous, RequestedAction: req.Action}
		}
		return nil, err
	}

	updated := inv.Clone()
	updated.InternalStatus = machine.State()
	updated.UpdatedAt = time.Now()

	switch req.Action {
	case workflow.ActionSign:
		number, err := e.invoices.NextInvoiceNumber(ctx, inv.TemplateSerial)
		if err != nil {
			return nil, fmt.Errorf("allocate invoice number: %w", err)
		}
		updated.InvoiceNumber = entity.InvoiceNumber(number)

	case workflow.ActionCancel:
		// A cancelled attempt surrenders its number; the sequence never
		// reissues it.
		updated.InvoiceNumber = 0
		updated.Reason = req.Reason

	case workflow.ActionReject:
		updated.Reason = req.Reason
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.invoices.Save(txCtx, updated, inv.Version); err != nil {
			return err
		}
		return e.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      inv.ID,
			Action:         req.Action.String(),
			PreviousStatus: previous,
			NewStatus:      updated.InternalStatus,
			Reason:         req.Reason,
			Actor:          actorOrSystem(req.Actor),
			CreatedAt:      updated.UpdatedAt,
		})
	})
	if err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return nil, &StaleStateError{InvoiceID: inv.ID}
		}
		return nil, err
	}

	e.logger.Info("invoice transition applied",
		zap.String("invoice_id", inv.ID),
		zap.String("action", req.Action.String()),
		zap.String("previous_status", previous.String()),
		zap.String("new_status", updated.InternalStatus.String()))

	return updated, nil
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}
