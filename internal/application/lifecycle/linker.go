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
)

// Linker creates derivative invoices (adjustments, replacements,
// explanations, cancellation notices) against issued originals. A
// derivative starts its own lifecycle at Draft; creating one never
// modifies the original.
type Linker struct {
	invoices  port.InvoiceRepository
	history   port.TransitionHistoryRepository
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewLinker creates a derivative invoice linker.
func NewLinker(
	invoices port.InvoiceRepository,
	history port.TransitionHistoryRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *Linker {
	return &Linker{
		invoices:  invoices,
		history:   history,
		txManager: txManager,
		logger:    logger,
	}
}

// DerivativeInput carries a derivative creation request.
type DerivativeInput struct {
	OriginalInvoiceID string
	Type              entity.InvoiceType
	Reason            string
	Actor             string
}

// CreateDerivative creates a Draft derivative of the given type against
// an issued original. The original must exist and be Issued, and the
// reason is mandatory: Vietnamese e-invoicing regulation requires a
// stated justification for every adjustment or replacement.
func (l *Linker) CreateDerivative(ctx context.Context, in DerivativeInput) (*entity.Invoice, error) {
	if !in.Type.IsValid() || !in.Type.IsDerivative() {
		return nil, &ValidationError{Field: "invoice_type", Message: fmt.Sprintf("%s is not a derivative invoice type", in.Type)}
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "a derivative invoice requires a reason"}
	}

	original, err := l.invoices.GetByID(ctx, in.OriginalInvoiceID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, &LinkageError{OriginalInvoiceID: in.OriginalInvoiceID, Message: "original invoice does not exist"}
		}
		return nil, err
	}
	if original.InternalStatus != status.Issued {
		return nil, &LinkageError{
			OriginalInvoiceID: in.OriginalInvoiceID,
			Message:           fmt.Sprintf("original invoice is %s, only issued invoices can be adjusted or replaced", original.InternalStatus),
		}
	}

	now := time.Now()
	derivative := &entity.Invoice{
		ID:                uuid.NewString(),
		TemplateSerial:    original.TemplateSerial,
		CustomerID:        original.CustomerID,
		TotalAmount:       original.TotalAmount,
		InternalStatus:    status.Draft,
		TaxStatus:         status.TaxNotSent,
		InvoiceType:       in.Type,
		OriginalInvoiceID: original.ID,
		Reason:            in.Reason,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := l.invoices.Create(txCtx, derivative); err != nil {
			return fmt.Errorf("create derivative invoice: %w", err)
		}
		return l.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      derivative.ID,
			Action:         "CREATE_" + in.Type.String(),
			PreviousStatus: status.Draft,
			NewStatus:      status.Draft,
			Reason:         in.Reason,
			Actor:          actorOrSystem(in.Actor),
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("derivative invoice created",
		zap.String("invoice_id", derivative.ID),
		zap.String("original_invoice_id", original.ID),
		zap.String("invoice_type", in.Type.String()))
	return derivative, nil
}

// Derivatives returns every invoice linked to the given original. The
// original must exist; an issued invoice with no derivatives yields an
// empty slice.
func (l *Linker) Derivatives(ctx context.Context, originalID string) ([]*entity.Invoice, error) {
	if _, err := l.invoices.GetByID(ctx, originalID); err != nil {
		return nil, err
	}
	return l.invoices.ListByOriginalInvoiceID(ctx, originalID)
}
