package port

import (
	"context"
	"errors"
	"time"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by Save when the expected version no
// longer matches the stored row: the snapshot the caller decided on is
// stale and must be reloaded.
var ErrVersionConflict = errors.New("version conflict")

// InvoiceRepository defines persistence operations for Invoice.
// Save enforces optimistic concurrency through expectedVersion: the write
// applies only if the stored row still carries that version, and on
// success the row and inv.Version are both set to expectedVersion+1.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	Save(ctx context.Context, inv *entity.Invoice, expectedVersion int64) error
	List(ctx context.Context, limit, offset int) ([]*entity.Invoice, error)

	// ListByOriginalInvoiceID is the reverse lookup for derivatives: all
	// invoices adjusting/replacing/explaining/cancelling the given original.
	ListByOriginalInvoiceID(ctx context.Context, originalID string) ([]*entity.Invoice, error)

	// NextInvoiceNumber allocates the next number for a template serial.
	// Allocation is monotonic: a value handed out is never reissued, even
	// when the invoice it was assigned to is later cancelled.
	NextInvoiceNumber(ctx context.Context, serial string) (int64, error)

	// ListStuckSubmissions returns invoices whose submission-in-flight
	// marker has not been resolved since before the given time: the
	// process that started the submission died or lost the response.
	ListStuckSubmissions(ctx context.Context, olderThan time.Time) ([]*entity.Invoice, error)
}

// TransitionHistoryRepository defines persistence operations for the
// per-invoice audit trail.
type TransitionHistoryRepository interface {
	Create(ctx context.Context, rec *entity.TransitionRecord) error
	GetByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.TransitionRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
