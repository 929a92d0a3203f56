package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/infrastructure/persistence/sqlite"
)

// InvoiceRepository implements port.InvoiceRepository on SQLite.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	id, invoice_number, template_serial, customer_id, issue_date,
	total_amount, internal_status, tax_status, tax_status_code,
	invoice_type, original_invoice_id, reason, version,
	created_at, updated_at
`

// Create inserts a new invoice row
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		inv.ID,
		int64(inv.InvoiceNumber),
		inv.TemplateSerial,
		inv.CustomerID,
		nullTime(inv.IssueDate),
		inv.TotalAmount,
		int(inv.InternalStatus),
		int(inv.TaxStatus),
		inv.TaxStatusCode,
		int(inv.InvoiceType),
		inv.OriginalInvoiceID,
		inv.Reason,
		inv.Version,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("id", inv.ID), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice by its id
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	inv, err := scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return inv, nil
}

// Save updates the invoice row guarded by the expected version. The row
// only changes when it still carries expectedVersion; zero affected rows
// on an existing invoice means a concurrent writer got there first.
func (r *InvoiceRepository) Save(ctx context.Context, inv *entity.Invoice, expectedVersion int64) error {
	query := `
		UPDATE invoices SET
			invoice_number = ?, template_serial = ?, customer_id = ?,
			issue_date = ?, total_amount = ?, internal_status = ?,
			tax_status = ?, tax_status_code = ?, invoice_type = ?,
			original_invoice_id = ?, reason = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		int64(inv.InvoiceNumber),
		inv.TemplateSerial,
		inv.CustomerID,
		nullTime(inv.IssueDate),
		inv.TotalAmount,
		int(inv.InternalStatus),
		int(inv.TaxStatus),
		inv.TaxStatusCode,
		int(inv.InvoiceType),
		inv.OriginalInvoiceID,
		inv.Reason,
		expectedVersion+1,
		inv.UpdatedAt,
		inv.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to save invoice", zap.String("id", inv.ID), zap.Error(err))
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		var exists int
		err := r.getExecutor(ctx).QueryRowContext(ctx,
			`SELECT COUNT(1) FROM invoices WHERE id = ?`, inv.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check invoice existence: %w", err)
		}
		if exists == 0 {
			return port.ErrNotFound
		}
		return port.ErrVersionConflict
	}

	inv.Version = expectedVersion + 1
	return nil
}

// List retrieves invoices with pagination, newest first
func (r *InvoiceRepository) List(ctx context.Context, limit, offset int) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// ListByOriginalInvoiceID retrieves all derivatives of an original invoice
func (r *InvoiceRepository) ListByOriginalInvoiceID(ctx context.Context, originalID string) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE original_invoice_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, originalID)
	if err != nil {
		r.logger.Error("Failed to list derivatives", zap.String("original_invoice_id", originalID), zap.Error(err))
		return nil, fmt.Errorf("failed to list derivatives: %w", err)
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// NextInvoiceNumber allocates the next number for a template serial. The
// counter only ever moves forward, so a number surrendered by a cancelled
// invoice is never handed out again.
func (r *InvoiceRepository) NextInvoiceNumber(ctx context.Context, serial string) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (template_serial, next_value)
		VALUES (?, 1)
		ON CONFLICT(template_serial) DO UPDATE SET next_value = next_value + 1
		RETURNING next_value
	`

	var number int64
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, serial).Scan(&number); err != nil {
		r.logger.Error("Failed to allocate invoice number", zap.String("template_serial", serial), zap.Error(err))
		return 0, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	return number, nil
}

// ListStuckSubmissions retrieves invoices left in the submission-in-flight
// tax status since before olderThan
func (r *InvoiceRepository) ListStuckSubmissions(ctx context.Context, olderThan time.Time) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tax_status = ? AND updated_at < ?
		ORDER BY updated_at ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, int(status.TaxPending), olderThan)
	if err != nil {
		r.logger.Error("Failed to list stuck submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to list stuck submissions: %w", err)
	}
	defer rows.Close()

	return collectInvoices(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv           entity.Invoice
		number        int64
		issueDate     sql.NullTime
		internalState int
		taxState      int
		invoiceType   int
	)

	err := row.Scan(
		&inv.ID,
		&number,
		&inv.TemplateSerial,
		&inv.CustomerID,
		&issueDate,
		&inv.TotalAmount,
		&internalState,
		&taxState,
		&inv.TaxStatusCode,
		&invoiceType,
		&inv.OriginalInvoiceID,
		&inv.Reason,
		&inv.Version,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// ParseInternal canonicalizes the legacy "signed, pending issue" id
	// that rows written by the old system may still carry.
	internal, err := status.ParseInternal(internalState)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}

	inv.InvoiceNumber = entity.InvoiceNumber(number)
	inv.InternalStatus = internal
	inv.TaxStatus = status.Tax(taxState)
	inv.InvoiceType = entity.InvoiceType(invoiceType)
	if issueDate.Valid {
		inv.IssueDate = &issueDate.Time
	}

	return &inv, nil
}

func collectInvoices(rows *sql.Rows) ([]*entity.Invoice, error) {
	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// getExecutor returns appropriate executor based on context
func (r *InvoiceRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
