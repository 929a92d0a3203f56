package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.TransitionHistoryRepository on SQLite.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new transition history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.TransitionHistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a transition record to the audit trail
func (r *HistoryRepository) Create(ctx context.Context, rec *entity.TransitionRecord) error {
	query := `
		INSERT INTO invoice_transitions (
			invoice_id, action, previous_status, new_status,
			reason, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		rec.InvoiceID,
		rec.Action,
		int(rec.PreviousStatus),
		int(rec.NewStatus),
		rec.Reason,
		rec.Actor,
		rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transition record",
			zap.String("invoice_id", rec.InvoiceID),
			zap.String("action", rec.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create transition record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// GetByInvoiceID retrieves the audit trail of an invoice, oldest first
func (r *HistoryRepository) GetByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, invoice_id, action, previous_status, new_status,
			reason, actor, created_at
		FROM invoice_transitions
		WHERE invoice_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get transition history", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get transition history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransitionRecord
	for rows.Next() {
		var (
			rec      entity.TransitionRecord
			previous int
			next     int
		)

		err := rows.Scan(
			&rec.ID,
			&rec.InvoiceID,
			&rec.Action,
			&previous,
			&next,
			&rec.Reason,
			&rec.Actor,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition record: %w", err)
		}

		rec.PreviousStatus = status.Internal(previous)
		rec.NewStatus = status.Internal(next)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.TransitionHistoryRepository = (*HistoryRepository)(nil)
