package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// ReconcileWorkerConfig holds configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	PollInterval time.Duration
	PendingAge   time.Duration
	BatchSize    int
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		PollInterval: time.Minute,
		PendingAge:   5 * time.Minute,
		BatchSize:    20,
	}
}

// ReconcileWorker resolves tax submissions stuck in flight. When the
// process that started a submission dies or loses the response, the
// invoice keeps its in-flight marker; this worker looks the filing up at
// the authority and records the real outcome. An invoice whose filing
// was accepted server-side is advanced to issued without filing again.
type ReconcileWorker struct {
	config ReconcileWorkerConfig

	invoices  port.InvoiceRepository
	history   port.TransitionHistoryRepository
	txManager port.TransactionManager
	client    port.TaxAuthorityClient
	logger    *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	config ReconcileWorkerConfig,
	invoices port.InvoiceRepository,
	history port.TransitionHistoryRepository,
	txManager port.TransactionManager,
	client port.TaxAuthorityClient,
	logger *zap.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		config:    config,
		invoices:  invoices,
		history:   history,
		txManager: txManager,
		client:    client,
		logger:    logger,
	}
}

// Name implements Worker
func (w *ReconcileWorker) Name() string {
	return "submission-reconciler"
}

// Start begins the polling loop
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("reconcile worker already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ReconcileWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("pending_age", w.config.PendingAge))

	go w.pollLoop(loopCtx)
	return nil
}

// Stop terminates the worker and waits for the current pass to finish
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (w *ReconcileWorker) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce reconciles one batch of stuck submissions
func (w *ReconcileWorker) runOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.PendingAge)
	stuck, err := w.invoices.ListStuckSubmissions(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to list stuck submissions", zap.Error(err))
		return
	}

	for i, inv := range stuck {
		if i >= w.config.BatchSize || ctx.Err() != nil {
			return
		}
		if err := w.reconcileInvoice(ctx, inv); err != nil {
			w.logger.Warn("Failed to reconcile submission",
				zap.String("invoice_id", inv.ID),
				zap.Error(err))
		}
	}
}

func (w *ReconcileWorker) reconcileInvoice(ctx context.Context, inv *entity.Invoice) error {
	code, err := w.client.LookupStatus(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("status lookup: %w", err)
	}

	verdict, ok := status.ParseTaxCode(code)
	if !ok {
		return fmt.Errorf("authority returned unknown code %q", code)
	}

	updated := inv.Clone()
	updated.TaxStatusCode = code
	previous := inv.InternalStatus

	switch {
	case verdict.IsSuccess():
		updated.TaxStatus = verdict
		if updated.InternalStatus == status.Signed {
			updated.InternalStatus = status.Issued
		}

	case verdict == status.TaxKQ04:
		// The authority has no record: the filing never arrived. Recorded
		// as a failed submission so resending becomes available.
		updated.TaxStatus = status.TaxFailed

	case verdict.IsError():
		updated.TaxStatus = verdict

	default:
		// Still being processed at the authority; check again next pass.
		return nil
	}

	updated.UpdatedAt = time.Now()

	err = w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.invoices.Save(txCtx, updated, inv.Version); err != nil {
			return err
		}
		return w.history.Create(txCtx, &entity.TransitionRecord{
			InvoiceID:      inv.ID,
			Action:         "RECONCILE",
			PreviousStatus: previous,
			NewStatus:      updated.InternalStatus,
			Reason:         "authority verdict " + code,
			Actor:          "system",
			CreatedAt:      updated.UpdatedAt,
		})
	})
	if err != nil {
		// A concurrent writer resolved the invoice first; nothing to do.
		if errors.Is(err, port.ErrVersionConflict) {
			return nil
		}
		return fmt.Errorf("record reconciled outcome: %w", err)
	}

	w.logger.Info("Reconciled stuck submission",
		zap.String("invoice_id", inv.ID),
		zap.String("authority_code", code),
		zap.String("previous_status", previous.String()),
		zap.String("new_status", updated.InternalStatus.String()))
	return nil
}

// Verify interface compliance
var _ Worker = (*ReconcileWorker)(nil)
