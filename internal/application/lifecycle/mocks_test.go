package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// memRepo is an in-memory InvoiceRepository with the same optimistic
// concurrency contract as the SQLite implementation.
type memRepo struct {
	mu        sync.Mutex
	invoices  map[string]*entity.Invoice
	sequences map[string]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices:  make(map[string]*entity.Invoice),
		sequences: make(map[string]int64),
	}
}

func (r *memRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = inv.Clone()
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return inv.Clone(), nil
}

func (r *memRepo) Save(_ context.Context, inv *entity.Invoice, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.invoices[inv.ID]
	if !ok {
		return port.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	inv.Version = expectedVersion + 1
	r.invoices[inv.ID] = inv.Clone()
	return nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		out = append(out, inv.Clone())
	}
	return out, nil
}

func (r *memRepo) ListByOriginalInvoiceID(_ context.Context, originalID string) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.OriginalInvoiceID == originalID {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) NextInvoiceNumber(_ context.Context, serial string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[serial]++
	return r.sequences[serial], nil
}

func (r *memRepo) ListStuckSubmissions(_ context.Context, olderThan time.Time) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.TaxStatus == status.TaxPending && inv.UpdatedAt.Before(olderThan) {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}

// put installs an invoice directly, bypassing the version check. Used by
// tests to stage state and to simulate writes from another process.
func (r *memRepo) put(inv *entity.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = inv.Clone()
}

type memHistory struct {
	mu      sync.Mutex
	records []*entity.TransitionRecord
}

func (h *memHistory) Create(_ context.Context, rec *entity.TransitionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := *rec
	c.ID = int64(len(h.records) + 1)
	h.records = append(h.records, &c)
	return nil
}

func (h *memHistory) GetByInvoiceID(_ context.Context, invoiceID string) ([]*entity.TransitionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*entity.TransitionRecord
	for _, rec := range h.records {
		if rec.InvoiceID == invoiceID {
			c := *rec
			out = append(out, &c)
		}
	}
	return out, nil
}

// nopTxManager runs the function without an actual transaction.
type nopTxManager struct{}

func (nopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// stubTaxClient counts submissions and delegates to configurable funcs.
type stubTaxClient struct {
	submissions atomic.Int64
	submitFunc  func(ctx context.Context, sub *port.InvoiceSubmission) (string, error)
	lookupFunc  func(ctx context.Context, invoiceID string) (string, error)
}

func (c *stubTaxClient) Submit(ctx context.Context, sub *port.InvoiceSubmission) (string, error) {
	c.submissions.Add(1)
	if c.submitFunc != nil {
		return c.submitFunc(ctx, sub)
	}
	return "KQ01", nil
}

func (c *stubTaxClient) LookupStatus(ctx context.Context, invoiceID string) (string, error) {
	if c.lookupFunc != nil {
		return c.lookupFunc(ctx, invoiceID)
	}
	return "KQ03", nil
}
