package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

type stubRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice
}

func newStubRepo() *stubRepo {
	return &stubRepo{invoices: make(map[string]*entity.Invoice)}
}

func (r *stubRepo) put(inv *entity.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = inv.Clone()
}

func (r *stubRepo) get(id string) *entity.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id].Clone()
}

func (r *stubRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.put(inv)
	return nil
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return inv.Clone(), nil
}

func (r *stubRepo) Save(_ context.Context, inv *entity.Invoice, expectedVersion int64) error {
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

func (r *stubRepo) List(context.Context, int, int) ([]*entity.Invoice, error) {
	return nil, nil
}

func (r *stubRepo) ListByOriginalInvoiceID(context.Context, string) ([]*entity.Invoice, error) {
	return nil, nil
}

func (r *stubRepo) NextInvoiceNumber(context.Context, string) (int64, error) {
	return 0, errors.New("not used")
}

func (r *stubRepo) ListStuckSubmissions(_ context.Context, olderThan time.Time) ([]*entity.Invoice, error) {
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

type stubHistory struct {
	mu      sync.Mutex
	records []*entity.TransitionRecord
}

func (h *stubHistory) Create(_ context.Context, rec *entity.TransitionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := *rec
	h.records = append(h.records, &c)
	return nil
}

func (h *stubHistory) GetByInvoiceID(_ context.Context, invoiceID string) ([]*entity.TransitionRecord, error) {
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

func (h *stubHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type lookupClient struct {
	mu      sync.Mutex
	lookups int
	code    string
	err     error
}

func (c *lookupClient) Submit(context.Context, *port.InvoiceSubmission) (string, error) {
	return "", errors.New("not used")
}

func (c *lookupClient) LookupStatus(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	return c.code, c.err
}

func (c *lookupClient) lookupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}

func newTestWorker(client *lookupClient) (*ReconcileWorker, *stubRepo, *stubHistory) {
	repo := newStubRepo()
	history := &stubHistory{}
	w := NewReconcileWorker(DefaultReconcileWorkerConfig(), repo, history, passthroughTx{}, client, zap.NewNop())
	return w, repo, history
}

func stuckInvoice(id string, st status.Internal) *entity.Invoice {
	return &entity.Invoice{
		ID:             id,
		InvoiceNumber:  42,
		TemplateSerial: "1C25TAA",
		CustomerID:     "0312345678",
		TotalAmount:    100,
		InternalStatus: st,
		TaxStatus:      status.TaxPending,
		Version:        3,
		CreatedAt:      time.Now().Add(-time.Hour),
		UpdatedAt:      time.Now().Add(-time.Hour),
	}
}

func TestReconcileAdvancesAcceptedFiling(t *testing.T) {
	client := &lookupClient{code: "KQ01"}
	w, repo, history := newTestWorker(client)
	repo.put(stuckInvoice("inv-1", status.Signed))

	w.runOnce(context.Background())

	inv := repo.get("inv-1")
	assert.Equal(t, status.Issued, inv.InternalStatus)
	assert.Equal(t, status.TaxKQ01, inv.TaxStatus)
	assert.Equal(t, "KQ01", inv.TaxStatusCode)
	assert.Equal(t, int64(4), inv.Version)

	records, err := history.GetByInvoiceID(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "RECONCILE", records[0].Action)
	assert.Equal(t, status.Signed, records[0].PreviousStatus)
	assert.Equal(t, status.Issued, records[0].NewStatus)
	assert.Equal(t, "system", records[0].Actor)
}

func TestReconcileKeepsIssuedInvoiceIssued(t *testing.T) {
	client := &lookupClient{code: "KQ01"}
	w, repo, _ := newTestWorker(client)
	repo.put(stuckInvoice("inv-1", status.Issued))

	w.runOnce(context.Background())

	inv := repo.get("inv-1")
	assert.Equal(t, status.Issued, inv.InternalStatus)
	assert.Equal(t, status.TaxKQ01, inv.TaxStatus)
}

func TestReconcileRecordsRejection(t *testing.T) {
	client := &lookupClient{code: "TB07"}
	w, repo, _ := newTestWorker(client)
	repo.put(stuckInvoice("inv-1", status.Signed))

	w.runOnce(context.Background())

	inv := repo.get("inv-1")
	assert.Equal(t, status.Signed, inv.InternalStatus)
	assert.Equal(t, status.TaxTB07, inv.TaxStatus)
	assert.True(t, inv.TaxStatus.CanRetry())
}

func TestReconcileMarksUnknownFilingFailed(t *testing.T) {
	client := &lookupClient{code: "KQ04"}
	w, repo, _ := newTestWorker(client)
	repo.put(stuckInvoice("inv-1", status.Signed))

	w.runOnce(context.Background())

	inv := repo.get("inv-1")
	assert.Equal(t, status.Signed, inv.InternalStatus)
	assert.Equal(t, status.TaxFailed, inv.TaxStatus)
}

func TestReconcileLeavesProcessingFilingAlone(t *testing.T) {
	client := &lookupClient{code: "KQ03"}
	w, repo, history := newTestWorker(client)
	repo.put(stuckInvoice("inv-1", status.Signed))

	w.runOnce(context.Background())

	inv := repo.get("inv-1")
	assert.Equal(t, status.TaxPending, inv.TaxStatus)
	assert.Equal(t, int64(3), inv.Version)
	assert.Zero(t, history.count())
}

func TestReconcileSkipsFreshSubmissions(t *testing.T) {
	client := &lookupClient{code: "KQ01"}
	w, repo, _ := newTestWorker(client)
	inv := stuckInvoice("inv-1", status.Signed)
	inv.UpdatedAt = time.Now()
	repo.put(inv)

	w.runOnce(context.Background())

	assert.Zero(t, client.lookupCount())
}

func TestReconcileToleratesLookupFailure(t *testing.T) {
	client := &lookupClient{err: errors.New("gateway down")}
	w, repo, history := newTestWorker(client)
	repo.put(stuckInvoice("inv-1", status.Signed))

	w.runOnce(context.Background())

	inv := repo.get("inv-1")
	assert.Equal(t, status.TaxPending, inv.TaxStatus)
	assert.Zero(t, history.count())
}

func TestReconcileToleratesConcurrentResolution(t *testing.T) {
	client := &lookupClient{code: "KQ01"}
	repo := newStubRepo()
	history := &stubHistory{}
	stale := stuckInvoice("inv-1", status.Signed)
	repo.put(stale)

	// Another process resolves the invoice between the listing and the save.
	resolved := stale.Clone()
	resolved.InternalStatus = status.Issued
	resolved.TaxStatus = status.TaxKQ01
	resolved.Version = 4
	repo.put(resolved)

	w := NewReconcileWorker(DefaultReconcileWorkerConfig(), repo, history, passthroughTx{}, client, zap.NewNop())
	require.NoError(t, w.reconcileInvoice(context.Background(), stale))

	inv := repo.get("inv-1")
	assert.Equal(t, int64(4), inv.Version)
	assert.Zero(t, history.count())
}

func TestWorkerStartStop(t *testing.T) {
	client := &lookupClient{code: "KQ01"}
	w, repo, _ := newTestWorker(client)
	w.config.PollInterval = 5 * time.Millisecond
	repo.put(stuckInvoice("inv-1", status.Signed))

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	deadline := time.After(2 * time.Second)
	for client.lookupCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never polled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	inv := repo.get("inv-1")
	assert.Equal(t, status.Issued, inv.InternalStatus)
}
