package taxauthority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	}, zap.NewNop())
}

func TestSubmitAccepted(t *testing.T) {
	var gotAuth string
	var gotBody submitRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(submitResponse{Code: "KQ01"})
	})

	code, err := client.Submit(context.Background(), &port.InvoiceSubmission{
		InvoiceID:      "inv-1",
		InvoiceNumber:  7,
		TemplateSerial: "1C25TAA",
		TotalAmount:    1_500_000,
	})

	require.NoError(t, err)
	assert.Equal(t, "KQ01", code)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, int64(7), gotBody.InvoiceNumber)
}

func TestSubmitRejectedWithAuthorityCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(submitResponse{Code: "TB07", Message: "duplicate invoice"})
	})

	_, err := client.Submit(context.Background(), &port.InvoiceSubmission{InvoiceID: "inv-1", InvoiceNumber: 7})

	var authErr *port.AuthorityError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "TB07", authErr.Code)
	assert.Equal(t, "duplicate invoice", authErr.Message)
}

func TestSubmitRejectedWithoutParsableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	})

	_, err := client.Submit(context.Background(), &port.InvoiceSubmission{InvoiceID: "inv-1", InvoiceNumber: 7})

	var authErr *port.AuthorityError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "REJECTED", authErr.Code)
}

func TestSubmitServerErrorIsAmbiguous(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Submit(context.Background(), &port.InvoiceSubmission{InvoiceID: "inv-1", InvoiceNumber: 7})

	require.Error(t, err)
	var authErr *port.AuthorityError
	assert.False(t, errors.As(err, &authErr), "a 5xx must not be treated as a definitive verdict")
}

func TestLookupStatusReturnsVerdict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/invoices/inv-1/status", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(submitResponse{Code: "TB07"})
	})

	code, err := client.LookupStatus(context.Background(), "inv-1")

	require.NoError(t, err)
	assert.Equal(t, "TB07", code)
}

func TestLookupStatusUnknownFiling(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	code, err := client.LookupStatus(context.Background(), "inv-1")

	require.NoError(t, err)
	assert.Equal(t, "KQ04", code)
}

func TestLookupStatusServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.LookupStatus(context.Background(), "inv-1")
	require.Error(t, err)
}

func TestSubmitTimeoutIsAmbiguous(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	})
	client.httpClient.Timeout = 10 * time.Millisecond

	_, err := client.Submit(context.Background(), &port.InvoiceSubmission{InvoiceID: "inv-1", InvoiceNumber: 7})

	require.Error(t, err)
	var authErr *port.AuthorityError
	assert.False(t, errors.As(err, &authErr))
}
