// Package entity holds the domain aggregates of the e-invoice lifecycle.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// InvoiceType distinguishes an original invoice from its derivatives.
type InvoiceType int

const (
	TypeOriginal     InvoiceType = 0
	TypeAdjustment   InvoiceType = 1
	TypeReplacement  InvoiceType = 2
	TypeCancellation InvoiceType = 3
	TypeExplanation  InvoiceType = 4
)

var invoiceTypeNames = map[InvoiceType]string{
	TypeOriginal:     "ORIGINAL",
	TypeAdjustment:   "ADJUSTMENT",
	TypeReplacement:  "REPLACEMENT",
	TypeCancellation: "CANCELLATION",
	TypeExplanation:  "EXPLANATION",
}

// IsValid reports whether t is a known invoice type.
func (t InvoiceType) IsValid() bool {
	_, ok := invoiceTypeNames[t]
	return ok
}

// IsDerivative reports whether t references an original invoice.
func (t InvoiceType) IsDerivative() bool {
	return t.IsValid() && t != TypeOriginal
}

// String returns the wire name of the invoice type.
func (t InvoiceType) String() string {
	if n, ok := invoiceTypeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseInvoiceType resolves a wire name to an InvoiceType.
func ParseInvoiceType(name string) (InvoiceType, error) {
	for t, n := range invoiceTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown invoice type %q", name)
}

// InvoiceNumber is the sequential number assigned exactly once at signing.
// Zero means "not yet numbered". Storage and upstream callers deliver the
// value as either a JSON number or a string (possibly empty or "0"), so
// unmarshalling normalizes all of those to absent.
type InvoiceNumber int64

// Assigned reports whether a number has been allocated.
func (n InvoiceNumber) Assigned() bool {
	return n > 0
}

// UnmarshalJSON accepts 5, "5", "", "0" and null, mapping the last three
// to the unassigned zero value.
func (n *InvoiceNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice number %q: %w", s, err)
		}
		*n = InvoiceNumber(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = InvoiceNumber(v)
	return nil
}

// Invoice is the aggregate root of the lifecycle. InternalStatus is the
// single source of truth for which actions are legal; TaxStatus tracks the
// authority's verdict on an independent axis. Version supports optimistic
// concurrency at the storage layer.
type Invoice struct {
	ID                string          `json:"id"`
	InvoiceNumber     InvoiceNumber   `json:"invoice_number"`
	TemplateSerial    string          `json:"template_serial"`
	CustomerID        string          `json:"customer_id"`
	IssueDate         *time.Time      `json:"issue_date,omitempty"`
	TotalAmount       float64         `json:"total_amount"`
	InternalStatus    status.Internal `json:"internal_status"`
	TaxStatus         status.Tax      `json:"tax_status"`
	TaxStatusCode     string          `json:"tax_status_code,omitempty"`
	InvoiceType       InvoiceType     `json:"invoice_type"`
	OriginalInvoiceID string          `json:"original_invoice_id,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NumberAssigned reports whether the invoice has been numbered.
func (i *Invoice) NumberAssigned() bool {
	return i.InvoiceNumber.Assigned()
}

// IsDerivative reports whether this invoice corrects another one.
func (i *Invoice) IsDerivative() bool {
	return i.InvoiceType.IsDerivative()
}

// Clone returns a deep copy of the invoice snapshot.
func (i *Invoice) Clone() *Invoice {
	c := *i
	if i.IssueDate != nil {
		d := *i.IssueDate
		c.IssueDate = &d
	}
	return &c
}

// TransitionRecord is one entry of the per-invoice audit trail. Every
// applied transition appends exactly one record.
type TransitionRecord struct {
	ID             int64           `json:"id"`
	InvoiceID      string          `json:"invoice_id"`
	Action         string          `json:"action"`
	PreviousStatus status.Internal `json:"previous_status"`
	NewStatus      status.Internal `json:"new_status"`
	Reason         string          `json:"reason,omitempty"`
	Actor          string          `json:"actor"`
	CreatedAt      time.Time       `json:"created_at"`
}
