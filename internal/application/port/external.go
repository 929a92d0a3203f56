package port

import (
	"context"
	"fmt"
	"time"
)

// InvoiceSubmission is the content handed to the tax authority. The core
// never inspects the authority's wire format; this is the full extent of
// what crosses the boundary.
type InvoiceSubmission struct {
	InvoiceID      string
	InvoiceNumber  int64
	TemplateSerial string
	CustomerID     string
	IssueDate      *time.Time
	TotalAmount    float64
}

// AuthorityError is a definitive authority-side rejection: the authority
// received the submission and refused it with a code (TB02..TB12, KQ02,
// ...). Transport failures and timeouts are NOT AuthorityErrors; they are
// returned as plain errors and treated as ambiguous outcomes.
type AuthorityError struct {
	Code    string
	Message string
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("tax authority rejected submission: %s (%s)", e.Code, e.Message)
}

// TaxAuthorityClient defines the external tax authority operations. Submit
// is a possibly slow, possibly flaky remote call; on success it returns
// the authority code granted to the invoice. LookupStatus queries the
// verdict of an earlier filing, used to reconcile submissions whose
// response was lost.
type TaxAuthorityClient interface {
	Submit(ctx context.Context, sub *InvoiceSubmission) (authorityCode string, err error)
	LookupStatus(ctx context.Context, invoiceID string) (authorityCode string, err error)
}
