// Package status is the fixed vocabulary of invoice statuses: the internal
// workflow statuses and the tax-authority integration statuses, each with a
// wire-stable numeric id matching the backend API contract.
package status

import "fmt"

// Internal is an internal workflow status (cột "Trạng thái").
type Internal int

const (
	Draft           Internal = 1 // newly created, not yet sent for approval
	Issued          Internal = 2 // issued, terminal success
	Cancelled       Internal = 3 // cancelled / rejected at approval
	PendingApproval Internal = 6 // sent to the accounting lead for approval
	PendingSign     Internal = 7 // approved, waiting for digital signature
	Signed          Internal = 8 // signed and numbered, waiting for issuance
	Approved        Internal = 9 // approved, alternate entry point to signing
)

// signedAlias is the legacy duplicate of Signed used by some callers.
// It is accepted on input and always canonicalized to Signed.
const signedAlias = 10

var internalLabels = map[Internal]string{
	Draft:           "Draft",
	Issued:          "Issued",
	Cancelled:       "Cancelled",
	PendingApproval: "Pending approval",
	PendingSign:     "Pending signature",
	Signed:          "Signed",
	Approved:        "Approved",
}

var terminalStatuses = map[Internal]bool{
	Issued:    true,
	Cancelled: true,
}

// ParseInternal converts a wire id into an Internal status. The legacy
// "signed, pending issue" id 10 maps to the canonical Signed status.
func ParseInternal(id int) (Internal, error) {
	if id == signedAlias {
		return Signed, nil
	}
	s := Internal(id)
	if !s.IsValid() {
		return 0, fmt.Errorf("unknown internal status id %d", id)
	}
	return s, nil
}

// IsValid reports whether s is a known internal status.
func (s Internal) IsValid() bool {
	_, ok := internalLabels[s]
	return ok
}

// IsTerminal reports whether s admits no further transitions. Draft is not
// terminal even though Cancel re-enters it.
func (s Internal) IsTerminal() bool {
	return terminalStatuses[s]
}

// Label returns the display-independent English label for s.
func (s Internal) Label() string {
	if l, ok := internalLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// String returns the label, satisfying fmt.Stringer for logs and errors.
func (s Internal) String() string {
	return s.Label()
}

// Tax is the tax authority's last known verdict on an invoice
// (cột "Trạng thái CQT"). Independent axis from Internal.
type Tax int

const (
	TaxNotSent    Tax = 0
	TaxPending    Tax = 1
	TaxReceived   Tax = 2
	TaxRejected   Tax = 3
	TaxAccepted   Tax = 4 // authority code granted
	TaxFailed     Tax = 5 // system error while sending
	TaxProcessing Tax = 6
	TaxNotFound   Tax = 7
)

// Receipt notifications (TB - Thông báo) from the authority.
const (
	TaxTB01 Tax = 10 + iota // accepted as well-formed
	TaxTB02                 // malformed XML/XSD
	TaxTB03                 // invalid digital signature
	TaxTB04                 // wrong tax identification number
	TaxTB05                 // missing mandatory information
	TaxTB06                 // malformed data
	TaxTB07                 // duplicate invoice
	TaxTB08                 // invoice not granted a code
	TaxTB09                 // referenced invoice not found
	TaxTB10                 // invalid line item data
	TaxTB11                 // malformed PDF rendition
	TaxTB12                 // authority-side technical error
)

// Result notifications (KQ - Kết quả) from the authority.
const (
	TaxKQ01 Tax = 30 + iota // authority code granted
	TaxKQ02                 // code grant refused
	TaxKQ03                 // no result yet
	TaxKQ04                 // invoice not found
)

var taxCodes = map[Tax]string{
	TaxNotSent:    "NOT_SENT",
	TaxPending:    "PENDING",
	TaxReceived:   "RECEIVED",
	TaxRejected:   "REJECTED",
	TaxAccepted:   "APPROVED",
	TaxFailed:     "FAILED",
	TaxProcessing: "PROCESSING",
	TaxNotFound:   "NOT_FOUND",
	TaxTB01:       "TB01",
	TaxTB02:       "TB02",
	TaxTB03:       "TB03",
	TaxTB04:       "TB04",
	TaxTB05:       "TB05",
	TaxTB06:       "TB06",
	TaxTB07:       "TB07",
	TaxTB08:       "TB08",
	TaxTB09:       "TB09",
	TaxTB10:       "TB10",
	TaxTB11:       "TB11",
	TaxTB12:       "TB12",
	TaxKQ01:       "KQ01",
	TaxKQ02:       "KQ02",
	TaxKQ03:       "KQ03",
	TaxKQ04:       "KQ04",
}

var taxLabels = map[Tax]string{
	TaxNotSent:    "Not sent to tax authority",
	TaxPending:    "Submission in progress",
	TaxReceived:   "Received by tax authority",
	TaxRejected:   "Rejected by tax authority",
	TaxAccepted:   "Authority code granted",
	TaxFailed:     "Submission failed",
	TaxProcessing: "Processing",
	TaxNotFound:   "Invoice not found",
	TaxTB01:       "TB01: accepted as well-formed",
	TaxTB02:       "TB02: malformed XML",
	TaxTB03:       "TB03: invalid signature",
	TaxTB04:       "TB04: wrong tax ID",
	TaxTB05:       "TB05: missing information",
	TaxTB06:       "TB06: malformed data",
	TaxTB07:       "TB07: duplicate invoice",
	TaxTB08:       "TB08: code not granted",
	TaxTB09:       "TB09: referenced invoice not found",
	TaxTB10:       "TB10: invalid line items",
	TaxTB11:       "TB11: malformed PDF",
	TaxTB12:       "TB12: authority technical error",
	TaxKQ01:       "KQ01: authority code granted",
	TaxKQ02:       "KQ02: code grant refused",
	TaxKQ03:       "KQ03: no result yet",
	TaxKQ04:       "KQ04: invoice not found",
}

// ParseTaxCode maps an authority code string (e.g. "TB07", "KQ01") back to
// its Tax status. Unknown codes report ok = false.
func ParseTaxCode(code string) (Tax, bool) {
	for t, c := range taxCodes {
		if c == code {
			return t, true
		}
	}
	return 0, false
}

// IsValid reports whether t is a known tax status.
func (t Tax) IsValid() bool {
	_, ok := taxCodes[t]
	return ok
}

// IsError reports whether t records an authority-side failure. This is the
// single shared definition used by both the eligibility evaluator and the
// tax submission coordinator.
func (t Tax) IsError() bool {
	switch t {
	case TaxRejected, TaxFailed, TaxKQ02:
		return true
	}
	return t >= TaxTB02 && t <= TaxTB12
}

// IsSuccess reports whether t records a definitive authority acceptance.
func (t Tax) IsSuccess() bool {
	switch t {
	case TaxAccepted, TaxTB01, TaxKQ01:
		return true
	}
	return false
}

// CanRetry reports whether a new submission is permitted for t.
func (t Tax) CanRetry() bool {
	return t.IsError() || t == TaxNotFound || t == TaxKQ04
}

// Code returns the authority code string for t, or "UNKNOWN".
func (t Tax) Code() string {
	if c, ok := taxCodes[t]; ok {
		return c
	}
	return "UNKNOWN"
}

// Label returns the display-independent English label for t.
func (t Tax) Label() string {
	if l, ok := taxLabels[t]; ok {
		return l
	}
	return "Unknown"
}

// String returns the authority code string.
func (t Tax) String() string {
	return t.Code()
}
