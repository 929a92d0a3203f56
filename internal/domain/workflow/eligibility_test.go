package workflow

import (
	"testing"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

func has(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func TestEligible_ByStatus(t *testing.T) {
	tests := []struct {
		name    string
		invoice entity.Invoice
		want    []Action
		forbid  []Action
	}{
		{
			name:    "draft",
			invoice: entity.Invoice{InternalStatus: status.Draft},
			want:    []Action{ActionEdit, ActionSendForApproval},
			forbid:  []Action{ActionApprove, ActionSign, ActionIssue, ActionCancel, ActionPrint},
		},
		{
			name:    "pending approval",
			invoice: entity.Invoice{InternalStatus: status.PendingApproval},
			want:    []Action{ActionApprove, ActionReject, ActionCancel},
			forbid:  []Action{ActionEdit, ActionSign, ActionIssue},
		},
		{
			name:    "pending sign without number",
			invoice: entity.Invoice{InternalStatus: status.PendingSign},
			want:    []Action{ActionSign, ActionCancel},
			forbid:  []Action{ActionIssue, ActionPrint, ActionDownloadPdf},
		},
		{
			name:    "approved without number",
			invoice: entity.Invoice{InternalStatus: status.Approved},
			want:    []Action{ActionSign},
			forbid:  []Action{ActionCancel, ActionIssue},
		},
		{
			name:    "signed with number",
			invoice: entity.Invoice{InternalStatus: status.Signed, InvoiceNumber: 7},
			want:    []Action{ActionIssue, ActionPrint, ActionDownloadPdf},
			forbid:  []Action{ActionSign, ActionCancel, ActionResendToTax},
		},
		{
			name:    "issued",
			invoice: entity.Invoice{InternalStatus: status.Issued, InvoiceNumber: 7, TaxStatus: status.TaxAccepted},
			want:    []Action{ActionCreateAdjustment, ActionCreateReplacement, ActionPrint, ActionDownloadPdf},
			forbid:  []Action{ActionCancel, ActionSign, ActionIssue, ActionResendToTax},
		},
		{
			name:    "cancelled",
			invoice: entity.Invoice{InternalStatus: status.Cancelled},
			want:    nil,
			forbid:  []Action{ActionEdit, ActionSign, ActionIssue, ActionApprove, ActionCancel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Eligible(&tt.invoice)
			for _, a := range tt.want {
				if !has(got, a) {
					t.Errorf("Eligible() missing %s (got %v)", a, got)
				}
			}
			for _, a := range tt.forbid {
				if has(got, a) {
					t.Errorf("Eligible() must not include %s (got %v)", a, got)
				}
			}
		})
	}
}

// Safety invariant: Sign is never offered when a number is present, and
// Issue is never offered when the number is absent, across every status
// and both number states.
func TestEligible_SignIssueSafetyInvariant(t *testing.T) {
	statuses := []status.Internal{
		status.Draft, status.Issued, status.Cancelled,
		status.PendingApproval, status.PendingSign, status.Signed, status.Approved,
	}

	for _, s := range statuses {
		for _, number := range []entity.InvoiceNumber{0, 42} {
			inv := &entity.Invoice{InternalStatus: s, InvoiceNumber: number}
			actions := Eligible(inv)

			if number.Assigned() && has(actions, ActionSign) {
				t.Errorf("status %v: Sign offered with number present", s)
			}
			if !number.Assigned() && has(actions, ActionIssue) {
				t.Errorf("status %v: Issue offered with number absent", s)
			}
		}
	}
}

// ResendToTax is offered exactly when the invoice is Signed or Issued and
// the tax status records an error.
func TestEligible_ResendGatedOnTaxError(t *testing.T) {
	taxStates := []status.Tax{
		status.TaxNotSent, status.TaxPending, status.TaxAccepted,
		status.TaxFailed, status.TaxRejected, status.TaxTB07, status.TaxKQ02, status.TaxTB01,
	}
	statuses := []status.Internal{
		status.Draft, status.Issued, status.Cancelled,
		status.PendingApproval, status.PendingSign, status.Signed, status.Approved,
	}

	for _, s := range statuses {
		for _, ts := range taxStates {
			inv := &entity.Invoice{InternalStatus: s, InvoiceNumber: 9, TaxStatus: ts}
			offered := has(Eligible(inv), ActionResendToTax)
			shouldOffer := (s == status.Signed || s == status.Issued) && ts.IsError()
			if offered != shouldOffer {
				t.Errorf("status %v tax %s: resend offered = %v, want %v", s, ts.Code(), offered, shouldOffer)
			}
		}
	}
}

func TestEligible_PrintRequiresNumber(t *testing.T) {
	inv := &entity.Invoice{InternalStatus: status.PendingSign}
	if has(Eligible(inv), ActionPrint) || has(Eligible(inv), ActionDownloadPdf) {
		t.Error("Print/DownloadPdf offered before numbering")
	}

	inv.InvoiceNumber = 1
	if !has(Eligible(inv), ActionPrint) || !has(Eligible(inv), ActionDownloadPdf) {
		t.Error("Print/DownloadPdf missing after numbering")
	}
}

func TestCan(t *testing.T) {
	inv := &entity.Invoice{InternalStatus: status.Draft}
	if !Can(inv, ActionEdit) {
		t.Error("Can(Edit) = false for Draft")
	}
	if Can(inv, ActionIssue) {
		t.Error("Can(Issue) = true for Draft")
	}
}
