package workflow

import (
	"context"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// BuildInvoiceLifecycle creates a state machine configured for the invoice
// lifecycle, positioned at the invoice's current status. Guards close over
// the snapshot: signing requires the number to be absent, issuing requires
// it to be present, resending requires a recorded tax error.
//
//	Draft --SEND_FOR_APPROVAL--> PendingApproval
//	PendingApproval --APPROVE--> PendingSign
//	PendingApproval --REJECT--> Cancelled
//	PendingApproval --CANCEL--> Draft
//	PendingSign --SIGN--> Signed          (assigns the invoice number)
//	Approved --SIGN--> Signed             (alternate entry point)
//	PendingSign --CANCEL--> Draft         (clears any assigned number)
//	Signed --ISSUE--> Issued              (submits to the tax authority)
//	Signed --RESEND_TO_TAX--> Issued      (repair path after a failed submission)
//	Issued --RESEND_TO_TAX--> Issued
func BuildInvoiceLifecycle(inv *entity.Invoice) StateMachine {
	numberAbsent := func(context.Context) bool { return !inv.NumberAssigned() }
	numberPresent := func(context.Context) bool { return inv.NumberAssigned() }
	taxError := func(context.Context) bool { return inv.TaxStatus.IsError() }

	builder := NewBuilder()

	builder.Configure(status.Draft).
		Permit(ActionSendForApproval, status.PendingApproval)

	builder.Configure(status.PendingApproval).
		Permit(ActionApprove, status.PendingSign).
		Permit(ActionReject, status.Cancelled).
		Permit(ActionCancel, status.Draft)

	builder.Configure(status.PendingSign).
		PermitIf(ActionSign, status.Signed, numberAbsent).
		Permit(ActionCancel, status.Draft)

	builder.Configure(status.Approved).
		PermitIf(ActionSign, status.Signed, numberAbsent)

	builder.Configure(status.Signed).
		PermitIf(ActionIssue, status.Issued, numberPresent).
		PermitIf(ActionResendToTax, status.Issued, taxError)

	builder.Configure(status.Issued).
		PermitIf(ActionResendToTax, status.Issued, taxError)

	// Cancelled is terminal: rejection at approval admits no further transitions.

	return builder.Build(inv.InternalStatus)
}
