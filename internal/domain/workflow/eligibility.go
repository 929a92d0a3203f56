package workflow

import (
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// Eligible is the single shared eligibility evaluator: given an invoice
// snapshot it returns the set of actions a caller may legally request.
// Every screen and every engine entry point consults this one function,
// so no two callers can disagree about what is allowed.
func Eligible(inv *entity.Invoice) []Action {
	var actions []Action

	switch inv.InternalStatus {
	case status.Draft:
		actions = append(actions, ActionEdit, ActionSendForApproval)

	case status.PendingApproval:
		actions = append(actions, ActionApprove, ActionReject, ActionCancel)

	case status.PendingSign:
		if !inv.NumberAssigned() {
			actions = append(actions, ActionSign)
		}
		actions = append(actions, ActionCancel)

	case status.Approved:
		if !inv.NumberAssigned() {
			actions = append(actions, ActionSign)
		}

	case status.Signed:
		if inv.NumberAssigned() {
			actions = append(actions, ActionIssue)
		}

	case status.Issued:
		actions = append(actions, ActionCreateAdjustment, ActionCreateReplacement)
	}

	// The sole repair path for a failed submission. Never offered without a
	// recorded error: a resend against an accepted filing would be a
	// duplicate submission to the authority.
	if inv.InternalStatus == status.Signed || inv.InternalStatus == status.Issued {
		if inv.TaxStatus.IsError() {
			actions = append(actions, ActionResendToTax)
		}
	}

	// A document only exists once the invoice is numbered.
	if inv.NumberAssigned() {
		actions = append(actions, ActionPrint, ActionDownloadPdf)
	}

	return actions
}

// Can reports whether the action is in the eligible set for the invoice.
func Can(inv *entity.Invoice, action Action) bool {
	for _, a := range Eligible(inv) {
		if a == action {
			return true
		}
	}
	return false
}
