package workflow

// Action is a caller-requested operation on an invoice. Actions double as
// the triggers of the lifecycle state machine; the query-only actions
// (Print, DownloadPdf) never cause a transition.
type Action string

const (
	ActionEdit              Action = "EDIT"
	ActionSendForApproval   Action = "SEND_FOR_APPROVAL"
	ActionApprove           Action = "APPROVE"
	ActionReject            Action = "REJECT"
	ActionSign              Action = "SIGN"
	ActionIssue             Action = "ISSUE"
	ActionResendToTax       Action = "RESEND_TO_TAX"
	ActionCancel            Action = "CANCEL"
	ActionCreateAdjustment  Action = "CREATE_ADJUSTMENT"
	ActionCreateReplacement Action = "CREATE_REPLACEMENT"
	ActionPrint             Action = "PRINT"
	ActionDownloadPdf       Action = "DOWNLOAD_PDF"
)

var validActions = map[Action]bool{
	ActionEdit:              true,
	ActionSendForApproval:   true,
	ActionApprove:           true,
	ActionReject:            true,
	ActionSign:              true,
	ActionIssue:             true,
	ActionResendToTax:       true,
	ActionCancel:            true,
	ActionCreateAdjustment:  true,
	ActionCreateReplacement: true,
	ActionPrint:             true,
	ActionDownloadPdf:       true,
}

// IsValid returns true if the action is a known action.
func (a Action) IsValid() bool {
	return validActions[a]
}

// RequiresReason returns true if the action must carry a non-empty reason.
func (a Action) RequiresReason() bool {
	return a == ActionReject || a == ActionCancel
}

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}
