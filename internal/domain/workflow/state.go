package workflow

// Status represents a billing record status in the invoice lifecycle
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusInvoiced    Status = "invoiced"
	StatusPartialPaid Status = "partial_paid"
	StatusPaid        Status = "paid"
	StatusCancelled   Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusInvoiced,
	StatusPartialPaid,
	StatusPaid,
	StatusCancelled,
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the nine lifecycle statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected,
		StatusInvoiced, StatusPartialPaid, StatusPaid, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsApprovedOrFurther reports whether a record in this status counts as billed/approved
func (s Status) IsApprovedOrFurther() bool {
	switch s {
	case StatusApproved, StatusInvoiced, StatusPartialPaid, StatusPaid:
		return true
	default:
		return false
	}
}

// IsCollected reports whether a record in this status carries a paid amount
func (s Status) IsCollected() bool {
	return s == StatusPaid || s == StatusPartialPaid
}
