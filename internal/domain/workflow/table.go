package workflow

// TransitionTable is an immutable lookup of legal status transitions.
// Every status decision in the billing lifecycle goes through it.
type TransitionTable struct {
	allowed map[Status][]Status
}

// BillingTransitions is the lifecycle shared by receivable and payable records
var BillingTransitions = BuildBillingTable()

// BuildBillingTable configures the billing record lifecycle
func BuildBillingTable() *TransitionTable {
	builder := NewBuilder()

	builder.Configure(StatusDraft).
		Permit(StatusSubmitted).
		Permit(StatusCancelled)

	builder.Configure(StatusSubmitted).
		Permit(StatusUnderReview).
		Permit(StatusApproved).
		Permit(StatusRejected)

	builder.Configure(StatusUnderReview).
		Permit(StatusApproved).
		Permit(StatusRejected)

	builder.Configure(StatusApproved).
		Permit(StatusInvoiced)

	builder.Configure(StatusRejected).
		Permit(StatusDraft)

	builder.Configure(StatusInvoiced).
		Permit(StatusPartialPaid).
		Permit(StatusPaid)

	builder.Configure(StatusPartialPaid).
		Permit(StatusPaid)

	// paid and cancelled are terminal

	return builder.Build()
}

// CanTransition returns true if to is an allowed destination of from
func (t *TransitionTable) CanTransition(from, to Status) bool {
	for _, s := range t.allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an *InvalidTransitionError if the transition is not legal
func (t *TransitionTable) ValidateTransition(from, to Status) error {
	if t.CanTransition(from, to) {
		return nil
	}
	return &InvalidTransitionError{
		From:    from,
		To:      to,
		Allowed: t.AvailableTransitions(from),
	}
}

// ValidateStatusUpdate is ValidateTransition that also accepts progress updates
func (t *TransitionTable) ValidateStatusUpdate(from, to Status) error {
	if IsProgressUpdate(from, to) {
		return nil
	}
	return t.ValidateTransition(from, to)
}

// AvailableTransitions returns the allowed destinations of a status
func (t *TransitionTable) AvailableTransitions(status Status) []Status {
	return append([]Status{}, t.allowed[status]...)
}

// IsTerminal returns true if no transition leaves the status
func (t *TransitionTable) IsTerminal(status Status) bool {
	return status.IsValid() && len(t.allowed[status]) == 0
}

// CanTransition checks a transition against the billing lifecycle
func CanTransition(from, to Status) bool {
	return BillingTransitions.CanTransition(from, to)
}

// ValidateTransition validates a transition against the billing lifecycle
func ValidateTransition(from, to Status) error {
	return BillingTransitions.ValidateTransition(from, to)
}

// AvailableTransitions returns the allowed destinations in the billing lifecycle
func AvailableTransitions(status Status) []Status {
	return BillingTransitions.AvailableTransitions(status)
}

// IsTerminalStatus returns true for paid and cancelled
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusPaid, StatusCancelled:
		return true
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved,
		StatusRejected, StatusInvoiced, StatusPartialPaid:
		return false
	}
	return false
}

// IsProgressUpdate reports whether from -> to records progress within a status rather
// than leaving it: a further intermediate approval or a further partial payment
func IsProgressUpdate(from, to Status) bool {
	return from == to && (from == StatusUnderReview || from == StatusPartialPaid)
}

// IsPendingApproval returns true while a record waits for an approver
func IsPendingApproval(status Status) bool {
	return status == StatusSubmitted || status == StatusUnderReview
}

// IsEditable returns true while a record's content may still change
func IsEditable(status Status) bool {
	return status == StatusDraft || status == StatusRejected
}
