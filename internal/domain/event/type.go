package event

// Type identifies the type of domain event
type Type string

const (
	TypeRecordSubmitted Type = "record.submitted"
	TypeRecordApproved  Type = "record.approved"
	TypeRecordRejected  Type = "record.rejected"
	TypeRecordPaid      Type = "record.paid"

	TypePaymentSubmitted Type = "payment.submitted"
	TypePaymentApproved  Type = "payment.approved"
	TypePaymentRejected  Type = "payment.rejected"
	TypePaymentCompleted Type = "payment.completed"
)

// SummaryInvalidating lists the events after which a cached financial summary is stale
var SummaryInvalidating = []Type{
	TypeRecordApproved,
	TypeRecordPaid,
	TypePaymentApproved,
	TypePaymentCompleted,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRecordSubmitted,
		TypeRecordApproved,
		TypeRecordRejected,
		TypeRecordPaid,
		TypePaymentSubmitted,
		TypePaymentApproved,
		TypePaymentRejected,
		TypePaymentCompleted:
		return true
	default:
		return false
	}
}
