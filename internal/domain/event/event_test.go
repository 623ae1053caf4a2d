package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		want      bool
	}{
		{TypeRecordSubmitted, true},
		{TypeRecordApproved, true},
		{TypeRecordRejected, true},
		{TypeRecordPaid, true},
		{TypePaymentSubmitted, true},
		{TypePaymentApproved, true},
		{TypePaymentRejected, true},
		{TypePaymentCompleted, true},
		{Type("record.cancelled"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummaryInvalidating(t *testing.T) {
	want := map[Type]bool{
		TypeRecordApproved:   true,
		TypeRecordPaid:       true,
		TypePaymentApproved:  true,
		TypePaymentCompleted: true,
	}

	if len(SummaryInvalidating) != len(want) {
		t.Fatalf("SummaryInvalidating has %d types, want %d", len(SummaryInvalidating), len(want))
	}
	for _, typ := range SummaryInvalidating {
		if !want[typ] {
			t.Errorf("unexpected invalidating type %s", typ)
		}
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeRecordApproved, "proj-1", "rec-1", Actor{UserID: "u1"}, map[string]interface{}{
		"is_fully_approved": true,
	})

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.CorrelationID != evt.ID {
		t.Errorf("CorrelationID = %s, want %s", evt.CorrelationID, evt.ID)
	}
	if evt.ProjectID != "proj-1" || evt.RecordID != "rec-1" {
		t.Errorf("unexpected identity %s/%s", evt.ProjectID, evt.RecordID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("timestamp should not precede creation")
	}
	if !evt.GetPayloadBool("is_fully_approved") {
		t.Error("expected is_fully_approved payload")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeRecordSubmitted, "p", "r", Actor{}, nil)
	if evt.Payload == nil {
		t.Fatal("payload should default to an empty map")
	}
	if got := evt.GetPayloadString("missing"); got != "" {
		t.Errorf("GetPayloadString() = %q, want empty", got)
	}
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypePaymentCompleted, "p", "r", Actor{}, map[string]interface{}{"a": "1"})
	updated := original.WithPayload("b", "2")

	if _, ok := original.Payload["b"]; ok {
		t.Error("original payload should not change")
	}
	if updated.GetPayloadString("a") != "1" || updated.GetPayloadString("b") != "2" {
		t.Errorf("updated payload = %v", updated.Payload)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestEvent_WithCorrelation(t *testing.T) {
	evt := NewEvent(TypeRecordRejected, "p", "r", Actor{}, nil)
	linked := evt.WithCorrelation("chain-1")

	if linked.CorrelationID != "chain-1" {
		t.Errorf("CorrelationID = %s, want chain-1", linked.CorrelationID)
	}
	if evt.CorrelationID == "chain-1" {
		t.Error("original event should not change")
	}
}
