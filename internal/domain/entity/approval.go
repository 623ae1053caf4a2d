package entity

import (
	"time"

	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// DefaultTotalSteps is the number of approval steps a new workflow starts with
const DefaultTotalSteps = 2

// ApproverStatus is the decision state of a single approver
type ApproverStatus string

const (
	ApproverPending  ApproverStatus = "pending"
	ApproverApproved ApproverStatus = "approved"
	ApproverRejected ApproverStatus = "rejected"
)

// RosterMode tells whether approvals are restricted to a predefined roster
type RosterMode string

const (
	// RosterFixed restricts each step to its scheduled approver
	RosterFixed RosterMode = "fixed"
	// RosterOpen lets any actor approve; decisions are appended to the roster as they happen
	RosterOpen RosterMode = "open"
)

// HistoryAction is the kind of action recorded in the approval history
type HistoryAction string

const (
	ActionSubmit  HistoryAction = "submit"
	ActionApprove HistoryAction = "approve"
	ActionReject  HistoryAction = "reject"
	ActionCancel  HistoryAction = "cancel"
	ActionReturn  HistoryAction = "return"
)

// Actor identifies the user performing a command
type Actor struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role,omitempty"`
}

// Approver is one step of the approval roster. StepNumber is 1-based.
type Approver struct {
	StepNumber int            `json:"step_number"`
	UserID     string         `json:"user_id"`
	UserName   string         `json:"user_name"`
	Role       string         `json:"role"`
	Status     ApproverStatus `json:"status"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	Comments   string         `json:"comments,omitempty"`
}

// ApprovalHistoryEntry is one append-only audit log line
type ApprovalHistoryEntry struct {
	ID             string          `json:"id"`
	StepNumber     int             `json:"step_number"`
	Action         HistoryAction   `json:"action"`
	UserID         string          `json:"user_id"`
	UserName       string          `json:"user_name"`
	Timestamp      time.Time       `json:"timestamp"`
	PreviousStatus workflow.Status `json:"previous_status"`
	NewStatus      workflow.Status `json:"new_status"`
	Comments       string          `json:"comments,omitempty"`
}

// ApprovalWorkflow is embedded in exactly one BillingRecord
type ApprovalWorkflow struct {
	CurrentStep int                    `json:"current_step"`
	TotalSteps  int                    `json:"total_steps"`
	Roster      RosterMode             `json:"roster"`
	Approvers   []Approver             `json:"approvers"`
	History     []ApprovalHistoryEntry `json:"history"`
}

// NewApprovalWorkflow returns the workflow a record is created with
func NewApprovalWorkflow(totalSteps int) ApprovalWorkflow {
	if totalSteps < 1 {
		totalSteps = DefaultTotalSteps
	}
	return ApprovalWorkflow{
		TotalSteps: totalSteps,
		Roster:     RosterOpen,
		Approvers:  []Approver{},
		History:    []ApprovalHistoryEntry{},
	}
}

// Clone returns a deep copy of the workflow
func (w ApprovalWorkflow) Clone() ApprovalWorkflow {
	c := w
	c.Approvers = make([]Approver, len(w.Approvers))
	for i, a := range w.Approvers {
		if a.ApprovedAt != nil {
			t := *a.ApprovedAt
			a.ApprovedAt = &t
		}
		c.Approvers[i] = a
	}
	c.History = append(make([]ApprovalHistoryEntry, 0, len(w.History)), w.History...)
	return c
}

// ApproverForStep returns the index of the approver scheduled for step, or -1
func (w ApprovalWorkflow) ApproverForStep(step int) int {
	for i, a := range w.Approvers {
		if a.StepNumber == step {
			return i
		}
	}
	return -1
}
