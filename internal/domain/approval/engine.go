// Package approval coordinates sequential multi-approver decisions on an embedded
// ApprovalWorkflow. All operations return a new workflow value; the history log is
// left to the caller.
package approval

import (
	"fmt"
	"time"

	"github.com/garyjia/project-billing/internal/domain/entity"
)

// Engine mutates approval workflows. It holds no per-record state.
type Engine struct {
	now func() time.Time
}

// Option configures the engine
type Option func(*Engine)

// WithClock overrides the time source used for approval timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new approval workflow engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize starts the workflow at step 1. A non-empty customApprovers replaces the
// roster, numbering steps by list order, and sets TotalSteps to its length.
func (e *Engine) Initialize(w entity.ApprovalWorkflow, customApprovers []entity.Approver) entity.ApprovalWorkflow {
	next := w.Clone()

	if len(customApprovers) > 0 {
		next.Approvers = make([]entity.Approver, len(customApprovers))
		for i, a := range customApprovers {
			next.Approvers[i] = entity.Approver{
				StepNumber: i + 1,
				UserID:     a.UserID,
				UserName:   a.UserName,
				Role:       a.Role,
				Status:     entity.ApproverPending,
			}
		}
		next.TotalSteps = len(customApprovers)
	}

	if next.TotalSteps < 1 {
		next.TotalSteps = entity.DefaultTotalSteps
	}

	if len(next.Approvers) > 0 {
		next.Roster = entity.RosterFixed
	} else {
		next.Roster = entity.RosterOpen
	}

	next.CurrentStep = 1
	return next
}

// RecordDecision applies an approver decision to the current step. Approval advances
// CurrentStep; rejection leaves it in place. In an open roster the deciding actor is
// appended as the approver of the current step.
func (e *Engine) RecordDecision(w entity.ApprovalWorkflow, actor entity.Actor, decision entity.ApproverStatus, comments string) (entity.ApprovalWorkflow, error) {
	if decision != entity.ApproverApproved && decision != entity.ApproverRejected {
		return w, fmt.Errorf("%w: %s", ErrInvalidDecision, decision)
	}

	next := w.Clone()
	now := e.now()

	if idx := next.ApproverForStep(next.CurrentStep); idx >= 0 {
		next.Approvers[idx].Status = decision
		next.Approvers[idx].ApprovedAt = &now
		next.Approvers[idx].Comments = comments
	} else {
		next.Approvers = append(next.Approvers, entity.Approver{
			StepNumber: next.CurrentStep,
			UserID:     actor.UserID,
			UserName:   actor.UserName,
			Role:       actor.Role,
			Status:     decision,
			ApprovedAt: &now,
			Comments:   comments,
		})
	}

	if decision == entity.ApproverApproved {
		next.CurrentStep++
	}

	return next, nil
}

// CheckPermission fails when a fixed roster schedules someone other than actor for
// the current step. Open rosters accept any actor.
func (e *Engine) CheckPermission(w entity.ApprovalWorkflow, actor entity.Actor) error {
	if w.Roster != entity.RosterFixed || len(w.Approvers) == 0 {
		return nil
	}

	idx := w.ApproverForStep(w.CurrentStep)
	if idx < 0 {
		return nil
	}

	if expected := w.Approvers[idx].UserID; expected != actor.UserID {
		return &NotAuthorizedError{
			Step:           w.CurrentStep,
			UserID:         actor.UserID,
			ExpectedUserID: expected,
		}
	}
	return nil
}

// Reset rewinds the workflow for a record returning to draft. Roster order and
// history are preserved.
func (e *Engine) Reset(w entity.ApprovalWorkflow) entity.ApprovalWorkflow {
	next := w.Clone()
	next.CurrentStep = 0
	for i := range next.Approvers {
		next.Approvers[i].Status = entity.ApproverPending
		next.Approvers[i].ApprovedAt = nil
		next.Approvers[i].Comments = ""
	}
	return next
}

// IsFullyApproved reports whether every step has been approved
func (e *Engine) IsFullyApproved(w entity.ApprovalWorkflow) bool {
	return w.CurrentStep >= w.TotalSteps
}
