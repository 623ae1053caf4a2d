package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return fixedNow }))
}

func roster() []entity.Approver {
	return []entity.Approver{
		{UserID: "pm-1", UserName: "Project Manager", Role: "pm"},
		{UserID: "fin-1", UserName: "Finance Lead", Role: "finance"},
		{UserID: "dir-1", UserName: "Director", Role: "director"},
	}
}

func TestEngine_Initialize(t *testing.T) {
	e := newTestEngine()

	t.Run("custom approvers replace roster", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())

		assert.Equal(t, 1, w.CurrentStep)
		assert.Equal(t, 3, w.TotalSteps)
		assert.Equal(t, entity.RosterFixed, w.Roster)
		require.Len(t, w.Approvers, 3)
		for i, a := range w.Approvers {
			assert.Equal(t, i+1, a.StepNumber)
			assert.Equal(t, entity.ApproverPending, a.Status)
		}
	})

	t.Run("no approvers keeps default steps and opens roster", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), nil)

		assert.Equal(t, 1, w.CurrentStep)
		assert.Equal(t, 2, w.TotalSteps)
		assert.Equal(t, entity.RosterOpen, w.Roster)
		assert.Empty(t, w.Approvers)
	})

	t.Run("existing roster is kept when none supplied", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())
		w = e.Reset(w)

		again := e.Initialize(w, nil)
		assert.Equal(t, entity.RosterFixed, again.Roster)
		assert.Len(t, again.Approvers, 3)
		assert.Equal(t, 1, again.CurrentStep)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := entity.NewApprovalWorkflow(2)
		_ = e.Initialize(in, roster())
		assert.Empty(t, in.Approvers)
		assert.Equal(t, 0, in.CurrentStep)
	})
}

func TestEngine_RecordDecision(t *testing.T) {
	e := newTestEngine()
	actor := entity.Actor{UserID: "pm-1", UserName: "Project Manager"}

	t.Run("approval advances step and stamps approver", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())

		w, err := e.RecordDecision(w, actor, entity.ApproverApproved, "looks right")
		require.NoError(t, err)

		assert.Equal(t, 2, w.CurrentStep)
		assert.Equal(t, entity.ApproverApproved, w.Approvers[0].Status)
		require.NotNil(t, w.Approvers[0].ApprovedAt)
		assert.Equal(t, fixedNow, *w.Approvers[0].ApprovedAt)
		assert.Equal(t, "looks right", w.Approvers[0].Comments)
	})

	t.Run("rejection does not advance", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())

		w, err := e.RecordDecision(w, actor, entity.ApproverRejected, "quantities wrong")
		require.NoError(t, err)

		assert.Equal(t, 1, w.CurrentStep)
		assert.Equal(t, entity.ApproverRejected, w.Approvers[0].Status)
	})

	t.Run("open roster appends the deciding actor", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), nil)

		w, err := e.RecordDecision(w, entity.Actor{UserID: "anyone", UserName: "Any One", Role: "site"}, entity.ApproverApproved, "")
		require.NoError(t, err)

		require.Len(t, w.Approvers, 1)
		assert.Equal(t, 1, w.Approvers[0].StepNumber)
		assert.Equal(t, "anyone", w.Approvers[0].UserID)
		assert.Equal(t, entity.RosterOpen, w.Roster)
		assert.Equal(t, 2, w.CurrentStep)
	})

	t.Run("invalid decision", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), nil)

		_, err := e.RecordDecision(w, actor, entity.ApproverPending, "")
		assert.True(t, errors.Is(err, ErrInvalidDecision))
	})
}

func TestEngine_CheckPermission(t *testing.T) {
	e := newTestEngine()

	t.Run("scheduled approver passes", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())
		assert.NoError(t, e.CheckPermission(w, entity.Actor{UserID: "pm-1"}))
	})

	t.Run("other user is rejected with detail", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())

		err := e.CheckPermission(w, entity.Actor{UserID: "fin-1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotAuthorized))

		var notAuth *NotAuthorizedError
		require.True(t, errors.As(err, &notAuth))
		assert.Equal(t, 1, notAuth.Step)
		assert.Equal(t, "pm-1", notAuth.ExpectedUserID)
		assert.Equal(t, "fin-1", notAuth.UserID)
	})

	t.Run("second step requires second approver", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster())
		w, err := e.RecordDecision(w, entity.Actor{UserID: "pm-1"}, entity.ApproverApproved, "")
		require.NoError(t, err)

		assert.Error(t, e.CheckPermission(w, entity.Actor{UserID: "pm-1"}))
		assert.NoError(t, e.CheckPermission(w, entity.Actor{UserID: "fin-1"}))
	})

	t.Run("open roster allows anyone", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), nil)
		w, err := e.RecordDecision(w, entity.Actor{UserID: "a"}, entity.ApproverApproved, "")
		require.NoError(t, err)

		assert.NoError(t, e.CheckPermission(w, entity.Actor{UserID: "b"}))
	})

	t.Run("no approver scheduled for current step", func(t *testing.T) {
		w := e.Initialize(entity.NewApprovalWorkflow(2), roster()[:1])
		w.CurrentStep = 2
		assert.NoError(t, e.CheckPermission(w, entity.Actor{UserID: "someone"}))
	})
}

func TestEngine_ResetRoundTrip(t *testing.T) {
	e := newTestEngine()

	w := e.Initialize(entity.NewApprovalWorkflow(2), roster())
	w.History = append(w.History, entity.ApprovalHistoryEntry{
		ID:             "h-1",
		Action:         entity.ActionSubmit,
		PreviousStatus: workflow.StatusDraft,
		NewStatus:      workflow.StatusSubmitted,
	})
	historyLen := len(w.History)

	w, err := e.RecordDecision(w, entity.Actor{UserID: "pm-1"}, entity.ApproverApproved, "ok")
	require.NoError(t, err)
	w, err = e.RecordDecision(w, entity.Actor{UserID: "fin-1"}, entity.ApproverRejected, "no")
	require.NoError(t, err)

	reset := e.Reset(w)

	assert.Equal(t, 0, reset.CurrentStep)
	assert.Len(t, reset.History, historyLen)
	require.Len(t, reset.Approvers, 3)
	for i, a := range reset.Approvers {
		assert.Equal(t, entity.ApproverPending, a.Status)
		assert.Nil(t, a.ApprovedAt)
		assert.Empty(t, a.Comments)
		assert.Equal(t, roster()[i].UserID, a.UserID)
	}

	// input untouched
	assert.Equal(t, entity.ApproverApproved, w.Approvers[0].Status)
}

func TestEngine_IsFullyApproved(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		current, total int
		want           bool
	}{
		{0, 2, false},
		{1, 2, false},
		{2, 2, true},
		{3, 2, true},
		{1, 1, true},
	}

	for _, tt := range tests {
		w := entity.ApprovalWorkflow{CurrentStep: tt.current, TotalSteps: tt.total}
		assert.Equal(t, tt.want, e.IsFullyApproved(w), "current=%d total=%d", tt.current, tt.total)
	}
}
