package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/application/port"
	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/event"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// memStore is an in-memory RecordStore with the same version semantics as the sqlite store
type memStore struct {
	mu      sync.Mutex
	records map[string]*entity.BillingRecord

	persistCalls int
	persistErr   error
	createErr    func(record *entity.BillingRecord) error
}

func newMemStore(records ...*entity.BillingRecord) *memStore {
	s := &memStore{records: make(map[string]*entity.BillingRecord)}
	for _, r := range records {
		s.records[r.ProjectID+"/"+r.ID] = r.Clone()
	}
	return s
}

func (s *memStore) Create(ctx context.Context, record *entity.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		if err := s.createErr(record); err != nil {
			return err
		}
	}
	for _, r := range s.records {
		if r.ProjectID == record.ProjectID && r.RecordNumber == record.RecordNumber {
			return port.ErrDuplicate
		}
	}
	s.records[record.ProjectID+"/"+record.ID] = record.Clone()
	return nil
}

func (s *memStore) Load(ctx context.Context, projectID, recordID string) (*entity.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[projectID+"/"+recordID]
	if !ok {
		return nil, port.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *memStore) Persist(ctx context.Context, projectID, recordID string, update port.RecordUpdate) (*entity.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistCalls++
	if s.persistErr != nil {
		return nil, s.persistErr
	}
	r, ok := s.records[projectID+"/"+recordID]
	if !ok {
		return nil, port.ErrNotFound
	}
	if r.Version != update.ExpectedVersion {
		return nil, port.ErrConflict
	}
	next := r.Clone()
	update.Apply(next)
	s.records[projectID+"/"+recordID] = next
	return next.Clone(), nil
}

func (s *memStore) ListByProject(ctx context.Context, projectID string) ([]*entity.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.BillingRecord
	for _, r := range s.records {
		if r.ProjectID == projectID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) get(projectID, recordID string) *entity.BillingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[projectID+"/"+recordID].Clone()
}

// recordingPublisher captures dispatched events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (p *recordingPublisher) Dispatch(ctx context.Context, evt *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = p.Dispatch(ctx, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// newTestRecord returns a submittable record in the given status
func newTestRecord(id string, recordType entity.RecordType, status workflow.Status, total int64) *entity.BillingRecord {
	return &entity.BillingRecord{
		ID:           id,
		ProjectID:    "proj-1",
		RecordNumber: "NO-" + id,
		RecordType:   recordType,
		ContractID:   "contract-1",
		TaskIDs:      []string{"task-1"},
		LineItems: []entity.LineItem{
			{ID: "li-1", Description: "Foundation works", CurrentBilling: dec(total)},
		},
		Subtotal:         dec(total),
		Total:            dec(total),
		BillingParty:     &entity.Party{ID: "owner-1", Name: "Owner"},
		PayingParty:      &entity.Party{ID: "contractor-1", Name: "Builder Ltd"},
		Status:           status,
		ApprovalWorkflow: entity.NewApprovalWorkflow(entity.DefaultTotalSteps),
		DueDate:          fixedNow.AddDate(0, 1, 0),
		CreatedAt:        fixedNow,
		UpdatedAt:        fixedNow,
		Version:          1,
	}
}
