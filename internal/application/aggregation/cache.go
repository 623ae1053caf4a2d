package aggregation

import (
	"sync"
	"time"

	"github.com/garyjia/project-billing/internal/domain/entity"
)

// SummaryCache stores the latest financial summary per project
type SummaryCache interface {
	Get(projectID string) (*entity.FinancialSummary, bool)
	Set(projectID string, summary *entity.FinancialSummary, at time.Time)
	Invalidate(projectID string)
	Clear()
	// LastUpdated returns the time of the most recent Set, or nil
	LastUpdated() *time.Time
}

type memoryCache struct {
	mu          sync.RWMutex
	entries     map[string]entity.FinancialSummary
	lastUpdated *time.Time
}

// NewMemoryCache creates an in-process SummaryCache. Each engine owns its own instance.
func NewMemoryCache() SummaryCache {
	return &memoryCache{
		entries: make(map[string]entity.FinancialSummary),
	}
}

func (c *memoryCache) Get(projectID string) (*entity.FinancialSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary, ok := c.entries[projectID]
	if !ok {
		return nil, false
	}
	return &summary, true
}

func (c *memoryCache) Set(projectID string, summary *entity.FinancialSummary, at time.Time) {
	if summary == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[projectID] = *summary
	c.lastUpdated = &at
}

func (c *memoryCache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entity.FinancialSummary)
}

func (c *memoryCache) LastUpdated() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastUpdated == nil {
		return nil
	}
	t := *c.lastUpdated
	return &t
}
