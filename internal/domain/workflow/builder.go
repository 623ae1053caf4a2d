package workflow

import "fmt"

// TableBuilder builds a transition table one source status at a time
type TableBuilder interface {
	// Configure returns the configuration for transitions leaving the given status
	Configure(from Status) StatusConfiguration

	// Build freezes the configured transitions into a table
	Build() *TransitionTable
}

// StatusConfiguration configures the legal destinations of one status
type StatusConfiguration interface {
	// Permit allows a transition to the target status
	Permit(to Status) StatusConfiguration
}

type statusConfig struct {
	from    Status
	targets []Status
}

type tableBuilder struct {
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns the configuration for the given status, creating it on first use
func (b *tableBuilder) Configure(from Status) StatusConfiguration {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", from))
	}

	config, exists := b.configurations[from]
	if !exists {
		config = &statusConfig{from: from}
		b.configurations[from] = config
	}

	return config
}

// Build copies the configuration so later Configure calls do not leak into built tables
func (b *tableBuilder) Build() *TransitionTable {
	allowed := make(map[Status][]Status, len(AllStatuses))
	for _, s := range AllStatuses {
		allowed[s] = []Status{}
	}
	for from, config := range b.configurations {
		allowed[from] = append([]Status{}, config.targets...)
	}

	return &TransitionTable{allowed: allowed}
}

// Permit allows a transition to the target status; duplicates are ignored
func (c *statusConfig) Permit(to Status) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	for _, existing := range c.targets {
		if existing == to {
			return c
		}
	}
	c.targets = append(c.targets, to)

	return c
}
