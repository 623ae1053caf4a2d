package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/project-billing/internal/application/service"
	"github.com/garyjia/project-billing/internal/config"
	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/event"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 18080, Mode: "test"},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "billing.db"), MaxOpenConns: 1},
		Billing:  config.BillingConfig{TaxRate: 0.05, DefaultTotalSteps: 2, PaymentDueDays: 30},
		Logger:   config.LoggerConfig{Level: "info"},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Billing.TaxRate = 2
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())
	assert.False(t, c.Health().Overall)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	health := c.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "cache empty", health.Components["aggregation"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.False(t, c.Health().Overall)
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_WiresCacheInvalidation(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	handlers := c.Dispatcher().ListHandlers(event.TypePaymentCompleted)
	require.Len(t, handlers, 1)

	ctx := context.Background()
	actor := entity.Actor{UserID: "alice"}
	record, err := c.Services().Records.CreateDraft(ctx, "proj-1", actor, service.DraftInput{
		RecordType: entity.RecordTypePayable,
		ContractID: "contract-1",
		LineItems:  []entity.LineItem{{ID: "li-1", CurrentBilling: decimal.NewFromInt(1000)}},
		Owner:      &entity.Party{ID: "owner-1"},
		Contractor: &entity.Party{ID: "contractor-1"},
	})
	require.NoError(t, err)
	assert.True(t, record.Tax.Equal(decimal.NewFromInt(50)), "configured tax rate applies")

	records, err := c.Services().Records.List(ctx, "proj-1")
	require.NoError(t, err)
	c.Aggregation().FinancialSummary(records, "proj-1")
	_, cached := c.Aggregation().GetCachedSummary("proj-1")
	require.True(t, cached)

	_, err = c.Services().Lifecycle.Submit(ctx, "proj-1", record.ID, actor, service.SubmitOptions{})
	require.NoError(t, err)
	_, cached = c.Aggregation().GetCachedSummary("proj-1")
	assert.True(t, cached, "submission does not invalidate")

	_, err = c.Services().Lifecycle.Approve(ctx, "proj-1", record.ID, entity.Actor{UserID: "bob"}, service.DecisionOptions{})
	require.NoError(t, err)
	_, cached = c.Aggregation().GetCachedSummary("proj-1")
	assert.False(t, cached, "approval invalidates")
}

func TestBillingPolicy(t *testing.T) {
	policy := BillingPolicy(config.BillingConfig{TaxRate: 0.13, DefaultTotalSteps: 3, PaymentDueDays: 45})
	assert.Equal(t, "0.13", policy.TaxRate.String())
	assert.Equal(t, 3, policy.DefaultTotalSteps)
	assert.Equal(t, 45, policy.PaymentDueDays)
}
