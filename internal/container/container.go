package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/project-billing/internal/application/aggregation"
	"github.com/garyjia/project-billing/internal/application/dispatcher"
	"github.com/garyjia/project-billing/internal/application/port"
	"github.com/garyjia/project-billing/internal/application/service"
	"github.com/garyjia/project-billing/internal/config"
	"github.com/garyjia/project-billing/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/project-billing/internal/interfaces/http"
	"github.com/garyjia/project-billing/pkg/database"
	"github.com/garyjia/project-billing/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	sqlDB *sql.DB
	store port.RecordStore

	// Application
	dispatcher  dispatcher.Dispatcher
	aggregation aggregation.Engine
	services    *ServiceBundle

	// Interfaces
	httpServer *httpapi.Server

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Records   service.RecordService
	Lifecycle service.LifecycleService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and record store
// 2. Event dispatcher
// 3. Aggregation engine (subscribed to the dispatcher)
// 4. Application services
// 5. HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	c.initDispatcher()
	c.logger.Info("Dispatcher initialized")

	c.initAggregation()
	c.logger.Info("Aggregation engine initialized")

	c.initServices()
	c.logger.Info("Application services initialized")

	c.initHTTP()
	c.logger.Info("HTTP server initialized", zap.String("address", c.httpServer.Address()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop HTTP server (reverse of step 5)
	if c.httpServer != nil {
		if err := c.httpServer.Stop(); err != nil {
			c.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	// Step 2: Services and aggregation hold no resources (reverse of steps 3-4)

	// Step 3: Close dispatcher (reverse of step 2)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 4: Close database (reverse of step 1)
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	mark := func(name string, healthy bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: message}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		mark("database", false, "not initialized")
	case c.closed.Load():
		mark("database", false, "closed")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	}

	if c.dispatcher != nil {
		mark("dispatcher", true, "")
	} else {
		mark("dispatcher", false, "not initialized")
	}

	if c.aggregation != nil {
		message := "cache empty"
		if last := c.aggregation.GetLastUpdated(); last != nil {
			message = "cache updated " + last.UTC().Format("2006-01-02T15:04:05Z")
		}
		mark("aggregation", true, message)
	} else {
		mark("aggregation", false, "not initialized")
	}

	return status
}

// initDatabase opens the database, applies migrations and builds the record store.
func (c *Container) initDatabase(ctx context.Context) error {
	sqlDB, err := database.Open(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}

	db := sqlite.NewDB(sqlDB, c.logger)
	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.sqlDB = sqlDB
	c.store = sqlite.NewRecordStore(db, c.logger)
	return nil
}

func (c *Container) initDispatcher() {
	c.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(c.logger.Named("dispatcher"))),
	)
}

// initAggregation subscribes the summary cache to record and payment events.
func (c *Container) initAggregation() {
	c.aggregation = aggregation.NewSubscribedEngine(c.dispatcher,
		aggregation.WithLogger(utils.NewKVLogger(c.logger.Named("aggregation"))),
	)
}

func (c *Container) initServices() {
	logger := utils.NewKVLogger(c.logger.Named("service"))
	c.services = &ServiceBundle{
		Records:   service.NewRecordService(c.store, BillingPolicy(c.config.Billing), logger),
		Lifecycle: service.NewLifecycleService(c.store, logger, service.WithPublisher(c.dispatcher)),
	}
}

func (c *Container) initHTTP() {
	srv := c.config.Server
	c.httpServer = httpapi.NewServer(httpapi.ServerConfig{
		Host:         srv.Host,
		Port:         srv.Port,
		Mode:         srv.Mode,
		ReadTimeout:  srv.ReadTimeout,
		WriteTimeout: srv.WriteTimeout,
	}, httpapi.Services{
		Records:     c.services.Records,
		Lifecycle:   c.services.Lifecycle,
		Aggregation: c.aggregation,
		Health: func() (bool, interface{}) {
			h := c.Health()
			return h.Overall, h.Components
		},
	}, utils.NewKVLogger(c.logger.Named("http")))
}

// BillingPolicy converts the billing section of the configuration.
func BillingPolicy(cfg config.BillingConfig) service.BillingPolicy {
	return service.BillingPolicy{
		TaxRate:           decimal.NewFromFloat(cfg.TaxRate),
		DefaultTotalSteps: cfg.DefaultTotalSteps,
		PaymentDueDays:    cfg.PaymentDueDays,
	}
}

// Getters for accessing container components

// Store returns the record store.
func (c *Container) Store() port.RecordStore {
	return c.store
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Aggregation returns the aggregation engine.
func (c *Container) Aggregation() aggregation.Engine {
	return c.aggregation
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *httpapi.Server {
	return c.httpServer
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
