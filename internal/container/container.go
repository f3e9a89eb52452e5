package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/dispatcher"
	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/application/service"
	"github.com/garyjia/discharge-planner/internal/application/workflow"
	"github.com/garyjia/discharge-planner/internal/infrastructure/metrics"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	database *DatabaseBundle
	external *ExternalBundle
	metrics  *metrics.Recorder

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.CaseEngine
	services   *ServiceBundle

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Definitions port.DefinitionRepository
	Subjects    port.SubjectStateRepository
	Cases       port.CaseRepository
	Audits      port.AuditRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Process      service.ProcessService
	Notification service.NotificationService
	Audit        service.AuditService
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
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
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

// Start initializes all components:
// 1. Storage and repositories
// 2. External clients (Redis, Lark, OpenAI, exporter)
// 3. Metrics, dispatcher and case engine
// 4. Application services
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

	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = db
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	external, err := ProvideExternal(ctx, c.config, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.external = external
	c.logger.Info("External clients initialized")

	c.metrics = ProvideMetrics()
	c.dispatcher = ProvideDispatcher(c.logger)
	c.engine = ProvideCaseEngine(&EngineDeps{
		Repos:      c.database.Repositories,
		TxManager:  c.database.TxManager,
		Dispatcher: c.dispatcher,
		Locker:     c.external.Locker,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	c.logger.Info("Dispatcher and case engine initialized")

	c.services = ProvideServices(&ServiceDeps{
		Repos:      c.database.Repositories,
		TxManager:  c.database.TxManager,
		Engine:     c.engine,
		External:   c.external,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	c.logger.Info("Application services initialized")

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

	// Drain async handlers before the clients they use go away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.external != nil && c.external.Redis != nil {
		if err := c.external.Redis.Close(); err != nil {
			c.logger.Error("Failed to close redis", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, err)
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

func (c *Container) closeDatabase() error {
	if c.database == nil || c.database.DB == nil {
		return nil
	}
	if err := c.database.DB.Close(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		return fmt.Errorf("close database: %w", err)
	}
	c.logger.Info("Database closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error, okMessage string) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true, Message: okMessage}
	}

	switch {
	case c.database == nil:
		set("database", fmt.Errorf("not initialized"), "")
	case c.database.DB == nil:
		set("database", nil, "in-memory")
	default:
		set("database", c.database.DB.PingContext(ctx), "")
	}

	if c.external != nil && c.external.Redis != nil {
		set("redis", c.external.Redis.Ping(ctx).Err(), "")
	}

	if c.dispatcher == nil {
		set("dispatcher", fmt.Errorf("not initialized"), "")
	} else {
		set("dispatcher", nil, "")
	}

	return status
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.database.Repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// CaseEngine returns the case engine.
func (c *Container) CaseEngine() workflow.CaseEngine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Metrics returns the Prometheus recorder.
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// zapLoggerAdapter adapts zap.Logger to the service and dispatcher Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
