package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/dispatcher"
	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/application/service"
	"github.com/garyjia/discharge-planner/internal/application/workflow"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/infrastructure/export"
	infraLark "github.com/garyjia/discharge-planner/internal/infrastructure/external/lark"
	"github.com/garyjia/discharge-planner/internal/infrastructure/external/openai"
	redislock "github.com/garyjia/discharge-planner/internal/infrastructure/lock/redis"
	"github.com/garyjia/discharge-planner/internal/infrastructure/metrics"
	"github.com/garyjia/discharge-planner/internal/infrastructure/persistence/memory"
	"github.com/garyjia/discharge-planner/internal/infrastructure/persistence/repository"
	"github.com/garyjia/discharge-planner/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/discharge-planner/migrations"
	"github.com/garyjia/discharge-planner/pkg/database"
)

// DatabaseBundle holds storage components. DB is nil for the memory driver.
type DatabaseBundle struct {
	DB           *database.DB
	TxManager    port.TransactionManager
	Repositories *RepositoryBundle
}

// ExternalBundle holds outbound integrations.
type ExternalBundle struct {
	Redis    *redis.Client
	Locker   port.CaseLocker
	Notifier port.Notifier
	Writer   port.SummaryWriter
	Exporter port.AuditExporter
}

// ProvideDatabase opens storage for the configured driver and, for sqlite,
// runs the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == "memory" {
		store := memory.NewStore()
		return &DatabaseBundle{
			TxManager: store,
			Repositories: &RepositoryBundle{
				Definitions: store.Definitions(),
				Subjects:    store.Subjects(),
				Cases:       store.Cases(),
				Audits:      store.Audits(),
			},
		}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:           db,
		TxManager:    sqlite.NewDB(db.DB, logger),
		Repositories: ProvideRepositories(db, logger),
	}, nil
}

// ProvideRepositories creates the sqlite repositories.
func ProvideRepositories(db *database.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Definitions: repository.NewDefinitionRepository(db.DB, logger),
		Subjects:    repository.NewSubjectStateRepository(db.DB, logger),
		Cases:       repository.NewCaseRepository(db.DB, logger),
		Audits:      repository.NewAuditRepository(db.DB, logger),
	}
}

// ProvideExternal creates the lock, notifier, summary writer and exporter.
// Disabled integrations fall back to in-process implementations.
func ProvideExternal(ctx context.Context, cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	bundle := &ExternalBundle{
		Notifier: &logNotifier{logger: logger},
		Exporter: export.NewXLSXExporter(logger),
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		bundle.Redis = client
		bundle.Locker = redislock.NewLocker(client, cfg.Redis.KeyPrefix, redislock.WithTTL(cfg.Redis.LockTTL))
		logger.Info("Distributed case lock enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Lark.Enabled {
		client := infraLark.NewClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
		}, logger)
		bundle.Notifier = infraLark.NewNotifier(client, logger)
		logger.Info("Lark notifications enabled")
	}

	if cfg.OpenAI.Enabled {
		bundle.Writer = &timeoutWriter{
			next: openai.NewSummaryWriter(openai.Config{
				APIKey:      cfg.OpenAI.APIKey,
				BaseURL:     cfg.OpenAI.BaseURL,
				Model:       cfg.OpenAI.Model,
				Temperature: cfg.OpenAI.Temperature,
				MaxTokens:   cfg.OpenAI.MaxTokens,
			}, logger),
			timeout: cfg.OpenAI.Timeout,
		}
		logger.Info("OpenAI summary writer enabled", zap.String("model", cfg.OpenAI.Model))
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))
}

// EngineDeps holds the case engine's dependencies.
type EngineDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Locker     port.CaseLocker
	Metrics    port.Metrics
	Logger     *zap.Logger
}

// ProvideCaseEngine creates the case engine.
func ProvideCaseEngine(deps *EngineDeps) workflow.CaseEngine {
	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithLogger(deps.Logger.Named("case-engine")),
	}
	if deps.Locker != nil {
		opts = append(opts, workflow.WithLocker(deps.Locker))
	}
	return workflow.NewEngine(deps.Repos.Cases, deps.Repos.Audits, deps.TxManager, opts...)
}

// ServiceDeps holds the application services' dependencies.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Engine     workflow.CaseEngine
	External   *ExternalBundle
	Dispatcher dispatcher.Dispatcher
	Metrics    port.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification service to case events.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	logger := &zapLoggerAdapter{logger: deps.Logger}

	notifications := service.NewNotificationService(deps.Engine, deps.External.Writer, deps.External.Notifier, logger)
	notifications.Register(deps.Dispatcher)

	return &ServiceBundle{
		Process: service.NewProcessService(
			deps.Repos.Definitions,
			deps.Repos.Subjects,
			deps.TxManager,
			logger,
			service.WithProcessDispatcher(deps.Dispatcher),
			service.WithProcessMetrics(deps.Metrics),
		),
		Notification: notifications,
		Audit:        service.NewAuditService(deps.Engine, deps.External.Exporter, logger),
	}
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.NewRecorder()
}

// logNotifier writes summaries to the log when no outbound channel is configured.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(ctx context.Context, summary *entity.CaseSummary) error {
	n.logger.Info("Case summary",
		zap.String("case_id", summary.CaseID),
		zap.String("state", summary.CurrentState),
		zap.String("message", summary.Message))
	return nil
}

// timeoutWriter bounds each summary request.
type timeoutWriter struct {
	next    port.SummaryWriter
	timeout time.Duration
}

func (w *timeoutWriter) WriteMessage(ctx context.Context, summary *entity.CaseSummary) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.next.WriteMessage(ctx, summary)
}
