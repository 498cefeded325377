// Package container provides dependency injection and lifecycle management
// for the reconciliation service.
package container

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyjia/invoice-reconciler/internal/application/dispatcher"
	"github.com/garyjia/invoice-reconciler/internal/application/notification"
	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/application/service"
	"github.com/garyjia/invoice-reconciler/internal/config"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/export"
	infraLark "github.com/garyjia/invoice-reconciler/internal/infrastructure/external/lark"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/external/openai"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-reconciler/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase applies pending migrations, then opens the connection pool
// and wraps it in a transaction manager.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if err := database.NewMigrator(cfg.Path, logger).Up(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
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

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Tenant:          repository.NewTenantRepository(db.DB, logger),
		Vendor:          repository.NewVendorRepository(db.DB, logger),
		Invoice:         repository.NewInvoiceRepository(db.DB, logger),
		BankTransaction: repository.NewBankTransactionRepository(db.DB, logger),
		Match:           repository.NewMatchRepository(db.DB, logger),
		Idempotency:     repository.NewIdempotencyRepository(db.DB, logger),
	}, nil
}

// ProvideExplainer creates the OpenAI explainer. It returns nil without an
// API key; explanations then come from the built-in templates.
func ProvideExplainer(cfg *config.OpenAIConfig, logger *zap.Logger) (port.Explainer, error) {
	if cfg == nil || cfg.APIKey == "" {
		logger.Info("OpenAI API key not configured, using template explanations")
		return nil, nil
	}

	prompts, err := openai.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	if cfg.Temperature > 0 {
		prompts.MatchExplanation.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		prompts.MatchExplanation.MaxTokens = cfg.MaxTokens
	}

	return openai.NewExplainer(openai.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, prompts, logger), nil
}

// ProvideNotifier creates the Lark notifier, or nil when Lark is not fully configured.
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) port.Notifier {
	larkCfg := infraLark.Config{
		AppID:        cfg.AppID,
		AppSecret:    cfg.AppSecret,
		NotifyChatID: cfg.NotifyChatID,
		BaseURL:      cfg.BaseURL,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark notifications disabled")
		return nil
	}
	return infraLark.NewNotifier(infraLark.NewSDKClient(larkCfg, logger), larkCfg.NotifyChatID, logger)
}

// ProvideDispatcher creates the domain event dispatcher and subscribes the notifier when present.
func ProvideDispatcher(notifier port.Notifier, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("events")}))
	if notifier != nil {
		notification.Register(d, notifier)
	}
	return d
}

// ProvideExporter creates the spreadsheet exporter for match reports.
func ProvideExporter(cfg *config.ExportConfig, logger *zap.Logger) port.MatchReportExporter {
	return export.NewExcelExporter(cfg.SheetName, logger)
}

// ServiceDeps holds dependencies required to create application services.
type ServiceDeps struct {
	Repos          *RepositoryBundle
	TxManager      port.TransactionManager
	Explainer      port.Explainer
	Events         port.EventPublisher
	Exporter       port.MatchReportExporter
	Reconciliation config.ReconciliationConfig
	Logger         *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos
	locks := service.NewTenantLocker()

	return &ServiceBundle{
		Tenant:  service.NewTenantService(repos.Tenant, repos.Vendor, serviceLogger),
		Invoice: service.NewInvoiceService(repos.Invoice, repos.Vendor, serviceLogger),
		BankTransaction: service.NewBankTransactionService(
			repos.BankTransaction, repos.Idempotency, deps.TxManager, locks, serviceLogger),
		Reconciliation: service.NewReconciliationService(
			repos.Tenant,
			repos.Invoice,
			repos.BankTransaction,
			repos.Match,
			deps.TxManager,
			deps.Events,
			locks,
			service.ReconciliationConfig{
				ScoreThreshold:       deps.Reconciliation.Threshold(),
				CandidatesPerInvoice: deps.Reconciliation.CandidatesPerInvoice,
				ScoringWorkers:       deps.Reconciliation.ScoringWorkers,
			},
			serviceLogger,
		),
		Explanation: service.NewExplanationService(
			repos.Invoice, repos.BankTransaction, repos.Match, deps.Explainer, serviceLogger),
		Report: service.NewReportService(
			repos.Invoice, repos.BankTransaction, repos.Match, deps.Exporter, serviceLogger),
	}, nil
}
