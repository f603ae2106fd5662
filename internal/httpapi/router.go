package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"controlplane/internal/config"
	"controlplane/internal/policy"
	"controlplane/internal/pricing"
	"controlplane/internal/providers"
	"controlplane/internal/queue"
	"controlplane/internal/ratelimit"
	"controlplane/internal/recorder"
	"controlplane/internal/redaction"
	"controlplane/internal/storage"
	"controlplane/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Tenants   TenantStore
	Providers ProviderStore
	Policies  PolicyStore
	Enforcer  AdmissionController
	Adapters  AdapterResolver
	Decrypter CredentialDecrypter
	Redactor  Redactor
	Pricing   CostCalculator
	Recorder  EventRecorder
	Logger    *utils.Logger
	Health    func(ctx context.Context) error

	db           *storage.DB
	redisClient  *storage.RedisClient
	exportWorker *recorder.ExportWorker
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	encryption, err := storage.NewEncryptionFromBase64(cfg.Encryption.MasterKey, cfg.Encryption.KeyVersion)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	location, err := time.LoadLocation(cfg.Policy.Timezone)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("invalid policy timezone %q: %w", cfg.Policy.Timezone, err)
	}

	rules := redaction.DefaultRules()
	if cfg.Redaction.RulesPath != "" {
		rules, err = redaction.LoadRules(cfg.Redaction.RulesPath)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, nil, fmt.Errorf("failed to load redaction rules: %w", err)
		}
	}
	redactor, err := redaction.New(rules)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to build redactor: %w", err)
	}

	tenantRepo := storage.NewTenantRepository(db)
	providerRepo := storage.NewProviderRepository(db)
	policyRepo := storage.NewPolicyRepository(db)
	usageRepo := storage.NewUsageRepository(db)
	auditRepo := storage.NewAuditRepository(db)
	pricingRepo := storage.NewPricingRepository(db)
	settingsRepo := storage.NewSettingsRepository(db)

	switches := policy.NewCachedSwitches(settingsRepo, cfg.Policy.KillSwitchTTL)
	limiter := ratelimit.NewSlidingWindowLimiter(redisClient.Client())
	counters := policy.NewCounters(redisClient.Client(), location)
	enforcer := policy.NewEnforcer(switches, limiter, counters)

	calculator := pricing.NewCalculator(pricingRepo, 256, 5*time.Minute)
	factory := providers.NewFactory(cfg.Provider.RequestTimeout)

	logger := utils.NewLogger("httpapi")

	// Audit export fan-out
	var exportQueue queue.Queue
	var exportWorker *recorder.ExportWorker
	if cfg.Export.Enabled {
		queueCfg := queue.DefaultConfig("audit-export")
		queueCfg.BatchSize = cfg.Export.BatchSize
		queueCfg.BatchTimeout = cfg.Export.BatchTimeout
		queueCfg.MaxRetries = cfg.Export.MaxRetries
		queueCfg.RetryBackoff = cfg.Export.RetryBackoff

		var dlq queue.DeadLetterQueue
		if cfg.Export.UseRedis {
			exportQueue = queue.NewRedisQueue(redisClient.Client(), queueCfg.Name)
			dlq = queue.NewRedisDeadLetterQueue(redisClient.Client(), queueCfg.Name)
		} else {
			exportQueue = queue.NewMemoryQueue(queueCfg)
			dlq = queue.NewMemoryDeadLetterQueue()
		}

		exportWorker = recorder.NewExportWorker(exportQueue, dlq, cfg.Export.WebhookURL, queueCfg)
		exportWorker.Start(context.Background())
	}

	rec := recorder.New(usageRepo, auditRepo, exportQueue, nil)

	deps := &Dependencies{
		Tenants:   tenantRepo,
		Providers: providerRepo,
		Policies:  policyRepo,
		Enforcer:  enforcer,
		Adapters:  factory,
		Decrypter: encryption,
		Redactor:  redactor,
		Pricing:   calculator,
		Recorder:  rec,
		Logger:    logger,
		Health:    db.Health,

		db:           db,
		redisClient:  redisClient,
		exportWorker: exportWorker,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return mux, deps, nil
}

// registerRoutes attaches all handlers to the mux
func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/runtime/execute", deps.handleExecute)
	mux.HandleFunc("/health", deps.handleHealth)
}

// Close releases connections and stops background workers
func (d *Dependencies) Close() error {
	if d.exportWorker != nil {
		if err := d.exportWorker.Stop(); err != nil {
			d.Logger.Error("Failed to stop export worker", "error", err)
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.Logger.Error("Failed to close Redis client", "error", err)
		}
	}
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
