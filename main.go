package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/magnetic-studio/studio-console/pkg/config"
	"github.com/magnetic-studio/studio-console/pkg/database"
	"github.com/magnetic-studio/studio-console/pkg/handlers"
	"github.com/magnetic-studio/studio-console/pkg/llm"
	"github.com/magnetic-studio/studio-console/pkg/logging"
	"github.com/magnetic-studio/studio-console/pkg/mcp"
	"github.com/magnetic-studio/studio-console/pkg/mcp/tools"
	"github.com/magnetic-studio/studio-console/pkg/middleware"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/ratelimit"
	"github.com/magnetic-studio/studio-console/pkg/repositories"
	"github.com/magnetic-studio/studio-console/pkg/retry"
	"github.com/magnetic-studio/studio-console/pkg/services"
	"github.com/magnetic-studio/studio-console/pkg/skills"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath   string
	migrateFirst bool
	migrateDown  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "studio-console",
		Short:         "Project knowledge, costing and price memory for a design studio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP endpoint",
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert the most recent migration instead")

	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	zapCfg := zap.NewProductionConfig()
	if cfg.Env == "local" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *database.DB, error) {
	cfg, err := config.LoadFile(configPath, Version)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	connStr := cfg.Database.ConnectionString()
	logger.Info("Connecting to database",
		zap.String("dsn", logging.SanitizeConnectionString(connStr)))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:              connStr,
		MaxConnections:   cfg.Database.MaxConnections,
		StatementTimeout: time.Duration(cfg.Database.StatementTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %s", logging.SanitizeError(err))
	}
	return cfg, logger, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, db, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync() //nolint:errcheck

	direction := database.MigrateUp
	if migrateDown {
		direction = database.MigrateDown
	}
	return database.Migrate(db.SQLDB(), cfg.MigrationsPath, direction, logger)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("llm_enabled", cfg.LLM.IsAvailable()))

	if migrateFirst {
		if err := database.RunMigrations(db.SQLDB(), cfg.MigrationsPath, logger); err != nil {
			return err
		}
	}

	limiter, closeLimiter, err := newRateLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// Repositories
	projectRepo := repositories.NewProjectRepository()
	sectionRepo := repositories.NewSectionRepository()
	itemRepo := repositories.NewItemRepository()
	factRepo := repositories.NewFactRepository()
	blockRepo := repositories.NewKnowledgeBlockRepository()
	priceRepo := repositories.NewPriceRepository()
	locker := database.NewKeyLocker()

	// Services
	fallback := models.ProjectDefaults{
		Overhead: cfg.Costing.DefaultOverhead,
		Risk:     cfg.Costing.DefaultRisk,
		Profit:   cfg.Costing.DefaultProfit,
	}
	costingService := services.NewCostingService(projectRepo, sectionRepo, fallback, logger)
	factLedger := services.NewFactLedgerService(factRepo, itemRepo, blockRepo, locker, logger)
	currentState := services.NewCurrentStateService(projectRepo, itemRepo, blockRepo, logger)
	priceMemory := services.NewPriceMemoryService(priceRepo, locker, logger)

	skillService, err := newSkillService(cfg, limiter, logger)
	if err != nil {
		return err
	}

	// HTTP API
	mux := http.NewServeMux()
	scoped := handlers.ScopeMiddleware(database.WithScopedConn(db, logger))

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewCostingHandler(costingService, logger).RegisterRoutes(mux, scoped)
	handlers.NewFactHandler(factLedger, logger).RegisterRoutes(mux, scoped)
	handlers.NewCurrentStateHandler(currentState, logger).RegisterRoutes(mux, scoped)
	handlers.NewPriceHandler(priceMemory, logger).RegisterRoutes(mux, scoped)
	handlers.NewSkillHandler(skillService, logger).RegisterRoutes(mux, scoped)

	// MCP
	mcpServer := mcp.NewServer("studio-console", cfg.Version, &tools.ToolDeps{
		Scope:        database.NewScopeProvider(db),
		DB:           db,
		Costing:      costingService,
		FactLedger:   factLedger,
		CurrentState: currentState,
		PriceMemory:  priceMemory,
		Version:      cfg.Version,
	}, logger)
	mcpServer.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting studio-console",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return nil
}

// newRateLimiter uses Redis when configured so limits hold across instances,
// and an in-process store otherwise.
func newRateLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ratelimit.Limiter, func(), error) {
	client, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		logger.Info("Using Redis rate limit store", zap.String("addr", cfg.Redis.Addr()))
		return ratelimit.New(ratelimit.NewRedisStore(client, cfg.Redis.KeyPrefix)), func() { _ = client.Close() }, nil
	}

	store := ratelimit.NewMemoryStore()
	janitorCtx, cancel := context.WithCancel(ctx)
	window := cfg.RateLimit.Window()
	go store.RunJanitor(janitorCtx, window, 2*window)
	logger.Info("Using in-memory rate limit store")
	return ratelimit.New(store), cancel, nil
}

func newSkillService(cfg *config.Config, limiter *ratelimit.Limiter, logger *zap.Logger) (services.SkillService, error) {
	var registry *skills.Registry
	if cfg.SkillsPath != "" {
		loaded, err := skills.Load(cfg.SkillsPath)
		switch {
		case err == nil:
			registry = loaded
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("Skill registry not found; no skills loaded", zap.String("path", cfg.SkillsPath))
		default:
			return nil, fmt.Errorf("failed to load skills: %w", err)
		}
	}

	caller, err := llm.NewSchemaCaller(&cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.LLM.MaxRetries

	limit := services.SkillRunLimit{Runs: cfg.RateLimit.SkillRuns, Window: cfg.RateLimit.Window()}
	return services.NewSkillService(registry, caller, limiter, limit, retryCfg, logger), nil
}
