package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/lifecycle"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/config"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/infrastructure/external/taxauthority"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/infrastructure/persistence/repository"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/infrastructure/persistence/sqlite"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/infrastructure/worker"
	httpserver "github.com/dinhan2610/EVM-DMS-sub001/internal/interfaces/http"
	"github.com/dinhan2610/EVM-DMS-sub001/pkg/database"
	"github.com/dinhan2610/EVM-DMS-sub001/pkg/utils"
)

func main() {
	// Local development credentials from .env; missing file is fine.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting e-invoice lifecycle service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories and transaction manager
	txManager := sqlite.NewDB(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	// Initialize tax authority client
	taxClient := taxauthority.NewClient(taxauthority.Config{
		BaseURL: cfg.TaxAuthority.BaseURL,
		APIKey:  cfg.TaxAuthority.APIKey,
		Timeout: cfg.TaxAuthority.SubmitTimeout,
	}, logger)

	// Initialize lifecycle engine and derivative linker
	engine := lifecycle.NewEngine(invoiceRepo, historyRepo, txManager, taxClient, logger,
		lifecycle.WithSubmitTimeout(cfg.TaxAuthority.SubmitTimeout))
	linker := lifecycle.NewLinker(invoiceRepo, historyRepo, txManager, logger)

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, engine, linker, utils.NewSugarAdapter(logger))

	// Background reconciler for submissions whose outcome was lost
	workerManager := worker.NewManager(logger)
	workerManager.Register(worker.NewReconcileWorker(worker.ReconcileWorkerConfig{
		PollInterval: cfg.TaxAuthority.ReconcileInterval,
		PendingAge:   cfg.TaxAuthority.ReconcileAge,
		BatchSize:    worker.DefaultReconcileWorkerConfig().BatchSize,
	}, invoiceRepo, historyRepo, txManager, taxClient, logger))

	// Shut down on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	if err := workerManager.StopAll(); err != nil {
		logger.Error("Failed to stop workers cleanly", zap.Error(err))
	}

	logger.Info("Service stopped")
}
