package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/discussion"
	"github.com/legalworks/docflow/internal/application/dispatcher"
	"github.com/legalworks/docflow/internal/application/hierarchy"
	"github.com/legalworks/docflow/internal/application/ledger"
	"github.com/legalworks/docflow/internal/application/workflow"
	"github.com/legalworks/docflow/internal/config"
	"github.com/legalworks/docflow/internal/infrastructure/export"
	"github.com/legalworks/docflow/internal/infrastructure/external/hrdir"
	"github.com/legalworks/docflow/internal/infrastructure/notification"
	"github.com/legalworks/docflow/internal/infrastructure/persistence/repository"
	"github.com/legalworks/docflow/internal/infrastructure/persistence/sqlite"
	"github.com/legalworks/docflow/internal/infrastructure/storage"
	httpiface "github.com/legalworks/docflow/internal/interfaces/http"
	"github.com/legalworks/docflow/pkg/database"
	"github.com/legalworks/docflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Local development secrets, ignored when no .env exists
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
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

	logger.Info("Starting document workflow service",
		zap.Int("port", cfg.Server.Port))

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

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Persistence
	txDB := sqlite.NewDB(db.DB, logger)
	requestRepo := repository.NewDocumentRequestRepository(txDB, logger)
	agreementRepo := repository.NewAgreementRepository(txDB, logger)
	requestStepRepo := repository.NewRequestStepRepository(txDB, logger)
	agreementStepRepo := repository.NewAgreementStepRepository(txDB, logger)
	commentRepo := repository.NewCommentRepository(txDB, logger)

	// Hierarchy over the cached HR directory
	directory := hrdir.NewCachedDirectory(
		hrdir.NewClient(hrdir.Config{
			BaseURL:  cfg.Directory.BaseURL,
			APIToken: cfg.Directory.APIToken,
			Timeout:  cfg.Directory.APITimeout,
		}, logger),
		cfg.Directory.CacheTTL,
	)
	resolver, err := hierarchy.NewResolver(directory, hierarchy.DefaultTable(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize hierarchy resolver", zap.Error(err))
	}

	// Event dispatch and notifications
	events := dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}))
	defer events.Close()
	sink := notification.NewWebhookSink(notification.Config{
		WebhookURL: cfg.Notification.WebhookURL,
		Timeout:    cfg.Notification.Timeout,
	}, logger)
	dispatcher.RegisterNotifications(events, sink)

	// Attachment storage
	attachments := storage.NewLocalAttachmentStore(cfg.Storage.BaseDir, logger)

	// Workflow engines
	requestLedger := ledger.New(requestStepRepo)
	agreementLedger := ledger.New(agreementStepRepo)
	requestWF := workflow.NewDocumentRequestWorkflow(
		requestRepo, requestLedger, commentRepo, resolver, txDB, events, logger)
	agreeWF := workflow.NewAgreementWorkflow(
		agreementRepo, requestRepo, commentRepo, agreementLedger, resolver, attachments, txDB, events, logger)
	gate := discussion.NewGate(requestRepo, commentRepo, resolver, txDB, events, logger)

	exporter := export.NewRegisterExporter(agreementRepo, cfg.Export.OutputDir, logger)

	// HTTP surface
	handlers := httpiface.NewHandlers(
		requestRepo, agreementRepo, requestLedger, agreementLedger,
		requestWF, agreeWF, gate, exporter, logger)
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, toZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, toZapFields(keysAndValues...)...)
}

func toZapFields(keysAndValues ...interface{}) []zap.Field {
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
