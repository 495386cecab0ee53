package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"nuvia-server/internal/config"
	"nuvia-server/internal/domain/assistant"
	"nuvia-server/internal/domain/customer"
	"nuvia-server/internal/domain/delivery"
	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/session"
	"nuvia-server/internal/domain/turn"
	"nuvia-server/internal/infrastructure/channel/whatsapp"
	"nuvia-server/internal/infrastructure/crm"
	"nuvia-server/internal/infrastructure/database"
	"nuvia-server/internal/infrastructure/inference"
	"nuvia-server/internal/infrastructure/liveupdate"
	"nuvia-server/internal/infrastructure/logger"
	"nuvia-server/internal/infrastructure/repository/customerrepo"
	"nuvia-server/internal/infrastructure/repository/knowledgerepo"
	"nuvia-server/internal/infrastructure/repository/messagerepo"
	"nuvia-server/internal/infrastructure/repository/sessionrepo"
	"nuvia-server/internal/infrastructure/repository/tenantrepo"
	"nuvia-server/internal/infrastructure/storage"
	"nuvia-server/internal/interfaces/httpserver"
	"nuvia-server/internal/interfaces/httpserver/handlers"
)

type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{httpServer: httpServer, log: log}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(database.Config{
		DatabaseURL:     cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if cfg.AutoMigrate {
		if err := database.AutoMigrate(ctx, db, log); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	// Infrastructure clients.
	inferenceClient := inference.NewClient(inference.Config{
		BaseURL: cfg.InferenceBaseURL,
		APIKey:  cfg.InferenceAPIKey,
		Timeout: cfg.InferenceTimeout,
	}, log)
	channelClient := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.ChannelBaseURL,
		AccessToken:   cfg.ChannelAccessToken,
		DisplayNumber: cfg.ChannelDisplayNumber,
	}, log)
	crmClient := crm.NewClient(crm.Config{
		BaseURL:        cfg.CRMBaseURL,
		InternalSecret: cfg.InternalSecret,
	}, log)

	spaces, err := storage.NewSpacesStorage(ctx, storage.Config{
		Bucket:    cfg.SpacesBucket,
		Region:    cfg.SpacesRegion,
		Endpoint:  cfg.SpacesEndpoint,
		AccessKey: cfg.SpacesAccessKey,
		SecretKey: cfg.SpacesSecretKey,
		KeyPrefix: cfg.SpacesKeyPrefix,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize object storage")
	}

	var notifier message.Notifier
	if cfg.AMQPURL != "" {
		amqpNotifier, err := liveupdate.NewNotifier(ctx, liveupdate.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("initialize live-update notifier")
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	// Repositories.
	tenantRepository := tenantrepo.NewRepository(db)
	customerRepository := customerrepo.NewRepository(db)
	sessionRepository := sessionrepo.NewRepository(db)
	messageRepository := messagerepo.NewRepository(db)
	knowledgeRepository := knowledgerepo.NewRepository(db)

	// Domain services.
	customerService := customer.NewService(customerRepository, log)
	sessionService := session.NewService(sessionRepository, log)
	ledger := message.NewLedger(messageRepository, notifier, log)
	retriever := knowledge.NewRetriever(knowledgeRepository, inferenceClient, inferenceClient,
		cfg.DefaultChatModel, cfg.RetrievalLimit, log)
	indexer := knowledge.NewIndexer(knowledgeRepository, inferenceClient, log)
	driver := assistant.NewDriver(inferenceClient, crmClient, crmClient, log)

	orchestrator := turn.NewOrchestrator(turn.OrchestratorParams{
		Tenants:               tenantRepository,
		Customers:             customerService,
		Sessions:              sessionService,
		Ledger:                ledger,
		Retriever:             retriever,
		Answerer:              driver,
		Sender:                channelClient,
		Archiver:              storage.NewMediaArchiver(channelClient, spaces, log),
		DefaultChatModel:      cfg.DefaultChatModel,
		DefaultEmbeddingModel: cfg.DefaultEmbeddingModel,
		TurnTimeout:           cfg.TurnTimeout,
	}, log)
	reconciler := delivery.NewReconciler(tenantRepository, ledger, log)

	provider := handlers.NewProvider(
		handlers.NewWebhookHandler(orchestrator, reconciler, cfg.ChannelVerifyToken, log),
		handlers.NewAgentHandler(orchestrator, customerService, sessionService, log),
		handlers.NewKnowledgeHandler(tenantRepository, knowledgeRepository, indexer, retriever,
			cfg.DefaultChatModel, cfg.DefaultEmbeddingModel, log),
	)

	app := NewApplication(httpserver.New(cfg, provider, log), log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
