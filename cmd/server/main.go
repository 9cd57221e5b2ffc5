package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gorilla/mux"
	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/handlers"
	"github.com/qcom/callflow/internal/middleware"
	"github.com/qcom/callflow/internal/notify"
	"github.com/qcom/callflow/internal/repository"
	"github.com/qcom/callflow/internal/script"
	"github.com/qcom/callflow/internal/service"
	"github.com/qcom/callflow/internal/speech"
	"github.com/qcom/callflow/internal/store"
	"github.com/qcom/callflow/internal/telephony"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Server.Debug() {
		logger.SetLevel(logrus.DebugLevel)
	}

	backend, err := initStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}
	defer backend.Close()

	// Initialize repositories. Ledger entries outlive their expiry so a late
	// attempt is reported as expired rather than missing.
	verificationRepo := repository.NewVerificationRepository(backend, 2*cfg.Verification.Expiry, logger)
	sessionRepo := repository.NewSessionRepository(backend, cfg.Voice.SessionTTL, logger)
	consentRepo := repository.NewConsentRepository(backend, logger)

	// Initialize providers
	twilioClient := telephony.NewTwilioClient(&cfg.Twilio, logger)
	if twilioClient.DryRun() {
		logger.Warn("Twilio credentials not set, calls and SMS run in dry-run mode")
	}
	speechClient := speech.NewClient(&cfg.Speech, logger)
	emailDispatcher := notify.NewEmailDispatcher(&cfg.Email, logger)

	// Initialize services
	ledger := service.NewVerificationService(verificationRepo, twilioClient, &cfg.Verification, logger)
	calls := service.NewCallService(service.CallDeps{
		Sessions:     sessionRepo,
		Synthesizer:  speechClient,
		Placer:       twilioClient,
		Notifier:     emailDispatcher,
		Consent:      consentRepo,
		Verification: verificationRepo,
		Renderer:     script.NewRenderer(cfg.Voice.PublicBaseURL, logger),
	}, &cfg.Voice, logger)

	var tokenService *service.TokenService
	if cfg.Admin.JWTSecret != "" {
		tokenService, err = service.NewTokenService(&cfg.Admin, backend, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize admin token service")
		}
	}
	adminMiddleware := middleware.NewAdminMiddleware(tokenService, logger)

	router := setupRouter(
		cfg,
		handlers.NewVerificationHandlers(ledger, cfg.Verification.Expiry, cfg.Server.Debug(), logger),
		handlers.NewVoiceHandlers(calls, speechClient, consentRepo, logger),
		handlers.NewAdminHandlers(tokenService, logger),
		adminMiddleware,
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":          cfg.Server.Port,
			"store":         cfg.Store.Backend,
			"environment":   cfg.Server.Environment,
			"admin_guarded": adminMiddleware.Enabled(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initStore(cfg *config.Config, logger *logrus.Logger) (store.Backend, error) {
	switch cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Endpoint,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis store initialized")
		return store.NewRedisStore(client, "callflow:", logger), nil
	case "dynamodb":
		client, err := initDynamoDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		return store.NewDynamoStore(client, cfg.DynamoDB.TableName, logger), nil
	default:
		logger.Warn("Using in-memory store, state is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.WithField("table", cfg.DynamoDB.TableName).Info("DynamoDB client initialized")
	return client, nil
}

func setupRouter(
	cfg *config.Config,
	verificationHandlers *handlers.VerificationHandlers,
	voiceHandlers *handlers.VoiceHandlers,
	adminHandlers *handlers.AdminHandlers,
	adminMiddleware *middleware.AdminMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	verificationHandlers.Register(router, adminMiddleware.RequireAdmin)
	voiceHandlers.Register(router, adminMiddleware.RequireAdmin)
	if adminMiddleware.Enabled() {
		adminHandlers.Register(router, adminMiddleware.RequireAdmin)
	}

	return router
}
