package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safelink/internal/config"
	handlers "safelink/internal/handlers/shared"
	"safelink/internal/repositories/mongodb"
	"safelink/internal/services"
	"safelink/internal/utils"
	"safelink/pkg/cache"
	"safelink/pkg/database"
	"safelink/pkg/email"
	"safelink/pkg/logger"
	"safelink/pkg/push"
	"safelink/pkg/scheduler"
	"safelink/pkg/sms"
	"safelink/pkg/voice"
	"safelink/routes"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFormat := "json"
	if config.IsDevelopment() {
		logFormat = "text"
	}
	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: logFormat,
		Output: "stdout",
		Colors: config.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Repositories
	alertRepo := mongodb.NewAlertRepository(db.Database, redisCache)
	staffRepo := mongodb.NewStaffRepository(db.Database)
	deliveryRepo := mongodb.NewDeliveryLogRepository(db.Database)

	// Notification providers
	pushProvider := buildPushProvider(cfg, appLogger)
	smsProvider := buildSMSProvider(cfg, appLogger)
	voiceProvider := voice.NewTwilioProvider(
		cfg.SMS.Twilio.AccountSID,
		cfg.SMS.Twilio.AuthToken,
		cfg.Voice.FromNumber,
		cfg.Voice.CallbackURL,
	)
	emailProvider := email.NewSMTPProvider(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
		cfg.SMTP.FromEmail,
		cfg.SMTP.FromName,
	)

	// Delayed-task runner
	sched := scheduler.NewRedisScheduler(redisCache.Client(), appLogger, utils.SchedulerPollInterval)

	// Services
	notifier := services.NewNotificationService(
		pushProvider, smsProvider, voiceProvider, emailProvider,
		deliveryRepo, cfg.Escalation,
		cfg.SMS.Twilio.FromNumber, cfg.Voice.FromNumber,
		appLogger,
	)
	roster := services.NewRosterService(staffRepo, cfg.Escalation, appLogger)
	escalation := services.NewEscalationService(alertRepo, deliveryRepo, roster, notifier, sched, cfg.Escalation, appLogger)

	registerStageTasks(sched, escalation, appLogger)

	runCtx, stopScheduler := context.WithCancel(context.Background())
	go sched.Run(runCtx)

	// HTTP surface
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	alertHandler := handlers.NewAlertHandler(escalation)
	staffHandler := handlers.NewStaffHandler(roster)
	routes.SetupRoutes(router, alertHandler, staffHandler, appLogger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting %s on port %d", cfg.App.Name, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Forced shutdown: %v", err)
	}
}

// registerStageTasks binds the delayed escalation stages to the scheduler.
// Payloads carry the alert ID in hex.
func registerStageTasks(sched scheduler.Scheduler, escalation services.EscalationService, appLogger *logger.Logger) {
	sched.Register(utils.TaskExecuteStage1, func(ctx context.Context, payload []byte) error {
		alertID, err := primitive.ObjectIDFromHex(string(payload))
		if err != nil {
			return fmt.Errorf("bad stage payload: %w", err)
		}
		_, err = escalation.ExecuteStage1(ctx, alertID)
		return err
	})

	sched.Register(utils.TaskExecuteStage2, func(ctx context.Context, payload []byte) error {
		alertID, err := primitive.ObjectIDFromHex(string(payload))
		if err != nil {
			return fmt.Errorf("bad stage payload: %w", err)
		}
		_, err = escalation.ExecuteStage2(ctx, alertID)
		return err
	})
}

func buildPushProvider(cfg *config.Config, appLogger *logger.Logger) push.PushProvider {
	switch cfg.Push.Provider {
	case "apns":
		provider, err := push.NewAPNSProvider(
			cfg.Push.APNS.KeyFile,
			cfg.Push.APNS.KeyID,
			cfg.Push.APNS.TeamID,
			cfg.Push.APNS.BundleID,
			cfg.Push.APNS.Production,
		)
		if err != nil {
			appLogger.Fatalf("Failed to initialize APNS: %v", err)
		}
		return provider
	default:
		provider, err := push.NewFCMProvider(cfg.Push.FCM.Credentials)
		if err != nil {
			appLogger.Fatalf("Failed to initialize FCM: %v", err)
		}
		return provider
	}
}

func buildSMSProvider(cfg *config.Config, appLogger *logger.Logger) sms.SMSProvider {
	switch cfg.SMS.Provider {
	case "aws":
		provider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region)
		if err != nil {
			appLogger.Fatalf("Failed to initialize SNS: %v", err)
		}
		return provider
	default:
		return sms.NewTwilioProvider(
			cfg.SMS.Twilio.AccountSID,
			cfg.SMS.Twilio.AuthToken,
			cfg.SMS.Twilio.FromNumber,
		)
	}
}
