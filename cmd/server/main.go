package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-checkin/config"
	"event-checkin/internal/cache"
	"event-checkin/internal/database"
	"event-checkin/internal/handler"
	"event-checkin/internal/messaging"
	"event-checkin/internal/model"
	"event-checkin/internal/queue"
	"event-checkin/internal/realtime"
	"event-checkin/internal/repository"
	"event-checkin/internal/service"
	"event-checkin/internal/storage"
	"event-checkin/internal/store"
	"event-checkin/internal/worker"
	"event-checkin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.SetLevel(cfg.Server.LogLevel)
	gin.SetMode(cfg.Server.GinMode)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	// repositories and caches
	eventRepo := repository.NewEventRepository(pool)
	guestRepo := repository.NewGuestRepository(pool)
	sessionRepo := repository.NewScannerSessionRepository(pool)
	eventStore := store.NewEventStore(eventRepo)
	guestStore := store.NewGuestStore(guestRepo)

	if _, err := eventStore.Load(ctx, model.EventFilter{}); err != nil {
		log.Warn("Initial event load failed", zap.Error(err))
	}

	scanQueue, err := queue.NewRedisStreamScanEventQueue(ctx, rdb, "", nil)
	if err != nil {
		log.Warn("Redis stream unavailable, using in-memory scan event queue", zap.Error(err))
		scanQueue = queue.NewScanEventQueue(1024)
	}

	objects := storage.NewS3Store(cfg.Storage)
	whatsapp := messaging.NewWhatsAppClient(cfg.WhatsApp, nil)
	mailer := messaging.NewSMTPMailer(cfg.Email)

	var (
		emailQueue  messaging.EmailQueue
		asynqClient *asynq.Client
	)
	if cfg.Email.Enabled() {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     database.RedisAddr(&cfg.Redis),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		emailQueue = messaging.NewAsynqEmailQueue(asynqClient)
	}

	// services
	eventService := service.NewEventService(eventStore, guestStore)
	guestService := service.NewGuestService(eventService, guestStore, eventStore)
	sessionService := service.NewScannerSessionService(sessionRepo, eventService, scanQueue)
	checkinService := service.NewCheckinService(
		guestStore,
		eventStore,
		eventService,
		sessionService,
		cache.NewRedisScanGuard(rdb, 0),
		objects,
		service.CheckinOptions{
			ErrorCooldown: cfg.Scanner.ErrorCooldown,
			MaxPhotoEdge:  cfg.Storage.MaxPhotoEdge,
		},
	)
	bundleService := service.NewBundleService(eventService, guestStore, cfg.Bundle.MaxGuests, cfg.Bundle.WarnGuests)
	analyticsService := service.NewAnalyticsService(eventService, guestStore, sessionRepo)
	invitationService := service.NewInvitationService(eventService, guestStore, service.InvitationDeps{
		WhatsApp:     whatsapp,
		EmailQueue:   emailQueue,
		Mailer:       mailer,
		Objects:      objects,
		SendInterval: cfg.WhatsApp.SendInterval,
	})

	// background workers
	if err := worker.NewScanEventWorker(sessionService, scanQueue).Start(ctx); err != nil {
		log.Fatal("Failed to start scan event worker", zap.Error(err))
	}
	go worker.NewSessionSweeper(sessionService, time.Minute, 2*cfg.Scanner.InactivityPause).Run(ctx)

	if cfg.Email.Enabled() {
		emailWorker := worker.NewEmailWorker(cfg.Redis, cfg.Email, invitationService)
		if err := emailWorker.Start(); err != nil {
			log.Fatal("Failed to start email worker", zap.Error(err))
		}
		defer emailWorker.Shutdown()
	}

	synchronizer := realtime.NewSynchronizer(pool, eventStore, guestStore, realtime.NewPublisher(cfg.PubNub), cfg.Realtime.RetryBackoff)
	go synchronizer.Run(ctx)

	router := handler.NewRouter(
		handler.NewAuthenticator(cfg.Auth.JWTSecret),
		cfg.Server.CORSOrigins,
		handler.Handlers{
			Events:     handler.NewEventHandler(eventService),
			Guests:     handler.NewGuestHandler(guestService),
			Checkin:    handler.NewCheckinHandler(checkinService, eventService),
			Sessions:   handler.NewScannerSessionHandler(sessionService),
			Invitation: handler.NewInvitationHandler(invitationService),
			Export:     handler.NewExportHandler(bundleService, analyticsService),
		},
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
}
