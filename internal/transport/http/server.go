package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mobilepush/internal/config"
	"mobilepush/internal/database"
	"mobilepush/internal/handler"
	"mobilepush/internal/queue"
	"mobilepush/internal/redis"
	"mobilepush/internal/repository"
	"mobilepush/internal/service"
	"mobilepush/internal/storage"
	"mobilepush/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// Run starts the push service and blocks until SIGINT or SIGTERM.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Database and Redis
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 3. Repositories
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)
	remoteTokenRepo := repository.NewRemoteDeviceTokenRepository(db)
	remoteServerRepo := repository.NewRemoteServerRepository(db)

	// 4. Push stack
	certs, err := storage.NewCertificateStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create certificate store: %w", err)
	}
	apple := service.NewAPNsChannel(cfg, certs)

	gateway, err := newAndroidGateway(ctx, cfg)
	if err != nil {
		return err
	}
	localDir := service.NewLocalDirectory(deviceTokenRepo)
	android := service.NewAndroidChannel(gateway, localDir, service.NewRemoteDirectory(remoteTokenRepo))

	var directory service.DeviceDirectory = localDir
	var notifier service.Notifier
	if cfg.UsesNotificationBouncer() {
		bouncer, err := service.NewBouncerClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to create bouncer client: %w", err)
		}
		directory = service.NewDeviceDirectory(localDir, bouncer)
		notifier = bouncer
		log.Printf("Push notifications go through bouncer %s", cfg.PushNotificationBouncerURL)
	}

	publisher := queue.NewPublisher(redisClient)
	dispatcher := service.NewPushDispatcher(service.PushDispatcherDeps{
		Users:       userRepo,
		Messages:    messageRepo,
		Preferences: service.ProfilePreferences{},
		Builder:     service.NewPayloadBuilder(cfg.PushNotificationRedactContent),
		Devices:     localDir,
		Apple:       apple,
		Android:     android,
		Bouncer:     notifier,
		Retry:       queue.NewRetryQueue(publisher, cfg.PushMaxRetries),
		RetryStream: queue.StreamMissedMessages,
	})

	// 5. Workers
	workerCfg := worker.DefaultManagerConfig()
	workerCfg.WorkerCount = cfg.PushWorkerCount
	manager := worker.NewManager(queue.NewConsumer(redisClient), worker.NewHandler(dispatcher), workerCfg)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 6. HTTP
	routerCfg := RouterConfig{
		DeviceHandler: handler.NewDeviceHandler(directory, localDir),
		JWTSecret:     cfg.JWTSecret,
	}
	if cfg.ZilencerEnabled {
		remotePush := service.NewRemotePushService(remoteServerRepo, remoteTokenRepo, apple, android)
		routerCfg.RemotePushHandler = handler.NewRemotePushHandler(remotePush)
		routerCfg.RemoteServerAuth = remotePush
		log.Println("Push relay endpoints enabled")
	}

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newAndroidGateway prefers the Firebase service account over the legacy
// API key. It returns nil when neither is configured.
func newAndroidGateway(ctx context.Context, cfg *config.Config) (service.AndroidGateway, error) {
	switch {
	case cfg.HasFCMCredentials():
		gw, err := service.NewFCMGateway(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create FCM gateway: %w", err)
		}
		return gw, nil
	case cfg.AndroidGCMAPIKey != "":
		return service.NewGCMClient(cfg.AndroidGCMAPIKey), nil
	default:
		log.Println("No Android push credentials configured, Android notifications are disabled")
		return nil, nil
	}
}
