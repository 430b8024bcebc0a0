package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findme/internal/config"
	"github.com/findme/internal/delivery"
	"github.com/findme/internal/events"
	"github.com/findme/internal/handler"
	"github.com/findme/internal/imagestore"
	"github.com/findme/internal/logger"
	"github.com/findme/internal/middleware"
	"github.com/findme/internal/push"
	"github.com/findme/internal/repository"
	"github.com/findme/internal/service"
	"github.com/findme/internal/startup"
	"github.com/findme/internal/storage"
	"github.com/findme/internal/storage/memory"
	"github.com/findme/internal/telemetry"
	"github.com/findme/internal/ws"
	"github.com/findme/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "apply database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and header identity (no external services required)")
	inMemory := flag.Bool("memory", false, "keep all data in process memory (no PostgreSQL)")
	flag.Parse()

	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	logger.Info("starting API service")

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTel.Endpoint, cfg.OTel.ServiceName)
	if err != nil {
		logger.Errorf("otel: %v", err)
		os.Exit(1)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(c); err != nil {
			logger.Errorf("otel shutdown: %v", err)
		}
	}()

	checks := map[string]handler.Check{}

	var stores service.Stores
	if *inMemory {
		stores = memoryStores()
		logger.Info("using in-memory store")
	} else {
		if *dev {
			embeddedDB, err := startEmbeddedPostgres(cfg)
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}
		pool, err := startup.ConnectDB(ctx, cfg.Database.URL, cfg.DBMaxConnections(), 60*time.Second)
		if err != nil {
			logger.Errorf("postgres: %v", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := applyMigrations(ctx, pool); err != nil {
			logger.Errorf("migrations: %v", err)
			os.Exit(1)
		}
		if *migrate {
			return
		}
		stores = repository.NewStores(pool)
		checks["postgres"] = pool.Ping
		logger.Info("database connected, migrations applied")
	}
	if *dev {
		cfg.Auth.Mode = "header"
	}

	var limiter storage.RateLimiter = memory.NewRateLimiter()
	if cfg.Redis.URL != "" {
		rdb, err := startup.ConnectRedis(ctx, cfg.Redis.URL, 30*time.Second)
		if err != nil {
			logger.Errorf("redis: %v", err)
			os.Exit(1)
		}
		limiter = rdb
		checks["redis"] = rdb.Ping
	}
	defer limiter.Close()

	var opts []service.Option
	if cfg.MinIO.Endpoint != "" {
		images, err := imagestore.New(imagestore.Config{
			Endpoint:       cfg.MinIO.Endpoint,
			PublicEndpoint: cfg.MinIO.PublicEndpoint,
			AccessKey:      cfg.MinIO.AccessKey,
			SecretKey:      cfg.MinIO.SecretKey,
			Bucket:         cfg.MinIO.Bucket,
			UseSSL:         cfg.MinIO.UseSSL,
			PresignTTL:     time.Duration(cfg.MinIO.PresignMinutes) * time.Minute,
		})
		if err != nil {
			logger.Errorf("minio: %v", err)
			os.Exit(1)
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := images.EnsureBucket(bucketCtx); err != nil {
			logger.Errorf("minio bucket %s: %v", cfg.MinIO.Bucket, err)
		}
		cancel()
		opts = append(opts, service.WithImageResolver(images))
		checks["minio"] = images.HealthCheck
	}

	// Каналы fanout, которых нет, передаются как nil-интерфейсы.
	var broker delivery.Broker
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Errorf("rabbitmq: %v", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		broker = rabbit
		checks["rabbitmq"] = func(context.Context) error { return rabbit.HealthCheck() }
	}
	pushClient := push.NewClient(cfg.Push.ServiceURL)
	var pusher delivery.Pusher
	if pushClient.Enabled() {
		pusher = pushClient
	}

	var svc *service.Service
	hub := ws.NewHub(ws.ChatMembersFunc(func(ctx context.Context, chatID, userID string) (string, error) {
		return svc.Counterpart(ctx, chatID, userID)
	}), cfg.MaxWSConnections)
	opts = append(opts, service.WithPublisher(delivery.NewFanout(hub, pusher, broker)))
	svc = service.New(stores, opts...)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	auth, err := identity(ctx, cfg, svc)
	if err != nil {
		logger.Errorf("auth: %v", err)
		os.Exit(1)
	}
	logger.Infof("auth mode: %s", cfg.Auth.Mode)

	srv := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: handler.NewRouter(handler.Deps{
			Config:  cfg,
			Service: svc,
			Hub:     hub,
			Push:    pushClient,
			Auth:    auth,
			Limiter: limiter,
			Checks:  checks,
		}),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
}

// identity выбирает источник идентичности по AUTH_MODE.
func identity(ctx context.Context, cfg *config.Config, dir middleware.UserDirectory) (func(http.Handler) http.Handler, error) {
	switch cfg.Auth.Mode {
	case "header":
		return middleware.HeaderIdentity(dir), nil
	case "firebase":
		client, err := middleware.NewFirebaseAuthClient(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		return middleware.FirebaseAuth(client, dir), nil
	case "service", "":
		if cfg.Auth.ServiceURL == "" {
			return nil, fmt.Errorf("AUTH_SERVICE_URL is required for auth mode service")
		}
		return middleware.AuthServiceValidate(cfg.Auth.ServiceURL, nil, dir), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

func memoryStores() service.Stores {
	st := memory.NewStore()
	return service.Stores{Items: st, Chats: st, Notifications: st, Matches: st, Users: st}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return migrations.Apply(ctx, pool)
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "findme"
		password = "findme_secret"
		database = "findme"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
