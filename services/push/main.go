// Микросервис пуш-уведомлений (Web Push): подписки в Redis, отправка через VAPID.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/push"
	"github.com/findme/internal/pushsvc"
	"github.com/findme/internal/storage"
	"github.com/findme/internal/storage/memory"
	redisstorage "github.com/findme/internal/storage/redis"
	"github.com/findme/internal/startup"
)

type Config struct {
	ServerAddr     string `env:"SERVER_ADDR" envDefault:":8082"`
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	VAPIDPublicKey string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivate   string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject   string `env:"VAPID_SUBJECT"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	logger.SetPrefix("push")
	genVAPID := flag.Bool("gen-vapid", false, "generate a VAPID key pair and exit")
	inMemory := flag.Bool("memory", false, "keep subscriptions in memory (no Redis)")
	flag.Parse()

	if *genVAPID {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			logger.Errorf("generate VAPID: %v", err)
			os.Exit(1)
		}
		logger.Infof("VAPID_PUBLIC_KEY=%s", pub)
		logger.Infof("VAPID_PRIVATE_KEY=%s", priv)
		return
	}

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Info("starting push service")

	keys := &push.VAPIDKeys{PublicKey: cfg.VAPIDPublicKey, PrivateKey: cfg.VAPIDPrivate, Subject: cfg.VAPIDSubject}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		loaded, err := push.EnsureVAPIDKeys("")
		if err != nil {
			logger.Infof("VAPID: не удалось загрузить/сгенерировать ключи: %v — push отключены", err)
		} else {
			keys = loaded
		}
	}
	if keys.Subject == "" {
		keys.Subject = "mailto:support@findme.local"
	}

	var subs storage.PushSubscriptions
	if *inMemory {
		subs = memory.NewPushSubscriptions()
		logger.Info("subscriptions kept in memory")
	} else {
		rdb, err := startup.ConnectRedis(context.Background(), cfg.RedisURL, 60*time.Second)
		if err != nil {
			logger.Errorf("redis: %v", err)
			os.Exit(1)
		}
		defer rdb.Close()
		subs = redisstorage.NewPushSubscriptions(rdb)
		logger.Info("redis connected")
	}

	var sender pushsvc.Sender
	if keys.PublicKey != "" && keys.PrivateKey != "" {
		sender = pushsvc.NewVAPIDSender(keys)
	} else {
		logger.Info("VAPID keys not set — подписки сохраняются, отправка не выполняется")
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      pushsvc.NewServer(subs, sender, keys.PublicKey).Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("push server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("push server: %v", err)
			os.Exit(1)
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("push server stopped")
}
