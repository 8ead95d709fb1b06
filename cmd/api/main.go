package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/thishamdi/digital-store-api/internal/config"
	"github.com/thishamdi/digital-store-api/internal/db"
	"github.com/thishamdi/digital-store-api/internal/logger"
	"github.com/thishamdi/digital-store-api/internal/realtime"
	"github.com/thishamdi/digital-store-api/internal/server"
	"github.com/thishamdi/digital-store-api/internal/services/events"
	"github.com/thishamdi/digital-store-api/internal/services/mailer"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	rdb, err := realtime.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		// cache and limiter fall back to in-process behaviour
		log.Warn("redis unavailable, continuing without it", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	publishers := events.Multi{hub}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, order events stay local", "error", err)
		} else {
			defer amqpPub.Close()
			publishers = append(publishers, amqpPub)
		}
	}

	var m mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		m = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		log.Warn("SMTP_HOST not set, OTP mails are written to the log")
	}

	app, _ := server.New(server.Deps{
		Config:    cfg,
		DB:        gdb,
		Redis:     rdb,
		Hub:       hub,
		Publisher: publishers,
		Mailer:    m,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Error("server stopped", "error", err)
	}
	log.Info("server stopped")
}
