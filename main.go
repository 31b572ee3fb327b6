package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ticketshop/artifact"
	"ticketshop/clients"
	"ticketshop/config"
	"ticketshop/filestore"
	"ticketshop/message"
	messageEvent "ticketshop/message/event"
	"ticketshop/notify"
	"ticketshop/observability"
	"ticketshop/postgres"
	"ticketshop/reconcile"
	"ticketshop/service"
)

func main() {
	log.Init(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		logrus.WithError(err).Error("Failed to run")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logrus.WithFields(cfg.LogFields()).Info("Starting ticket shop")

	logger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logrus.WithError(err).Error("Failed to shut down tracing")
		}
	}()

	pubSub, err := newPubSub(cfg, logger)
	if err != nil {
		return err
	}

	var (
		store     reconcile.TicketStore
		forwarder *message.Forwarder
	)
	switch cfg.Store {
	case config.StorePostgres:
		dbConn, err := sqlx.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close db connection")
			}
		}()

		if err := postgres.CreateTicketsTable(ctx, dbConn); err != nil {
			return fmt.Errorf("creating tickets table: %w", err)
		}
		if err := message.InitializeOutbox(dbConn, logger); err != nil {
			return fmt.Errorf("initializing outbox: %w", err)
		}

		forwarder, err = message.NewForwarder(dbConn, pubSub.Publisher, logger)
		if err != nil {
			return fmt.Errorf("creating outbox forwarder: %w", err)
		}
		store = postgres.NewTicketStore(dbConn, logger)
	default:
		eventBus, err := messageEvent.NewBus(pubSub.Publisher, logger)
		if err != nil {
			return fmt.Errorf("creating event bus: %w", err)
		}

		store, err = filestore.New(cfg.TicketsFile, eventBus)
		if err != nil {
			return fmt.Errorf("opening ticket file: %w", err)
		}
	}

	artifacts, err := artifact.NewStore(cfg.TicketsDir, cfg.Currency, nil)
	if err != nil {
		return fmt.Errorf("creating artifact store: %w", err)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	svc, err := service.New(service.Deps{
		Logger:    logger,
		PubSub:    pubSub,
		Forwarder: forwarder,
		Store:     store,
		Gateway: clients.NewFlutterwaveClient(
			clients.NewHTTPClient(),
			cfg.Flutterwave.BaseURL,
			cfg.Flutterwave.SecretKey,
		),
		Artifacts: artifacts,
		Notifier:  notifier,
		Reconcile: reconcile.Config{
			WebhookSecret: cfg.Flutterwave.WebhookSecret,
			Currency:      cfg.Currency,
			Prices:        cfg.Prices,
			PublicBaseURL: cfg.PublicBaseURL,
		},
		HTTPAddr: cfg.HTTPAddr,
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	return svc.Run(ctx)
}

func newPubSub(cfg config.Config, logger watermill.LoggerAdapter) (message.PubSub, error) {
	if cfg.RedisAddr == "" {
		logrus.Warn("REDIS_ADDR not set, messages are kept in process")
		return message.NewGoChannelPubSub(logger), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	pubSub, err := message.NewRedisPubSub(rdb, logger)
	if err != nil {
		return message.PubSub{}, fmt.Errorf("creating redis pub/sub: %w", err)
	}

	return pubSub, nil
}

func newNotifier(cfg config.Config) (notify.Notifier, error) {
	if cfg.EmailDelivery != config.EmailSMTP {
		logrus.Warn("Email delivery disabled")
		return notify.Disabled{}, nil
	}

	smtp, err := notify.NewSMTP(notify.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		AdminEmail: cfg.AdminEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("creating smtp notifier: %w", err)
	}

	return smtp, nil
}
