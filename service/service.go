package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"ticketshop/entity"
	ticketsHTTP "ticketshop/http"
	"ticketshop/message"
	"ticketshop/message/command"
	"ticketshop/notify"
	"ticketshop/reconcile"
)

type Artifacts interface {
	Produce(ctx context.Context, ticket entity.Ticket) (string, error)
	Load(ctx context.Context, ticket entity.Ticket) ([]byte, error)
}

type Deps struct {
	Logger watermill.LoggerAdapter
	PubSub message.PubSub
	// Forwarder is set when events are written to a database outbox.
	Forwarder *message.Forwarder

	Store     reconcile.TicketStore
	Gateway   reconcile.Gateway
	Artifacts Artifacts
	Notifier  notify.Notifier

	Reconcile reconcile.Config
	HTTPAddr  string
}

type Service struct {
	msgRouter  *message.Router
	forwarder  *message.Forwarder
	httpRouter *echo.Echo
	httpAddr   string
}

func New(deps Deps) (*Service, error) {
	commandBus, err := command.NewBus(deps.PubSub.Publisher, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating command bus: %w", err)
	}

	msgRouter, err := message.NewRouter(message.RouterDeps{
		Artifacts:    deps.Artifacts,
		Logger:       deps.Logger,
		Notifier:     deps.Notifier,
		PubSub:       deps.PubSub,
		TicketReader: deps.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	engine := reconcile.NewEngine(deps.Store, deps.Gateway, deps.Artifacts, deps.Reconcile)

	httpRouter := ticketsHTTP.NewRouter(ticketsHTTP.Deps{
		Engine:     engine,
		Tickets:    deps.Store,
		Artifacts:  deps.Artifacts,
		CommandBus: commandBus,
	})

	return &Service{
		msgRouter:  msgRouter,
		forwarder:  deps.Forwarder,
		httpRouter: httpRouter,
		httpAddr:   deps.HTTPAddr,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	if s.forwarder != nil {
		g.Go(func() error {
			if err := s.forwarder.Run(runCtx); err != nil {
				return fmt.Errorf("running outbox forwarder: %w", err)
			}

			return nil
		})
	}

	g.Go(func() error {
		// Handlers must be subscribed before requests can emit events.
		select {
		case <-s.msgRouter.Running():
		case <-runCtx.Done():
			return nil
		}

		logger.WithField("addr", s.httpAddr).Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, ticketsHTTP.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logger.Info("Shutdown complete.")

	return nil
}
