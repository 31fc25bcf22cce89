package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/adapter/postgres"
	"github.com/YelzhanWeb/orderflow/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/orderflow/internal/app/status"
	"github.com/YelzhanWeb/orderflow/internal/app/sweeper"
	"github.com/YelzhanWeb/orderflow/internal/config"

	amqpAdapter "github.com/YelzhanWeb/orderflow/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/orderflow/internal/adapter/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	mode := flag.String("mode", "", "Service mode: api, sweeper, status-worker, notification-subscriber")
	configPath := flag.String("config", "config.yaml", "Path to the YAML config")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	lgr := logger.NewWithWriter(*mode, cfg.Log.Level, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "api":
		err = runAPI(ctx, cfg, lgr)
	case "sweeper":
		err = runSweeper(ctx, cfg, lgr)
	case "status-worker":
		err = runStatusWorker(ctx, cfg, lgr)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, lgr)
	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		lgr.Error("service_failed", "Service stopped with error", "runtime", nil, err)
		os.Exit(1)
	}
	lgr.Info("service_stopped", "Service stopped", "shutdown", nil)
}

// infra holds the connections shared by the database-backed modes.
type infra struct {
	db     postgres.DB
	mqConn rabbitmq.Connection
}

func (i *infra) Close() {
	if i.mqConn != nil {
		_ = i.mqConn.Close()
	}
	if i.db != nil {
		i.db.Close()
	}
}

func connect(ctx context.Context, cfg *config.Config, lgr logger.Logger, withDB bool) (*infra, error) {
	i := &infra{}

	if withDB {
		db, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		i.db = db
		lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
			"host": cfg.Database.Host,
			"db":   cfg.Database.Database,
		})
	}

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		i.Close()
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	i.mqConn = mqConn
	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	return i, nil
}

func newStatusService(i *infra, lgr logger.Logger) *status.Service {
	notifier := rabbitmq.NewStatusNotifier(rabbitmq.NewPublisher(i.mqConn))
	return status.NewService(
		postgres.NewOrderRepository(i.db),
		postgres.NewHistoryRepository(i.db),
		postgres.NewTxManager(i.db),
		notifier,
		lgr,
	)
}

// runAPI serves the HTTP API and runs the expiry sweeper next to it.
func runAPI(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	i, err := connect(ctx, cfg, lgr, true)
	if err != nil {
		return err
	}
	defer i.Close()

	statusService := newStatusService(i, lgr)
	defer statusService.Close()

	sweeperService := sweeper.NewService(postgres.NewOrderRepository(i.db), statusService, lgr, cfg.Sweeper)

	handler := httpAdapter.NewRouter(
		httpAdapter.NewStatusHandler(statusService, lgr), lgr, cfg.HTTP,
		func(ctx context.Context) error {
			if i.mqConn.IsClosed() {
				return errors.New("rabbitmq connection is closed")
			}
			return i.db.Ping(ctx)
		},
	)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lgr.Info("service_started", fmt.Sprintf("Order status API started on port %d", cfg.HTTP.Port), "startup", map[string]interface{}{
			"port": cfg.HTTP.Port,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down order status API", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sweeperService.Run(ctx)
	})

	return g.Wait()
}

func runSweeper(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	i, err := connect(ctx, cfg, lgr, true)
	if err != nil {
		return err
	}
	defer i.Close()

	statusService := newStatusService(i, lgr)
	defer statusService.Close()

	return sweeper.NewService(postgres.NewOrderRepository(i.db), statusService, lgr, cfg.Sweeper).Run(ctx)
}

// runStatusWorker applies status commands published by driver and restaurant apps.
func runStatusWorker(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	i, err := connect(ctx, cfg, lgr, true)
	if err != nil {
		return err
	}
	defer i.Close()

	statusService := newStatusService(i, lgr)
	defer statusService.Close()

	consumer := rabbitmq.NewConsumer(i.mqConn, cfg.RabbitMQ.Prefetch, lgr)
	handler := amqpAdapter.NewStatusCommandHandler(statusService, lgr)

	lgr.Info("service_started", "Status worker started", "startup", map[string]interface{}{
		"prefetch": cfg.RabbitMQ.Prefetch,
	})
	return consumer.ConsumeStatusCommands(ctx, handler.HandleStatusCommand)
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	i, err := connect(ctx, cfg, lgr, false)
	if err != nil {
		return err
	}
	defer i.Close()

	consumer := rabbitmq.NewConsumer(i.mqConn, 1, lgr)
	handler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", nil)
	return consumer.ConsumeNotifications(ctx, handler.HandleNotification)
}
