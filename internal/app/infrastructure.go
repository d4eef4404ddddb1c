package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/aths/internal/config"
	"github.com/prperemyshlev/aths/pkg/broker"
	"github.com/prperemyshlev/aths/pkg/database"
	"github.com/prperemyshlev/aths/pkg/observability"
	"go.uber.org/zap"
)

const serviceName = "aths"

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	// Broker is nil unless emails are delivered through the queue transport.
	Broker() *broker.RabbitMQ
	Logger() *zap.Logger
	Telemetry() *observability.Telemetry

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres  *database.Postgres
	redis     *database.Redis
	broker    *broker.RabbitMQ
	logger    *zap.Logger
	telemetry *observability.Telemetry
}

var _ Infrastructure = &infrastructure{}

func NewInfrastructure(ctx context.Context, cfg config.Config) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(cfg.Postgres.URL()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	postgres, err := database.NewPostgres(ctx, cfg.Postgres.DSN(), database.PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.postgres = postgres

	redis, err := database.NewRedis(ctx, database.RedisOptions{
		Addr:        cfg.Redis.Address(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		ClientName:  serviceName,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		i.closeAll()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.redis = redis

	if cfg.Mail.Transport == config.MailTransportQueue {
		rabbit, err := broker.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			i.closeAll()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		i.broker = rabbit
	}

	telemetry, err := observability.InitTelemetry(serviceName)
	if err != nil {
		i.closeAll()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.telemetry = telemetry

	return i, nil
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Broker() *broker.RabbitMQ {
	return i.broker
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) Telemetry() *observability.Telemetry {
	return i.telemetry
}

func (i *infrastructure) closeAll() error {
	var errs []error
	if i.broker != nil {
		errs = append(errs, i.broker.Close())
	}
	if i.redis != nil {
		errs = append(errs, i.redis.Close())
	}
	if i.postgres != nil {
		errs = append(errs, i.postgres.Close())
	}
	return errors.Join(errs...)
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 2)

	go func() { errs <- i.closeAll() }()
	go func() { errs <- i.telemetry.Shutdown(ctx) }()

	err := errors.Join(<-errs, <-errs)
	observability.SyncLogger(i.logger)
	return err
}
