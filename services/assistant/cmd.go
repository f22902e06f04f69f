package assistant

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kaytu-io/kaytu-assistant/pkg/httpserver"
	"github.com/kaytu-io/kaytu-assistant/pkg/jq"
	"github.com/kaytu-io/kaytu-assistant/pkg/koanf"
	"github.com/kaytu-io/kaytu-assistant/pkg/postgres"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/api"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/config"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/db"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/events"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/lifecycle"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/repository"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/steps"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Command() *cobra.Command {
	cnf := koanf.Provide("assistant", config.Default())

	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Serve the assistant run lifecycle API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger = logger.Named("assistant")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runs, closeStore, err := newRunStore(ctx, cnf, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			publisher, closePublisher, err := newPublisher(ctx, cnf, logger)
			if err != nil {
				return err
			}
			defer closePublisher()

			controller := lifecycle.New(logger, runs,
				lifecycle.WithPublisher(publisher),
				lifecycle.WithStoreTimeout(cnf.Store.Timeout),
			)

			cmd.SilenceUsage = true

			return httpserver.RegisterAndStart(
				ctx,
				logger,
				cnf.Http.Address,
				api.New(logger, controller, steps.NewReader(controller)),
			)
		},
	}

	return cmd
}

func newRunStore(ctx context.Context, cnf config.AssistantConfig, logger *zap.Logger) (repository.Run, func(), error) {
	switch cnf.Store.Driver {
	case config.StoreDriverPostgres:
		database, err := db.New(postgres.Config{
			Host:    cnf.Postgres.Host,
			Port:    cnf.Postgres.Port,
			User:    cnf.Postgres.Username,
			Passwd:  cnf.Postgres.Password,
			DB:      cnf.Postgres.DB,
			SSLMode: cnf.Postgres.SSLMode,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Initialize(); err != nil {
			return nil, nil, fmt.Errorf("migrating run table: %w", err)
		}
		logger.Info("using postgres run store", zap.String("host", cnf.Postgres.Host))

		return repository.NewRun(database), func() {
			if sqlDB, err := database.DB.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	case config.StoreDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cnf.Redis.Address,
			Password: cnf.Redis.Password,
			DB:       cnf.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis %s: %w", cnf.Redis.Address, err)
		}
		logger.Info("using redis run store", zap.String("address", cnf.Redis.Address))

		return repository.NewRunRedis(client,
			repository.WithRedisPrefix(cnf.Redis.Prefix),
			repository.WithRedisTTL(cnf.Redis.TTL),
		), func() { _ = client.Close() }, nil
	case config.StoreDriverMemory:
		logger.Warn("using in-memory run store, runs are lost on restart")
		return repository.NewRunMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cnf.Store.Driver)
	}
}

func newPublisher(ctx context.Context, cnf config.AssistantConfig, logger *zap.Logger) (events.Publisher, func(), error) {
	if cnf.NATS.URL == "" {
		logger.Warn("nats url is empty, run events are not published")
		return events.Noop{}, func() {}, nil
	}

	q, err := jq.New(cnf.NATS.URL, logger)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := events.NewJetStreamPublisher(ctx, q)
	if err != nil {
		q.Close()
		return nil, nil, err
	}

	return publisher, q.Close, nil
}
