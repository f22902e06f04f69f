package assistant

import (
	"context"
	"testing"

	"github.com/kaytu-io/kaytu-assistant/pkg/dockertest"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/config"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/events"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRunStoreMemory(t *testing.T) {
	cnf := config.Default()
	cnf.Store.Driver = config.StoreDriverMemory

	runs, closeStore, err := newRunStore(context.Background(), cnf, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()
	require.IsType(t, &repository.RunMemory{}, runs)
}

func TestNewRunStoreUnknownDriver(t *testing.T) {
	cnf := config.Default()
	cnf.Store.Driver = "cassandra"

	_, _, err := newRunStore(context.Background(), cnf, zap.NewNop())
	require.ErrorContains(t, err, "cassandra")
}

func TestNewRunStoreRedis(t *testing.T) {
	server := dockertest.StartupRedis(t)

	cnf := config.Default()
	cnf.Store.Driver = config.StoreDriverRedis
	cnf.Redis.Address = server.Address

	runs, closeStore, err := newRunStore(context.Background(), cnf, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()
	require.IsType(t, &repository.RunRedis{}, runs)
}

func TestNewPublisherWithoutNATS(t *testing.T) {
	publisher, closePublisher, err := newPublisher(context.Background(), config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer closePublisher()
	require.IsType(t, events.Noop{}, publisher)
}

func TestNewPublisherJetStream(t *testing.T) {
	server := dockertest.StartupNATS(t)

	cnf := config.Default()
	cnf.NATS.URL = server.URL

	publisher, closePublisher, err := newPublisher(context.Background(), cnf, zap.NewNop())
	require.NoError(t, err)
	defer closePublisher()
	require.IsType(t, &events.JetStreamPublisher{}, publisher)
}
