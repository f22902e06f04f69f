package dockertest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func GetDockerHost() string {
	return getEnv("DOCKERTEST_HOST", "localhost")
}

// newPool skips the calling test when no docker daemon is reachable.
func newPool(t *testing.T) *dockertest.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not reachable: %v", err)
	}

	return pool
}

type PostgresServer struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

func StartupPostgreSQL(t *testing.T) (PostgresServer, *gorm.DB) {
	t.Helper()

	require := require.New(t)

	pool := newPool(t)

	resource, err := pool.Run("postgres", "14", []string{"POSTGRES_PASSWORD=postgres"})
	require.NoError(err, "status postgres")

	t.Cleanup(func() {
		err := pool.Purge(resource)
		require.NoError(err, "purge resource %s", resource)
	})

	server := PostgresServer{
		Host:     GetDockerHost(),
		Port:     resource.GetPort("5432/tcp"),
		User:     "postgres",
		Password: "postgres",
		DB:       "postgres",
	}

	var orm *gorm.DB
	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	err = pool.Retry(func() error {
		orm, err = gorm.Open(postgres.Open(fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			server.User, server.Password, server.Host, server.Port, server.DB)), &gorm.Config{})
		if err != nil {
			return err
		}

		d, err := orm.DB()
		if err != nil {
			return err
		}

		return d.Ping()
	})
	require.NoError(err, "wait for postgres connection")

	return server, orm
}

type RedisServer struct {
	Address string
	Client  *redis.Client
}

func StartupRedis(t *testing.T) RedisServer {
	t.Helper()

	require := require.New(t)

	pool := newPool(t)

	resource, err := pool.Run("redis", "7.2-alpine", nil)
	require.NoError(err, "status redis")

	t.Cleanup(func() {
		err := pool.Purge(resource)
		require.NoError(err, "purge resource %s", resource)
	})

	address := fmt.Sprintf("%s:%s", GetDockerHost(), resource.GetPort("6379/tcp"))

	var client *redis.Client
	err = pool.Retry(func() error {
		client = redis.NewClient(&redis.Options{Addr: address})
		return client.Ping(context.Background()).Err()
	})
	require.NoError(err, "wait for redis connection")

	t.Cleanup(func() {
		_ = client.Close()
	})

	return RedisServer{
		Address: address,
		Client:  client,
	}
}

type NATSServer struct {
	URL string
}

func StartupNATS(t *testing.T) NATSServer {
	t.Helper()

	require := require.New(t)

	pool := newPool(t)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository:   "nats",
		Tag:          "2.10-alpine",
		Cmd:          []string{"-js"},
		ExposedPorts: []string{"4222"},
	})
	require.NoError(err, "status nats")

	t.Cleanup(func() {
		err := pool.Purge(resource)
		require.NoError(err, "purge resource %s", resource)
	})

	url := fmt.Sprintf("nats://%s:%s", GetDockerHost(), resource.GetPort("4222/tcp"))

	err = pool.Retry(func() error {
		nc, err := nats.Connect(url)
		if err != nil {
			return err
		}
		nc.Close()

		return nil
	})
	require.NoError(err, "wait for nats connection")

	return NATSServer{URL: url}
}
