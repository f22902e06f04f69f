package postgres_test

import (
	"testing"

	idocker "github.com/kaytu-io/kaytu-assistant/pkg/dockertest"
	"github.com/kaytu-io/kaytu-assistant/pkg/postgres"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type Thread struct {
	ID     string `gorm:"primaryKey"`
	Status string
}

func TestNewClient(t *testing.T) {
	server, _ := idocker.StartupPostgreSQL(t)

	cfg := &postgres.Config{
		Host:   server.Host,
		Port:   server.Port,
		User:   server.User,
		Passwd: server.Password,
		DB:     server.DB,
	}

	orm, err := postgres.NewClient(cfg, zap.NewNop())
	require.NoError(t, err, "new client")
	require.Equal(t, "disable", cfg.SSLMode, "ssl mode default")

	require.NoError(t, orm.AutoMigrate(&Thread{}), "auto migrate")
	require.NoError(t, orm.Create(&Thread{ID: "thread_1", Status: "active"}).Error)

	var got Thread
	require.NoError(t, orm.First(&got, "id = ?", "thread_1").Error)
	require.Equal(t, "active", got.Status)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := postgres.NewClient(nil, zap.NewNop())
	require.EqualError(t, err, "cfg is nil")

	_, err = postgres.NewClient(&postgres.Config{Host: "localhost"}, zap.NewNop())
	require.EqualError(t, err, "postgres port is empty")

	_, err = postgres.NewClient(&postgres.Config{
		Host:   "localhost",
		Port:   "5432",
		User:   "postgres",
		Passwd: "postgres",
	}, zap.NewNop())
	require.EqualError(t, err, "postgres db is empty")
}
