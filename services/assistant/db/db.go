package db

import (
	"github.com/kaytu-io/kaytu-assistant/pkg/postgres"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Database struct {
	DB *gorm.DB
}

func New(cfg postgres.Config, logger *zap.Logger) (Database, error) {
	orm, err := postgres.NewClient(&cfg, logger)
	if err != nil {
		return Database{}, err
	}

	return Database{DB: orm}, nil
}

func (db Database) Initialize() error {
	return db.DB.AutoMigrate(
		&model.Run{},
	)
}
