package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kaytu-io/kaytu-assistant/services/assistant/db"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicateRun = errors.New("didn't create run due to id conflict")
	ErrRunNotFound  = errors.New("run not found")
	ErrRunConflict  = errors.New("run was modified concurrently")
)

// Run stores run records. Update replaces the whole record and only succeeds when
// the stored version still equals run.Version; the returned run carries the new version.
type Run interface {
	Get(ctx context.Context, id string) (*model.Run, error)
	Create(ctx context.Context, run model.Run) error
	List(ctx context.Context, threadID string) ([]model.Run, error)
	Update(ctx context.Context, run model.Run) (*model.Run, error)
}

type RunSQL struct {
	db db.Database
}

func NewRun(db db.Database) Run {
	return RunSQL{
		db: db,
	}
}

func (s RunSQL) Get(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run

	tx := s.db.DB.WithContext(ctx).Where("id = ?", id).Take(&run)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	} else if tx.Error != nil {
		return nil, tx.Error
	}

	return &run, nil
}

func (s RunSQL) List(ctx context.Context, threadID string) ([]model.Run, error) {
	var runs []model.Run

	tx := s.db.DB.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at desc").
		Find(&runs)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return runs, nil
}

func (s RunSQL) Create(ctx context.Context, c model.Run) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.Version = 0

	tx := s.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&c)

	if tx.Error != nil {
		return tx.Error
	} else if tx.RowsAffected != 1 {
		return ErrDuplicateRun
	}

	return nil
}

func (s RunSQL) Update(ctx context.Context, run model.Run) (*model.Run, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}

	next := run.Clone()
	next.Version = run.Version + 1
	next.UpdatedAt = time.Now()

	tx := s.db.DB.WithContext(ctx).
		Model(&model.Run{}).
		Where("id = ?", run.ID).
		Where("version = ?", run.Version).
		Updates(map[string]any{
			"thread_id":       next.ThreadID,
			"assistant_id":    next.AssistantID,
			"model":           next.Model,
			"instructions":    next.Instructions,
			"status":          next.Status,
			"required_action": next.RequiredAction,
			"started_at":      next.StartedAt,
			"expires_at":      next.ExpiresAt,
			"cancelled_at":    next.CancelledAt,
			"failed_at":       next.FailedAt,
			"completed_at":    next.CompletedAt,
			"version":         next.Version,
			"updated_at":      next.UpdatedAt,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}

	if tx.RowsAffected != 1 {
		if _, err := s.Get(ctx, run.ID); err != nil {
			return nil, err
		}
		return nil, ErrRunConflict
	}

	return &next, nil
}
