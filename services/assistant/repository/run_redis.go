package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "assistant"
	defaultRedisTTL    = 30 * 24 * time.Hour
)

// RunRedis stores each run as a JSON document and indexes runs per thread in a sorted set.
// Updates are compare-and-swap transactions guarded by WATCH on the run key.
type RunRedis struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ Run = (*RunRedis)(nil)

type RedisOption func(*RunRedis)

func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RunRedis) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RunRedis) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRunRedis(client *goredis.Client, opts ...RedisOption) *RunRedis {
	s := &RunRedis{
		client: client,
		prefix: defaultRedisPrefix,
		ttl:    defaultRedisTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RunRedis) runKey(id string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, id)
}

func (s *RunRedis) threadIndexKey(threadID string) string {
	return fmt.Sprintf("%s:thread:%s:runs", s.prefix, threadID)
}

func (s *RunRedis) Get(ctx context.Context, id string) (*model.Run, error) {
	raw, err := s.client.Get(ctx, s.runKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrRunNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load run from redis: %w", err)
	}

	return decodeRun(raw)
}

func (s *RunRedis) List(ctx context.Context, threadID string) ([]model.Run, error) {
	ids, err := s.client.ZRevRange(ctx, s.threadIndexKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list thread runs from redis: %w", err)
	}

	var runs []model.Run
	for _, id := range ids {
		run, err := s.Get(ctx, id)
		if errors.Is(err, ErrRunNotFound) {
			// expired run, index entry is stale
			continue
		} else if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

func (s *RunRedis) Create(ctx context.Context, run model.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	now := time.Now()
	run.Version = 0
	if run.CreatedAt == 0 {
		run.CreatedAt = now.Unix()
	}
	run.UpdatedAt = now

	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.runKey(run.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save run in redis: %w", err)
	}
	if !created {
		return ErrDuplicateRun
	}

	indexKey := s.threadIndexKey(run.ThreadID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, indexKey, goredis.Z{
		Score:  float64(run.CreatedAt),
		Member: run.ID,
	})
	pipe.Expire(ctx, indexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index run in redis: %w", err)
	}

	return nil
}

func (s *RunRedis) Update(ctx context.Context, run model.Run) (*model.Run, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}

	key := s.runKey(run.ID)

	var next model.Run
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return ErrRunNotFound
		} else if err != nil {
			return err
		}

		current, err := decodeRun(raw)
		if err != nil {
			return err
		}
		if current.Version != run.Version {
			return ErrRunConflict
		}

		next = run.Clone()
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now()

		out, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, goredis.TxFailedErr):
		return nil, ErrRunConflict
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrRunConflict):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to update run in redis: %w", err)
	}

	return &next, nil
}

func decodeRun(raw []byte) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}
