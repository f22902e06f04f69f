// Package steps serves the run step endpoints. Run steps are not recorded yet,
// so every existing run reports no steps.
package steps

import (
	"context"

	assistantErrors "github.com/kaytu-io/kaytu-assistant/services/assistant/errors"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	openai2 "github.com/sashabaranov/go-openai"
)

const DefaultLimit = 20

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Query pages through the steps of a run. Values are passed through as given;
// with no steps recorded they never change the result.
type Query struct {
	Limit  int
	Order  Order
	After  string
	Before string
}

type RunGetter interface {
	GetRun(ctx context.Context, threadID, runID string) (*model.Run, error)
}

type Reader struct {
	runs RunGetter
}

func NewReader(runs RunGetter) *Reader {
	return &Reader{runs: runs}
}

// List returns the steps of a run, always empty for an existing run.
func (r *Reader) List(ctx context.Context, threadID, runID string, q Query) ([]openai2.RunStep, error) {
	if _, err := r.runs.GetRun(ctx, threadID, runID); err != nil {
		return nil, err
	}

	return []openai2.RunStep{}, nil
}

// Retrieve reports every step as missing, including ids a run would normally have.
func (r *Reader) Retrieve(ctx context.Context, threadID, runID, stepID string) (*openai2.RunStep, error) {
	if _, err := r.runs.GetRun(ctx, threadID, runID); err != nil {
		return nil, err
	}

	return nil, assistantErrors.ErrRunStepNotFound
}
