// Package events publishes run status transitions for the execution engine.
// A run entering queued after a tool output submission is the signal for the
// engine to apply the outputs and resume inference.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kaytu-io/kaytu-assistant/pkg/jq"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	openai2 "github.com/sashabaranov/go-openai"
)

const (
	StreamName    = "assistant-runs"
	SubjectPrefix = "assistant.runs."
	// stream keeps at most this many events
	streamMaxMsgs = 100000
)

type Type string

const (
	TypeQueued    Type = "queued"
	TypeCancelled Type = "cancelled"
)

func (t Type) Subject() string {
	return SubjectPrefix + string(t)
}

type RunEvent struct {
	ID          string               `json:"id"`
	Type        Type                 `json:"type"`
	RunID       string               `json:"run_id"`
	ThreadID    string               `json:"thread_id"`
	Status      openai2.RunStatus    `json:"status"`
	Version     int64                `json:"version"`
	ToolOutputs []openai2.ToolOutput `json:"tool_outputs,omitempty"`
	CancelledAt *int64               `json:"cancelled_at,omitempty"`
	OccurredAt  int64                `json:"occurred_at"`
}

// NewRunEvent describes run right after it was written with status.
func NewRunEvent(run model.Run, outputs []model.ToolOutput, occurredAt int64) RunEvent {
	ev := RunEvent{
		ID:          uuid.NewString(),
		Type:        Type(run.Status),
		RunID:       run.ID,
		ThreadID:    run.ThreadID,
		Status:      run.Status,
		Version:     run.Version,
		CancelledAt: run.CancelledAt,
		OccurredAt:  occurredAt,
	}
	for _, o := range outputs {
		var output string
		if o.Output != nil {
			output = *o.Output
		}
		ev.ToolOutputs = append(ev.ToolOutputs, openai2.ToolOutput{
			ToolCallID: o.ToolCallID,
			Output:     output,
		})
	}

	return ev
}

// DedupID identifies the transition, so a retried publish of the same write is dropped by jetstream.
func (e RunEvent) DedupID() string {
	return fmt.Sprintf("%s-%d", e.RunID, e.Version)
}

type Publisher interface {
	Publish(ctx context.Context, ev RunEvent) error
}

type Noop struct{}

func (Noop) Publish(context.Context, RunEvent) error {
	return nil
}

type JetStreamPublisher struct {
	jq *jq.JobQueue
}

// NewJetStreamPublisher makes sure the run events stream exists.
func NewJetStreamPublisher(ctx context.Context, q *jq.JobQueue) (*JetStreamPublisher, error) {
	if err := q.Stream(ctx, StreamName, "assistant run status transitions", []string{SubjectPrefix + ">"}, streamMaxMsgs); err != nil {
		return nil, err
	}

	return &JetStreamPublisher{jq: q}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	if _, err := p.jq.Produce(ctx, ev.Type.Subject(), data, ev.DedupID()); err != nil {
		return err
	}

	return nil
}
