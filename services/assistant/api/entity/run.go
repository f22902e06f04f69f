package entity

import (
	"bytes"
	"encoding/json"

	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	openai2 "github.com/sashabaranov/go-openai"
)

const RunObject = "thread.run"

// SubmitToolOutputsRequest accepts the OpenAI body {"tool_outputs": [...]} as well as a bare array.
type SubmitToolOutputsRequest struct {
	ToolOutputs []model.ToolOutput `json:"tool_outputs"`
}

func (r *SubmitToolOutputsRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.ToolOutputs)
	}

	type plain SubmitToolOutputsRequest
	return json.Unmarshal(data, (*plain)(r))
}

// ListRunStepsRequest keeps limit as text so no value of it fails the request.
type ListRunStepsRequest struct {
	Limit  string `query:"limit"`
	Order  string `query:"order"`
	After  string `query:"after"`
	Before string `query:"before"`
}

type Run struct {
	ID             string                     `json:"id"`
	Object         string                     `json:"object"`
	CreatedAt      int64                      `json:"created_at"`
	ThreadID       string                     `json:"thread_id"`
	AssistantID    string                     `json:"assistant_id"`
	Status         openai2.RunStatus          `json:"status"`
	RequiredAction *openai2.RunRequiredAction `json:"required_action"`
	StartedAt      *int64                     `json:"started_at"`
	ExpiresAt      *int64                     `json:"expires_at"`
	CancelledAt    *int64                     `json:"cancelled_at"`
	FailedAt       *int64                     `json:"failed_at"`
	CompletedAt    *int64                     `json:"completed_at"`
	Model          string                     `json:"model"`
	Instructions   string                     `json:"instructions"`
}

func NewRun(run model.Run) Run {
	out := Run{
		ID:           run.ID,
		Object:       RunObject,
		CreatedAt:    run.CreatedAt,
		ThreadID:     run.ThreadID,
		AssistantID:  run.AssistantID,
		Status:       run.Status,
		StartedAt:    run.StartedAt,
		ExpiresAt:    run.ExpiresAt,
		CancelledAt:  run.CancelledAt,
		FailedAt:     run.FailedAt,
		CompletedAt:  run.CompletedAt,
		Model:        run.Model,
		Instructions: run.Instructions,
	}
	if run.RequiredAction != nil {
		action := run.RequiredAction.RunRequiredAction
		out.RequiredAction = &action
	}

	return out
}
