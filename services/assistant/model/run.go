package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai2 "github.com/sashabaranov/go-openai"
)

// Run is one execution attempt of an assistant against a thread.
// Timestamps other than UpdatedAt are epoch seconds, as in the OpenAI run object.
type Run struct {
	ID             string            `gorm:"primaryKey" json:"id"`
	ThreadID       string            `gorm:"index;not null" json:"thread_id"`
	AssistantID    string            `json:"assistant_id"`
	Model          string            `json:"model"`
	Instructions   string            `json:"instructions"`
	Status         openai2.RunStatus `gorm:"index;not null" json:"status"`
	RequiredAction *RequiredAction   `gorm:"type:jsonb" json:"required_action,omitempty"`
	CreatedAt      int64             `gorm:"autoCreateTime" json:"created_at"`
	StartedAt      *int64            `json:"started_at,omitempty"`
	ExpiresAt      *int64            `json:"expires_at,omitempty"`
	CancelledAt    *int64            `json:"cancelled_at,omitempty"`
	FailedAt       *int64            `json:"failed_at,omitempty"`
	CompletedAt    *int64            `json:"completed_at,omitempty"`
	Version        int64             `gorm:"not null;default:0" json:"version"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// RequiredAction holds the pending tool calls of a run in requires_action.
type RequiredAction struct {
	openai2.RunRequiredAction
}

func (a RequiredAction) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *RequiredAction) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported required action type %T", value)
	}

	return json.Unmarshal(raw, a)
}

// ToolCallIDs lists the ids of the pending tool calls.
func (a *RequiredAction) ToolCallIDs() []string {
	if a == nil || a.SubmitToolOutputs == nil {
		return nil
	}

	ids := make([]string, 0, len(a.SubmitToolOutputs.ToolCalls))
	for _, call := range a.SubmitToolOutputs.ToolCalls {
		ids = append(ids, call.ID)
	}

	return ids
}

// NewSubmitToolOutputsAction builds the required action waiting on calls.
func NewSubmitToolOutputsAction(calls ...openai2.ToolCall) *RequiredAction {
	return &RequiredAction{
		RunRequiredAction: openai2.RunRequiredAction{
			Type: openai2.RequiredActionTypeSubmitToolOutputs,
			SubmitToolOutputs: &openai2.SubmitToolOutputs{
				ToolCalls: calls,
			},
		},
	}
}

// Clone returns a deep copy so stored runs never share pointers with callers.
func (r Run) Clone() Run {
	out := r
	out.StartedAt = clonePtr(r.StartedAt)
	out.ExpiresAt = clonePtr(r.ExpiresAt)
	out.CancelledAt = clonePtr(r.CancelledAt)
	out.FailedAt = clonePtr(r.FailedAt)
	out.CompletedAt = clonePtr(r.CompletedAt)

	if r.RequiredAction != nil {
		action := *r.RequiredAction
		if action.SubmitToolOutputs != nil {
			submit := *action.SubmitToolOutputs
			submit.ToolCalls = append([]openai2.ToolCall(nil), submit.ToolCalls...)
			action.SubmitToolOutputs = &submit
		}
		out.RequiredAction = &action
	}

	return out
}

func (r Run) Validate() error {
	if r.ID == "" {
		return errors.New("run id is empty")
	}
	if r.ThreadID == "" {
		return errors.New("run thread id is empty")
	}
	if _, err := ParseRunStatus(string(r.Status)); err != nil {
		return err
	}
	if r.RequiredAction != nil && r.Status != openai2.RunStatusRequiresAction {
		return fmt.Errorf("run %s has a required action while %s", r.ID, r.Status)
	}

	return nil
}

func clonePtr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// ToolOutput is the result of one pending tool call, as submitted by the caller.
// A nil Output means the field was absent; an empty output is valid.
type ToolOutput struct {
	ToolCallID string  `json:"tool_call_id"`
	Output     *string `json:"output"`
}

func NewToolOutput(toolCallID, output string) ToolOutput {
	return ToolOutput{ToolCallID: toolCallID, Output: &output}
}
