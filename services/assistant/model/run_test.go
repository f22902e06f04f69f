package model

import (
	"encoding/json"
	"testing"

	openai2 "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestRequiredActionValueScan(t *testing.T) {
	action := NewSubmitToolOutputsAction(openai2.ToolCall{
		ID:   "call_1",
		Type: openai2.ToolTypeFunction,
		Function: openai2.FunctionCall{
			Name:      "lookup",
			Arguments: `{"q":"42"}`,
		},
	})

	value, err := action.Value()
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "submit_tool_outputs",
		"submit_tool_outputs": {"tool_calls": [
			{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "{\"q\":\"42\"}"}}
		]}
	}`, string(value.([]byte)))

	var scanned RequiredAction
	require.NoError(t, scanned.Scan(value))
	require.Equal(t, []string{"call_1"}, scanned.ToolCallIDs())

	var fromString RequiredAction
	require.NoError(t, fromString.Scan(string(value.([]byte))))
	require.Equal(t, *action, fromString)

	require.Error(t, fromString.Scan(42))
}

func TestToolCallIDsNil(t *testing.T) {
	var action *RequiredAction
	require.Nil(t, action.ToolCallIDs())
	require.Nil(t, (&RequiredAction{}).ToolCallIDs())
}

func TestRunCloneIsDeep(t *testing.T) {
	cancelledAt := int64(10)
	run := Run{
		ID:             "run_1",
		ThreadID:       "thread_1",
		Status:         openai2.RunStatusRequiresAction,
		RequiredAction: NewSubmitToolOutputsAction(openai2.ToolCall{ID: "call_1"}),
		CancelledAt:    &cancelledAt,
	}

	clone := run.Clone()
	*clone.CancelledAt = 20
	clone.RequiredAction.SubmitToolOutputs.ToolCalls[0].ID = "call_2"

	require.Equal(t, int64(10), *run.CancelledAt)
	require.Equal(t, []string{"call_1"}, run.RequiredAction.ToolCallIDs())
}

func TestRunValidate(t *testing.T) {
	run := Run{ID: "run_1", ThreadID: "thread_1", Status: openai2.RunStatusQueued}
	require.NoError(t, run.Validate())

	run.Status = "paused"
	require.Error(t, run.Validate())

	run.Status = openai2.RunStatusQueued
	run.RequiredAction = NewSubmitToolOutputsAction()
	require.EqualError(t, run.Validate(), "run run_1 has a required action while queued")

	require.EqualError(t, Run{ThreadID: "thread_1"}.Validate(), "run id is empty")
	require.EqualError(t, Run{ID: "run_1"}.Validate(), "run thread id is empty")
}

func TestRunJSONRoundTrip(t *testing.T) {
	run := Run{
		ID:             "run_1",
		ThreadID:       "thread_1",
		Status:         openai2.RunStatusRequiresAction,
		RequiredAction: NewSubmitToolOutputsAction(openai2.ToolCall{ID: "call_1", Type: openai2.ToolTypeFunction}),
		Version:        3,
	}

	raw, err := json.Marshal(run)
	require.NoError(t, err)

	var decoded Run
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, run.RequiredAction.ToolCallIDs(), decoded.RequiredAction.ToolCallIDs())
	require.Equal(t, run.Version, decoded.Version)
	require.Equal(t, run.Status, decoded.Status)
}
