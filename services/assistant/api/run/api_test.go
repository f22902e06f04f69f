package run_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kaytu-io/kaytu-assistant/pkg/httpserver"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/api"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/lifecycle"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/repository"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/steps"
	"github.com/labstack/echo/v4"
	openai2 "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type RunAPISuite struct {
	suite.Suite

	repo *repository.RunMemory
	e    *echo.Echo
}

func TestRunAPI(t *testing.T) {
	suite.Run(t, new(RunAPISuite))
}

func (s *RunAPISuite) SetupTest() {
	logger := zap.NewNop()
	s.repo = repository.NewRunMemory()
	controller := lifecycle.New(logger, s.repo)
	s.e = httpserver.Register(logger, api.New(logger, controller, steps.NewReader(controller)))
}

func (s *RunAPISuite) seed(id string, status openai2.RunStatus) {
	run := model.Run{
		ID:          id,
		ThreadID:    "thread_1",
		AssistantID: "asst_1",
		Model:       "gpt-4o",
		Status:      status,
	}
	if status == openai2.RunStatusRequiresAction {
		run.RequiredAction = model.NewSubmitToolOutputsAction(openai2.ToolCall{
			ID:       "c1",
			Type:     openai2.ToolTypeFunction,
			Function: openai2.FunctionCall{Name: "lookup", Arguments: "{}"},
		})
	}
	s.Require().NoError(s.repo.Create(context.Background(), run))
}

func (s *RunAPISuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *RunAPISuite) message(rec *httptest.ResponseRecorder) string {
	var body struct {
		Message string `json:"message"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func (s *RunAPISuite) TestSubmitToolOutputs() {
	s.seed("r1", openai2.RunStatusRequiresAction)

	rec := s.do(http.MethodPost, "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs",
		`[{"tool_call_id":"c1","output":"42"}]`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("queued", got["status"])
	s.Equal("thread.run", got["object"])
	s.Equal("r1", got["id"])
	s.Nil(got["required_action"])
}

func (s *RunAPISuite) TestSubmitToolOutputsObjectBody() {
	s.seed("r1", openai2.RunStatusRequiresAction)

	rec := s.do(http.MethodPost, "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs",
		`{"tool_outputs":[{"tool_call_id":"c1","output":"42"}]}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *RunAPISuite) TestSubmitToolOutputsErrors() {
	s.seed("r1", openai2.RunStatusRequiresAction)
	s.seed("r3", openai2.RunStatusInProgress)

	tests := []struct {
		name    string
		path    string
		body    string
		code    int
		message string
	}{
		{"empty batch", "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs", `[]`, http.StatusBadRequest, "tool_outputs"},
		{"no body", "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs", "", http.StatusBadRequest, "tool_outputs"},
		{"missing tool call id", "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs", `[{"output":"x"}]`, http.StatusBadRequest, "tool_call_id"},
		{"missing output", "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs", `[{"tool_call_id":"c1"}]`, http.StatusBadRequest, "output"},
		{"malformed body", "/openai/v1/threads/thread_1/runs/r1/submit_tool_outputs", `[{"tool_call_id":`, http.StatusBadRequest, ""},
		{"wrong status", "/openai/v1/threads/thread_1/runs/r3/submit_tool_outputs", `[{"tool_call_id":"c1","output":"x"}]`, http.StatusBadRequest, "in_progress"},
		{"missing run", "/openai/v1/threads/thread_1/runs/nope/submit_tool_outputs", `[{"tool_call_id":"c1","output":"x"}]`, http.StatusNotFound, "run not found"},
		{"other thread", "/openai/v1/threads/thread_2/runs/r1/submit_tool_outputs", `[{"tool_call_id":"c1","output":"x"}]`, http.StatusNotFound, "run not found"},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodPost, tc.path, tc.body)
			s.Require().Equal(tc.code, rec.Code, rec.Body.String())
			if tc.message != "" {
				s.Contains(s.message(rec), tc.message)
			}
		})
	}

	run, err := s.repo.Get(context.Background(), "r1")
	s.Require().NoError(err)
	s.Equal(openai2.RunStatusRequiresAction, run.Status)
}

func (s *RunAPISuite) TestCancelRun() {
	s.seed("r1", openai2.RunStatusQueued)

	rec := s.do(http.MethodPost, "/openai/v1/threads/thread_1/runs/r1/cancel", "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("cancelled", got["status"])
	s.NotNil(got["cancelled_at"])
}

func (s *RunAPISuite) TestCancelCompletedRun() {
	s.seed("r2", openai2.RunStatusCompleted)

	rec := s.do(http.MethodPost, "/openai/v1/threads/thread_1/runs/r2/cancel", "")
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.message(rec), "completed")
}

func (s *RunAPISuite) TestCancelMissingRun() {
	rec := s.do(http.MethodPost, "/openai/v1/threads/thread_1/runs/nope/cancel", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RunAPISuite) TestListRunSteps() {
	s.seed("r1", openai2.RunStatusCompleted)

	for _, query := range []string{"", "?limit=0&order=asc", "?limit=5&order=desc", "?after=step_1"} {
		rec := s.do(http.MethodGet, "/openai/v1/threads/thread_1/runs/r1/steps"+query, "")
		s.Require().Equal(http.StatusOK, rec.Code, query)
		s.JSONEq(`[]`, rec.Body.String())
	}
}

func (s *RunAPISuite) TestListRunStepsIgnoresPaging() {
	s.seed("r1", openai2.RunStatusCompleted)

	for _, query := range []string{"?limit=-1", "?limit=ten", "?order=sideways", "?limit=-5&order=ASC&before=x"} {
		rec := s.do(http.MethodGet, "/openai/v1/threads/thread_1/runs/r1/steps"+query, "")
		s.Require().Equal(http.StatusOK, rec.Code, query)
		s.JSONEq(`[]`, rec.Body.String(), query)
	}
}

func (s *RunAPISuite) TestListRunStepsMissingRun() {
	for _, query := range []string{"", "?order=sideways", "?limit=-1", "?limit=ten"} {
		rec := s.do(http.MethodGet, "/openai/v1/threads/thread_1/runs/nope/steps"+query, "")
		s.Require().Equal(http.StatusNotFound, rec.Code, query)
		s.Equal("run not found", s.message(rec))
	}
}

func (s *RunAPISuite) TestRetrieveRunStep() {
	s.seed("r1", openai2.RunStatusCompleted)

	rec := s.do(http.MethodGet, "/openai/v1/threads/thread_1/runs/r1/steps/step_1", "")
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Contains(s.message(rec), "not implemented")

	rec = s.do(http.MethodGet, "/openai/v1/threads/thread_1/runs/nope/steps/step_1", "")
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal("run not found", s.message(rec))
}
