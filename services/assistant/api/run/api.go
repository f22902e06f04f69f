package run

import (
	"net/http"
	"strconv"

	"github.com/kaytu-io/kaytu-assistant/services/assistant/api/entity"
	assistantErrors "github.com/kaytu-io/kaytu-assistant/services/assistant/errors"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/lifecycle"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/steps"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type API struct {
	tracer     trace.Tracer
	logger     *zap.Logger
	controller *lifecycle.Controller
	steps      *steps.Reader
}

func New(logger *zap.Logger, controller *lifecycle.Controller, reader *steps.Reader) API {
	return API{
		tracer:     otel.GetTracerProvider().Tracer("assistant.http.runs"),
		logger:     logger.Named("runs"),
		controller: controller,
		steps:      reader,
	}
}

// SubmitToolOutputs godoc
//
//	@Summary		Submit tool outputs
//	@Description	Submit the outputs of the pending tool calls of a run waiting in requires_action. The run moves to queued.
//	@Tags			assistant
//	@Accept			json
//	@Produce		json
//	@Param			thread_id	path		string							true	"Thread ID"
//	@Param			run_id		path		string							true	"Run ID"
//	@Param			request		body		entity.SubmitToolOutputsRequest	true	"Tool outputs"
//	@Success		200			{object}	entity.Run
//	@Failure		400			{object}	echo.HTTPError
//	@Failure		404			{object}	echo.HTTPError
//	@Router			/openai/v1/threads/{thread_id}/runs/{run_id}/submit_tool_outputs [post]
func (s API) SubmitToolOutputs(c echo.Context) error {
	ctx := otel.GetTextMapPropagator().Extract(c.Request().Context(), propagation.HeaderCarrier(c.Request().Header))

	ctx, span := s.tracer.Start(ctx, "submit_tool_outputs")
	defer span.End()

	threadID, runID := c.Param("thread_id"), c.Param("run_id")
	span.SetAttributes(attribute.String("thread_id", threadID), attribute.String("run_id", runID))

	var req entity.SubmitToolOutputsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	run, err := s.controller.SubmitToolOutputs(ctx, threadID, runID, req.ToolOutputs)
	if err != nil {
		return s.fail(span, err)
	}

	return c.JSON(http.StatusOK, entity.NewRun(*run))
}

// CancelRun godoc
//
//	@Summary		Cancel a run
//	@Description	Cancel a queued or in progress run
//	@Tags			assistant
//	@Produce		json
//	@Param			thread_id	path		string	true	"Thread ID"
//	@Param			run_id		path		string	true	"Run ID"
//	@Success		200			{object}	entity.Run
//	@Failure		400			{object}	echo.HTTPError
//	@Failure		404			{object}	echo.HTTPError
//	@Router			/openai/v1/threads/{thread_id}/runs/{run_id}/cancel [post]
func (s API) CancelRun(c echo.Context) error {
	ctx := otel.GetTextMapPropagator().Extract(c.Request().Context(), propagation.HeaderCarrier(c.Request().Header))

	ctx, span := s.tracer.Start(ctx, "cancel")
	defer span.End()

	threadID, runID := c.Param("thread_id"), c.Param("run_id")
	span.SetAttributes(attribute.String("thread_id", threadID), attribute.String("run_id", runID))

	run, err := s.controller.CancelRun(ctx, threadID, runID)
	if err != nil {
		return s.fail(span, err)
	}

	return c.JSON(http.StatusOK, entity.NewRun(*run))
}

// ListRunSteps godoc
//
//	@Summary		List run steps
//	@Description	Run steps are not recorded, an existing run always lists none whatever the paging parameters
//	@Tags			assistant
//	@Produce		json
//	@Param			thread_id	path		string	true	"Thread ID"
//	@Param			run_id		path		string	true	"Run ID"
//	@Param			limit		query		int		false	"Page size"	default(20)
//	@Param			order		query		string	false	"asc or desc"	default(desc)
//	@Success		200			{array}		openai.RunStep
//	@Failure		404			{object}	echo.HTTPError
//	@Router			/openai/v1/threads/{thread_id}/runs/{run_id}/steps [get]
func (s API) ListRunSteps(c echo.Context) error {
	ctx := otel.GetTextMapPropagator().Extract(c.Request().Context(), propagation.HeaderCarrier(c.Request().Header))

	ctx, span := s.tracer.Start(ctx, "list_steps")
	defer span.End()

	var req entity.ListRunStepsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order := steps.OrderDesc
	if req.Order != "" {
		order = steps.Order(req.Order)
	}
	limit := steps.DefaultLimit
	if n, err := strconv.Atoi(req.Limit); err == nil {
		limit = n
	}

	list, err := s.steps.List(ctx, c.Param("thread_id"), c.Param("run_id"), steps.Query{
		Limit:  limit,
		Order:  order,
		After:  req.After,
		Before: req.Before,
	})
	if err != nil {
		return s.fail(span, err)
	}

	return c.JSON(http.StatusOK, list)
}

// RetrieveRunStep godoc
//
//	@Summary		Retrieve a run step
//	@Description	Run steps are not recorded, this always answers 404
//	@Tags			assistant
//	@Produce		json
//	@Param			thread_id	path		string	true	"Thread ID"
//	@Param			run_id		path		string	true	"Run ID"
//	@Param			step_id		path		string	true	"Step ID"
//	@Failure		404			{object}	echo.HTTPError
//	@Router			/openai/v1/threads/{thread_id}/runs/{run_id}/steps/{step_id} [get]
func (s API) RetrieveRunStep(c echo.Context) error {
	ctx := otel.GetTextMapPropagator().Extract(c.Request().Context(), propagation.HeaderCarrier(c.Request().Header))

	ctx, span := s.tracer.Start(ctx, "retrieve_step")
	defer span.End()

	step, err := s.steps.Retrieve(ctx, c.Param("thread_id"), c.Param("run_id"), c.Param("step_id"))
	if err != nil {
		return s.fail(span, err)
	}

	return c.JSON(http.StatusOK, step)
}

func (s API) fail(span trace.Span, err error) error {
	span.RecordError(err)
	if assistantErrors.KindOf(err) == assistantErrors.KindInternal {
		span.SetStatus(codes.Error, err.Error())
	}

	return assistantErrors.HTTPError(err)
}

func (s API) Register(g *echo.Group) {
	g.POST("/:thread_id/runs/:run_id/submit_tool_outputs", s.SubmitToolOutputs)
	g.POST("/:thread_id/runs/:run_id/cancel", s.CancelRun)
	g.GET("/:thread_id/runs/:run_id/steps", s.ListRunSteps)
	g.GET("/:thread_id/runs/:run_id/steps/:step_id", s.RetrieveRunStep)
}
