package api

import (
	"github.com/kaytu-io/kaytu-assistant/services/assistant/api/run"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/lifecycle"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/steps"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const threadsPath = "/openai/v1/threads"

type API struct {
	logger     *zap.Logger
	controller *lifecycle.Controller
	steps      *steps.Reader
}

func New(logger *zap.Logger, controller *lifecycle.Controller, reader *steps.Reader) *API {
	return &API{
		logger:     logger.Named("api"),
		controller: controller,
		steps:      reader,
	}
}

func (api *API) Register(e *echo.Echo) {
	runs := run.New(api.logger, api.controller, api.steps)
	runs.Register(e.Group(threadsPath))
}
