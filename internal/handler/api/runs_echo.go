package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/internal/usecase"
	xhttp "PolyChannel/pkg/http"
	xlogger "PolyChannel/pkg/logger"
)

func init() {
	validInterval := func(s string) bool {
		_, err := drepo.ParseInterval(s)
		return err == nil
	}
	if err := xhttp.RegisterStringRule("interval", validInterval, "must be a supported candle interval"); err != nil {
		panic(err)
	}
}

// RunController is the slice of the scheduler the HTTP layer needs.
type RunController interface {
	Base() usecase.RunRequest
	Status() usecase.RunStatus
	Trigger(req usecase.RunRequest) error
}

// TriggerRunRequest overrides the scheduled request for one on-demand run.
// Zero fields keep the scheduled values.
type TriggerRunRequest struct {
	Symbols  []string `json:"symbols" validate:"max=100,dive,required,symbol"`
	Top      int      `json:"top" validate:"gte=0,lte=100"`
	Days     int      `json:"days" validate:"gte=0,lte=3650"`
	Interval string   `json:"interval" validate:"omitempty,interval"`
}

// RunsEchoHandler serves run status and on-demand triggers.
type RunsEchoHandler struct {
	logger *xlogger.Logger
	runs   RunController
}

func NewRunsEchoHandler(logger *xlogger.Logger, runs RunController) *RunsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RunsEchoHandler{logger: logger.Component("api"), runs: runs}
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/runs/latest", h.Latest)
	g.POST("/runs", h.Trigger)
}

// Health reports liveness plus the last run outcome.
func (h *RunsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.runs.Status())
}

func (h *RunsEchoHandler) Latest(c echo.Context) error {
	st := h.runs.Status()
	if st.RunID == "" && st.Status == "idle" {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no run has finished yet"))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *RunsEchoHandler) Trigger(c echo.Context) error {
	req := &TriggerRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	run := h.runs.Base()
	if len(req.Symbols) > 0 {
		run.Symbols = req.Symbols
		run.TopN = 0
	} else if req.Top > 0 {
		run.Symbols = nil
		run.TopN = req.Top
	}
	if req.Days > 0 {
		run.Config.LookbackDays = req.Days
	}
	if req.Interval != "" {
		iv, err := drepo.ParseInterval(req.Interval)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
		}
		run.Config.Interval = iv
	}

	if err := h.runs.Trigger(run); err != nil {
		if errors.Is(err, usecase.ErrRunPending) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
		}
		h.logger.Error("trigger run", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]interface{}{
		"symbols": run.Symbols,
		"top":     run.TopN,
	})
}
