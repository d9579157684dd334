// Package server exposes the manual trigger API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"xetl/internal/logging"
	"xetl/internal/metrics"
	"xetl/internal/schedule"
	"xetl/internal/store/runlog"
)

// AttemptLister reads the attempt ledger.
type AttemptLister interface {
	ListAttempts(ctx context.Context, limit int) ([]runlog.Attempt, error)
}

// Server owns the echo instance. Runs it starts use the base context given
// to New, not the request context, so they outlive the HTTP call.
type Server struct {
	e       *echo.Echo
	base    context.Context
	runner  *schedule.Runner
	task    schedule.Task
	runs    AttemptLister
	limiter *rate.Limiter
}

// New wires the routes. triggerInterval <= 0 disables trigger throttling;
// runs may be nil when no ledger is configured.
func New(base context.Context, runner *schedule.Runner, task schedule.Task, runs AttemptLister, triggerInterval time.Duration) *Server {
	limit := rate.Inf
	if triggerInterval > 0 {
		limit = rate.Every(triggerInterval)
	}
	s := &Server{
		e:       echo.New(),
		base:    base,
		runner:  runner,
		task:    task,
		runs:    runs,
		limiter: rate.NewLimiter(limit, 1),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.POST("/runs", s.triggerHandler)
	s.e.GET("/runs", s.listHandler)
	s.e.GET("/health", s.healthHandler)
	s.e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return s
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error { return s.e.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

type errorResponse struct {
	Error string `json:"error"`
}

type triggerResponse struct {
	RunID       string `json:"run_id"`
	MaxAttempts int    `json:"max_attempts"`
	RetryDelay  string `json:"retry_delay"`
}

func (s *Server) triggerHandler(c echo.Context) error {
	// busy runners are reported before throttling so a 409 costs no token
	if s.runner.Running() {
		return c.JSON(http.StatusConflict, errorResponse{Error: schedule.ErrAlreadyRunning.Error()})
	}
	if !s.limiter.Allow() {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "manual triggers are throttled, try again later"})
	}
	id, _, err := s.runner.Start(s.base, "api", s.task)
	if errors.Is(err, schedule.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	logging.Info("run_triggered", map[string]any{"run_id": id, "remote": c.RealIP()})
	p := s.runner.Policy()
	return c.JSON(http.StatusAccepted, triggerResponse{RunID: id, MaxAttempts: p.MaxAttempts(), RetryDelay: p.Delay.String()})
}

type attemptView struct {
	RunID      string    `json:"run_id"`
	Attempt    int       `json:"attempt"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Records    int       `json:"records"`
}

func (s *Server) listHandler(c echo.Context) error {
	if s.runs == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "attempt ledger disabled"})
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		}
		limit = n
	}
	attempts, err := s.runs.ListAttempts(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	out := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptView{
			RunID:      a.RunID,
			Attempt:    a.Number,
			Trigger:    a.Trigger,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
			Status:     a.Status,
			ErrorKind:  a.ErrorKind,
			Error:      a.Error,
			Records:    a.Records,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "running": s.runner.Running()})
}
