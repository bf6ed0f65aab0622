package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/check-engine/internal/check"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/results"
	"github.com/jaki95/check-engine/internal/storage"
)

// errorsResponse is one page of a task's errors.
type errorsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	results.Page
}

// statusFor maps an error to the HTTP status and the body code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, job.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return job.CodeNotFound
	case errors.Is(err, job.ErrInvalidState), errors.Is(err, job.ErrInvalidRequest),
		errors.Is(err, check.ErrInvalidRules):
		return job.CodeInvalid
	}
	return job.CodeInternal
}

// startCheck starts a check, in the background when async is set.
//
//	@Summary	Start a check
//	@Tags		Checks
//	@Accept		json
//	@Produce	json
//	@Param		request	body		job.StartRequest	true	"Check parameters"
//	@Success	200		{object}	job.StartResponse	"Synchronous result"
//	@Success	202		{object}	job.StartResponse	"Task accepted"
//	@Failure	400		{object}	job.StartResponse
//	@Router		/api/checks [post]
func (s *Server) startCheck(c *gin.Context) {
	var req job.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, job.StartResponse{
			Code:    job.CodeInvalid,
			Message: fmt.Sprintf("%v: %v", job.ErrInvalidRequest, err),
		})
		return
	}
	if err := s.runner.Validate(req.RuleConfig); err != nil {
		c.JSON(http.StatusBadRequest, job.StartResponse{Code: job.CodeInvalid, Message: err.Error()})
		return
	}

	if !req.Async {
		result, err := s.runner.RunSync(c.Request.Context(), req.ProjectID, req.RuleConfig)
		if err != nil {
			code := statusFor(err)
			slog.Error("Synchronous check failed", "projectId", req.ProjectID, "error", err)
			c.JSON(code, job.StartResponse{Code: code, Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, job.StartResponse{Code: job.CodeOK, Result: result})
		return
	}

	task, ctx := s.jobs.CreateJob(req.ProjectID, req.RuleConfig)
	go s.runner.Run(ctx, task.ID)

	slog.Info("Check accepted", "jobId", task.ID, "projectId", req.ProjectID)
	c.JSON(http.StatusAccepted, job.StartResponse{Code: job.CodeOK, Async: true, TaskID: task.ID})
}

// getProgress returns the current snapshot of a task.
//
//	@Summary	Poll task progress
//	@Tags		Checks
//	@Produce	json
//	@Param		id	path		string	true	"Task ID"
//	@Success	200	{object}	job.ProgressResponse
//	@Failure	404	{object}	job.ProgressResponse
//	@Router		/api/checks/{id}/progress [get]
func (s *Server) getProgress(c *gin.Context) {
	resp, err := s.jobs.Snapshot(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// controlCheck pauses, resumes or cancels a task.
//
//	@Summary	Control a task
//	@Tags		Checks
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Task ID"
//	@Param		request	body		job.ControlRequest	true	"Action"
//	@Success	200		{object}	job.ControlResponse
//	@Failure	400		{object}	job.ControlResponse	"Invalid action or task state"
//	@Failure	404		{object}	job.ControlResponse	"Task not found"
//	@Router		/api/checks/{id}/control [post]
func (s *Server) controlCheck(c *gin.Context) {
	jobID := c.Param("id")

	var req job.ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Action.Valid() {
		msg := fmt.Sprintf("%v: action must be pause, resume or cancel", job.ErrInvalidRequest)
		c.JSON(http.StatusBadRequest, job.ControlResponse{Code: job.CodeInvalid, Message: msg})
		return
	}

	var err error
	switch req.Action {
	case job.ActionPause:
		err = s.jobs.PauseJob(jobID)
	case job.ActionResume:
		err = s.jobs.ResumeJob(jobID)
	case job.ActionCancel:
		err = s.jobs.CancelJob(jobID)
	}
	if err != nil {
		code := statusFor(err)
		slog.Warn("Control command rejected", "jobId", jobID, "action", req.Action, "error", err)
		c.JSON(code, job.ControlResponse{Code: code, Message: err.Error()})
		return
	}

	slog.Info("Control command applied", "jobId", jobID, "action", req.Action)
	c.JSON(http.StatusOK, job.ControlResponse{Code: job.CodeOK})
}

// listChecks lists tasks with pagination.
//
//	@Summary	List tasks
//	@Tags		Checks
//	@Produce	json
//	@Param		page		query		int	false	"Page number"						default(1)
//	@Param		pageSize	query		int	false	"Number of tasks per page (max 100)"	default(10)
//	@Success	200			{object}	job.Response
//	@Router		/api/checks [get]
func (s *Server) listChecks(c *gin.Context) {
	page := 1
	pageSize := job.DefaultPageSize

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if ps := c.Query("pageSize"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= job.MaxPageSize {
			pageSize = parsed
		}
	}

	c.JSON(http.StatusOK, s.jobs.ListJobs(page, pageSize))
}

// listErrors returns one filtered page of a completed task's errors.
//
//	@Summary	List task errors
//	@Tags		Checks
//	@Produce	json
//	@Param		id			path		string	true	"Task ID"
//	@Param		category	query		string	false	"Category filter"	default(all)
//	@Param		errorType	query		string	false	"Error type filter"	default(all)
//	@Param		page		query		int		false	"Page number"		default(1)
//	@Param		pageSize	query		int		false	"Page size"			default(20)
//	@Success	200			{object}	errorsResponse
//	@Failure	400			{object}	errorsResponse	"Task not completed"
//	@Failure	404			{object}	errorsResponse	"Task not found"
//	@Router		/api/checks/{id}/errors [get]
func (s *Server) listErrors(c *gin.Context) {
	task, err := s.completedTask(c.Param("id"))
	if err != nil {
		code := statusFor(err)
		c.JSON(code, errorsResponse{Code: code, Message: err.Error()})
		return
	}

	var filter results.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, errorsResponse{Code: job.CodeInvalid, Message: err.Error()})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(s.cfg.Results.PageSize)))

	c.JSON(http.StatusOK, errorsResponse{
		Code: job.CodeOK,
		Page: results.Paginate(task.Result.Errors, filter, page, pageSize),
	})
}

func (s *Server) completedTask(id string) (*job.Task, error) {
	task, err := s.jobs.GetJob(id)
	if err != nil {
		return nil, err
	}
	if task.Status != job.StatusCompleted || task.Result == nil {
		return nil, fmt.Errorf("%w: task %s is %s", job.ErrInvalidState, id, task.Status)
	}
	return task, nil
}

// health reports liveness.
//
//	@Summary	Health check
//	@Tags		Utility
//	@Produce	json
//	@Router		/health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
