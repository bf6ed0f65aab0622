package server

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/check-engine/internal/annotation"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/render"
	"github.com/jaki95/check-engine/internal/storage"
)

// getImage streams a project image, optionally with the task's annotations
// for that file drawn on it.
//
//	@Summary	Get a project image
//	@Tags		Checks
//	@Produce	image/png
//	@Param		id		path		string	true	"Task ID"
//	@Param		file	path		string	true	"Hidden file name"
//	@Param		overlay	query		bool	false	"Draw annotations"
//	@Param		width	query		int		false	"Displayed width"
//	@Param		height	query		int		false	"Displayed height"
//	@Success	200		{file}		binary
//	@Failure	400		{object}	job.ControlResponse	"Task not completed"
//	@Failure	404		{object}	job.ControlResponse	"Task or image not found"
//	@Router		/api/checks/{id}/images/{file} [get]
func (s *Server) getImage(c *gin.Context) {
	jobID := c.Param("id")
	file := c.Param("file")
	overlay, _ := strconv.ParseBool(c.DefaultQuery("overlay", "false"))

	var (
		task *job.Task
		err  error
	)
	if overlay {
		task, err = s.completedTask(jobID)
	} else {
		task, err = s.jobs.GetJob(jobID)
	}
	if err != nil {
		code := statusFor(err)
		c.JSON(code, job.ControlResponse{Code: code, Message: err.Error()})
		return
	}

	path := s.archive.ImagePath(task.ProjectID, file)
	reader, err := s.archive.GetReader(c.Request.Context(), path)
	if err != nil {
		code := statusFor(err)
		if errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("%w: image %s", storage.ErrNotFound, file)
		} else {
			slog.Error("Failed to open image", "jobId", jobID, "path", path, "error", err)
		}
		c.JSON(code, job.ControlResponse{Code: code, Message: err.Error()})
		return
	}
	defer reader.Close()

	if !overlay {
		contentType := mime.TypeByExtension(filepath.Ext(file))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
		return
	}

	expander := &annotation.Expander{DefaultSize: s.cfg.Viewport.DefaultBoxSize}
	annotations := annotation.ForFile(expander.Expand(task.Result.Errors), file)

	width, _ := strconv.Atoi(c.Query("width"))
	height, _ := strconv.Atoi(c.Query("height"))
	img, err := render.AnnotateImage(reader, annotations, render.OverlayOptions{
		Width:   width,
		Height:  height,
		MinSize: s.cfg.Viewport.MinRenderedSize,
	})
	if err != nil {
		slog.Error("Failed to draw overlay", "jobId", jobID, "file", file, "error", err)
		c.JSON(http.StatusInternalServerError, job.ControlResponse{Code: job.CodeInternal, Message: err.Error()})
		return
	}

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := render.EncodePNG(c.Writer, img); err != nil {
		slog.Error("Failed to write overlay after headers were set", "jobId", jobID, "file", file, "error", err)
	}
}
