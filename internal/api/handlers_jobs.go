package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"oj/internal/model"
	"oj/internal/ojerr"
	"oj/internal/store"
)

type submitRequest struct {
	SourceCode string `json:"source_code"`
	Language   string `json:"language"`
	UserID     int64  `json:"user_id"`
	ContestID  int64  `json:"contest_id"`
	ProblemID  int64  `json:"problem_id"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}
	if strings.TrimSpace(req.Language) == "" || strings.TrimSpace(req.SourceCode) == "" || req.ProblemID <= 0 {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "language, source_code and problem_id are required"))
		return
	}

	requesterID := req.UserID
	if p, ok := currentPrincipal(c); ok {
		requesterID = p.UserID
		if req.UserID == 0 {
			req.UserID = p.UserID
		}
	}

	sub := model.Submission{
		SourceCode: req.SourceCode,
		Language:   req.Language,
		UserID:     req.UserID,
		ContestID:  req.ContestID,
		ProblemID:  req.ProblemID,
	}

	job, err := s.intake.Submit(c.Request.Context(), sub, requesterID, s.cfg.AuthorizationMode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToWire(job))
}

func (s *Server) handleListJobs(c *gin.Context) {
	filter := store.JobFilter{}
	if v := c.Query("user_id"); v != "" {
		if id, ok := parsePositiveInt64(v); ok {
			filter.UserID = &id
		}
	}
	if v := c.Query("contest_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ContestID = &id
		}
	}
	if v := c.Query("problem_id"); v != "" {
		if id, ok := parsePositiveInt64(v); ok {
			filter.ProblemID = &id
		}
	}
	if v := c.Query("language"); v != "" {
		filter.Language = v
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	jobs, err := s.jobs.Query(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, len(jobs))
	for i, j := range jobs {
		out[i] = jobToWire(j)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, ok := parsePositiveInt64(c.Param("id"))
	if !ok {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid job id"))
		return
	}
	job, err := s.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if err == store.ErrJobNotFound {
			respondError(c, ojerr.New(ojerr.NotFound, "job not found"))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToWire(job))
}

// handleRejudge implements PUT /jobs/{id}: reset a Finished job to Queueing
// and republish it.
func (s *Server) handleRejudge(c *gin.Context) {
	id, ok := parsePositiveInt64(c.Param("id"))
	if !ok {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid job id"))
		return
	}
	job, err := s.intake.Rejudge(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToWire(job))
}

// handleCancelJob implements DELETE /jobs/{id}.
func (s *Server) handleCancelJob(c *gin.Context) {
	id, ok := parsePositiveInt64(c.Param("id"))
	if !ok {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid job id"))
		return
	}
	if _, err := s.intake.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func jobToWire(j model.Job) gin.H {
	cases := make([]gin.H, len(j.Cases))
	for i, cr := range j.Cases {
		cases[i] = gin.H{
			"id":            cr.ID,
			"result":        cr.Result.String(),
			"time_us":       cr.TimeUs,
			"memory_bytes":  cr.MemoryBytes,
			"info":          cr.Info,
			"score_awarded": cr.ScoreAwarded,
		}
	}
	return gin.H{
		"id":           j.ID,
		"created_time": formatTimeMillis(j.CreatedTime),
		"updated_time": formatTimeMillis(j.UpdatedTime),
		"submission": gin.H{
			"language":    j.Submission.Language,
			"user_id":     j.Submission.UserID,
			"contest_id":  j.Submission.ContestID,
			"problem_id":  j.Submission.ProblemID,
			"source_code": j.Submission.SourceCode,
		},
		"state":  j.State.String(),
		"result": j.Result.String(),
		"score":  j.Score,
		"cases":  cases,
	}
}
