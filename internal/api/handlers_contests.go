package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"oj/internal/contest"
	"oj/internal/model"
	"oj/internal/ojerr"
	"oj/internal/store"
)

type createContestRequest struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	ProblemIDs      []int64   `json:"problem_ids"`
	UserIDs         []int64   `json:"user_ids"`
	SubmissionLimit uint32    `json:"submission_limit"`
}

// handleCreateContest implements POST /contests. Contest id 0 is reserved
// for the implicit global contest and is rejected here.
func (s *Server) handleCreateContest(c *gin.Context) {
	var req createContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}
	if model.IsGlobal(req.ID) {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "contest id 0 is reserved for the global contest"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "name is required"))
		return
	}
	if req.To.Before(req.From) {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "to must not be before from"))
		return
	}
	if hasDuplicateID(req.ProblemIDs) {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "problem_ids must not contain duplicates"))
		return
	}

	created, err := s.contests.Create(c.Request.Context(), model.Contest{
		Name:            req.Name,
		From:            req.From,
		To:              req.To,
		ProblemIDs:      req.ProblemIDs,
		UserIDs:         req.UserIDs,
		SubmissionLimit: req.SubmissionLimit,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidContest) {
			respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid contest"))
			return
		}
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to create contest", err))
		return
	}
	c.JSON(http.StatusOK, contestToWire(created))
}

func (s *Server) handleListContests(c *gin.Context) {
	contests, err := s.contests.List(c.Request.Context())
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to list contests", err))
		return
	}
	out := make([]gin.H, len(contests))
	for i, ct := range contests {
		out[i] = contestToWire(ct)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetContest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid contest id"))
		return
	}
	ct, err := s.intake.ResolveContest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contestToWire(ct))
}

// handleRanklist implements GET /contests/{id}/ranklist.
func (s *Server) handleRanklist(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid contest id"))
		return
	}
	ct, err := s.intake.ResolveContest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	rule := contest.ParseScoringRule(c.Query("scoring_rule"))
	breaker := contest.ParseTieBreaker(c.Query("tie_breaker"))

	rows, err := s.ranking.Rank(c.Request.Context(), ct, rule, breaker)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to compute ranklist", err))
		return
	}

	out := make([]gin.H, len(rows))
	for i, r := range rows {
		out[i] = gin.H{
			"user":   gin.H{"id": r.UserID, "name": r.Name},
			"rank":   r.Rank,
			"scores": r.Scores,
			"total":  r.Total,
		}
	}
	c.JSON(http.StatusOK, out)
}

func contestToWire(ct model.Contest) gin.H {
	return gin.H{
		"id":               ct.ID,
		"name":             ct.Name,
		"from":             formatTimeMillis(ct.From),
		"to":               formatTimeMillis(ct.To),
		"problem_ids":      ct.ProblemIDs,
		"user_ids":         ct.UserIDs,
		"submission_limit": ct.SubmissionLimit,
	}
}

func hasDuplicateID(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
