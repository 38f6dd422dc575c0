package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"oj/internal/heartbeat"
	"oj/internal/ojerr"
)

// handleWorkerStatus implements GET /admin/workers: every live worker
// heartbeat, so an operator can see which workers are up without querying
// the Job Store.
func (s *Server) handleWorkerStatus(c *gin.Context) {
	snapshots, err := heartbeat.List(c.Request.Context(), s.redis)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "listing worker heartbeats", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": snapshots})
}
