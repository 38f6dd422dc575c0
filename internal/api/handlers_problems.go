package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"oj/internal/model"
	"oj/internal/ojerr"
	"oj/internal/problemimport"
)

const maxProblemArchiveUpload = 32 * 1024 * 1024

// handleImportProblem implements POST /problems/import: an admin uploads a
// zip problem package (multipart field "archive"), which is parsed and
// persisted as a new Problem that this process accepts submissions for at
// once. Worker processes load it on their next start.
func (s *Server) handleImportProblem(c *gin.Context) {
	file, _, err := c.Request.FormFile("archive")
	if err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "missing \"archive\" file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxProblemArchiveUpload+1))
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.InvalidArgument, "reading upload", err))
		return
	}
	if len(data) > maxProblemArchiveUpload {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "archive exceeds upload size limit"))
		return
	}

	// Case files are staged under a content hash of the archive rather than
	// the problem's eventual database id, which isn't known until after
	// Insert; the directory name need not be stable across imports.
	destDir := filepath.Join(s.cfg.SandboxWorkRoot, "problems", archiveDigest(data))
	problem, err := problemimport.Parse(data, destDir)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.InvalidArgument, "invalid problem archive", err))
		return
	}

	created, err := s.catalog.Add(c.Request.Context(), problem)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to persist imported problem", err))
		return
	}
	c.JSON(http.StatusOK, problemToWire(created))
}

func (s *Server) handleListProblems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"problem_ids": s.catalog.AllProblemIDs()})
}

func archiveDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

func problemToWire(p model.Problem) gin.H {
	return gin.H{
		"id":                 p.ID,
		"name":               p.Name,
		"kind":               p.Kind.String(),
		"case_count":         len(p.Cases),
		"special_judge_path": p.SpecialJudgePath,
	}
}
