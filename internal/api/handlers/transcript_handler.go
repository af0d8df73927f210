package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	pgrepo "github.com/voiceflow/voiceflow/internal/repositories/postgres"
	"github.com/voiceflow/voiceflow/internal/storage"
	"github.com/voiceflow/voiceflow/internal/utils"
)

// downloadURLTTL bounds how long an issued archive link stays valid.
const downloadURLTTL = 15 * time.Minute

type TranscriptHandler struct {
	repo   pgrepo.TranscriptRepo
	signer storage.Signer // nil when the archive backend cannot sign
}

func NewTranscriptHandler(repo pgrepo.TranscriptRepo, signer storage.Signer) *TranscriptHandler {
	return &TranscriptHandler{repo: repo, signer: signer}
}

// Get handles GET /transcripts/:id.
func (h *TranscriptHandler) Get(c *gin.Context) {
	const op = "TranscriptHandler.Get"

	id := c.Param("id")
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, utils.E(utils.CodeNotFound, op, "transcript not found", err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DownloadURL handles GET /transcripts/:id/download. It issues a short-lived
// signed link to the archived result JSON.
func (h *TranscriptHandler) DownloadURL(c *gin.Context) {
	const op = "TranscriptHandler.DownloadURL"

	rec, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, utils.E(utils.CodeNotFound, op, "transcript not found", err))
		return
	}
	if rec.ArchiveObject == "" {
		writeError(c, utils.E(utils.CodeNotFound, op, "transcript has no archived result", nil))
		return
	}
	if h.signer == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "archive backend cannot issue download links", nil))
		return
	}

	url, err := h.signer.SignedGetURL(c.Request.Context(), rec.ArchiveObject, downloadURLTTL)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to sign download link", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(downloadURLTTL.Seconds()),
	})
}

// List handles GET /transcripts?limit=N.
func (h *TranscriptHandler) List(c *gin.Context) {
	const op = "TranscriptHandler.List"

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "limit must be between 1 and 100", err))
			return
		}
		limit = n
	}

	recs, err := h.repo.Latest(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": recs})
}
