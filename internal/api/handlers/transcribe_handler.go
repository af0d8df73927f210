package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/voiceflow/voiceflow/internal/services"
	"github.com/voiceflow/voiceflow/internal/utils"
)

// MaxUploadBytes caps a single media upload at 1000 MiB.
const MaxUploadBytes = 1000 << 20

type TranscribeHandler struct {
	svc services.TranscriptionService
}

func NewTranscribeHandler(svc services.TranscriptionService) *TranscribeHandler {
	return &TranscribeHandler{svc: svc}
}

// Transcribe handles POST /transcribe. The upload is rejected with 413 before
// any pipeline work when it exceeds MaxUploadBytes. With async=true the call
// returns 202 and a job id; otherwise it blocks until the transcript is ready.
func (h *TranscribeHandler) Transcribe(c *gin.Context) {
	const op = "TranscribeHandler.Transcribe"

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "empty file", nil))
		return
	}
	if fh.Size > MaxUploadBytes {
		writeError(c, utils.E(utils.CodeTooLarge, op, "file too large (max 1000 MiB)", nil))
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}
	if len(data) > MaxUploadBytes {
		writeError(c, utils.E(utils.CodeTooLarge, op, "file too large (max 1000 MiB)", nil))
		return
	}

	up := services.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}

	if c.Query("async") == "true" || c.PostForm("async") == "true" {
		j, err := h.svc.Submit(c.Request.Context(), up, opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"job_id": j.ID,
			"status": j.Status(),
		})
		return
	}

	res, err := h.svc.Transcribe(c.Request.Context(), up, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseOptions(c *gin.Context) (services.TranscribeOptions, error) {
	const op = "TranscribeHandler.Transcribe"

	var opts services.TranscribeOptions
	opts.Language = c.PostForm("language")
	opts.Translate = c.PostForm("translate") == "true"

	if v := c.PostForm("num_speakers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, utils.E(utils.CodeInvalidArgument, op, "num_speakers must be a non-negative integer", err)
		}
		opts.NumSpeakers = n
	}

	switch st := c.PostForm("summary_type"); st {
	case "", services.SummaryTypeMeeting, services.SummaryTypeInterview:
		opts.SummaryType = st
	default:
		return opts, utils.E(utils.CodeInvalidArgument, op, "unknown summary_type", nil)
	}
	return opts, nil
}
