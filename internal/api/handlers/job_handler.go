package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voiceflow/voiceflow/internal/models"
	"github.com/voiceflow/voiceflow/internal/services"
	"github.com/voiceflow/voiceflow/internal/utils"
)

type JobHandler struct {
	svc services.TranscriptionService
}

func NewJobHandler(svc services.TranscriptionService) *JobHandler {
	return &JobHandler{svc: svc}
}

// Get handles GET /jobs/:job_id.
func (h *JobHandler) Get(c *gin.Context) {
	const op = "JobHandler.Get"

	id := c.Param("job_id")
	if id == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing job_id", nil))
		return
	}

	j, ok := h.svc.Job(id)
	if !ok {
		writeError(c, utils.E(utils.CodeNotFound, op, "job not found", nil))
		return
	}

	body := gin.H{
		"job_id":       j.ID,
		"status":       j.Status(),
		"submitted_at": j.SubmittedAt,
	}
	switch j.Status() {
	case models.JobCompleted:
		res, _ := j.Result()
		body["result"] = res
	case models.JobFailed:
		_, err := j.Result()
		if err != nil {
			body["error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, body)
}
