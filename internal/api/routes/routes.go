package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceflow/voiceflow/internal/api/handlers"
	"github.com/voiceflow/voiceflow/internal/api/middleware"
	"github.com/voiceflow/voiceflow/internal/queue"
)

type Deps struct {
	Transcribe *handlers.TranscribeHandler
	Job        *handlers.JobHandler
	Transcript *handlers.TranscriptHandler
	WS         *handlers.WSHandler
	Queue      *queue.AdmissionQueue
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	if d.Queue != nil {
		r.GET("/stats", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"queue_depth":  d.Queue.Depth(),
				"running_jobs": d.Queue.Running(),
			})
		})
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/transcribe", d.Transcribe.Transcribe)
	auth.GET("/jobs/:job_id", d.Job.Get)

	if d.Transcript != nil {
		auth.GET("/transcripts/:id", d.Transcript.Get)
		auth.GET("/transcripts/:id/download", d.Transcript.DownloadURL)
		auth.GET("/transcripts", middleware.RequireAdmin(), d.Transcript.List)
	}

	// WebSocket
	if d.WS != nil {
		auth.GET("/ws/jobs/:job_id", d.WS.JobWS)
	}
}
