package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/voiceflow/voiceflow/internal/models"
	"github.com/voiceflow/voiceflow/internal/queue"
	"github.com/voiceflow/voiceflow/internal/services"
	"github.com/voiceflow/voiceflow/internal/utils"
)

type WSHandler struct {
	svc      services.TranscriptionService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(svc services.TranscriptionService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		svc:   svc,
		redis: rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// JobWS handles GET /ws/jobs/:job_id. It streams status transitions published
// over Redis and the final result, then closes. A job already in a terminal
// state gets a single snapshot message.
func (h *WSHandler) JobWS(c *gin.Context) {
	const op = "WSHandler.JobWS"

	jobID := c.Param("job_id")
	if jobID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing job_id", nil))
		return
	}

	j, ok := h.svc.Job(jobID)
	if !ok {
		writeError(c, utils.E(utils.CodeNotFound, op, "job not found", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before the snapshot so no transition is lost in between.
	statusCh := "job:" + jobID + ":status"
	resultCh := "job:" + jobID + ":result"
	pubsub := h.redis.Subscribe(ctx, statusCh, resultCh)
	defer pubsub.Close()

	if terminal := h.sendSnapshot(wc, j); terminal {
		return
	}

	// reader: detect client disconnect
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-j.Done():
			// The publisher may race the done channel; give the final
			// messages a moment to arrive, then close with a snapshot.
			select {
			case m := <-ch:
				_ = wc.writeText([]byte(m.Payload))
			case <-time.After(2 * time.Second):
			}
			h.sendSnapshot(wc, j)
			return
		case m, okc := <-ch:
			if !okc {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}

// sendSnapshot writes the job's current state and reports whether it is
// terminal.
func (h *WSHandler) sendSnapshot(wc *wsConn, j *queue.Job) bool {
	status := j.Status()
	msg := map[string]any{"type": "status", "job_id": j.ID, "status": status}

	switch status {
	case models.JobCompleted:
		if res, _ := j.Result(); res != nil {
			msg = map[string]any{"type": "result", "job_id": j.ID, "status": status, "result": res}
		}
	case models.JobFailed:
		if _, err := j.Result(); err != nil {
			msg["error"] = err.Error()
		}
	}

	b, _ := json.Marshal(msg)
	_ = wc.writeText(b)
	return status == models.JobCompleted || status == models.JobFailed
}
