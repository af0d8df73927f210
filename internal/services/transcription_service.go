package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/voiceflow/voiceflow/internal/cache"
	"github.com/voiceflow/voiceflow/internal/models"
	"github.com/voiceflow/voiceflow/internal/pipeline"
	"github.com/voiceflow/voiceflow/internal/queue"
	pgrepo "github.com/voiceflow/voiceflow/internal/repositories/postgres"
	"github.com/voiceflow/voiceflow/internal/storage"
	"github.com/voiceflow/voiceflow/internal/utils"
)

// jobRetention is how long a finished job stays queryable by id.
const jobRetention = time.Hour

// resultCacheTTL bounds how long identical re-uploads skip the pipeline.
const resultCacheTTL = 24 * time.Hour

// Upload is one accepted media file.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// TranscribeOptions are the caller-tunable knobs for one job.
type TranscribeOptions struct {
	NumSpeakers int    // diarizer hint, 0 = let it decide
	Language    string // empty = auto-detect
	Translate   bool
	SummaryType string // empty = no summary
}

// Runner executes one pipeline run. pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, raw []byte, opts pipeline.Options) (*models.TranscriptionResult, error)
}

type TranscriptionService interface {
	// Submit enqueues a job and returns its handle without waiting.
	Submit(ctx context.Context, up Upload, opts TranscribeOptions) (*queue.Job, error)
	// Transcribe enqueues a job and waits for its result.
	Transcribe(ctx context.Context, up Upload, opts TranscribeOptions) (*models.TranscriptionResult, error)
	// Job looks up a live or recently finished job by id.
	Job(id string) (*queue.Job, bool)
	// PublishStatus pushes a job transition to subscribers. Wired as the
	// queue's OnStatus callback.
	PublishStatus(job *queue.Job, status models.JobStatus)
}

type transcriptionService struct {
	queue       *queue.AdmissionQueue
	runner      Runner
	summaries   SummaryService
	transcripts pgrepo.TranscriptRepo
	results     cache.Cache
	archive     storage.Uploader
	rdb         *redis.Client
	log         *logrus.Logger

	mu   sync.Mutex
	jobs map[string]*queue.Job
}

// NewTranscriptionService wires the admission queue and the pipeline into the
// API-facing service. summaries, transcripts, results, archive and rdb are
// collaborators and may each be nil to disable that concern.
func NewTranscriptionService(
	q *queue.AdmissionQueue,
	runner Runner,
	summaries SummaryService,
	transcripts pgrepo.TranscriptRepo,
	results cache.Cache,
	archive storage.Uploader,
	rdb *redis.Client,
	log *logrus.Logger,
) TranscriptionService {
	if log == nil {
		log = logrus.New()
	}
	s := &transcriptionService{
		queue:       q,
		runner:      runner,
		summaries:   summaries,
		transcripts: transcripts,
		results:     results,
		archive:     archive,
		rdb:         rdb,
		log:         log,
		jobs:        make(map[string]*queue.Job),
	}
	q.OnStatus = s.PublishStatus
	return s
}

func (s *transcriptionService) Submit(ctx context.Context, up Upload, opts TranscribeOptions) (*queue.Job, error) {
	const op = "TranscriptionService.Submit"

	if len(up.Data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty upload", nil)
	}

	key := resultKey(up.Data, opts)
	if s.results != nil {
		var cached models.TranscriptionResult
		if hit, err := s.results.GetJSON(ctx, key, &cached); err == nil && hit {
			s.log.WithField("file", up.FileName).Info("serving transcription from cache")
			j := queue.NewCompleted(&cached)
			s.remember(j)
			return j, nil
		}
	}

	j, err := s.queue.Submit(func(jobCtx context.Context) (*models.TranscriptionResult, error) {
		res, err := s.runner.Run(jobCtx, up.Data, pipeline.Options{
			NumSpeakers: opts.NumSpeakers,
			Language:    opts.Language,
			Translate:   opts.Translate,
		})
		if err != nil {
			return nil, err
		}

		if opts.SummaryType != "" && s.summaries != nil {
			sum, serr := s.summaries.Summarize(jobCtx, res.Text, opts.SummaryType)
			if serr != nil {
				// The transcript is still useful without its summary.
				s.log.WithError(serr).Warn("summary generation failed")
			} else {
				res.Summary = sum
			}
		}

		archiveObject := s.archiveResult(jobCtx, res)
		s.persist(jobCtx, up, res, archiveObject)
		if s.results != nil {
			if cerr := s.results.SetJSON(jobCtx, key, res, resultCacheTTL); cerr != nil {
				s.log.WithError(cerr).Warn("result cache write failed")
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "transcription queue refused the job", err)
	}

	s.remember(j)
	return j, nil
}

func (s *transcriptionService) Transcribe(ctx context.Context, up Upload, opts TranscribeOptions) (*models.TranscriptionResult, error) {
	const op = "TranscriptionService.Transcribe"

	j, err := s.Submit(ctx, up, opts)
	if err != nil {
		return nil, err
	}

	res, err := j.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.E(utils.CodeTimeout, op, "timed out waiting for transcription", err)
		}
		return nil, pipelineError(op, err)
	}
	return res, nil
}

// pipelineError maps stage failures onto stable API error codes so a client
// can tell corrupt media apart from an engine outage.
func pipelineError(op string, err error) error {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return utils.E(utils.CodeInternal, op, "transcription failed", err)
	}
	switch pe.Stage {
	case pipeline.StageDecode:
		return utils.E(utils.CodeInvalidArgument, op, "could not decode the uploaded media", err)
	case pipeline.StageDiarize, pipeline.StageTranscribe:
		return utils.E(utils.CodeUnavailable, op, fmt.Sprintf("%s engine failed", pe.Stage), err)
	default:
		return utils.E(utils.CodeInternal, op, fmt.Sprintf("%s stage failed", pe.Stage), err)
	}
}

func (s *transcriptionService) Job(id string) (*queue.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// PublishStatus forwards job transitions over Redis pub/sub so WebSocket
// subscribers (and any other listener) see queued/running/terminal updates.
func (s *transcriptionService) PublishStatus(j *queue.Job, status models.JobStatus) {
	if s.rdb == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := map[string]any{"type": "status", "job_id": j.ID, "status": status}
	if status == models.JobFailed {
		if _, err := j.Result(); err != nil {
			msg["error"] = err.Error()
		}
	}
	payload, _ := json.Marshal(msg)
	if err := s.rdb.Publish(ctx, statusChannel(j.ID), payload).Err(); err != nil {
		s.log.WithError(err).Warn("status publish failed")
	}

	if status == models.JobCompleted {
		if res, _ := j.Result(); res != nil {
			body, _ := json.Marshal(map[string]any{"type": "result", "job_id": j.ID, "result": res})
			_ = s.rdb.Publish(ctx, resultChannel(j.ID), body).Err()
		}
	}
}

func (s *transcriptionService) remember(j *queue.Job) {
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	go func() {
		<-j.Done()
		time.AfterFunc(jobRetention, func() {
			s.mu.Lock()
			delete(s.jobs, j.ID)
			s.mu.Unlock()
		})
	}()
}

func (s *transcriptionService) persist(ctx context.Context, up Upload, res *models.TranscriptionResult, archiveObject string) {
	if s.transcripts == nil {
		return
	}

	segments, err := json.Marshal(res.Segments)
	if err != nil {
		s.log.WithError(err).Warn("segment marshal failed; transcript not persisted")
		return
	}

	duration := res.Duration
	if duration == 0 {
		// Probe failed; the last segment's end is the best approximation.
		if n := len(res.Segments); n > 0 {
			duration = res.Segments[n-1].End
		}
	}

	rec := &models.TranscriptRecord{
		ID:            uuid.NewString(),
		FileName:      up.FileName,
		ContentType:   up.ContentType,
		Language:      res.Language,
		NumSpeakers:   res.NumSpeakers,
		Text:          res.Text,
		Summary:       res.Summary,
		Segments:      datatypes.JSON(segments),
		ArchiveObject: archiveObject,
		DurationSec:   duration,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.transcripts.Insert(ctx, rec); err != nil {
		s.log.WithError(err).Warn("transcript persistence failed")
	}
}

// archiveResult uploads the result JSON and returns the object name, empty
// when archival is disabled or failed.
func (s *transcriptionService) archiveResult(ctx context.Context, res *models.TranscriptionResult) string {
	if s.archive == nil {
		return ""
	}

	body, err := json.Marshal(res)
	if err != nil {
		return ""
	}
	name := fmt.Sprintf("transcription_result_%s_%s.json",
		time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
	if _, err := s.archive.Upload(ctx, name, "application/json", bytes.NewReader(body)); err != nil {
		s.log.WithError(err).Warn("result archive failed")
		return ""
	}
	return name
}

func statusChannel(jobID string) string { return "job:" + jobID + ":status" }
func resultChannel(jobID string) string { return "job:" + jobID + ":result" }

func resultKey(data []byte, opts TranscribeOptions) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%d|%s|%t|%s", opts.NumSpeakers, opts.Language, opts.Translate, opts.SummaryType)
	return "transcript:" + hex.EncodeToString(h.Sum(nil))
}

