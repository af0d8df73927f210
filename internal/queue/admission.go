// Package queue implements the process-wide admission gate in front of the
// transcription pipeline. The diarizer and the recognizer share one
// accelerator, so at most N pipelines may hold a slot at any instant no matter
// how many uploads arrive concurrently.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/voiceflow/voiceflow/internal/metrics"
	"github.com/voiceflow/voiceflow/internal/models"
)

// DefaultMaxConcurrent matches the accelerator capacity of a single GPU host.
const DefaultMaxConcurrent = 3

// DefaultBacklog is the submission buffer size. Submit never blocks; once the
// backlog is full further submissions are refused instead of queued.
const DefaultBacklog = 256

var (
	// ErrQueueFull is returned by Submit when the backlog is exhausted.
	ErrQueueFull = errors.New("admission queue backlog is full")

	// ErrQueueClosed is returned by Submit after Shutdown.
	ErrQueueClosed = errors.New("admission queue is shut down")
)

// JobFunc is the body of one admitted job. It runs while holding a slot.
type JobFunc func(ctx context.Context) (*models.TranscriptionResult, error)

// Job is the handle a caller receives for a submitted pipeline run. Results
// are delivered only through this handle; there is no broadcast.
type Job struct {
	ID          string
	SubmittedAt time.Time

	fn   JobFunc
	done chan struct{}

	mu     sync.Mutex
	status models.JobStatus
	result *models.TranscriptionResult
	err    error
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx expires. An expired ctx abandons
// the wait only; the job keeps its slot and runs to completion.
func (j *Job) Wait(ctx context.Context) (*models.TranscriptionResult, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.result, j.err
	case <-ctx.Done():
		return nil, fmt.Errorf("abandoned wait for job %s: %w", j.ID, ctx.Err())
	}
}

// Result returns the terminal outcome without blocking. Valid only after Done.
func (j *Job) Result() (*models.TranscriptionResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) setStatus(s models.JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// NewCompleted builds a job that is already in its terminal success state.
// Used when a cached result makes admission unnecessary.
func NewCompleted(res *models.TranscriptionResult) *Job {
	j := &Job{
		ID:          uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		done:        make(chan struct{}),
		status:      models.JobCompleted,
		result:      res,
	}
	close(j.done)
	return j
}

// AdmissionQueue serializes pipeline admission behind a weighted semaphore.
// A single dispatcher goroutine pops submissions in FIFO order, suspends until
// a slot frees, and hands each admitted job to its own worker goroutine.
type AdmissionQueue struct {
	log     *logrus.Logger
	sem     *semaphore.Weighted
	pending chan *Job
	maxSlot int64
	running atomic.Int64
	closed  atomic.Bool

	// OnStatus, when set before Start, observes every job transition.
	// Called outside the job's lock; must not block for long.
	OnStatus func(job *Job, status models.JobStatus)
}

// New builds a queue admitting at most maxConcurrent jobs simultaneously.
func New(maxConcurrent int, log *logrus.Logger) *AdmissionQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logrus.New()
	}
	return &AdmissionQueue{
		log:     log,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		pending: make(chan *Job, DefaultBacklog),
		maxSlot: int64(maxConcurrent),
	}
}

// Running reports how many jobs currently hold a slot.
func (q *AdmissionQueue) Running() int64 { return q.running.Load() }

// Depth reports how many jobs are queued but not yet admitted.
func (q *AdmissionQueue) Depth() int { return len(q.pending) }

// Submit enqueues fn and returns immediately with the job handle. It never
// blocks the caller: a full backlog or a shut-down queue is an error instead.
func (q *AdmissionQueue) Submit(fn JobFunc) (*Job, error) {
	if fn == nil {
		return nil, errors.New("nil job")
	}
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}

	j := &Job{
		ID:          uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		fn:          fn,
		done:        make(chan struct{}),
		status:      models.JobQueued,
	}

	// Notify before handing the job to the dispatcher so observers always
	// see queued before running.
	q.notify(j, models.JobQueued)

	select {
	case q.pending <- j:
	default:
		return nil, ErrQueueFull
	}

	metrics.SetQueueDepth(len(q.pending))
	return j, nil
}

// Start launches the dispatcher. It runs until ctx is cancelled; the
// dispatcher dying for any other reason means no job will ever be admitted
// again, which is fatal for the service and logged as such.
func (q *AdmissionQueue) Start(ctx context.Context) {
	go q.dispatch(ctx)
}

// Shutdown stops accepting submissions and fails everything still pending.
// Jobs already holding a slot run to completion.
func (q *AdmissionQueue) Shutdown() {
	q.closed.Store(true)
	for {
		select {
		case j := <-q.pending:
			q.finish(j, nil, ErrQueueClosed)
		default:
			return
		}
	}
}

func (q *AdmissionQueue) dispatch(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("panic", r).Error("admission dispatcher crashed; service cannot process further jobs")
		}
		// Without the dispatcher no job is ever admitted again. Close the
		// queue so later submissions fail fast instead of piling up in a
		// backlog nothing will drain.
		q.Shutdown()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.pending:
			metrics.SetQueueDepth(len(q.pending))
			// Suspend until a slot frees. Acquire is woken by Release,
			// not by polling.
			if err := q.sem.Acquire(ctx, 1); err != nil {
				q.finish(j, nil, fmt.Errorf("admission aborted: %w", err))
				continue
			}
			q.running.Add(1)
			metrics.SetRunningJobs(q.running.Load())
			go q.execute(ctx, j)
		}
	}
}

// execute runs one admitted job. The slot is released on every exit path,
// including panics inside the job body.
func (q *AdmissionQueue) execute(ctx context.Context, j *Job) {
	start := time.Now()

	var (
		res *models.TranscriptionResult
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %s panicked: %v", j.ID, r)
			}
		}()
		j.setStatus(models.JobRunning)
		q.notify(j, models.JobRunning)
		res, err = j.fn(ctx)
	}()

	q.running.Add(-1)
	metrics.SetRunningJobs(q.running.Load())
	q.sem.Release(1)
	metrics.ObserveJobDuration(time.Since(start).Seconds(), err == nil)

	q.finish(j, res, err)
}

func (q *AdmissionQueue) finish(j *Job, res *models.TranscriptionResult, err error) {
	j.mu.Lock()
	j.result = res
	j.err = err
	if err != nil {
		j.status = models.JobFailed
	} else {
		j.status = models.JobCompleted
	}
	status := j.status
	j.mu.Unlock()

	close(j.done)
	q.notify(j, status)

	if err != nil {
		q.log.WithFields(logrus.Fields{"job_id": j.ID, "error": err}).Warn("job failed")
	}
}

func (q *AdmissionQueue) notify(j *Job, s models.JobStatus) {
	if q.OnStatus != nil {
		q.OnStatus(j, s)
	}
}
