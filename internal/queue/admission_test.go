package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceflow/voiceflow/internal/models"
)

func newTestQueue(t *testing.T, maxConcurrent int) *AdmissionQueue {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	q := New(maxConcurrent, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)
	return q
}

func okJob(res *models.TranscriptionResult) JobFunc {
	return func(ctx context.Context) (*models.TranscriptionResult, error) {
		return res, nil
	}
}

func TestSubmitNeverBlocksAndReturnsHandle(t *testing.T) {
	q := newTestQueue(t, 1)

	block := make(chan struct{})
	for i := 0; i < 10; i++ {
		_, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
			<-block
			return nil, nil
		})
		require.NoError(t, err)
	}
	close(block)
}

func TestAdmissionBoundHeldUnderBurst(t *testing.T) {
	const limit = 3
	const burst = 20
	q := newTestQueue(t, limit)

	var inFlight, peak atomic.Int64
	var wg sync.WaitGroup
	wg.Add(burst)

	for i := 0; i < burst; i++ {
		_, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
			defer wg.Done()
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return &models.TranscriptionResult{}, nil
		})
		require.NoError(t, err)
	}

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("burst did not drain")
	}

	assert.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestEveryJobReachesTerminalState(t *testing.T) {
	q := newTestQueue(t, 2)

	jobs := make([]*Job, 0, 8)
	for i := 0; i < 8; i++ {
		fail := i%2 == 1
		j, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return &models.TranscriptionResult{Language: "en"}, nil
		})
		require.NoError(t, err)
		jobs = append(jobs, j)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, j := range jobs {
		res, err := j.Wait(ctx)
		if i%2 == 1 {
			require.Error(t, err)
			assert.Equal(t, models.JobFailed, j.Status())
		} else {
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, models.JobCompleted, j.Status())
		}
	}
}

func TestSlotReleasedOnFailure(t *testing.T) {
	const limit = 2
	q := newTestQueue(t, limit)

	// Fill all slots with immediately failing jobs.
	for i := 0; i < limit; i++ {
		j, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
			return nil, errors.New("instant failure")
		})
		require.NoError(t, err)
		<-j.Done()
	}

	// One more job must still be admitted: no slot leaked.
	j, err := q.Submit(okJob(&models.TranscriptionResult{Text: "after failures"}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := j.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "after failures", res.Text)
}

func TestSlotReleasedOnPanic(t *testing.T) {
	q := newTestQueue(t, 1)

	j, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
		panic("pipeline exploded")
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = j.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// The dispatcher survived and the slot came back.
	next, err := q.Submit(okJob(&models.TranscriptionResult{}))
	require.NoError(t, err)
	_, err = next.Wait(ctx)
	require.NoError(t, err)
}

func TestFIFOAdmissionOrder(t *testing.T) {
	q := newTestQueue(t, 1)

	var mu sync.Mutex
	var order []int

	gate := make(chan struct{})
	first, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
		<-gate
		return nil, nil
	})
	require.NoError(t, err)

	jobs := make([]*Job, 0, 5)
	for i := 0; i < 5; i++ {
		idx := i
		j, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
			return nil, nil
		})
		require.NoError(t, err)
		jobs = append(jobs, j)
	}

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = first.Wait(ctx)
	for _, j := range jobs {
		_, err := j.Wait(ctx)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWaitHonorsCallerDeadline(t *testing.T) {
	q := newTestQueue(t, 1)

	release := make(chan struct{})
	defer close(release)
	j, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = j.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	q := New(1, log)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	cancel()
	q.Shutdown()

	_, err := q.Submit(okJob(nil))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherExitClosesQueue(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	q := New(1, log)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	release := make(chan struct{})
	defer close(release)
	_, err := q.Submit(func(ctx context.Context) (*models.TranscriptionResult, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	pending, err := q.Submit(okJob(nil))
	require.NoError(t, err)

	cancel()

	// The dying dispatcher must fail what it can no longer admit.
	_, werr := pending.Wait(context.Background())
	require.Error(t, werr)

	// And later submissions must fail fast instead of filling the backlog.
	require.Eventually(t, func() bool {
		_, serr := q.Submit(okJob(nil))
		return errors.Is(serr, ErrQueueClosed)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBacklogOverflowRefusedNotQueued(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	q := New(1, log)
	// Not started: nothing drains the backlog.

	var err error
	for i := 0; i <= DefaultBacklog; i++ {
		_, err = q.Submit(okJob(nil))
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestStatusCallbackSequence(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	q := New(1, log)

	var mu sync.Mutex
	var seen []models.JobStatus
	q.OnStatus = func(_ *Job, s models.JobStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	j, err := q.Submit(okJob(&models.TranscriptionResult{}))
	require.NoError(t, err)
	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	_, err = j.Wait(wctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.JobStatus{models.JobQueued, models.JobRunning, models.JobCompleted}, seen)
}
