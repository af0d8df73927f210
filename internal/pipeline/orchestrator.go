// Package pipeline sequences one transcription job: decode the upload, run
// diarization and recognition over the same waveform, and fuse the outputs
// into a speaker-labeled transcript.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/voiceflow/voiceflow/internal/fusion"
	"github.com/voiceflow/voiceflow/internal/media"
	"github.com/voiceflow/voiceflow/internal/metrics"
	"github.com/voiceflow/voiceflow/internal/models"
	"github.com/voiceflow/voiceflow/internal/providers/asr"
	"github.com/voiceflow/voiceflow/internal/providers/diarize"
)

// Stage identifies which part of the pipeline produced an error.
type Stage string

const (
	StageDecode     Stage = "decode"
	StageDiarize    Stage = "diarize"
	StageTranscribe Stage = "transcribe"
	StageFuse       Stage = "fuse"
)

// Error wraps a stage failure with its root cause. Stage failures are not
// retried; they propagate as-is to the job's result handle.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// DefaultStageTimeout bounds each external-service invocation so a stuck
// process cannot hold an admission slot forever.
const DefaultStageTimeout = 30 * time.Minute

// Normalizer is the decode boundary. media.Normalizer implements it.
type Normalizer interface {
	Normalize(ctx context.Context, raw []byte) (wavPath string, cleanup func(), err error)
}

// Options tunes one pipeline run. NumSpeakers is a hint only; the diarizer's
// own finding is authoritative for the result's speaker count.
type Options struct {
	NumSpeakers int
	Language    string
	Translate   bool
}

// Orchestrator wires normalizer, providers and fusion into a single run.
// Providers are injected once at startup and reused across jobs.
type Orchestrator struct {
	normalizer   Normalizer
	recognizer   asr.Provider
	diarizer     diarize.Provider
	fuser        *fusion.Engine
	log          *logrus.Logger
	stageTimeout time.Duration
}

func New(n Normalizer, rec asr.Provider, d diarize.Provider, log *logrus.Logger, stageTimeout time.Duration) *Orchestrator {
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		normalizer:   n,
		recognizer:   rec,
		diarizer:     d,
		fuser:        fusion.NewEngine(),
		log:          log,
		stageTimeout: stageTimeout,
	}
}

// Run executes the whole pipeline for one upload. Temporary decoded files are
// removed on every exit path. Diarization and recognition run concurrently
// over the same read-only waveform; both must finish before fusion starts.
func (o *Orchestrator) Run(ctx context.Context, raw []byte, opts Options) (*models.TranscriptionResult, error) {
	wavPath, cleanup, err := o.stageDecode(ctx, raw)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	duration, derr := media.WavDuration(wavPath)
	if derr != nil {
		o.log.WithError(derr).Debug("could not probe waveform duration")
	}

	var (
		turns  []models.SpeakerTurn
		asrOut *asr.Output
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var serr error
		turns, serr = o.stageDiarize(gctx, wavPath, opts.NumSpeakers)
		return serr
	})
	g.Go(func() error {
		var serr error
		asrOut, serr = o.stageTranscribe(gctx, wavPath, opts)
		return serr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start := time.Now()
	segments, err := o.fuser.Fuse(asrOut.Segments, turns)
	if err != nil {
		metrics.RecordStageError(string(StageFuse))
		return nil, &Error{Stage: StageFuse, Err: err}
	}
	metrics.ObserveStage(string(StageFuse), time.Since(start).Seconds())

	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}

	result := &models.TranscriptionResult{
		Segments:    segments,
		Language:    asrOut.Language,
		NumSpeakers: fusion.NumSpeakers(turns),
		Text:        strings.Join(texts, " "),
		Duration:    duration,
	}

	o.log.WithFields(logrus.Fields{
		"language":     result.Language,
		"num_speakers": result.NumSpeakers,
		"segments":     len(result.Segments),
	}).Info("pipeline completed")

	return result, nil
}

func (o *Orchestrator) stageDecode(ctx context.Context, raw []byte) (string, func(), error) {
	start := time.Now()
	wavPath, cleanup, err := o.normalizer.Normalize(ctx, raw)
	if cleanup == nil {
		cleanup = func() {}
	}
	if err != nil {
		metrics.RecordStageError(string(StageDecode))
		return "", cleanup, &Error{Stage: StageDecode, Err: err}
	}
	metrics.ObserveStage(string(StageDecode), time.Since(start).Seconds())
	return wavPath, cleanup, nil
}

func (o *Orchestrator) stageDiarize(ctx context.Context, wavPath string, numSpeakers int) ([]models.SpeakerTurn, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	start := time.Now()
	turns, err := o.diarizer.Diarize(sctx, wavPath, media.SampleRate, numSpeakers)
	if err != nil {
		metrics.RecordStageError(string(StageDiarize))
		return nil, &Error{Stage: StageDiarize, Err: err}
	}
	metrics.ObserveStage(string(StageDiarize), time.Since(start).Seconds())
	return turns, nil
}

func (o *Orchestrator) stageTranscribe(ctx context.Context, wavPath string, opts Options) (*asr.Output, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	start := time.Now()
	out, err := o.recognizer.Transcribe(sctx, wavPath, asr.Options{
		Language:  opts.Language,
		Translate: opts.Translate,
	})
	if err != nil {
		metrics.RecordStageError(string(StageTranscribe))
		return nil, &Error{Stage: StageTranscribe, Err: err}
	}
	metrics.ObserveStage(string(StageTranscribe), time.Since(start).Seconds())
	return out, nil
}
