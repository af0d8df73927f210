package asr

import (
	"context"

	"github.com/voiceflow/voiceflow/internal/models"
)

// Options tunes a single transcription call.
type Options struct {
	Language  string // ISO code; empty means auto-detect
	Translate bool   // translate to English instead of transcribing
}

// Output is the recognizer's verdict for one waveform. Segments are in
// chronological (start-ascending) order.
type Output struct {
	Language string
	Segments []models.AsrSegment
}

// Provider is a speech recognizer over a canonical mono 16 kHz WAV file.
// Implementations are process-wide singletons reused across jobs; concurrent
// invocation is bounded by the admission queue, not by the provider.
type Provider interface {
	Transcribe(ctx context.Context, wavPath string, opts Options) (*Output, error)
	Close() error
}
