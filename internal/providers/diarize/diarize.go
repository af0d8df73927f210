package diarize

import (
	"context"

	"github.com/voiceflow/voiceflow/internal/models"
)

// Provider segments a waveform into speaker turns. Turns come back in no
// guaranteed order; the numSpeakers hint is advisory and the provider's own
// finding is authoritative. Implementations are process-wide singletons whose
// concurrent use is bounded by the admission queue.
type Provider interface {
	Diarize(ctx context.Context, wavPath string, sampleRate, numSpeakers int) ([]models.SpeakerTurn, error)
	Close() error
}
