package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/voiceflow/voiceflow/internal/models"
)

// Pyannote drives a pyannote.audio helper process. The helper loads the
// diarization pipeline once per process on the GPU and reads waveform paths
// per invocation, printing a turns payload as JSON on stdout.
type Pyannote struct {
	python string
	script string
}

// NewPyannote builds the provider. Empty python defaults to "python3".
func NewPyannote(python, script string) (*Pyannote, error) {
	if script == "" {
		return nil, fmt.Errorf("diarization helper script path is required")
	}
	if python == "" {
		python = "python3"
	}
	return &Pyannote{python: python, script: script}, nil
}

func (p *Pyannote) Close() error { return nil }

func (p *Pyannote) Diarize(ctx context.Context, wavPath string, sampleRate, numSpeakers int) ([]models.SpeakerTurn, error) {
	args := []string{
		p.script,
		"--audio", wavPath,
		"--sample-rate", strconv.Itoa(sampleRate),
	}
	if numSpeakers > 0 {
		args = append(args, "--num-speakers", strconv.Itoa(numSpeakers))
	}

	cmd := exec.CommandContext(ctx, p.python, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("diarization helper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseTurns(out)
}

type turnsPayload struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
	Error string `json:"error"`
}

// parseTurns decodes the helper's stdout. A populated error field means the
// pipeline itself failed even though the process exited cleanly.
func parseTurns(data []byte) ([]models.SpeakerTurn, error) {
	var payload turnsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("malformed diarization output: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("diarization pipeline error: %s", payload.Error)
	}

	turns := make([]models.SpeakerTurn, 0, len(payload.Segments))
	for _, s := range payload.Segments {
		if s.End < s.Start {
			return nil, fmt.Errorf("diarization turn ends (%.3f) before it starts (%.3f)", s.End, s.Start)
		}
		turns = append(turns, models.SpeakerTurn{Start: s.Start, End: s.End, Speaker: s.Speaker})
	}
	return turns, nil
}
