package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/voiceflow/voiceflow/internal/models"
)

// WhisperCLI runs a whisper.cpp command-line binary and parses its JSON
// output file. The binary and model are validated once at construction.
type WhisperCLI struct {
	bin    string
	model  string
	tmpDir string
}

// NewWhisperCLI validates that both the binary and the model file exist.
func NewWhisperCLI(bin, model, tmpDir string) (*WhisperCLI, error) {
	if _, err := os.Stat(bin); err != nil {
		return nil, fmt.Errorf("whisper binary not found at %s: %w", bin, err)
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s: %w", model, err)
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &WhisperCLI{bin: bin, model: model, tmpDir: tmpDir}, nil
}

func (w *WhisperCLI) Close() error { return nil }

// Transcribe invokes the CLI with JSON output directed at a temp path and
// parses the result. A non-zero exit or malformed JSON is a transcription
// failure carrying the process diagnostics.
func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath string, opts Options) (*Output, error) {
	outBase := filepath.Join(w.tmpDir, "whisper-"+uuid.NewString())
	outJSON := outBase + ".json"
	defer os.Remove(outJSON)

	args := []string{
		"-m", w.model,
		"-f", wavPath,
		"--output-json",
		"--max-len", "1",
		"-of", outBase,
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Translate {
		args = append(args, "--translate")
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper exited abnormally: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(outJSON)
	if err != nil {
		return nil, fmt.Errorf("whisper produced no output file: %w", err)
	}
	return parseWhisperJSON(data)
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperSegment struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []whisperWord `json:"words"`
}

type whisperOutput struct {
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

// parseWhisperJSON decodes the CLI's JSON output. Segments are re-sorted by
// start time so downstream fusion always sees its ordering precondition met,
// regardless of CLI quirks.
func parseWhisperJSON(data []byte) (*Output, error) {
	var raw whisperOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed whisper JSON: %w", err)
	}
	if raw.Segments == nil {
		return nil, fmt.Errorf("whisper JSON has no segments field")
	}

	out := &Output{Language: raw.Language}
	if out.Language == "" {
		out.Language = "auto"
	}

	for _, s := range raw.Segments {
		seg := models.AsrSegment{Start: s.Start, End: s.End, Text: s.Text}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, models.Word{Word: w.Word, Start: w.Start, End: w.End})
		}
		out.Segments = append(out.Segments, seg)
	}

	sort.SliceStable(out.Segments, func(i, j int) bool {
		return out.Segments[i].Start < out.Segments[j].Start
	})
	return out, nil
}
