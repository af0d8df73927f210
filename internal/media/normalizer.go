// Package media converts arbitrary uploaded audio/video blobs into the
// canonical waveform the speech pipeline consumes: mono, 16 kHz, 16-bit PCM.
package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// SampleRate is the canonical pipeline sample rate in Hz.
const SampleRate = 16000

// Normalizer shells out to a transcoding tool (ffmpeg) with a fixed argument
// profile. It is stateless and safe for concurrent use.
type Normalizer struct {
	bin    string
	tmpDir string
}

// NewNormalizer builds a Normalizer. Empty bin defaults to "ffmpeg" on PATH;
// empty tmpDir defaults to the system temp directory.
func NewNormalizer(bin, tmpDir string) *Normalizer {
	if bin == "" {
		bin = "ffmpeg"
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Normalizer{bin: bin, tmpDir: tmpDir}
}

// Normalize decodes raw into a mono 16 kHz s16le WAV file. It returns the WAV
// path and a cleanup func that removes every temporary file; callers must
// invoke cleanup on all exit paths. A non-zero tool exit is a decode failure
// carrying the tool's diagnostic output.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (string, func(), error) {
	id := uuid.NewString()
	inPath := filepath.Join(n.tmpDir, "upload-"+id)
	wavPath := filepath.Join(n.tmpDir, "audio-"+id+".wav")

	cleanup := func() {
		_ = os.Remove(inPath)
		_ = os.Remove(wavPath)
	}

	if err := os.WriteFile(inPath, raw, 0o600); err != nil {
		return "", cleanup, fmt.Errorf("write upload to temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, n.bin, convertArgs(inPath, wavPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", cleanup, fmt.Errorf("decode failed: %w: %s", err, stderr.String())
	}

	// The decoded input is no longer needed once the WAV exists.
	_ = os.Remove(inPath)
	return wavPath, cleanup, nil
}

// convertArgs is the fixed transcode profile: mono, 16 kHz, signed 16-bit PCM.
func convertArgs(in, out string) []string {
	return []string{
		"-y", "-nostdin",
		"-i", in,
		"-ar", fmt.Sprint(SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		out,
	}
}

// WavDuration reads a canonical RIFF header and derives the duration in
// seconds from the data chunk size. Only the normalizer's own output format
// is supported.
func WavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, 44)
	if _, err := f.Read(header); err != nil {
		return 0, fmt.Errorf("read wav header: %w", err)
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return 0, fmt.Errorf("not a RIFF/WAVE file: %s", path)
	}

	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	byteRate := binary.LittleEndian.Uint32(header[28:32])
	dataSize := binary.LittleEndian.Uint32(header[40:44])
	if sampleRate == 0 || byteRate == 0 {
		return 0, fmt.Errorf("invalid wav format header: %s", path)
	}

	return float64(dataSize) / float64(byteRate), nil
}
