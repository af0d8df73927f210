package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// App holds the transcription-specific settings read from the environment.
// Postgres and Redis keep their own Init functions; everything else the
// pipeline needs lives here.
type App struct {
	Port string

	MaxConcurrentJobs int
	StageTimeout      time.Duration

	FFmpegBin string
	TmpDir    string

	// ASR provider selection: "whisper" (local CLI) or "google".
	ASRProvider  string
	WhisperBin   string
	WhisperModel string

	DiarizePython string
	DiarizeScript string

	// Summaries via Vertex AI. Empty project disables summarization.
	GCPProject  string
	GCPLocation string
	GeminiModel string

	// Result archival: "gcs" needs ArchiveBucket, "local" needs ArchiveDir,
	// empty disables archival.
	ArchiveBackend string
	ArchiveBucket  string
	ArchiveDir     string
}

func LoadApp() (*App, error) {
	a := &App{
		Port:              getenv("PORT", "8080"),
		MaxConcurrentJobs: 3,
		StageTimeout:      30 * time.Minute,
		FFmpegBin:         getenv("FFMPEG_BIN", "ffmpeg"),
		TmpDir:            getenv("TMP_DIR", os.TempDir()),
		ASRProvider:       getenv("ASR_PROVIDER", "whisper"),
		WhisperBin:        getenv("WHISPER_BIN", "whisper-cli"),
		WhisperModel:      os.Getenv("WHISPER_MODEL"),
		DiarizePython:     getenv("DIARIZE_PYTHON", "python3"),
		DiarizeScript:     os.Getenv("DIARIZE_SCRIPT"),
		GCPProject:        os.Getenv("GCP_PROJECT"),
		GCPLocation:       getenv("GCP_LOCATION", "us-central1"),
		GeminiModel:       getenv("GEMINI_MODEL", "gemini-1.5-flash"),
		ArchiveBackend:    os.Getenv("ARCHIVE_BACKEND"),
		ArchiveBucket:     os.Getenv("ARCHIVE_BUCKET"),
		ArchiveDir:        getenv("ARCHIVE_DIR", "results"),
	}

	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be a positive integer, got %q", v)
		}
		a.MaxConcurrentJobs = n
	}

	if v := os.Getenv("STAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("STAGE_TIMEOUT must be a positive duration, got %q", v)
		}
		a.StageTimeout = d
	}

	switch a.ASRProvider {
	case "whisper":
		if a.WhisperModel == "" {
			return nil, fmt.Errorf("WHISPER_MODEL is required when ASR_PROVIDER=whisper")
		}
	case "google":
	default:
		return nil, fmt.Errorf("unknown ASR_PROVIDER %q", a.ASRProvider)
	}

	if a.DiarizeScript == "" {
		return nil, fmt.Errorf("DIARIZE_SCRIPT environment variable is not set")
	}

	return a, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
