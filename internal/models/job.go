package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus tracks a transcription job through its lifecycle.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// TranscriptRecord is the persisted form of a finished transcription.
// Segments are stored as a JSONB document; the row itself is thin metadata.
type TranscriptRecord struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	FileName    string         `gorm:"not null" json:"file_name"`
	ContentType string         `json:"content_type"`
	Language    string         `json:"language"`
	NumSpeakers int            `json:"num_speakers"`
	Text        string         `gorm:"type:text" json:"text"`
	Summary     string         `gorm:"type:text" json:"summary,omitempty"`
	Segments    datatypes.JSON `gorm:"type:jsonb" json:"segments"`
	// ArchiveObject is the object name under the archive backend, empty
	// when archival is disabled or failed.
	ArchiveObject string  `json:"archive_object,omitempty"`
	DurationSec   float64   `json:"duration_sec"`
	CreatedAt     time.Time `json:"created_at"`
}

func (TranscriptRecord) TableName() string { return "transcripts" }
