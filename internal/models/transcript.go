package models

// Word is a single recognized word with its timing inside the audio.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AsrSegment is one raw segment emitted by the speech recognizer.
// Segments arrive in chronological (start-ascending) order; the fusion
// engine depends on that ordering.
type AsrSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// SpeakerTurn is one "who spoke when" interval from the diarizer.
// Turns carry no text and come back in no particular order.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`   // end >= start
	Speaker string  `json:"speaker"`
}

// TranscriptSegment is a fused, speaker-labeled piece of the final transcript.
type TranscriptSegment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Words   []Word  `json:"words,omitempty"`
}

// TranscriptionResult is the immutable outcome of one pipeline run.
// Duration is the normalized waveform's length in seconds, 0 when the
// waveform could not be probed.
type TranscriptionResult struct {
	Segments    []TranscriptSegment `json:"segments"`
	Language    string              `json:"language"`
	NumSpeakers int                 `json:"num_speakers"`
	Text        string              `json:"text"`
	Summary     string              `json:"summary,omitempty"`
	Duration    float64             `json:"duration_sec"`
}
