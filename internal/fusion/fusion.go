// Package fusion reconciles recognizer segments with diarization turns into a
// single ordered, speaker-labeled transcript.
package fusion

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/voiceflow/voiceflow/internal/models"
)

// UnknownSpeaker labels segments whose center time falls inside no diarization turn.
const UnknownSpeaker = "UNKNOWN"

// DefaultMaxGap is the merge threshold in seconds: two adjacent same-speaker
// segments merge only when the silence between them is strictly below it.
const DefaultMaxGap = 1.0

// ErrUnordered reports recognizer output that is not start-ascending. Gap
// arithmetic is meaningless on unordered input, so fusion refuses it outright.
var ErrUnordered = fmt.Errorf("asr segments are not in start-ascending order")

// Engine merges ASR segments and speaker turns. The zero value is not usable;
// construct with NewEngine.
type Engine struct {
	maxGap float64
}

func NewEngine() *Engine {
	return &Engine{maxGap: DefaultMaxGap}
}

// NumSpeakers counts the distinct speakers the diarizer reported. UNKNOWN
// labels introduced by fusion never contribute to this count.
func NumSpeakers(turns []models.SpeakerTurn) int {
	seen := make(map[string]struct{}, len(turns))
	for _, t := range turns {
		seen[t.Speaker] = struct{}{}
	}
	return len(seen)
}

// Fuse labels every segment with a speaker and then merges adjacent segments
// of the same speaker separated by less than the gap threshold. Whitespace-only
// segments are dropped and never reach the output. The input segments must be
// chronologically ordered; turns may arrive in any order but their slice order
// is the fixed tie-break order for overlapping turns.
func (e *Engine) Fuse(segments []models.AsrSegment, turns []models.SpeakerTurn) ([]models.TranscriptSegment, error) {
	for i := 1; i < len(segments); i++ {
		if segments[i].Start < segments[i-1].Start {
			return nil, fmt.Errorf("segment %d starts at %.3f before segment %d at %.3f: %w",
				i, segments[i].Start, i-1, segments[i-1].Start, ErrUnordered)
		}
	}

	var out []models.TranscriptSegment
	var acc *models.TranscriptSegment

	flush := func() {
		if acc == nil {
			return
		}
		acc.Text = strings.TrimSpace(acc.Text)
		if acc.Text != "" {
			out = append(out, *acc)
		}
		acc = nil
	}

	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			// Silence or hallucinated padding: contributes nothing and
			// does not close the open accumulator either.
			continue
		}

		speaker := assignSpeaker(seg, turns)

		if acc != nil && speaker == acc.Speaker && seg.Start-acc.End < e.maxGap {
			acc.Text = joinText(acc.Text, seg.Text)
			acc.End = seg.End
			acc.Words = append(acc.Words, seg.Words...)
			continue
		}

		flush()
		acc = &models.TranscriptSegment{
			Text:    seg.Text,
			Start:   seg.Start,
			End:     seg.End,
			Speaker: speaker,
			Words:   append([]models.Word(nil), seg.Words...),
		}
	}
	flush()

	return out, nil
}

// assignSpeaker picks the speaker of the first turn containing the segment's
// center time. Overlapping turns are resolved by slice order; real diarizers
// rarely emit ambiguous overlaps, so no smarter tie-break is attempted.
func assignSpeaker(seg models.AsrSegment, turns []models.SpeakerTurn) string {
	center := (seg.Start + seg.End) / 2
	for _, t := range turns {
		if t.Start <= center && center <= t.End {
			return t.Speaker
		}
	}
	return UnknownSpeaker
}

// joinText concatenates two adjacent texts. When the boundary characters are
// both letters the split is treated as a mid-word artifact of the recognizer
// and no space is inserted; otherwise a single space separates the parts.
func joinText(acc, next string) string {
	last, _ := utf8.DecodeLastRuneInString(acc)
	first, _ := utf8.DecodeRuneInString(next)
	if unicode.IsLetter(last) && unicode.IsLetter(first) {
		return acc + next
	}
	return acc + " " + strings.TrimLeftFunc(next, unicode.IsSpace)
}
