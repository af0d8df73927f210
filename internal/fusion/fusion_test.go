package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceflow/voiceflow/internal/models"
)

func seg(start, end float64, text string) models.AsrSegment {
	return models.AsrSegment{Start: start, End: end, Text: text}
}

func turn(start, end float64, speaker string) models.SpeakerTurn {
	return models.SpeakerTurn{Start: start, End: end, Speaker: speaker}
}

func TestFuseOutputOrderedAndWithinSpan(t *testing.T) {
	e := NewEngine()
	segments := []models.AsrSegment{
		seg(0.0, 1.0, "one"),
		seg(2.5, 3.5, "two"),
		seg(5.0, 6.0, "three"),
	}
	turns := []models.SpeakerTurn{turn(0, 10, "S1")}

	out, err := e.Fuse(segments, turns)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i-1].Start, out[i].Start)
	}
	assert.GreaterOrEqual(t, out[0].Start, segments[0].Start)
	assert.LessOrEqual(t, out[len(out)-1].End, segments[len(segments)-1].End)
}

func TestFuseRejectsUnorderedInput(t *testing.T) {
	e := NewEngine()
	segments := []models.AsrSegment{
		seg(5.0, 6.0, "late"),
		seg(0.0, 1.0, "early"),
	}

	_, err := e.Fuse(segments, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnordered)
}

func TestFuseDropsWhitespaceOnlySegments(t *testing.T) {
	e := NewEngine()
	segments := []models.AsrSegment{
		seg(0.0, 1.0, "hello"),
		seg(1.0, 2.0, "   "),
		seg(2.0, 3.0, ""),
		seg(3.0, 4.0, "\t\n"),
	}
	turns := []models.SpeakerTurn{turn(0, 10, "S1")}

	out, err := e.Fuse(segments, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0].Text)

	// A blank segment must not close the accumulator: the surrounding
	// same-speaker segments still merge across it.
	segments = []models.AsrSegment{
		seg(0.0, 1.0, "left."),
		seg(1.0, 2.0, " "),
		seg(1.5, 2.5, "Right"),
	}
	out, err = e.Fuse(segments, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "left. Right", out[0].Text)

	// All-blank input produces an empty transcript, not empty segments.
	out, err = e.Fuse([]models.AsrSegment{seg(0, 1, "  ")}, turns)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFuseGapThresholdBoundary(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{turn(0, 10, "X")}

	// Gap of 0.999s merges.
	out, err := e.Fuse([]models.AsrSegment{
		seg(0.0, 2.0, "first."),
		seg(2.999, 4.0, "Second"),
	}, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "first. Second", out[0].Text)
	assert.Equal(t, 0.0, out[0].Start)
	assert.Equal(t, 4.0, out[0].End)

	// Gap of exactly 1.0s does not merge.
	out, err = e.Fuse([]models.AsrSegment{
		seg(0.0, 2.0, "first."),
		seg(3.0, 4.0, "Second"),
	}, turns)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first.", out[0].Text)
	assert.Equal(t, "Second", out[1].Text)
}

func TestFuseSpeakerChangeSplits(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{
		turn(0.0, 1.9, "A"),
		turn(1.9, 4.0, "B"),
	}
	out, err := e.Fuse([]models.AsrSegment{
		seg(0.0, 1.0, "hi there"), // center 0.5 -> A
		seg(1.1, 3.0, "hi back"),  // center 2.05 -> B
	}, turns)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Speaker)
	assert.Equal(t, "B", out[1].Speaker)
}

func TestFuseWordBoundaryConcatenation(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{turn(0, 10, "S1")}

	// Both boundary characters alphabetic: mid-word split, no space inserted.
	out, err := e.Fuse([]models.AsrSegment{
		seg(0.0, 1.0, "hel"),
		seg(1.0, 2.0, "lo world"),
	}, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hello world", out[0].Text)

	// Punctuation boundary: space inserted, next text left-trimmed.
	out, err = e.Fuse([]models.AsrSegment{
		seg(0.0, 1.0, "hello."),
		seg(1.0, 2.0, "  World"),
	}, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hello. World", out[0].Text)
}

func TestFuseMergesWordLists(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{turn(0, 10, "S1")}
	segments := []models.AsrSegment{
		{Start: 0, End: 1, Text: "good", Words: []models.Word{{Word: "good", Start: 0, End: 1}}},
		{Start: 1, End: 2, Text: " morning", Words: []models.Word{{Word: "morning", Start: 1, End: 2}}},
	}

	out, err := e.Fuse(segments, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Words, 2)
	assert.Equal(t, "good", out[0].Words[0].Word)
	assert.Equal(t, "morning", out[0].Words[1].Word)
}

func TestFuseUnknownSpeakerFallback(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{turn(0.0, 1.0, "A")}

	// Center 5.0 is covered by no turn.
	out, err := e.Fuse([]models.AsrSegment{seg(4.5, 5.5, "orphan")}, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, UnknownSpeaker, out[0].Speaker)

	// UNKNOWN labels never inflate the diarizer's speaker count.
	assert.Equal(t, 1, NumSpeakers(turns))
	assert.Equal(t, 0, NumSpeakers(nil))
}

func TestFuseOverlappingTurnsFirstMatchWins(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{
		turn(0.0, 5.0, "A"),
		turn(0.0, 5.0, "B"),
	}
	out, err := e.Fuse([]models.AsrSegment{seg(1.0, 2.0, "both talking")}, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].Speaker)
}

func TestFuseEndToEndScenario(t *testing.T) {
	e := NewEngine()
	segments := []models.AsrSegment{
		seg(0.0, 1.0, "hel"),
		seg(1.0, 2.0, "lo"),
		seg(2.0, 3.0, "world"),
	}
	turns := []models.SpeakerTurn{
		turn(0.0, 2.5, "A"),
		turn(2.5, 5.0, "B"),
	}

	// Centers computed explicitly: 0.5 -> A, 1.5 -> A, and 2.5 sits exactly on
	// turn A's end; a turn contains its own end, and the first containing turn
	// wins, so the third segment is A as well.
	out, err := e.Fuse(segments, turns)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "helloworld", out[0].Text)
	assert.Equal(t, 0.0, out[0].Start)
	assert.Equal(t, 3.0, out[0].End)
	assert.Equal(t, "A", out[0].Speaker)
	assert.Equal(t, 2, NumSpeakers(turns))
}

func TestFuseNoConsecutiveMergeableOutput(t *testing.T) {
	e := NewEngine()
	turns := []models.SpeakerTurn{turn(0, 100, "S1")}
	segments := []models.AsrSegment{
		seg(0.0, 1.0, "a."),
		seg(1.2, 2.0, "b."),
		seg(4.0, 5.0, "c."),
		seg(5.1, 6.0, "d."),
	}

	out, err := e.Fuse(segments, turns)
	require.NoError(t, err)
	for i := 1; i < len(out); i++ {
		if out[i].Speaker == out[i-1].Speaker {
			assert.GreaterOrEqual(t, out[i].Start-out[i-1].End, DefaultMaxGap)
		}
	}
}
