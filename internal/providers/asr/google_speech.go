package asr

import (
	"context"
	"fmt"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/voiceflow/voiceflow/internal/models"
)

// GoogleSpeech is an alternative recognizer backed by Cloud Speech-to-Text,
// for deployments without a local whisper binary. Word time offsets are
// requested so fusion gets real per-segment timing.
type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, wavPath string, opts Options) (*Output, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}

	language := opts.Language
	if language == "" {
		language = "en-US"
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cloud speech recognize: %w", err)
	}

	out := &Output{Language: language}
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		seg := models.AsrSegment{Text: alt.Transcript}
		for i, w := range alt.Words {
			ws := w.StartTime.AsDuration().Seconds()
			we := w.EndTime.AsDuration().Seconds()
			if i == 0 {
				seg.Start = ws
			}
			seg.End = we
			seg.Words = append(seg.Words, models.Word{Word: w.Word, Start: ws, End: we})
		}
		if r.LanguageCode != "" {
			out.Language = r.LanguageCode
		}
		out.Segments = append(out.Segments, seg)
	}

	return out, nil
}
