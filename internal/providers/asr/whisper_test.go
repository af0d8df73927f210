package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhisperJSON(t *testing.T) {
	data := []byte(`{
		"language": "en",
		"segments": [
			{"start": 0.0, "end": 1.2, "text": " Hello", "words": [
				{"word": "Hello", "start": 0.0, "end": 1.2}
			]},
			{"start": 1.2, "end": 2.0, "text": " world"}
		]
	}`)

	out, err := parseWhisperJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "en", out.Language)
	require.Len(t, out.Segments, 2)
	assert.Equal(t, " Hello", out.Segments[0].Text)
	require.Len(t, out.Segments[0].Words, 1)
	assert.Equal(t, "Hello", out.Segments[0].Words[0].Word)
	assert.Empty(t, out.Segments[1].Words)
}

func TestParseWhisperJSONSortsSegments(t *testing.T) {
	data := []byte(`{"language":"en","segments":[
		{"start": 5.0, "end": 6.0, "text": "b"},
		{"start": 0.0, "end": 1.0, "text": "a"}
	]}`)

	out, err := parseWhisperJSON(data)
	require.NoError(t, err)
	require.Len(t, out.Segments, 2)
	assert.Equal(t, "a", out.Segments[0].Text)
	assert.Equal(t, "b", out.Segments[1].Text)
}

func TestParseWhisperJSONDefaultsLanguage(t *testing.T) {
	out, err := parseWhisperJSON([]byte(`{"segments":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "auto", out.Language)
	assert.Empty(t, out.Segments)
}

func TestParseWhisperJSONRejectsMalformed(t *testing.T) {
	_, err := parseWhisperJSON([]byte(`{"segments": [`))
	assert.Error(t, err)

	_, err = parseWhisperJSON([]byte(`{"language": "en"}`))
	assert.Error(t, err)
}

func TestNewWhisperCLIRequiresBinaryAndModel(t *testing.T) {
	_, err := NewWhisperCLI("/no/such/bin", "/no/such/model.bin", "")
	assert.Error(t, err)
}
