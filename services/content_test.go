package services

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeechVoice(t *testing.T) {
	assert.Equal(t, openai.AudioSpeechNewParamsVoice("onyx"), speechVoice(AudioOptions{}))
	assert.Equal(t, openai.AudioSpeechNewParamsVoice("ash"), speechVoice(AudioOptions{Voice: "ash"}))
}

func TestDecodeModelJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}

	require.NoError(t, DecodeModelJSON(`{"name": "Mira"}`, &out))
	assert.Equal(t, "Mira", out.Name)
}

func TestDecodeModelJSONCodeFence(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}

	raw := "```json\n{\"name\": \"Mira\"}\n```"
	require.NoError(t, DecodeModelJSON(raw, &out))
	assert.Equal(t, "Mira", out.Name)
}

func TestDecodeModelJSONDoubledQuotes(t *testing.T) {
	var out struct {
		Text string `json:"text"`
	}

	// Some responses wrap string values in a second pair of quotes.
	raw := `{"text": ""Run for the docks""}`
	require.NoError(t, DecodeModelJSON(raw, &out))
	assert.Equal(t, "Run for the docks", out.Text)
}

func TestDecodeModelJSONRejectsGarbage(t *testing.T) {
	var out map[string]any

	err := DecodeModelJSON("here is your JSON: {broken", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentFormat)
}
