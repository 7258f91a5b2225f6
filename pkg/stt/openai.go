package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"speechcmd/pkg/audioconv"
)

// OpenAI uploads the clip to the audio transcription endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	opt    Options
}

// NewOpenAI wraps client. An empty model selects whisper-1.
func NewOpenAI(client openai.Client, model string, opt Options) *OpenAI {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &OpenAI{client: client, model: model, opt: opt}
}

func (o *OpenAI) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", ErrNoAudio
	}
	clip, err := audioconv.EncodeWAV(pcm, audioconv.SampleRate)
	if err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(clip), "clip.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if o.opt.Language != "" && o.opt.Language != "auto" {
		params.Language = openai.String(o.opt.Language)
	}
	if o.opt.InitialPrompt != "" {
		params.Prompt = openai.String(o.opt.InitialPrompt)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stt: openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
