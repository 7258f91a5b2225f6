package recognizer

import (
	"context"
	"errors"
	log "log/slog"

	"speechcmd/internal/audio"
	"speechcmd/pkg/audioconv"
)

// Transcriber turns 16 kHz mono PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Capturer records one utterance.
type Capturer interface {
	Record(ctx context.Context) ([]float32, error)
}

// Ducker lowers other audio streams while we listen.
type Ducker interface {
	Duck(ctx context.Context, factor float64) error
	Restore(ctx context.Context) error
}

// Microphone records from the default input device and transcribes the clip.
type Microphone struct {
	Capture    Capturer
	STT        Transcriber
	Ducker     Ducker // optional
	DuckFactor float64
}

func (m *Microphone) Recognize(ctx context.Context) ([]string, error) {
	if m.Ducker != nil {
		factor := m.DuckFactor
		if factor <= 0 {
			factor = 0.3
		}
		if err := m.Ducker.Duck(ctx, factor); err != nil {
			log.Warn("Failed to duck audio", "err", err)
		}
		defer func() {
			if err := m.Ducker.Restore(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to restore audio", "err", err)
			}
		}()
	}

	pcm, err := m.Capture.Record(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrNoSpeech) {
			return nil, &Error{Code: ErrorSpeechTimeout, Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Code: ErrorAudio, Err: err}
	}
	log.Debug("Recorded", "samples", len(pcm))

	return transcribe(ctx, m.STT, pcm)
}

// File transcribes an audio file instead of live input.
type File struct {
	Path string
	STT  Transcriber
	// MaxSamples caps the decoded clip, 0 for no limit.
	MaxSamples int
}

func (f *File) Recognize(ctx context.Context) ([]string, error) {
	pcm, err := audioconv.DecodeFile(ctx, f.Path, audioconv.Options{MaxSamples: f.MaxSamples})
	if err != nil {
		return nil, &Error{Code: ErrorAudio, Err: err}
	}
	log.Debug("Decoded file", "path", f.Path, "samples", len(pcm))

	return transcribe(ctx, f.STT, pcm)
}

func transcribe(ctx context.Context, t Transcriber, pcm []float32) ([]string, error) {
	text, err := t.Transcribe(ctx, pcm)
	if err != nil {
		return nil, Classify(err)
	}
	log.Info("Transcribed", "text", text)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
