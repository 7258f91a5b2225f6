// Package stt converts 16 kHz mono PCM into text.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

var (
	ErrNoAudio    = errors.New("stt: no audio samples provided")
	ErrNoLanguage = errors.New("stt: language not supported")
)

type Options struct {
	Language      string // e.g. "auto", "en", "ru"
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // biases decoding toward these words
	BeamSize      int    // 0 = greedy
	SplitOnWord   bool
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string // detected or forced
}

// Whisper runs a local whisper.cpp model. A model serves one transcription
// at a time.
type Whisper struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func NewWhisper(modelPath string, opt Options) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("stt: empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("stt: load model: %w", err)
	}
	return &Whisper{model: m, opt: opt}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

// Transcribe returns the text of pcm using the options given at construction.
func (w *Whisper) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	res, err := w.TranscribePCM(ctx, pcm, w.opt)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// pcm16k must be mono @ 16 kHz, float32 in [-1, 1]
func (w *Whisper) TranscribePCM(ctx context.Context, pcm16k []float32, opt Options) (Result, error) {
	if w.model == nil {
		return Result{}, errors.New("stt: nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, ErrNoAudio
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("stt: new context: %w", err)
	}

	if opt.Language == "" {
		opt.Language = "auto"
	}
	if err := wctx.SetLanguage(opt.Language); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrNoLanguage, opt.Language, err)
	}

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if opt.BeamSize > 0 {
		wctx.SetBeamSize(opt.BeamSize)
	}
	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("stt: process: %w", err)
	}

	var (
		segs  []Segment
		texts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("stt: next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		texts = append(texts, strings.TrimSpace(s.Text))
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{
		Text:     strings.TrimSpace(strings.Join(texts, " ")),
		Segments: segs,
		Language: lang,
	}, nil
}
