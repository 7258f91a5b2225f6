package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrNoSpeech is returned when a capture ends without any frame above the silence threshold.
var ErrNoSpeech = errors.New("audio: no speech detected")

// SampleRate is the capture rate expected by the speech engines.
const SampleRate = 16000

// RecorderConfig controls end-pointing of a single utterance.
type RecorderConfig struct {
	FrameSize       int           // samples per read, 320 = 20ms
	SilenceRMS      float64       // frames below this level count as silence
	SilenceDuration time.Duration // trailing silence that ends the utterance
	MaxLength       time.Duration // hard cap on one capture
	StartTimeout    time.Duration // give up when nobody starts talking
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		FrameSize:       320,
		SilenceRMS:      0.015,
		SilenceDuration: 600 * time.Millisecond,
		MaxLength:       10 * time.Second,
		StartTimeout:    5 * time.Second,
	}
}

// Recorder captures mono float32 PCM from the default input device.
type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = def.SilenceRMS
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = def.SilenceDuration
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record captures one utterance: it waits for speech, keeps recording while
// speech continues and stops after the configured trailing silence.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, r.cfg.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	ep := newEndpointer(r.cfg)
	for !ep.done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		ep.push(buf)
	}

	if !ep.speaking {
		return nil, ErrNoSpeech
	}
	return ep.out, nil
}

// endpointer decides which frames belong to an utterance.
type endpointer struct {
	cfg           RecorderConfig
	frameDur      time.Duration
	out           []float32
	speaking      bool
	elapsed       time.Duration
	trailingQuiet time.Duration
	finished      bool
}

func newEndpointer(cfg RecorderConfig) *endpointer {
	return &endpointer{
		cfg:      cfg,
		frameDur: time.Duration(cfg.FrameSize) * time.Second / SampleRate,
		out:      make([]float32, 0, SampleRate*3),
	}
}

func (e *endpointer) push(frame []float32) {
	e.elapsed += e.frameDur

	if frameRMS(frame) > e.cfg.SilenceRMS {
		e.speaking = true
		e.trailingQuiet = 0
		e.out = append(e.out, frame...)
	} else if e.speaking {
		e.trailingQuiet += e.frameDur
		e.out = append(e.out, frame...)
		if e.trailingQuiet >= e.cfg.SilenceDuration {
			e.finished = true
		}
	}

	if e.elapsed >= e.cfg.MaxLength {
		e.finished = true
	}
	if !e.speaking && e.elapsed >= e.cfg.StartTimeout {
		e.finished = true
	}
}

func (e *endpointer) done() bool {
	return e.finished
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
