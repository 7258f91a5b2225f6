package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Cue plays a short mp3 when the recogniser becomes ready for speech.
type Cue struct {
	path string

	once    sync.Once
	initErr error
}

func NewCue(path string) *Cue {
	return &Cue{path: path}
}

// Play blocks until the sound has finished. An empty path disables the cue.
func (c *Cue) Play() error {
	if c == nil || c.path == "" {
		return nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open cue: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	c.once.Do(func() {
		c.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
