package audioconv

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV renders mono samples at sampleRate as a 16-bit PCM WAV file.
func EncodeWAV(pcm []float32, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("audioconv: no samples")
	}
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           toPCM16(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audioconv: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audioconv: finish wav: %w", err)
	}
	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("audioconv: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audioconv: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
