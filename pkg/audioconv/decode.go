// Package audioconv turns audio files into 16 kHz mono float32 PCM, the
// input every transcriber takes, and back into WAV for upload.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// SampleRate is the output rate of every decoder.
const SampleRate = 16000

var ErrUnsupported = errors.New("audioconv: unsupported format")

type Options struct {
	MaxSamples int // 0 = no limit
}

type decoder func(r io.ReadSeeker) ([]float32, error)

// decoders by container, tried in order.
var decoders = map[string][]decoder{
	"wav": {decodeWAV},
	"mp3": {decodeMP3},
	"ogg": {decodeOggVorbis, decodeOggOpus},
}

var extensions = map[string]string{
	".wav":  "wav",
	".mp3":  "mp3",
	".ogg":  "ogg",
	".oga":  "ogg",
	".opus": "ogg",
}

// DecodeFile reads path and returns 16 kHz mono samples in [-1, 1].
func DecodeFile(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audioconv: %w", err)
	}
	defer f.Close()

	format, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		format = sniff(f)
	}
	return Decode(ctx, f, format, opt)
}

// Decode decodes r as format ("wav", "mp3" or "ogg").
func Decode(ctx context.Context, r io.ReadSeeker, format string, opt Options) ([]float32, error) {
	chain, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: wav/mp3/ogg-vorbis/ogg-opus)", ErrUnsupported, format)
	}

	var errs []error
	for _, dec := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("audioconv: rewind: %w", err)
		}
		x, err := dec(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
			x = x[:opt.MaxSamples]
		}
		return x, nil
	}
	return nil, fmt.Errorf("audioconv: cannot decode %s: %w", format, errors.Join(errs...))
}

// sniff guesses the container from the magic bytes and rewinds f.
func sniff(f io.ReadSeeker) string {
	br := bufio.NewReader(f)
	magic, _ := br.Peek(4)
	_, _ = f.Seek(0, io.SeekStart)

	switch {
	case string(magic) == "RIFF":
		return "wav"
	case string(magic) == "OggS":
		return "ogg"
	case len(magic) >= 3 && string(magic[:3]) == "ID3":
		return "mp3"
	case len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return "unknown"
	}
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := normalize(pb.Data, bd)

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return toMono16k(x, ch, sr), nil
}

func decodeMP3(r io.ReadSeeker) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}
	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	// go-mp3 always yields 16-bit stereo
	return toMono16k(normalize(ints, 16), 2, sr), nil
}

func decodeOggVorbis(r io.ReadSeeker) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	return toMono16k(pcm, format.Channels, format.SampleRate), nil
}

func decodeOggOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// int16 PCM at 48 kHz, roughly half a second per read
	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			pcm48 = append(pcm48, normalize(buf[:n*ch], 16)...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(pcm48) == 0 {
		return nil, errors.New("empty ogg/opus stream")
	}
	return toMono16k(pcm48, ch, 48000), nil
}
