package audioconv

import "math"

// normalize scales signed integer samples of the given bit depth to [-1, 1].
func normalize[T int | int16](data []T, bits int) []float32 {
	full := float32(int64(1) << (bits - 1))
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = max(-1, min(float32(v)/full, 1))
	}
	return out
}

// toPCM16 is the inverse of normalize for 16-bit output.
func toPCM16(data []float32) []int {
	out := make([]int, len(data))
	for i, v := range data {
		out[i] = int(math.Round(float64(max(-1, min(v, 1))) * math.MaxInt16))
	}
	return out
}

// toMono16k folds interleaved samples to one channel and resamples them to
// SampleRate with linear interpolation, in a single pass.
func toMono16k(samples []float32, channels, rate int) []float32 {
	channels = max(channels, 1)
	frames := len(samples) / channels
	if frames == 0 {
		return []float32{}
	}

	mono := func(i int) float32 {
		i = min(i, frames-1)
		if channels == 1 {
			return samples[i]
		}
		var sum float32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += s
		}
		return sum / float32(channels)
	}

	if rate <= 0 || rate == SampleRate {
		out := make([]float32, frames)
		for i := range out {
			out[i] = mono(i)
		}
		return out
	}

	step := float64(rate) / SampleRate
	out := make([]float32, int(math.Ceil(float64(frames)/step)))
	for i := range out {
		pos := float64(i) * step
		at := int(pos)
		frac := float32(pos - float64(at))
		out[i] = mono(at)*(1-frac) + mono(at+1)*frac
	}
	return out
}
