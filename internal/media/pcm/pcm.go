// Package pcm holds the in-process sample work revoice does on WAV files:
// decoding to mono floating point, mixing, fades, peak gain, tone synthesis
// and 16-bit encoding. Everything else about audio is left to ffmpeg.
package pcm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrSilent is returned when a gain operation targets audio with no signal.
var ErrSilent = errors.New("audio is silent")

// Format tags from the WAV fmt chunk.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// chunkFrames is how many frames Read and Write move through go-audio at a
// time, so a full-length track is only ever held once.
const chunkFrames = 8192

// Track is mono audio with samples in [-1, 1]. Samples are float32 to keep
// feature-length tracks at four bytes a frame.
type Track struct {
	SampleRate int
	Samples    []float32
}

// Silence returns a zeroed track of the given length.
func Silence(sampleRate int, frames int) Track {
	return Track{SampleRate: sampleRate, Samples: make([]float32, max(frames, 0))}
}

// Duration returns the track length in seconds.
func (t Track) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(len(t.Samples)) / float64(t.SampleRate)
}

// Read decodes an integer PCM or 32-bit IEEE float WAV file, downmixing
// every channel to mono.
func Read(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Track{}, fmt.Errorf("%s: not a valid wav file", path)
	}
	sample, err := sampleFunc(dec.WavAudioFormat, int(dec.BitDepth))
	if err != nil {
		return Track{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := dec.FwdToPCM(); err != nil || dec.PCMChunk == nil {
		return Track{}, fmt.Errorf("%s: pcm data not found", path)
	}
	channels := max(int(dec.NumChans), 1)
	frameBytes := int64(channels * ((int(dec.BitDepth)-1)/8 + 1))
	samples := make([]float32, 0, dec.PCMLen()/frameBytes)

	buf := &audio.IntBuffer{Data: make([]int, chunkFrames*channels)}
	var (
		sum float64
		ch  int
	)
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return Track{}, fmt.Errorf("%s: decode: %w", path, err)
		}
		if n == 0 {
			break
		}
		// Frames may straddle buffer boundaries, so the channel index carries over.
		for _, v := range buf.Data[:n] {
			sum += sample(v)
			ch++
			if ch == channels {
				samples = append(samples, float32(sum/float64(channels)))
				sum, ch = 0, 0
			}
		}
	}
	return Track{SampleRate: int(dec.SampleRate), Samples: samples}, nil
}

// sampleFunc maps one decoded go-audio value to [-1, 1]. go-audio hands
// 32-bit samples over as raw int32 bits whatever the format tag says, so
// float data is reinterpreted rather than scaled.
func sampleFunc(format uint16, bitDepth int) (func(int) float64, error) {
	switch format {
	case formatIEEEFloat:
		if bitDepth != 32 {
			return nil, fmt.Errorf("unsupported %d-bit float wav", bitDepth)
		}
		return func(v int) float64 {
			return float64(math.Float32frombits(uint32(int32(v))))
		}, nil
	case formatPCM, formatExtensible:
	default:
		return nil, fmt.Errorf("unsupported wav format tag %#x", format)
	}
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned.
		return func(v int) float64 { return (float64(v) - 128) / 128 }, nil
	case 16, 24, 32:
		scale := math.Pow(2, float64(bitDepth-1))
		return func(v int) float64 { return float64(v) / scale }, nil
	}
	return nil, fmt.Errorf("unsupported %d-bit pcm wav", bitDepth)
}

// Write encodes t as a mono 16-bit PCM WAV, clipping samples to [-1, 1].
func Write(path string, t Track) error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("write %s: invalid sample rate %d", path, t.SampleRate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, t.SampleRate, 16, 1, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: t.SampleRate, NumChannels: 1},
		Data:           make([]int, 0, chunkFrames),
		SourceBitDepth: 16,
	}
	// An empty track still gets one write so the header lands.
	for start := 0; start == 0 || start < len(t.Samples); start += chunkFrames {
		end := min(start+chunkFrames, len(t.Samples))
		buf.Data = buf.Data[:0]
		for _, s := range t.Samples[start:end] {
			buf.Data = append(buf.Data, int(math.Round(clip(float64(s))*math.MaxInt16)))
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case math.IsNaN(v):
		return 0
	}
	return v
}

// Tone renders a sine wave. Short linear ramps at both ends avoid clicks.
func Tone(sampleRate int, seconds, hz, amplitude float64) Track {
	frames := int(math.Round(float64(sampleRate) * seconds))
	t := Silence(sampleRate, frames)
	for i := range t.Samples {
		t.Samples[i] = float32(amplitude * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate)))
	}
	t.Fade(5)
	return t
}

// Resample converts t to rate with linear interpolation. Speech clips only
// move between common model rates, where this is inaudible next to codec loss.
func (t Track) Resample(rate int) Track {
	if rate <= 0 || t.SampleRate == rate || len(t.Samples) == 0 {
		return Track{SampleRate: max(rate, t.SampleRate), Samples: append([]float32(nil), t.Samples...)}
	}
	ratio := float64(t.SampleRate) / float64(rate)
	frames := int(math.Round(float64(len(t.Samples)) / ratio))
	out := make([]float32, frames)
	last := len(t.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = t.Samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = t.Samples[j]*(1-frac) + t.Samples[j+1]*frac
	}
	return Track{SampleRate: rate, Samples: out}
}

// Fade applies linear fade-in and fade-out of ms milliseconds in place. The
// ramp is shortened to half the track when the track is shorter than two ramps.
func (t Track) Fade(ms int) {
	n := ms * t.SampleRate / 1000
	if n <= 0 || len(t.Samples) == 0 {
		return
	}
	n = min(n, len(t.Samples)/2)
	for i := 0; i < n; i++ {
		g := float32(i) / float32(n)
		t.Samples[i] *= g
		t.Samples[len(t.Samples)-1-i] *= g
	}
}

// MixAt adds src into t starting at frame offset. Samples past the end of t
// are dropped; clipping happens on Write.
func (t Track) MixAt(src Track, offset int) {
	for i, s := range src.Samples {
		j := offset + i
		if j < 0 {
			continue
		}
		if j >= len(t.Samples) {
			return
		}
		t.Samples[j] += s
	}
}

// Zero silences frames in [from, to).
func (t Track) Zero(from, to int) {
	from = max(from, 0)
	to = min(to, len(t.Samples))
	for i := from; i < to; i++ {
		t.Samples[i] = 0
	}
}

// Peak returns the largest absolute sample value.
func (t Track) Peak() float64 {
	var peak float64
	for _, s := range t.Samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}

// PeakDBFS returns the peak level in dBFS, or -Inf for silence.
func (t Track) PeakDBFS() float64 {
	peak := t.Peak()
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(peak)
}

// NormalizePeak scales t in place so its peak sits at targetDBFS and returns
// the applied gain in dB.
func (t Track) NormalizePeak(targetDBFS float64) (float64, error) {
	current := t.PeakDBFS()
	if math.IsInf(current, -1) {
		return 0, ErrSilent
	}
	gainDB := targetDBFS - current
	factor := float32(math.Pow(10, gainDB/20))
	for i := range t.Samples {
		t.Samples[i] *= factor
	}
	return gainDB, nil
}
