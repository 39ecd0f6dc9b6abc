package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes a mono 16-bit PCM file holding a sine wave at hz. A zero hz
// writes digital silence.
func WriteWAV(t testing.TB, path string, sampleRate int, seconds, hz float64) {
	t.Helper()
	WriteWAVAmplitude(t, path, sampleRate, seconds, hz, 0.5)
}

// WriteWAVAmplitude is WriteWAV with an explicit peak amplitude in [0, 1].
func WriteWAVAmplitude(t testing.TB, path string, sampleRate int, seconds, hz, amplitude float64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	frames := int(math.Round(float64(sampleRate) * seconds))
	data := make([]int, frames)
	if hz > 0 {
		for i := range data {
			v := amplitude * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate))
			data[i] = int(v * math.MaxInt16)
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

// ReadWAV decodes a PCM file and returns its samples and format.
func ReadWAV(t testing.TB, path string) *audio.IntBuffer {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return buf
}
