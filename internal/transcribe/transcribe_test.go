package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/services"
	"revoice/internal/transcript"
)

type fakeBackend struct {
	name     string
	segments []transcript.Segment
	err      error
	calls    int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Transcribe(context.Context, string) ([]transcript.Segment, error) {
	f.calls++
	return f.segments, f.err
}

func TestChainFallsThroughOnError(t *testing.T) {
	broken := &fakeBackend{name: "whisper", err: errors.New("not installed")}
	good := &fakeBackend{name: "whisperx", segments: []transcript.Segment{{Start: 0, End: 1, Text: " hello "}}}
	chain := NewChain(0, logging.NewNop(), broken, good)

	segments, err := chain.Transcribe(context.Background(), "audio.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "hello" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
	if chain.Used() != "whisperx" {
		t.Fatalf("Used = %q, want whisperx", chain.Used())
	}
}

func TestChainFallsThroughOnEmptyResult(t *testing.T) {
	empty := &fakeBackend{name: "whisper", segments: []transcript.Segment{{Start: 0, End: 1, Text: "   "}}}
	good := &fakeBackend{name: "openai", segments: []transcript.Segment{{Start: 1, End: 2, Text: "hi"}}}
	chain := NewChain(0, logging.NewNop(), empty, good)

	segments, err := chain.Transcribe(context.Background(), "audio.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 1 || chain.Used() != "openai" {
		t.Fatalf("expected openai result, got %+v from %q", segments, chain.Used())
	}
}

func TestChainAggregatesFailures(t *testing.T) {
	a := &fakeBackend{name: "whisper", err: errors.New("boom")}
	b := &fakeBackend{name: "openai"}
	chain := NewChain(0, logging.NewNop(), a, b)

	_, err := chain.Transcribe(context.Background(), "audio.wav")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrPipeline) {
		t.Fatalf("expected pipeline marker, got %v", err)
	}
	if !errors.Is(err, transcript.ErrEmpty) {
		t.Fatalf("expected empty result in aggregate, got %v", err)
	}
	if !strings.Contains(err.Error(), "whisper: boom") {
		t.Fatalf("expected whisper failure in message, got %v", err)
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &fakeBackend{name: "whisper", err: context.Canceled}
	b := &fakeBackend{name: "openai", segments: []transcript.Segment{{Start: 0, End: 1, Text: "x"}}}

	_, err := NewChain(0, logging.NewNop(), a, b).Transcribe(ctx, "audio.wav")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.calls != 0 {
		t.Fatal("second backend should not run after cancellation")
	}
}

func TestChainName(t *testing.T) {
	chain := NewChain(0, nil, &fakeBackend{name: "whisper"}, &fakeBackend{name: "openai"})
	if chain.Name() != "whisper+openai" {
		t.Fatalf("Name = %q", chain.Name())
	}
}

const whisperJSON = `{"language":"en","segments":[{"id":0,"start":0.0,"end":1.5,"text":" Hello there."},{"id":1,"start":1.5,"end":3.0,"text":" General Kenobi."}]}`

func writeOutputRunner(t *testing.T, outDir, audio string, seen *[]string) CommandRunner {
	t.Helper()
	return func(_ context.Context, name string, args ...string) error {
		*seen = append([]string{name}, args...)
		base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
		return os.WriteFile(filepath.Join(outDir, base+".json"), []byte(whisperJSON), 0o644)
	}
}

func TestWhisperBackend(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "whisper")
	audio := "/work/original_audio.wav"
	var seen []string

	w := NewWhisper("", Options{Model: "small", Device: "auto", BeamSize: 5, Language: "eng"}, outDir)
	w.WithCommandRunner(writeOutputRunner(t, outDir, audio, &seen))

	segments, err := w.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 || segments[1].Text != " General Kenobi." {
		t.Fatalf("unexpected segments: %+v", segments)
	}

	if seen[0] != "whisper" || seen[1] != audio {
		t.Fatalf("unexpected command: %v", seen)
	}
	for _, want := range [][2]string{
		{"--model", "small"},
		{"--device", "cpu"},
		{"--beam_size", "5"},
		{"--language", "en"},
		{"--output_format", "json"},
		{"--output_dir", outDir},
		{"--fp16", "False"},
	} {
		i := slices.Index(seen, want[0])
		if i < 0 || i+1 >= len(seen) || seen[i+1] != want[1] {
			t.Fatalf("expected %s %s in %v", want[0], want[1], seen)
		}
	}
}

func TestWhisperBackendMissingOutput(t *testing.T) {
	w := NewWhisper("whisper", Options{}, t.TempDir())
	w.WithCommandRunner(func(context.Context, string, ...string) error { return nil })
	if _, err := w.Transcribe(context.Background(), "clip.wav"); err == nil {
		t.Fatal("expected error when whisper wrote no output")
	}
}

func TestWhisperXBackend(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "whisperx")
	audio := "/work/clean_audio.wav"
	var seen []string

	w := NewWhisperX(Options{Device: "cuda", BeamSize: 4}, "hf-token", outDir)
	w.WithCommandRunner(writeOutputRunner(t, outDir, audio, &seen))

	segments, err := w.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if seen[0] != UVXCommand {
		t.Fatalf("expected uvx, got %q", seen[0])
	}
	joined := strings.Join(seen, " ")
	for _, want := range []string{
		"--index-url " + CUDAIndexURL,
		"whisperx " + audio,
		"--model " + DefaultWhisperXModel,
		"--beam_size 4",
		"--vad_method pyannote --hf_token hf-token",
		"--device cuda",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestWhisperXBackendCPU(t *testing.T) {
	w := NewWhisperX(Options{Device: "cpu"}, "", t.TempDir())
	joined := strings.Join(w.buildArgs("a.wav"), " ")
	if !strings.Contains(joined, "--vad_method silero") {
		t.Fatalf("expected silero VAD without token: %q", joined)
	}
	if !strings.Contains(joined, "--device cpu --compute_type float32") {
		t.Fatalf("expected cpu device args: %q", joined)
	}
	if strings.Contains(joined, "--hf_token") {
		t.Fatalf("token should not be passed: %q", joined)
	}
}

func TestOpenAIBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			http.Error(w, "bad format "+got, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":2.0,"text":"Hi. Bye.",` +
			`"segments":[{"id":0,"start":0.0,"end":1.0,"text":" Hi."},{"id":1,"start":1.0,"end":2.0,"text":" Bye."}]}`))
	}))
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := NewOpenAI("sk-test", srv.URL+"/v1", "", Options{})
	segments, err := backend.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 || segments[1].Start != 1.0 || segments[1].Text != " Bye." {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestOpenAIBackendRequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "", "", Options{}).Transcribe(context.Background(), "audio.wav")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		backend string
		want    string
	}{
		{"auto", "whisper+whisperx+openai"},
		{"whisper", "whisper"},
		{"whisperx", "whisperx"},
		{"openai", "openai"},
	}
	for _, tt := range tests {
		cfg.Transcription.Backend = tt.backend
		chain, err := FromConfig(&cfg, "cpu", t.TempDir(), logging.NewNop())
		if err != nil {
			t.Fatalf("%s: %v", tt.backend, err)
		}
		if chain.Name() != tt.want {
			t.Fatalf("%s: chain = %q, want %q", tt.backend, chain.Name(), tt.want)
		}
	}

	cfg.Transcription.Backend = "vosk"
	if _, err := FromConfig(&cfg, "cpu", t.TempDir(), logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
