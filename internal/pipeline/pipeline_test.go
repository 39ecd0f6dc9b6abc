package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"revoice/internal/config"
	"revoice/internal/fileutil"
	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/media/ffprobe"
	"revoice/internal/media/pcm"
	"revoice/internal/services"
	"revoice/internal/synth"
	"revoice/internal/testsupport"
	"revoice/internal/transcribe"
	"revoice/internal/transcript"
	"revoice/internal/transcriptcache"
)

type fakeMedia struct {
	t         *testing.T
	calls     []string
	extractHz float64
	extracted int
}

func (m *fakeMedia) record(op string) { m.calls = append(m.calls, op) }

func (m *fakeMedia) ExtractAudio(_ context.Context, _ string, streamIndex int, output string) error {
	m.record("extract")
	m.extracted = streamIndex
	testsupport.WriteWAV(m.t, output, 16000, 3, m.extractHz)
	return nil
}

func (m *fakeMedia) Duration(_ context.Context, path string) (float64, error) {
	track, err := pcm.Read(path)
	if err != nil {
		return 0, err
	}
	return track.Duration(), nil
}

func (m *fakeMedia) Stretch(_ context.Context, input, output string, _ float64) error {
	m.record("stretch")
	return fileutil.CopyFile(input, output)
}

func (m *fakeMedia) Denoise(_ context.Context, input, output string, _ float64) error {
	m.record("denoise")
	return fileutil.CopyFile(input, output)
}

func (m *fakeMedia) TrimSilence(_ context.Context, input, output string, _ ffmpeg.SilenceOptions) error {
	m.record("trim")
	return fileutil.CopyFile(input, output)
}

func (m *fakeMedia) Finalize(_ context.Context, input, output string, _ ffmpeg.MasterOptions) error {
	m.record("finalize")
	return fileutil.CopyFile(input, output)
}

func (m *fakeMedia) ReplaceAudio(_ context.Context, _, audio, output string) error {
	m.record("replace")
	if _, err := os.Stat(audio); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("muxed"), 0o644)
}

func (m *fakeMedia) count(op string) int {
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

type fakeBackend struct {
	segments []transcript.Segment
	calls    int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Transcribe(context.Context, string) ([]transcript.Segment, error) {
	b.calls++
	return b.segments, nil
}

type toneSynth struct {
	t     *testing.T
	err   error
	texts []string
}

func (s *toneSynth) Synthesize(_ context.Context, req synth.Request) (synth.Result, error) {
	s.texts = append(s.texts, req.Text)
	if s.err != nil {
		return synth.Result{}, s.err
	}
	testsupport.WriteWAV(s.t, req.Output, 24000, 0.5, 330)
	return synth.Result{OutPath: req.Output}, nil
}

type harness struct {
	cfg     *config.Config
	media   *fakeMedia
	backend *fakeBackend
	synth   *toneSynth
	runner  *Runner
	dir     string
}

func newHarness(t *testing.T, cache TranscriptCache) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:   cfg,
		media: &fakeMedia{t: t, extractHz: 220},
		backend: &fakeBackend{segments: []transcript.Segment{
			{Start: 0, End: 1, Text: "Hello there."},
			{Start: 1.5, End: 2.5, Text: "General Kenobi."},
		}},
		synth: &toneSynth{t: t},
		dir:   testsupport.BaseDir(cfg),
	}
	deps := Dependencies{
		Media: h.media,
		Probe: func(context.Context, string) (ffprobe.Result, error) {
			return ffprobe.Result{Streams: []ffprobe.Stream{
				{Index: 0, CodecType: "video"},
				{Index: 1, CodecType: "audio", Channels: 2},
			}}, nil
		},
		Transcriber: func(string) (transcribe.Backend, error) { return h.backend, nil },
		Synthesizer: func(string) (synth.Synthesizer, error) { return h.synth, nil },
		Cache:       cache,
	}
	runner, err := New(cfg, deps, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.runner = runner
	return h
}

// writeVideo drops a placeholder container; the fakes never parse it.
func writeVideo(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) inputs(t *testing.T) RunOptions {
	t.Helper()
	video := filepath.Join(h.dir, "in", "clip.mp4")
	prompt := filepath.Join(h.dir, "in", "voice.wav")
	writeVideo(t, video)
	testsupport.WriteWAV(t, prompt, 24000, 6, 200)
	return RunOptions{
		InputVideo:  video,
		OutputVideo: filepath.Join(h.dir, "out", "clip.revoiced.mp4"),
		AudioPrompt: prompt,
	}
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	opts := h.inputs(t)

	summary, err := h.runner.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Segments != 2 || summary.TranscriptSource != "fake" || summary.Fallbacks != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	if summary.DialogueSeconds < 3.0 {
		t.Fatalf("dialogue track too short: %.3f", summary.DialogueSeconds)
	}
	if data, err := os.ReadFile(opts.OutputVideo); err != nil || string(data) != "muxed" {
		t.Fatalf("expected muxed output, got %q (%v)", data, err)
	}
	if h.media.extracted != 1 {
		t.Fatalf("expected audio stream 1 extracted, got %d", h.media.extracted)
	}
	if h.media.count("stretch") != 2 || h.media.count("finalize") != 1 || h.media.count("replace") != 1 {
		t.Fatalf("unexpected media calls: %v", h.media.calls)
	}
	if strings.Join(h.synth.texts, "|") != "Hello there.|General Kenobi." {
		t.Fatalf("unexpected synthesized texts: %v", h.synth.texts)
	}

	entries, err := os.ReadDir(h.cfg.Paths.WorkRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("workdir should be removed, found %d entries", len(entries))
	}
	if _, err := os.Stat(opts.OutputVideo + ".lock"); err != nil {
		t.Fatalf("lock file should stay in place: %v", err)
	}
	after := flock.New(opts.OutputVideo + ".lock")
	if ok, err := after.TryLock(); err != nil || !ok {
		t.Fatalf("lock should be released after the run: ok=%v err=%v", ok, err)
	}
	_ = after.Unlock()
}

func TestRunReusesLockFile(t *testing.T) {
	h := newHarness(t, nil)
	opts := h.inputs(t)
	if _, err := h.runner.Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first, err := os.Stat(opts.OutputVideo + ".lock")
	if err != nil {
		t.Fatal(err)
	}

	holder := flock.New(opts.OutputVideo + ".lock")
	if ok, err := holder.TryLock(); err != nil || !ok {
		t.Fatalf("lock failed: ok=%v err=%v", ok, err)
	}
	_, err = h.runner.Run(context.Background(), opts)
	_ = holder.Unlock()
	if !errors.Is(err, ErrOutputLocked) {
		t.Fatalf("expected ErrOutputLocked while the existing lock file is held, got %v", err)
	}

	if _, err := h.runner.Run(context.Background(), opts); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	again, err := os.Stat(opts.OutputVideo + ".lock")
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(first, again) {
		t.Fatal("lock file was replaced between runs")
	}
}

func TestRunWithTranscriptJSON(t *testing.T) {
	h := newHarness(t, nil)
	opts := h.inputs(t)
	opts.TranscriptJSON = filepath.Join(h.dir, "in", "transcript.json")
	opts.SaveTranscript = true
	opts.KeepWorkdir = true
	h.cfg.Alignment.MaxSegmentSeconds = 2

	long := []transcript.Segment{{Start: 0, End: 4, Text: "one two three four five six seven eight"}}
	if err := transcript.Write(opts.TranscriptJSON, long); err != nil {
		t.Fatal(err)
	}

	summary, err := h.runner.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.TranscriptSource != SourceFile {
		t.Fatalf("source = %q, want file", summary.TranscriptSource)
	}
	if h.media.count("extract") != 0 || h.backend.calls != 0 {
		t.Fatal("supplied transcript should skip extraction and transcription")
	}
	if summary.Segments < 2 {
		t.Fatalf("long segment should be split, got %d segments", summary.Segments)
	}

	saved, err := transcript.Load(opts.OutputVideo + ".transcript.json")
	if err != nil {
		t.Fatalf("saved transcript: %v", err)
	}
	if len(saved) != summary.Segments {
		t.Fatalf("saved %d segments, summary says %d", len(saved), summary.Segments)
	}
	if again := transcript.SplitLong(saved, h.cfg.Alignment.MaxSegmentSeconds); len(again) != len(saved) {
		t.Fatalf("reloading the saved transcript split it again: %d -> %d segments", len(saved), len(again))
	}

	preserved := opts.OutputVideo + ".workdir"
	if summary.PreservedWorkdir != preserved {
		t.Fatalf("PreservedWorkdir = %q", summary.PreservedWorkdir)
	}
	for _, name := range []string{"final_dialogue.wav", "segment_0000_raw.wav", "segment_0000_aligned.wav"} {
		if _, err := os.Stat(filepath.Join(preserved, name)); err != nil {
			t.Fatalf("expected %s in preserved workdir: %v", name, err)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	h := newHarness(t, nil)
	opts := h.inputs(t)
	opts.AudioPrompt = filepath.Join(h.dir, "missing.wav")

	_, err := h.runner.Run(context.Background(), opts)
	if !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("expected ErrInputNotFound, got %v", err)
	}
	if services.ExitCode(err) != 3 {
		t.Fatalf("exit code = %d, want 3", services.ExitCode(err))
	}
}

func TestRunUsesTranscriptCache(t *testing.T) {
	store, err := transcriptcache.Open(context.Background(), filepath.Join(t.TempDir(), "transcripts.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	h := newHarness(t, store)
	opts := h.inputs(t)

	if _, err := h.runner.Run(context.Background(), opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := h.runner.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.TranscriptSource != SourceCache {
		t.Fatalf("expected cache hit, got %q", summary.TranscriptSource)
	}
	if h.backend.calls != 1 {
		t.Fatalf("backend should run once, ran %d times", h.backend.calls)
	}

	h.cfg.Transcription.BeamSize++
	summary, err = h.runner.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if summary.TranscriptSource == SourceCache || h.backend.calls != 2 {
		t.Fatalf("beam size change should miss the cache: source %q, %d backend calls", summary.TranscriptSource, h.backend.calls)
	}
}

func TestRunSynthesisFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.synth.err = services.Wrap(services.ErrSynthesis, "synthesis", "chatterbox", "model crashed", nil)
	h.cfg.Synthesis.AllowFallbackTone = false

	_, err := h.runner.Run(context.Background(), h.inputs(t))
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if services.ExitCode(err) != 4 {
		t.Fatalf("exit code = %d, want 4", services.ExitCode(err))
	}
}

func TestRunFallbackTone(t *testing.T) {
	h := newHarness(t, nil)
	h.synth.err = services.Wrap(services.ErrSynthesis, "synthesis", "chatterbox", "model crashed", nil)
	h.cfg.Synthesis.AllowFallbackTone = true

	summary, err := h.runner.Run(context.Background(), h.inputs(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Fallbacks != 2 {
		t.Fatalf("expected both segments to fall back, got %d", summary.Fallbacks)
	}
}

func TestRunOutputLocked(t *testing.T) {
	h := newHarness(t, nil)
	opts := h.inputs(t)
	if err := os.MkdirAll(filepath.Dir(opts.OutputVideo), 0o755); err != nil {
		t.Fatal(err)
	}
	other := flock.New(opts.OutputVideo + ".lock")
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("pre-lock failed: %v", err)
	}
	defer other.Unlock()

	_, err := h.runner.Run(context.Background(), opts)
	if !errors.Is(err, ErrOutputLocked) {
		t.Fatalf("expected ErrOutputLocked, got %v", err)
	}
}

func TestPrepare(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.Preparation.Denoise = true
	h.cfg.Preparation.TrimSilence = true
	h.cfg.Preparation.PeakDBFS = -3
	video := filepath.Join(h.dir, "talk.mp4")
	writeVideo(t, video)

	result, err := h.runner.Prepare(context.Background(), PrepareOptions{InputVideo: video})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if result.OutputDir != filepath.Join(h.dir, "talk") {
		t.Fatalf("OutputDir = %q", result.OutputDir)
	}
	for _, op := range []string{"extract", "denoise", "trim"} {
		if h.media.count(op) != 1 {
			t.Fatalf("expected one %s call, got %v", op, h.media.calls)
		}
	}

	clean, err := pcm.Read(result.CleanAudio)
	if err != nil {
		t.Fatal(err)
	}
	if got := clean.PeakDBFS(); got < -3.1 || got > -2.9 {
		t.Fatalf("clean audio peak = %.2f dBFS, want -3", got)
	}

	segments, err := transcript.Load(result.TranscriptJSON)
	if err != nil || len(segments) != 2 {
		t.Fatalf("transcript json: %v (%d segments)", err, len(segments))
	}
	srt, err := os.ReadFile(result.TranscriptSRT)
	if err != nil || !strings.Contains(string(srt), "00:00:01,500 --> 00:00:02,500") {
		t.Fatalf("unexpected srt: %q (%v)", srt, err)
	}
}

func TestPrepareSkipTranscription(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.Preparation.Denoise = false
	video := filepath.Join(h.dir, "talk.mkv")
	writeVideo(t, video)

	result, err := h.runner.Prepare(context.Background(), PrepareOptions{
		InputVideo:        video,
		OutputDir:         filepath.Join(h.dir, "prep"),
		SkipTranscription: true,
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if h.media.count("denoise") != 0 || h.backend.calls != 0 {
		t.Fatalf("denoise and transcription should be skipped: %v", h.media.calls)
	}
	if result.TranscriptJSON != "" {
		t.Fatal("no transcript expected")
	}
}

func TestPrepareSilentAudio(t *testing.T) {
	h := newHarness(t, nil)
	h.media.extractHz = 0
	video := filepath.Join(h.dir, "silent.mp4")
	writeVideo(t, video)

	_, err := h.runner.Prepare(context.Background(), PrepareOptions{InputVideo: video})
	if !errors.Is(err, pcm.ErrSilent) {
		t.Fatalf("expected ErrSilent, got %v", err)
	}
}

func TestSynthesizeOne(t *testing.T) {
	h := newHarness(t, nil)
	prompt := filepath.Join(h.dir, "voice.wav")
	testsupport.WriteWAV(t, prompt, 24000, 6, 200)
	out := filepath.Join(h.dir, "out", "line.wav")

	outcome, err := h.runner.SynthesizeOne(context.Background(), "Testing one two", prompt, out)
	if err != nil {
		t.Fatalf("SynthesizeOne: %v", err)
	}
	if outcome.Path != out || outcome.Fallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if _, err := h.runner.SynthesizeOne(context.Background(), "  ", prompt, out); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
}

func TestCacheModel(t *testing.T) {
	tcfg := config.Default().Transcription
	tcfg.Temperature = 0
	tcfg.BeamSize = 5
	tcfg.Backend = "openai"
	if got := cacheModel(tcfg); got != "whisper-1;temperature=0;beam=5" {
		t.Fatalf("openai model = %q", got)
	}
	tcfg.Backend = "auto"
	if got := cacheModel(tcfg); got != "medium/large-v3/whisper-1;temperature=0;beam=5" {
		t.Fatalf("auto model = %q", got)
	}
}

func TestCacheModelTracksDecodingSettings(t *testing.T) {
	base := config.Default().Transcription
	base.Backend = "whisper"
	key := cacheModel(base)

	beam := base
	beam.BeamSize = base.BeamSize + 3
	if cacheModel(beam) == key {
		t.Fatal("beam size change should change the cache model")
	}
	temp := base
	temp.Temperature = base.Temperature + 0.2
	if cacheModel(temp) == key {
		t.Fatal("temperature change should change the cache model")
	}
}
