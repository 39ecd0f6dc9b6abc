package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"revoice/internal/logging"
)

// Progress receives per-segment updates during synthesis.
type Progress interface {
	Start(total int)
	Step(done int, label string)
	Finish()
}

// NewProgress renders a progress bar when out is a terminal and falls back to
// sampled log lines otherwise.
func NewProgress(out *os.File, logger *slog.Logger) Progress {
	if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
		return &barProgress{out: out}
	}
	return &logProgress{logger: logging.NewComponentLogger(logger, "progress"), sampler: logging.NewProgressSampler(10)}
}

type barProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("synthesizing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Step(done int, label string) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(label)
	_ = p.bar.Set(done)
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

type logProgress struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	total   int
}

func (p *logProgress) Start(total int) {
	p.total = total
	p.sampler.Reset()
}

func (p *logProgress) Step(done int, label string) {
	if p.total <= 0 {
		return
	}
	percent := float64(done) * 100 / float64(p.total)
	if !p.sampler.ShouldLog(percent, "synthesize") {
		return
	}
	p.logger.Info("synthesis progress", logging.Args(
		logging.String(logging.FieldEventType, "synth_progress"),
		logging.String("progress", fmt.Sprintf("%d/%d", done, p.total)),
		logging.Float64("percent", percent),
		logging.String("segment_label", label),
	)...)
}

func (p *logProgress) Finish() {}

type noopProgress struct{}

func (noopProgress) Start(int) {}

func (noopProgress) Step(int, string) {}

func (noopProgress) Finish() {}
