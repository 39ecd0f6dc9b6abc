package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
)

const (
	minPromptDuration   = time.Second
	shortPromptDuration = 5 * time.Second
)

// CheckVoicePrompt verifies the voice sample used for cloning. WAV files are
// decoded to confirm the header and duration; compressed formats are sniffed
// by container so an obviously wrong file (a video, a text file) fails early.
func CheckVoicePrompt(path string) Result {
	const name = "Voice prompt"
	base := CheckInputFile(name, path)
	if !base.Passed {
		return base
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: open: %v)", path, err)}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if dec.IsValidFile() {
		duration, err := dec.Duration()
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: read wav duration: %v)", path, err)}
		}
		summary := fmt.Sprintf("%s (WAV %d Hz, %d ch, %d-bit, %.1fs)", filepath.Base(path), dec.SampleRate, dec.NumChans, dec.BitDepth, duration.Seconds())
		switch {
		case duration < minPromptDuration:
			return Result{Name: name, Detail: summary + " too short to clone"}
		case duration < shortPromptDuration:
			return Result{Name: name, Passed: true, Detail: summary + " short sample, cloning quality may suffer"}
		default:
			return Result{Name: name, Passed: true, Detail: summary}
		}
	}

	if _, err := f.Seek(0, 0); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: seek: %v)", path, err)}
	}
	_, fileType, err := tag.Identify(f)
	switch {
	case err == nil && fileType != tag.UnknownFileType:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", filepath.Base(path), fileType)}
	case err == nil, errors.Is(err, tag.ErrNoTagsFound):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (format not recognized, decoded by the synthesizer)", filepath.Base(path))}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: identify: %v)", path, err)}
	}
}
