package transcript

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmpty is returned when a transcript holds no usable segments.
var ErrEmpty = errors.New("transcript has no segments")

// Segment is a span of transcribed speech. Times are seconds from the start
// of the source audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns max(0, End-Start).
func (s Segment) Duration() float64 {
	return math.Max(0, s.End-s.Start)
}

// Validate reports whether the segment has finite, ordered bounds.
func (s Segment) Validate() error {
	if math.IsNaN(s.Start) || math.IsInf(s.Start, 0) || math.IsNaN(s.End) || math.IsInf(s.End, 0) {
		return fmt.Errorf("non-finite bounds [%v, %v]", s.Start, s.End)
	}
	if s.Start < 0 {
		return fmt.Errorf("negative start %.3f", s.Start)
	}
	if s.End < s.Start {
		return fmt.Errorf("end %.3f precedes start %.3f", s.End, s.Start)
	}
	return nil
}

// CleanText trims whitespace, collapses internal runs of spaces and applies
// Unicode NFC normalization.
func CleanText(text string) string {
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}

// Clean returns the usable segments from a backend result: text is cleaned,
// empty segments are dropped and inverted bounds are rejected.
func Clean(segments []Segment) ([]Segment, error) {
	out := make([]Segment, 0, len(segments))
	for i, seg := range segments {
		seg.Text = CleanText(seg.Text)
		if seg.Text == "" {
			continue
		}
		if err := seg.Validate(); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		out = append(out, seg)
	}
	return out, nil
}

// TotalDuration returns the sum of segment durations in seconds.
func TotalDuration(segments []Segment) float64 {
	var total float64
	for _, seg := range segments {
		total += seg.Duration()
	}
	return total
}
