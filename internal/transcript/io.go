package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"revoice/internal/fileutil"
)

type rawSegment struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  *string  `json:"text"`
}

// Decode reads a JSON array of {"start","end","text"} objects. Every field is
// required and bounds must satisfy end >= start.
func Decode(r io.Reader) ([]Segment, error) {
	var raw []rawSegment
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse transcript json: %w", err)
	}
	segments := make([]Segment, 0, len(raw))
	for i, item := range raw {
		if item.Start == nil || item.End == nil || item.Text == nil {
			return nil, fmt.Errorf("transcript entry %d: start, end and text are required", i)
		}
		seg := Segment{Start: *item.Start, End: *item.End, Text: *item.Text}
		if err := seg.Validate(); err != nil {
			return nil, fmt.Errorf("transcript entry %d: %w", i, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Load reads a persisted transcript from path.
func Load(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	segments, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segments, nil
}

// Encode renders segments as an indented JSON array.
func Encode(segments []Segment) ([]byte, error) {
	if segments == nil {
		segments = []Segment{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(segments); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write persists segments as JSON at path, replacing any existing file.
func Write(path string, segments []Segment) error {
	data, err := Encode(segments)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// WriteSRT persists segments as SubRip cues at path.
func WriteSRT(path string, segments []Segment) error {
	return fileutil.WriteFileAtomic(path, []byte(FormatSRT(segments)), 0o644)
}

// FormatSRT renders segments as SubRip text, numbering cues from 1.
func FormatSRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, SRTTimestamp(seg.Start), SRTTimestamp(seg.End), strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// SRTTimestamp formats seconds as HH:MM:SS,mmm.
func SRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMS := int64(seconds*1000 + 0.5)
	h := totalMS / 3_600_000
	m := (totalMS / 60_000) % 60
	s := (totalMS / 1000) % 60
	ms := totalMS % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
