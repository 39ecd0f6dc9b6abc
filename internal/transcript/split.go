package transcript

import (
	"math"
	"strings"
)

// SplitLong breaks every segment longer than maxSeconds into contiguous
// sub-segments of whole words. Segments within the ceiling, or without words,
// are returned unchanged. A non-positive ceiling disables splitting.
func SplitLong(segments []Segment, maxSeconds float64) []Segment {
	if maxSeconds <= 0 {
		return append([]Segment(nil), segments...)
	}
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, SplitSegment(seg, maxSeconds)...)
	}
	return out
}

// SplitSegment splits a single segment. The words-per-second rate comes from
// the segment's own word count and duration, so each sub-segment holds
// roughly maxSeconds of speech. Sub-segment bounds are proportional to their
// word counts; the first starts at seg.Start and the last ends at seg.End.
func SplitSegment(seg Segment, maxSeconds float64) []Segment {
	duration := seg.Duration()
	words := strings.Fields(seg.Text)
	if maxSeconds <= 0 || duration <= maxSeconds || len(words) == 0 {
		return []Segment{seg}
	}

	wordsPerSecond := float64(len(words)) / duration
	perChunk := int(math.Floor(wordsPerSecond * maxSeconds))
	if perChunk < 1 {
		perChunk = 1
	}

	total := float64(len(words))
	parts := make([]Segment, 0, (len(words)+perChunk-1)/perChunk)
	for from := 0; from < len(words); from += perChunk {
		to := min(from+perChunk, len(words))
		part := Segment{
			Start: seg.Start + duration*float64(from)/total,
			End:   seg.Start + duration*float64(to)/total,
			Text:  strings.Join(words[from:to], " "),
		}
		if from == 0 {
			part.Start = seg.Start
		}
		if to == len(words) {
			part.End = seg.End
		}
		parts = append(parts, part)
	}
	// Chain bounds exactly so rounding never opens a gap between parts.
	for i := 1; i < len(parts); i++ {
		parts[i].Start = parts[i-1].End
	}
	return parts
}
