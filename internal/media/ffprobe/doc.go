// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata
//
// Inspect runs ffprobe and returns the parsed Result; Duration is the
// shortcut used to measure synthesized clips before time-stretching.
package ffprobe
