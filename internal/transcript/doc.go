// Package transcript defines the time-aligned speech segments that flow from
// transcription into synthesis and assembly, plus their JSON and SubRip
// persistence and the long-segment splitter.
package transcript
