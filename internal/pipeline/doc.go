// Package pipeline orchestrates a voice replacement run: extract the dialogue
// audio, transcribe it (or load a supplied transcript), synthesize every
// segment in the cloned voice, stretch each clip to its original timing,
// assemble the replacement track and mux it back into the video.
//
// Runs are strictly sequential and work in a private scratch directory that
// is removed afterwards unless the caller asks to keep it. Runner also
// exposes Prepare, the standalone audio cleanup and transcription flow used
// by the transcribe command.
//
// External tools are reached through the MediaTool, Prober and factory
// fields of Dependencies so tests can substitute fakes.
package pipeline
