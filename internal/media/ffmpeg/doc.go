// Package ffmpeg wraps the ffmpeg invocations revoice relies on: audio
// extraction, atempo time-stretching, denoise and silence trimming for
// transcription prep, loudness mastering of the assembled track, and the
// final remux into the source video.
//
// Every call goes through a CommandRunner so tests can capture arguments
// without spawning processes. Duration probes delegate to the ffprobe package.
package ffmpeg
