// Package transcribe turns extracted dialogue audio into transcript segments.
//
// Three backends are available: the openai-whisper CLI, WhisperX run through
// uvx, and the OpenAI transcription API. Chain runs them in order and falls
// through to the next backend when one fails or returns no usable speech;
// the "auto" setting chains all three.
package transcribe
