// Package language normalizes the language hints handed to transcription
// backends and the voice synthesizer (ISO 639-1 codes, English names and
// BCP 47 tags).
package language
