// Package transcriptcache stores transcripts in SQLite keyed by the content
// hash of the audio they were produced from, so repeated runs over the same
// video skip transcription.
package transcriptcache
