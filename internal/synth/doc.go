// Package synth drives the Chatterbox voice-cloning helper, one transcript
// segment at a time.
//
// Chatterbox runs the helper as a subprocess and parses the JSON line it
// prints. Generator layers the per-call timeout, the reduced-effort retry
// and the optional fallback tone on top of any Synthesizer.
package synth
