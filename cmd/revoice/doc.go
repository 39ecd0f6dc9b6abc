// Command revoice replaces the dialogue of a video with speech synthesized in
// a cloned voice.
//
// The run command drives the full pipeline. Supporting commands transcribe a
// video on its own, synthesize a single line, inspect and split transcript
// JSON, manage the configuration file and check the environment (doctor).
package main
