// Package audio chooses which audio stream of a source video carries the
// dialogue to be revoiced.
//
// Streams matching the requested language win, commentary and audio
// description tracks are demoted, and default-flagged streams break the
// remaining ties. Select is the entry point.
package audio
