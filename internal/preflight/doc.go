// Package preflight provides readiness checks for the external tools, input
// files and filesystem paths revoice depends on.
//
// These checks run in two contexts:
//   - The pipeline calls CheckSystemDeps and CheckVoicePrompt before any
//     audio is extracted so a missing tool fails in seconds, not after
//     transcription.
//   - The CLI "revoice doctor" command renders RunAll results.
//
// Network checks are gated by configuration; unused backends are skipped.
package preflight
