package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ResolveFFmpegPath returns the ffmpeg executable on PATH, or the bare name
// when it cannot be found so callers still get a useful error later.
func ResolveFFmpegPath() string {
	if resolved, err := exec.LookPath(executableName("ffmpeg")); err == nil {
		return resolved
	}
	return "ffmpeg"
}

// ResolveFFprobePath prefers the ffprobe that ships next to the resolved
// ffmpeg so both tools come from the same build, falling back to the
// configured command.
func ResolveFFprobePath(ffmpegPath, configured string) string {
	if ffmpegPath != "" && filepath.IsAbs(ffmpegPath) {
		candidate := filepath.Join(filepath.Dir(ffmpegPath), executableName("ffprobe"))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate
		}
	}
	if configured == "" {
		configured = "ffprobe"
	}
	if resolved, err := exec.LookPath(configured); err == nil {
		return resolved
	}
	return configured
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
