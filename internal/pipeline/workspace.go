package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	cp "github.com/otiai10/copy"

	"revoice/internal/logging"
	"revoice/internal/services"
)

const workdirPrefix = "voice-pipeline-"

// workspace is the private scratch directory of one run.
type workspace struct {
	dir string
}

func newWorkspace(root string) (*workspace, error) {
	root = strings.TrimSpace(root)
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, services.Wrap(services.ErrPersist, "workspace", "create root", root, err)
		}
	}
	dir, err := os.MkdirTemp(root, workdirPrefix)
	if err != nil {
		return nil, services.Wrap(services.ErrPersist, "workspace", "create", root, err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *workspace) segmentPath(index int, kind string) string {
	return w.path(fmt.Sprintf("segment_%04d_%s.wav", index, kind))
}

// preserve copies the scratch directory to dest, replacing an earlier copy.
func (w *workspace) preserve(dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clear %s: %w", dest, err)
	}
	if err := cp.Copy(w.dir, dest); err != nil {
		return fmt.Errorf("copy workdir: %w", err)
	}
	return nil
}

func (w *workspace) cleanup(logger *slog.Logger) {
	if err := os.RemoveAll(w.dir); err != nil {
		logger.Warn("failed to remove workdir", logging.String("workdir", w.dir), logging.Error(err))
	}
}

// ErrOutputLocked reports that another run is writing the same output.
var ErrOutputLocked = errors.New("output is locked by another run")

type outputLock struct {
	lock *flock.Flock
}

// lockOutput takes an exclusive advisory lock on <output>.lock. The lock file
// outlives the run; removing it would let a later run lock a fresh inode
// while an earlier one still holds the old one.
func lockOutput(output string) (*outputLock, error) {
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrPersist, "workspace", "create output dir", dir, err)
		}
	}
	lock := flock.New(output + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrPersist, "workspace", "lock output", output, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workspace", "lock output", output, ErrOutputLocked)
	}
	return &outputLock{lock: lock}, nil
}

func (l *outputLock) release() {
	if l == nil || l.lock == nil {
		return
	}
	_ = l.lock.Unlock()
}
