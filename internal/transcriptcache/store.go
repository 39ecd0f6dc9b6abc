package transcriptcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"revoice/internal/fileutil"
	"revoice/internal/logging"
	"revoice/internal/transcript"
)

// Key identifies a cached transcript.
type Key struct {
	AudioHash string
	Backend   string
	Model     string
	Language  string
}

// Entry is a cached transcript with its provenance.
type Entry struct {
	Key        Key
	ProducedBy string
	Segments   []transcript.Segment
	CreatedAt  time.Time
}

// Store manages the transcript cache backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the cache database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("transcript cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "transcriptcache")}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// KeyFor hashes audioPath and combines it with the backend settings.
func KeyFor(audioPath, backend, model, language string) (Key, error) {
	hash, err := fileutil.HashFile(audioPath)
	if err != nil {
		return Key{}, fmt.Errorf("hash audio: %w", err)
	}
	return Key{AudioHash: hash, Backend: backend, Model: model, Language: language}, nil
}

// Get returns the cached entry for key. A miss returns (nil, nil).
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	var (
		producedBy string
		payload    string
		createdAt  string
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT produced_by, segments_json, created_at FROM transcripts
             WHERE audio_hash = ? AND backend = ? AND model = ? AND language = ?`,
			key.AudioHash, key.Backend, key.Model, key.Language,
		).Scan(&producedBy, &payload, &createdAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}

	var segments []transcript.Segment
	if err := json.Unmarshal([]byte(payload), &segments); err != nil {
		s.logger.Warn("discarding unreadable cache entry", logging.Args(
			logging.String(logging.FieldEventType, "transcript_cache_corrupt"),
			logging.String("audio_hash", key.AudioHash),
			logging.Error(err),
		)...)
		return nil, nil
	}

	entry := &Entry{Key: key, ProducedBy: producedBy, Segments: segments}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
}

// Put stores segments under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key Key, producedBy string, segments []transcript.Segment) error {
	if len(segments) == 0 {
		return transcript.ErrEmpty
	}
	payload, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO transcripts (
                audio_hash, backend, model, language, produced_by,
                segment_count, segments_json, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			key.AudioHash, key.Backend, key.Model, key.Language, producedBy,
			len(segments), string(payload), time.Now().UTC().Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("put transcript: %w", err)
	}
	return nil
}

// Count returns the number of cached transcripts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM transcripts").Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count transcripts: %w", err)
	}
	return n, nil
}

// Clear removes every cached transcript and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM transcripts")
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear transcripts: %w", err)
	}
	return res.RowsAffected()
}
