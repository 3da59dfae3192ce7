// Package store persists scraped records, one JSON document per source.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

// Merge appends incoming records whose URL is not yet present to existing.
// Existing order is kept, then new arrivals in incoming order. Same-URL
// records are dropped, never updated; records without a URL are dropped.
func Merge(existing, incoming []domain.JobRecord) ([]domain.JobRecord, int) {
	merged := make([]domain.JobRecord, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	for _, r := range existing {
		merged = append(merged, r)
		seen[r.URL] = struct{}{}
	}

	added := 0
	for _, r := range incoming {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		merged = append(merged, r)
		added++
	}
	return merged, added
}

// JSONStore keeps <dir>/<source>_internships.json files
type JSONStore struct {
	dir         string
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewJSONStore creates a store rooted at dir
func NewJSONStore(dir string, lockTimeout time.Duration, logger *zap.Logger) *JSONStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONStore{dir: dir, lockTimeout: lockTimeout, logger: logger}
}

// Path returns the file holding source's records
func (s *JSONStore) Path(source domain.JobSource) string {
	return filepath.Join(s.dir, string(source)+"_internships.json")
}

// Read parses the stored records. A missing file yields fs.ErrNotExist;
// unparsable content yields domain.ErrStoreCorrupt.
func (s *JSONStore) Read(source domain.JobSource) ([]domain.JobRecord, error) {
	data, err := os.ReadFile(s.Path(source))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrStoreCorrupt, s.Path(source))
	}

	var records []domain.JobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrStoreCorrupt, s.Path(source), err)
	}
	return records, nil
}

// Load returns the stored records, or an empty collection when the file is
// missing or unreadable. It never fails.
func (s *JSONStore) Load(source domain.JobSource) []domain.JobRecord {
	records, err := s.Read(source)
	switch {
	case err == nil:
		return records
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("No existing store, starting empty", zap.String("path", s.Path(source)))
	default:
		s.logger.Warn("Existing store unreadable, starting empty",
			zap.String("path", s.Path(source)),
			zap.Error(err),
		)
	}
	return []domain.JobRecord{}
}

// URLs returns the set of URLs currently stored for source
func (s *JSONStore) URLs(source domain.JobSource) map[string]struct{} {
	records := s.Load(source)
	out := make(map[string]struct{}, len(records))
	for _, r := range records {
		out[r.URL] = struct{}{}
	}
	return out
}

// Commit merges incoming into the stored records and rewrites the file.
// The load-merge-write cycle holds an exclusive lock on a sidecar file and
// the write goes through a temp file renamed over the target.
func (s *JSONStore) Commit(ctx context.Context, source domain.JobSource, incoming []domain.JobRecord) (int, int, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("create store dir: %w", err)
	}

	path := s.Path(source)
	lock := flock.New(path + ".lock")

	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return 0, 0, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return 0, 0, fmt.Errorf("lock %s: not acquired", path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("Failed to release store lock", zap.String("path", path), zap.Error(err))
		}
	}()

	existing := s.Load(source)
	merged, added := Merge(existing, incoming)

	if err := saveAtomic(path, merged); err != nil {
		return 0, len(existing), err
	}

	s.logger.Info("Store updated",
		zap.String("path", path),
		zap.Int("added", added),
		zap.Int("total", len(merged)),
	)
	return added, len(merged), nil
}

// Sources lists the sources that have a store file
func (s *JSONStore) Sources() ([]domain.JobSource, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*_internships.json"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.JobSource, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), "_internships.json")
		out = append(out, domain.JobSource(name))
	}
	return out, nil
}

func encode(records []domain.JobRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func saveAtomic(path string, records []domain.JobRecord) error {
	data, err := encode(records)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
