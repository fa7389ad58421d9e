package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

// FileStore is the local-disk artifact backend. Keys map directly onto paths
// under the base directory, so a re-run overwrites in place.
type FileStore struct {
	baseDir string
	logger  *slog.Logger
}

var _ ports.ArtifactStore = (*FileStore)(nil)

// NewFileStore roots the store at baseDir, creating it if needed.
func NewFileStore(baseDir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, logger: logger}, nil
}

// Put writes the payload at the key's path and reports its digest. Disk
// failures surface as transient storage errors.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) (ports.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.PutResult{}, &domain.StorageError{Key: key, Reason: domain.StorageTransient, Err: err}
	}

	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ports.PutResult{}, &domain.StorageError{Key: key, Reason: domain.StorageTransient, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ports.PutResult{}, &domain.StorageError{Key: key, Reason: domain.StorageTransient, Err: err}
	}

	sum := sha256.Sum256(data)
	s.logger.Debug("artifact written", "key", key, "bytes", len(data))
	return ports.PutResult{
		Location: path,
		Checksum: hex.EncodeToString(sum[:]),
		Size:     int64(len(data)),
	}, nil
}
