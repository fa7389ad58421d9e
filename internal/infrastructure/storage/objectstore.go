package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

// ObjectStore is the remote artifact backend: objects land at
// {endpoint}/{bucket}/{key} via HTTP PUT.
type ObjectStore struct {
	endpoint string
	bucket   string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.ArtifactStore = (*ObjectStore)(nil)

// NewObjectStore wires the remote backend.
func NewObjectStore(endpoint, bucket, apiKey string, client *http.Client, logger *slog.Logger) *ObjectStore {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ObjectStore{endpoint: endpoint, bucket: bucket, apiKey: apiKey, client: client, logger: logger}
}

// Put uploads the payload. Failures are classified so the report can
// distinguish credential problems from capacity and flakiness.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) (ports.PutResult, error) {
	location, err := url.JoinPath(s.endpoint, s.bucket, key)
	if err != nil {
		return ports.PutResult{}, &domain.StorageError{Key: key, Reason: domain.StorageTransient, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, location, bytes.NewReader(data))
	if err != nil {
		return ports.PutResult{}, &domain.StorageError{Key: key, Reason: domain.StorageTransient, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.PutResult{}, &domain.StorageError{Key: key, Reason: domain.StorageTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ports.PutResult{}, &domain.StorageError{
			Key:    key,
			Reason: classifyStatus(resp.StatusCode),
			Err:    fmt.Errorf("object store returned %s", resp.Status),
		}
	}

	sum := sha256.Sum256(data)
	s.logger.Debug("artifact uploaded", "key", key, "bytes", len(data))
	return ports.PutResult{
		Location: location,
		Checksum: hex.EncodeToString(sum[:]),
		Size:     int64(len(data)),
	}, nil
}

func classifyStatus(code int) domain.StorageReason {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.StorageAuth
	case http.StatusTooManyRequests, http.StatusInsufficientStorage:
		return domain.StorageQuota
	default:
		return domain.StorageTransient
	}
}
