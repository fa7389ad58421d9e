package ports

import (
	"context"

	"ResearchHarvester/internal/domain"
)

// SearchProvider turns a topic query into candidate metadata. A provider
// failure is topic-scoped; zero results is a valid answer, not an error.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}

// ContentFetcher retrieves the full payload for one candidate, branching on
// the candidate's pre-classified content kind.
type ContentFetcher interface {
	Fetch(ctx context.Context, candidate domain.Candidate) (domain.FetchedContent, error)
}

// ContentNormalizer converts raw fetched bytes into normalized text plus
// best-effort metadata merged over the candidate's known fields.
type ContentNormalizer interface {
	Normalize(ctx context.Context, topic domain.Topic, fetched domain.FetchedContent) (domain.ProcessedContent, error)
}

// PutResult is what an artifact backend reports for a durable write.
type PutResult struct {
	Location string
	Checksum string
	Size     int64
}

// ArtifactStore persists opaque bytes under a deterministic key. Writing the
// same key twice overwrites; storage is idempotent by key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) (PutResult, error)
}

// RecordRepository indexes stored-artifact records for dedup and audit.
type RecordRepository interface {
	SaveRecord(ctx context.Context, rec domain.StoredArtifactRecord) error
	RecordByKey(ctx context.Context, key string) (domain.StoredArtifactRecord, bool, error)
}
