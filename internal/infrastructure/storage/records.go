package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS artifact_records (
	key          TEXT PRIMARY KEY,
	location     TEXT NOT NULL,
	checksum     TEXT NOT NULL,
	size         INTEGER NOT NULL,
	topic_id     TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	class        TEXT NOT NULL,
	stored_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifact_records_topic ON artifact_records(topic_id);
`

// RecordStore indexes stored-artifact records in SQLite. The key is the
// primary key, so saving the same artifact again updates in place.
type RecordStore struct {
	db *sql.DB
}

var _ ports.RecordRepository = (*RecordStore)(nil)

// NewRecordStore opens (or creates) the database file and applies the schema.
func NewRecordStore(path string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open record db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply record schema: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *RecordStore) Close() error { return s.db.Close() }

// SaveRecord upserts one record by key.
func (s *RecordStore) SaveRecord(ctx context.Context, rec domain.StoredArtifactRecord) error {
	query, args, err := sq.Insert("artifact_records").
		Columns("key", "location", "checksum", "size", "topic_id", "candidate_id", "class", "stored_at").
		Values(rec.Key, rec.Location, rec.Checksum, rec.Size, rec.TopicID, rec.CandidateID, string(rec.Class), rec.StoredAt.UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT(key) DO UPDATE SET
			location = excluded.location,
			checksum = excluded.checksum,
			size = excluded.size,
			stored_at = excluded.stored_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save record %s: %w", rec.Key, err)
	}
	return nil
}

// RecordByKey looks one record up; the boolean reports existence.
func (s *RecordStore) RecordByKey(ctx context.Context, key string) (domain.StoredArtifactRecord, bool, error) {
	query, args, err := sq.Select("key", "location", "checksum", "size", "topic_id", "candidate_id", "class", "stored_at").
		From("artifact_records").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return domain.StoredArtifactRecord{}, false, fmt.Errorf("build record select: %w", err)
	}

	var (
		rec      domain.StoredArtifactRecord
		class    string
		storedAt string
	)
	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&rec.Key, &rec.Location, &rec.Checksum, &rec.Size, &rec.TopicID, &rec.CandidateID, &class, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredArtifactRecord{}, false, nil
	}
	if err != nil {
		return domain.StoredArtifactRecord{}, false, fmt.Errorf("load record %s: %w", key, err)
	}

	rec.Class = domain.ArtifactClass(class)
	if ts, perr := time.Parse(time.RFC3339Nano, storedAt); perr == nil {
		rec.StoredAt = ts
	}
	return rec, true, nil
}
