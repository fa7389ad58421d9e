package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Topic is one unit of the input work list: an identifier plus the free-text
// query sent to the search provider. Immutable for the whole run.
type Topic struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// ContentKind tags a candidate with the fetch strategy decided once at
// classification time, never re-inferred downstream.
type ContentKind string

const (
	KindPDF  ContentKind = "pdf"
	KindHTML ContentKind = "html"
)

// Candidate is a single search result for a topic, pre-fetch.
type Candidate struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Snippet     string
	PublishedAt time.Time // zero value means unknown
	Citations   int       // absence upstream means zero, not unknown-default
	Kind        ContentKind
}

// ScoreComponents keeps the four sub-scores for explainability.
type ScoreComponents struct {
	Relevance float64
	Recency   float64
	Authority float64
	Citation  float64
}

// ScoredCandidate pairs a candidate with its composite quality score.
// Discarded after fetch selection; never persisted.
type ScoredCandidate struct {
	Candidate  Candidate
	Score      float64
	Components ScoreComponents
}

// FetchedContent holds the raw payload for one candidate. Owned by the
// conversion step until consumed.
type FetchedContent struct {
	Candidate Candidate
	Kind      ContentKind
	Body      []byte
}

// ProcessedContent is the normalized text plus best-effort metadata,
// owned by the store step until persisted.
type ProcessedContent struct {
	Candidate   Candidate
	Topic       Topic
	Text        string
	Title       string
	Authors     []string
	Keywords    []string
	PublishedAt time.Time
}

// ArtifactClass distinguishes the raw payload from its processed form in
// storage keys.
type ArtifactClass string

const (
	ArtifactRaw       ArtifactClass = "raw"
	ArtifactProcessed ArtifactClass = "processed"
)

// StoredArtifactRecord links one durable artifact back to exactly one topic
// and candidate. Append-only.
type StoredArtifactRecord struct {
	Key         string        `json:"key"`
	Location    string        `json:"location"`
	Checksum    string        `json:"checksum"`
	Size        int64         `json:"size"`
	TopicID     string        `json:"topicId"`
	CandidateID string        `json:"candidateId"`
	Class       ArtifactClass `json:"class"`
	StoredAt    time.Time     `json:"storedAt"`
}

// ArtifactKey derives the deterministic storage key for a topic/candidate
// pair, so re-runs overwrite instead of duplicating.
func ArtifactKey(topicID, candidateID string, class ArtifactClass) string {
	return topicID + "/" + candidateID + "/" + string(class)
}

// CandidateID builds a stable identifier from the source URL: a sanitized
// prefix for readability plus a short hash for uniqueness.
func CandidateID(rawURL string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, rawURL)
	if len(sanitized) > 60 {
		sanitized = sanitized[:60]
	}
	sum := sha1.Sum([]byte(rawURL))
	return sanitized + "_" + hex.EncodeToString(sum[:4])
}

// ClassifyURL decides the content kind from the candidate URL. Anything that
// is not an obvious PDF link goes through the page-rendering path.
func ClassifyURL(rawURL string) ContentKind {
	trimmed := strings.ToLower(rawURL)
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if strings.HasSuffix(trimmed, ".pdf") {
		return KindPDF
	}
	return KindHTML
}
