package domain

import "time"

// ErrorKind is the reporting-level classification of a recorded failure.
type ErrorKind string

const (
	KindSearchFailure        ErrorKind = "search_failure"
	KindFetchTimeout         ErrorKind = "fetch_timeout"
	KindFetchHTTP            ErrorKind = "fetch_http"
	KindFetchNetwork         ErrorKind = "fetch_network"
	KindNormalizeUnsupported ErrorKind = "normalize_unsupported"
	KindNormalizeCorrupt     ErrorKind = "normalize_corrupt"
	KindStorageAuth          ErrorKind = "storage_auth"
	KindStorageQuota         ErrorKind = "storage_quota"
	KindStorageTransient     ErrorKind = "storage_transient"
)

// PipelineError is one structured failure entry in the batch report.
// CandidateID is empty for topic-scoped failures.
type PipelineError struct {
	TopicID     string    `json:"topicId"`
	Stage       Stage     `json:"stage"`
	CandidateID string    `json:"candidateId,omitempty"`
	Kind        ErrorKind `json:"kind"`
	Detail      string    `json:"detail"`
}

// TopicStatus summarizes how a topic ended. Partial success is first-class.
type TopicStatus string

const (
	TopicSucceeded TopicStatus = "succeeded"
	TopicPartial   TopicStatus = "partial"
	TopicFailed    TopicStatus = "failed"
	TopicEmpty     TopicStatus = "empty"
)

// TopicOutcome aggregates everything that happened to one topic. Built
// incrementally by the coordinator, sealed at finalization.
type TopicOutcome struct {
	Topic      Topic                  `json:"topic"`
	Status     TopicStatus            `json:"status"`
	Searched   int                    `json:"searched"`
	Scored     int                    `json:"scored"`
	Selected   int                    `json:"selected"`
	NotFetched int                    `json:"notFetched"`
	Fetched    int                    `json:"fetched"`
	Converted  int                    `json:"converted"`
	Stored     int                    `json:"stored"`
	Records    []StoredArtifactRecord `json:"records,omitempty"`
	Errors     []PipelineError        `json:"errors,omitempty"`
}

// BatchStatus reflects how the run as a whole terminated.
type BatchStatus string

const (
	BatchCompleted        BatchStatus = "completed"
	BatchCompletedErrors  BatchStatus = "completed_with_errors"
	BatchDeadlineExceeded BatchStatus = "deadline_exceeded"
)

// BatchReport is the terminal artifact of a run: one outcome per input
// topic, in input order, plus the flat error list across all topics.
// Immutable once produced.
type BatchReport struct {
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Outcomes   []TopicOutcome  `json:"outcomes"`
	Errors     []PipelineError `json:"errors,omitempty"`
	ErrorCount int             `json:"errorCount"`
	Status     BatchStatus     `json:"status"`
}
