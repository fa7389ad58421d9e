package domain

import "fmt"

// Stage names the pipeline step an error belongs to.
type Stage string

const (
	StageSearch  Stage = "search"
	StageFetch   Stage = "fetch"
	StageConvert Stage = "convert"
	StageStore   Stage = "store"
)

// FetchReason classifies candidate-scoped fetch failures.
type FetchReason string

const (
	FetchTimeout FetchReason = "timeout"
	FetchHTTP    FetchReason = "http_status"
	FetchNetwork FetchReason = "network"
)

// FetchError is a non-fatal, candidate-scoped retrieval failure.
type FetchError struct {
	URL    string
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeReason classifies conversion failures.
type NormalizeReason string

const (
	NormalizeUnsupported NormalizeReason = "unsupported_format"
	NormalizeCorrupt     NormalizeReason = "corrupt"
)

// NormalizationError is a non-fatal, candidate-scoped conversion failure.
type NormalizationError struct {
	Reason NormalizeReason
	Err    error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: %s: %v", e.Reason, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// StorageReason classifies persistence failures.
type StorageReason string

const (
	StorageAuth      StorageReason = "auth"
	StorageQuota     StorageReason = "quota"
	StorageTransient StorageReason = "transient"
)

// StorageError is a non-fatal, candidate-scoped persistence failure.
type StorageError struct {
	Key    string
	Reason StorageReason
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Key, e.Reason, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConfigurationError is the only fatal error class; it aborts startup before
// any topic is admitted.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
