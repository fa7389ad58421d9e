package report

import (
	"context"
	"errors"

	"ResearchHarvester/internal/domain"
)

// Aggregator accumulates structured failures for the running batch.
// Pure in-memory append; recording an error can itself never fail. It is
// only ever touched from the coordinator goroutine, so no locking.
type Aggregator struct {
	entries []domain.PipelineError
}

// NewAggregator returns an empty aggregator for one batch run.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record appends one failure entry. candidateID is empty for topic-scoped
// failures such as a search call that fails outright.
func (a *Aggregator) Record(topicID string, stage domain.Stage, candidateID string, err error) domain.PipelineError {
	entry := domain.PipelineError{
		TopicID:     topicID,
		Stage:       stage,
		CandidateID: candidateID,
		Kind:        Classify(stage, err),
		Detail:      err.Error(),
	}
	a.entries = append(a.entries, entry)
	return entry
}

// Flatten returns every entry recorded so far, in arrival order.
func (a *Aggregator) Flatten() []domain.PipelineError {
	out := make([]domain.PipelineError, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len reports the global error count.
func (a *Aggregator) Len() int {
	return len(a.entries)
}

// ByStage groups the flattened entries for reporting.
func (a *Aggregator) ByStage() map[domain.Stage][]domain.PipelineError {
	grouped := map[domain.Stage][]domain.PipelineError{}
	for _, e := range a.entries {
		grouped[e.Stage] = append(grouped[e.Stage], e)
	}
	return grouped
}

// Classify maps an error onto the reporting taxonomy using its typed cause
// where available, falling back to a stage-appropriate default.
func Classify(stage domain.Stage, err error) domain.ErrorKind {
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Reason {
		case domain.FetchTimeout:
			return domain.KindFetchTimeout
		case domain.FetchHTTP:
			return domain.KindFetchHTTP
		default:
			return domain.KindFetchNetwork
		}
	}

	var normErr *domain.NormalizationError
	if errors.As(err, &normErr) {
		if normErr.Reason == domain.NormalizeUnsupported {
			return domain.KindNormalizeUnsupported
		}
		return domain.KindNormalizeCorrupt
	}

	var storeErr *domain.StorageError
	if errors.As(err, &storeErr) {
		switch storeErr.Reason {
		case domain.StorageAuth:
			return domain.KindStorageAuth
		case domain.StorageQuota:
			return domain.KindStorageQuota
		default:
			return domain.KindStorageTransient
		}
	}

	switch stage {
	case domain.StageSearch:
		return domain.KindSearchFailure
	case domain.StageFetch:
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.KindFetchTimeout
		}
		return domain.KindFetchNetwork
	case domain.StageConvert:
		return domain.KindNormalizeCorrupt
	default:
		return domain.KindStorageTransient
	}
}

// TopicStatus derives the sealed status of a topic from its tallies.
// A topic with at least one stored artifact is never "failed", no matter
// how many sibling candidates were lost along the way.
func TopicStatus(outcome domain.TopicOutcome) domain.TopicStatus {
	switch {
	case outcome.Searched == 0 && len(outcome.Errors) > 0:
		return domain.TopicFailed
	case outcome.Searched == 0:
		return domain.TopicEmpty
	case outcome.Stored > 0 && len(outcome.Errors) == 0:
		return domain.TopicSucceeded
	case outcome.Stored > 0:
		return domain.TopicPartial
	case len(outcome.Errors) == 0:
		return domain.TopicSucceeded
	default:
		return domain.TopicFailed
	}
}
