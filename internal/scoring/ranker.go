package scoring

import (
	"sort"
	"time"

	"ResearchHarvester/internal/domain"
)

// Ranker orders scored candidates and applies the top-K cutoff.
type Ranker struct {
	engine *Engine
	topK   int
}

// NewRanker wires the scoring engine with the configured cutoff.
func NewRanker(engine *Engine, topK int) *Ranker {
	return &Ranker{engine: engine, topK: topK}
}

// Rank scores every candidate and returns them ordered by score descending,
// ties broken by URL so identical inputs always produce identical orderings.
func (r *Ranker) Rank(candidates []domain.Candidate, query string, now time.Time) []domain.ScoredCandidate {
	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, r.engine.Score(c, query, now))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Candidate.URL < scored[j].Candidate.URL
	})

	return scored
}

// Select splits a ranked sequence at the cutoff. Candidates beyond K are
// returned separately so the topic tally stays auditable.
func (r *Ranker) Select(ranked []domain.ScoredCandidate) (selected, rest []domain.ScoredCandidate) {
	if len(ranked) <= r.topK {
		return ranked, nil
	}
	return ranked[:r.topK], ranked[r.topK:]
}
