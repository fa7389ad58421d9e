package scoring

import (
	"math"
	"strings"
	"time"
	"unicode"

	"ResearchHarvester/internal/config"
	"ResearchHarvester/internal/domain"
)

// Engine computes the weighted quality score for search candidates.
// Score is a pure function of the candidate, the topic query, and now;
// it always returns a finite value in [0,1].
type Engine struct {
	weights          config.WeightsConfig
	halfLife         time.Duration
	neutralRecency   float64
	neutralAuthority float64
	authorityTiers   map[string]float64
	citationCap      int
}

// NewEngine builds an engine from validated scoring configuration.
func NewEngine(cfg config.ScoringConfig) *Engine {
	tiers := make(map[string]float64, len(cfg.AuthorityTiers))
	for name, score := range cfg.AuthorityTiers {
		tiers[strings.ToLower(name)] = clamp01(score)
	}
	return &Engine{
		weights:          cfg.Weights,
		halfLife:         time.Duration(cfg.RecencyHalfLifeDays * 24 * float64(time.Hour)),
		neutralRecency:   cfg.NeutralRecency,
		neutralAuthority: cfg.NeutralAuthority,
		authorityTiers:   tiers,
		citationCap:      cfg.CitationCap,
	}
}

// Score combines the four sub-scores with the configured weight vector.
func (e *Engine) Score(candidate domain.Candidate, query string, now time.Time) domain.ScoredCandidate {
	comp := domain.ScoreComponents{
		Relevance: e.relevance(candidate, query),
		Recency:   e.recency(candidate.PublishedAt, now),
		Authority: e.authority(candidate.Source),
		Citation:  e.citation(candidate.Citations),
	}

	total := comp.Relevance*e.weights.Relevance +
		comp.Recency*e.weights.Recency +
		comp.Authority*e.weights.Authority +
		comp.Citation*e.weights.Citation

	return domain.ScoredCandidate{
		Candidate:  candidate,
		Score:      clamp01(total),
		Components: comp,
	}
}

// relevance is the fraction of distinct query terms found in the candidate
// title or snippet. Zero overlap scores 0; the candidate is still ranked.
func (e *Engine) relevance(candidate domain.Candidate, query string) float64 {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return 0
	}

	haystack := strings.ToLower(candidate.Title + " " + candidate.Snippet)
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(len(terms)))
}

// recency decays exponentially with age at the configured half-life. An
// unknown publication date maps to the neutral default rather than 0 or 1:
// absence of a date is treated as no evidence either way.
func (e *Engine) recency(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return e.neutralRecency
	}
	age := now.Sub(publishedAt)
	if age <= 0 {
		return 1
	}
	halfLives := float64(age) / float64(e.halfLife)
	return clamp01(math.Pow(0.5, halfLives))
}

// authority looks the source up in the static tier table; unknown sources
// get the neutral default.
func (e *Engine) authority(source string) float64 {
	key := strings.ToLower(strings.TrimSpace(source))
	if key == "" {
		return e.neutralAuthority
	}
	if score, ok := e.authorityTiers[key]; ok {
		return score
	}
	for tier, score := range e.authorityTiers {
		if strings.Contains(key, tier) {
			return score
		}
	}
	return e.neutralAuthority
}

// citation is log-scaled and clamps at the configured cap. A missing count
// scores 0, not the neutral default: absence of citations means zero
// citations.
func (e *Engine) citation(count int) float64 {
	if count <= 0 {
		return 0
	}
	scaled := math.Log1p(float64(count)) / math.Log1p(float64(e.citationCap))
	return clamp01(scaled)
}

func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := map[string]struct{}{}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
