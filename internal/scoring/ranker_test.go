package scoring

import (
	"testing"
	"time"

	"ResearchHarvester/internal/domain"
)

func TestRankDeterministicOrdering(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testScoringConfig())
	ranker := NewRanker(engine, 2)
	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	candidates := []domain.Candidate{
		{Title: "RAG evaluation survey", URL: "https://example.org/b", Source: "arxiv", Citations: 50},
		{Title: "RAG evaluation survey", URL: "https://example.org/a", Source: "arxiv", Citations: 50},
		{Title: "unrelated paper", URL: "https://example.org/c"},
	}

	first := ranker.Rank(candidates, "RAG evaluation", now)
	second := ranker.Rank(candidates, "RAG evaluation", now)

	for i := range first {
		if first[i].Candidate.URL != second[i].Candidate.URL {
			t.Fatalf("ranking not deterministic at %d: %s vs %s", i, first[i].Candidate.URL, second[i].Candidate.URL)
		}
	}

	// Equal scores break ties by URL.
	if first[0].Candidate.URL != "https://example.org/a" {
		t.Fatalf("expected URL tiebreak to put /a first, got %s", first[0].Candidate.URL)
	}
	if first[1].Candidate.URL != "https://example.org/b" {
		t.Fatalf("expected /b second, got %s", first[1].Candidate.URL)
	}
}

func TestSelectAppliesCutoff(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testScoringConfig())
	ranker := NewRanker(engine, 2)
	now := time.Now()

	candidates := []domain.Candidate{
		{Title: "a", URL: "https://example.org/1"},
		{Title: "b", URL: "https://example.org/2"},
		{Title: "c", URL: "https://example.org/3"},
	}

	ranked := ranker.Rank(candidates, "query", now)
	selected, rest := ranker.Select(ranked)

	if len(selected) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(selected))
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 beyond cutoff, got %d", len(rest))
	}
	if len(selected)+len(rest) != len(candidates) {
		t.Fatalf("cutoff lost candidates: %d + %d != %d", len(selected), len(rest), len(candidates))
	}
}

func TestSelectShortList(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testScoringConfig())
	ranker := NewRanker(engine, 5)

	ranked := ranker.Rank([]domain.Candidate{{URL: "https://example.org/only"}}, "q", time.Now())
	selected, rest := ranker.Select(ranked)
	if len(selected) != 1 || rest != nil {
		t.Fatalf("expected all candidates selected, got %d selected, %d rest", len(selected), len(rest))
	}
}
