package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/logging"
)

type slowFetcher struct {
	slowID string
	hold   time.Duration
}

func (s *slowFetcher) Fetch(ctx context.Context, c domain.Candidate) (domain.FetchedContent, error) {
	if c.ID == s.slowID {
		select {
		case <-time.After(s.hold):
		case <-ctx.Done():
			return domain.FetchedContent{}, ctx.Err()
		}
	}
	return domain.FetchedContent{Candidate: c, Kind: c.Kind, Body: []byte("payload")}, nil
}

func scored(ids ...string) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ScoredCandidate{
			Candidate: domain.Candidate{ID: id, URL: "https://example.org/" + id, Kind: domain.KindHTML},
			Score:     0.5,
		})
	}
	return out
}

func collectEvents(f *FetchCoordinator, selected []domain.ScoredCandidate) []Event {
	var events []Event
	f.Run(context.Background(), domain.Topic{ID: "t1", Query: "q"}, selected, func(ev Event) {
		events = append(events, ev)
	})
	return events
}

func TestTimeoutCancelsOnlyThatCandidate(t *testing.T) {
	t.Parallel()

	fetcher := &slowFetcher{slowID: "slow", hold: 5 * time.Second}
	f := NewFetchCoordinator(FetchDeps{
		Fetcher:    fetcher,
		Normalizer: &fakeNormalizer{},
		Store:      newFakeStore(),
		Logger:     logging.New("error"),
	}, FetchOptions{Workers: 2, CandidateTimeout: 50 * time.Millisecond})

	events := collectEvents(f, scored("slow", "fast-1", "fast-2"))

	var timeouts, fetchOK, stored int
	for _, ev := range events {
		switch ev.Stage {
		case domain.StageFetch:
			if ev.Err != nil {
				var fe *domain.FetchError
				if !errors.As(ev.Err, &fe) || fe.Reason != domain.FetchTimeout {
					t.Fatalf("expected a timeout fetch error, got %v", ev.Err)
				}
				timeouts++
			} else {
				fetchOK++
			}
		case domain.StageStore:
			if ev.Err == nil {
				stored++
			}
		}
	}

	if timeouts != 1 {
		t.Fatalf("expected exactly 1 timeout, got %d", timeouts)
	}
	if fetchOK != 2 {
		t.Fatalf("siblings must not be cancelled, got %d ok", fetchOK)
	}
	if stored != 2 {
		t.Fatalf("expected 2 stored artifacts, got %d", stored)
	}
}

func TestStoreRawProducesBothArtifacts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	f := NewFetchCoordinator(FetchDeps{
		Fetcher:    &fakeFetcher{},
		Normalizer: &fakeNormalizer{},
		Store:      store,
		Logger:     logging.New("error"),
	}, FetchOptions{Workers: 1, CandidateTimeout: time.Second, StoreRaw: true})

	events := collectEvents(f, scored("c1"))

	classes := map[domain.ArtifactClass]bool{}
	for _, ev := range events {
		if ev.Stage == domain.StageStore && ev.Record != nil {
			classes[ev.Record.Class] = true
		}
	}
	if !classes[domain.ArtifactRaw] || !classes[domain.ArtifactProcessed] {
		t.Fatalf("expected raw and processed records, got %v", classes)
	}

	if _, ok := store.data["t1/c1/raw"]; !ok {
		t.Fatal("raw artifact missing from store")
	}
	if _, ok := store.data["t1/c1/processed"]; !ok {
		t.Fatal("processed artifact missing from store")
	}
}

func TestRawStoreFailureDoesNotBlockProcessed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.fail["t1/c1/raw"] = &domain.StorageError{Key: "t1/c1/raw", Reason: domain.StorageTransient, Err: errors.New("flaky")}

	f := NewFetchCoordinator(FetchDeps{
		Fetcher:    &fakeFetcher{},
		Normalizer: &fakeNormalizer{},
		Store:      store,
		Logger:     logging.New("error"),
	}, FetchOptions{Workers: 1, CandidateTimeout: time.Second, StoreRaw: true})

	events := collectEvents(f, scored("c1"))

	var storeErrs, processedOK int
	for _, ev := range events {
		if ev.Stage != domain.StageStore {
			continue
		}
		if ev.Err != nil {
			storeErrs++
		} else if ev.Record.Class == domain.ArtifactProcessed {
			processedOK++
		}
	}
	if storeErrs != 1 || processedOK != 1 {
		t.Fatalf("expected raw failure plus processed success, got errs=%d ok=%d", storeErrs, processedOK)
	}
}

func TestRecordsIndexedAcrossReruns(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	deps := FetchDeps{
		Fetcher:    &fakeFetcher{},
		Normalizer: &fakeNormalizer{},
		Store:      newFakeStore(),
		Records:    records,
		Logger:     logging.New("error"),
	}
	f := NewFetchCoordinator(deps, FetchOptions{Workers: 1, CandidateTimeout: time.Second})

	collectEvents(f, scored("c1"))

	first, ok, err := records.RecordByKey(context.Background(), "t1/c1/processed")
	if err != nil || !ok {
		t.Fatalf("expected indexed record after run: ok=%v err=%v", ok, err)
	}

	// A second run over the same candidate overwrites the index entry
	// instead of duplicating it.
	collectEvents(f, scored("c1"))

	second, ok, err := records.RecordByKey(context.Background(), "t1/c1/processed")
	if err != nil || !ok {
		t.Fatalf("expected indexed record after rerun: ok=%v err=%v", ok, err)
	}
	if second.Key != first.Key || second.CandidateID != first.CandidateID {
		t.Fatalf("rerun changed record identity: %+v vs %+v", first, second)
	}
	if len(records.recs) != 1 {
		t.Fatalf("rerun must not duplicate index entries, got %d", len(records.recs))
	}
}

func TestStreamingHandoff(t *testing.T) {
	t.Parallel()

	// With one slow fetch and enough workers, the fast candidates must reach
	// the store stage before the slow fetch resolves.
	fetcher := &slowFetcher{slowID: "slow", hold: 300 * time.Millisecond}
	f := NewFetchCoordinator(FetchDeps{
		Fetcher:    fetcher,
		Normalizer: &fakeNormalizer{},
		Store:      newFakeStore(),
		Logger:     logging.New("error"),
	}, FetchOptions{Workers: 2, CandidateTimeout: time.Second})

	var order []string
	f.Run(context.Background(), domain.Topic{ID: "t1"}, scored("slow", "fast"), func(ev Event) {
		if ev.Stage == domain.StageStore && ev.Err == nil {
			order = append(order, ev.Candidate.ID)
		}
	})

	if len(order) != 2 {
		t.Fatalf("expected 2 stored, got %v", order)
	}
	if order[0] != "fast" {
		t.Fatalf("fast candidate should stream through first, got %v", order)
	}
}
