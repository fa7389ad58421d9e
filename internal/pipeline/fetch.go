package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

// Event is one completion message from the candidate stages. Record is set
// only for successful store operations.
type Event struct {
	Stage     domain.Stage
	Candidate domain.Candidate
	Err       error
	Record    *domain.StoredArtifactRecord
}

// FetchDeps wires the driven adapters used by the candidate stages.
type FetchDeps struct {
	Fetcher    ports.ContentFetcher
	Normalizer ports.ContentNormalizer
	Store      ports.ArtifactStore
	Records    ports.RecordRepository
	Logger     *slog.Logger
}

// FetchOptions bounds the per-topic candidate work. Workers is the sole
// admission-control knob against the upstream providers' rate limits.
type FetchOptions struct {
	Workers          int
	CandidateTimeout time.Duration
	RateLimitRPS     float64
	StoreRaw         bool
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.CandidateTimeout <= 0 {
		o.CandidateTimeout = 30 * time.Second
	}
	return o
}

// FetchCoordinator drives the fetch, convert, and store stages for the
// selected candidates of one topic. Work for the K candidates runs on a
// bounded worker pool; each stage hands completed items to the next through
// a channel, so conversion of an early-finishing fetch never waits for its
// slower siblings. Completion events flow to a single collector callback;
// workers never touch shared accumulators.
type FetchCoordinator struct {
	deps    FetchDeps
	opts    FetchOptions
	limiter *rate.Limiter
}

// NewFetchCoordinator builds the coordinator; the rate limiter, when
// enabled, is shared across all topics of the run.
func NewFetchCoordinator(deps FetchDeps, opts FetchOptions) *FetchCoordinator {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &FetchCoordinator{deps: deps, opts: opts, limiter: limiter}
}

type storeJob struct {
	processed domain.ProcessedContent
	raw       []byte
}

// Run processes the selected candidates and invokes onEvent, from the
// caller's goroutine, for every stage completion. It returns after every
// in-flight candidate has drained.
func (f *FetchCoordinator) Run(ctx context.Context, topic domain.Topic, selected []domain.ScoredCandidate, onEvent func(Event)) {
	jobs := make(chan domain.ScoredCandidate, len(selected))
	fetched := make(chan domain.FetchedContent, len(selected))
	toStore := make(chan storeJob, len(selected))
	events := make(chan Event, len(selected)*4)

	for _, sc := range selected {
		jobs <- sc
	}
	close(jobs)

	var fetchWG sync.WaitGroup
	for i := 0; i < f.opts.Workers; i++ {
		fetchWG.Add(1)
		go func() {
			defer fetchWG.Done()
			f.fetchWorker(ctx, jobs, fetched, events)
		}()
	}

	var convertWG sync.WaitGroup
	for i := 0; i < f.opts.Workers; i++ {
		convertWG.Add(1)
		go func() {
			defer convertWG.Done()
			f.convertWorker(ctx, topic, fetched, toStore, events)
		}()
	}

	var storeWG sync.WaitGroup
	for i := 0; i < f.opts.Workers; i++ {
		storeWG.Add(1)
		go func() {
			defer storeWG.Done()
			f.storeWorker(ctx, topic, toStore, events)
		}()
	}

	go func() {
		fetchWG.Wait()
		close(fetched)
		convertWG.Wait()
		close(toStore)
		storeWG.Wait()
		close(events)
	}()

	for ev := range events {
		onEvent(ev)
	}
}

// fetchWorker retrieves content with an independent per-candidate timeout.
// A timeout cancels only that candidate's request, never its siblings.
func (f *FetchCoordinator) fetchWorker(ctx context.Context, jobs <-chan domain.ScoredCandidate, out chan<- domain.FetchedContent, events chan<- Event) {
	for sc := range jobs {
		candidate := sc.Candidate

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				events <- Event{Stage: domain.StageFetch, Candidate: candidate, Err: err}
				continue
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, f.opts.CandidateTimeout)
		content, err := f.deps.Fetcher.Fetch(fetchCtx, candidate)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = &domain.FetchError{URL: candidate.URL, Reason: domain.FetchTimeout, Err: err}
			}
			f.deps.Logger.Warn("fetch failed", "candidate", candidate.ID, "url", candidate.URL, "error", err)
			events <- Event{Stage: domain.StageFetch, Candidate: candidate, Err: err}
			continue
		}

		f.deps.Logger.Debug("fetched", "candidate", candidate.ID, "kind", content.Kind, "bytes", len(content.Body))
		events <- Event{Stage: domain.StageFetch, Candidate: candidate}
		out <- content
	}
}

func (f *FetchCoordinator) convertWorker(ctx context.Context, topic domain.Topic, in <-chan domain.FetchedContent, out chan<- storeJob, events chan<- Event) {
	for content := range in {
		candidate := content.Candidate

		processed, err := f.deps.Normalizer.Normalize(ctx, topic, content)
		if err != nil {
			f.deps.Logger.Warn("normalize failed", "candidate", candidate.ID, "error", err)
			events <- Event{Stage: domain.StageConvert, Candidate: candidate, Err: err}
			continue
		}

		events <- Event{Stage: domain.StageConvert, Candidate: candidate}
		job := storeJob{processed: processed}
		if f.opts.StoreRaw {
			job.raw = content.Body
		}
		out <- job
	}
}

// storeWorker persists the processed artifact and, when enabled, the raw
// original. A raw-storage failure is recorded but does not block the
// processed write.
func (f *FetchCoordinator) storeWorker(ctx context.Context, topic domain.Topic, in <-chan storeJob, events chan<- Event) {
	for job := range in {
		candidate := job.processed.Candidate

		if job.raw != nil {
			if rec, err := f.putArtifact(ctx, topic, candidate, domain.ArtifactRaw, job.raw); err != nil {
				f.deps.Logger.Warn("store raw failed", "candidate", candidate.ID, "error", err)
				events <- Event{Stage: domain.StageStore, Candidate: candidate, Err: err}
			} else {
				events <- Event{Stage: domain.StageStore, Candidate: candidate, Record: &rec}
			}
		}

		rec, err := f.putArtifact(ctx, topic, candidate, domain.ArtifactProcessed, []byte(job.processed.Text))
		if err != nil {
			f.deps.Logger.Warn("store processed failed", "candidate", candidate.ID, "error", err)
			events <- Event{Stage: domain.StageStore, Candidate: candidate, Err: err}
			continue
		}
		events <- Event{Stage: domain.StageStore, Candidate: candidate, Record: &rec}
	}
}

func (f *FetchCoordinator) putArtifact(ctx context.Context, topic domain.Topic, candidate domain.Candidate, class domain.ArtifactClass, data []byte) (domain.StoredArtifactRecord, error) {
	key := domain.ArtifactKey(topic.ID, candidate.ID, class)

	put, err := f.deps.Store.Put(ctx, key, data)
	if err != nil {
		return domain.StoredArtifactRecord{}, err
	}

	rec := domain.StoredArtifactRecord{
		Key:         key,
		Location:    put.Location,
		Checksum:    put.Checksum,
		Size:        put.Size,
		TopicID:     topic.ID,
		CandidateID: candidate.ID,
		Class:       class,
		StoredAt:    time.Now().UTC(),
	}

	if f.deps.Records != nil {
		if prev, ok, err := f.deps.Records.RecordByKey(ctx, key); err == nil && ok && prev.Checksum != rec.Checksum {
			f.deps.Logger.Debug("artifact content changed since last run", "key", key, "previousChecksum", prev.Checksum)
		}
		if err := f.deps.Records.SaveRecord(ctx, rec); err != nil {
			// The artifact itself is durable; the index is best-effort.
			f.deps.Logger.Warn("record index update failed", "key", key, "error", err)
		}
	}
	return rec, nil
}
