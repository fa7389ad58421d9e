package pipeline

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
	"ResearchHarvester/internal/report"
	"ResearchHarvester/internal/scoring"
)

// CoordinatorDeps wires all driven adapters into the orchestration pipeline.
type CoordinatorDeps struct {
	Search ports.SearchProvider
	Ranker *scoring.Ranker
	Fetch  *FetchCoordinator
	Logger *slog.Logger
}

// CoordinatorOptions holds the batch-level knobs.
type CoordinatorOptions struct {
	SearchLimit   int
	BatchDeadline time.Duration
}

// Coordinator is the orchestrating state machine. Topics run sequentially so
// their outcomes stay independently orderable in the report; candidate-level
// parallelism lives entirely inside the fetch coordinator. No failure below
// configuration level ever aborts the batch.
type Coordinator struct {
	search  ports.SearchProvider
	ranker  *scoring.Ranker
	fetch   *FetchCoordinator
	opts    CoordinatorOptions
	logger  *slog.Logger
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// NewCoordinator constructs the orchestration component.
func NewCoordinator(deps CoordinatorDeps, opts CoordinatorOptions) *Coordinator {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	return &Coordinator{
		search:  deps.Search,
		ranker:  deps.Ranker,
		fetch:   deps.Fetch,
		opts:    opts,
		logger:  deps.Logger,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Run drives every topic through search, rank, fetch, convert, and store,
// and always returns a report: success is partial-success-aware, never a
// single boolean.
func (c *Coordinator) Run(ctx context.Context, topics []domain.Topic) domain.BatchReport {
	started := c.now().UTC()
	machine := NewMachine()
	agg := report.NewAggregator()

	var admitUntil time.Time
	if c.opts.BatchDeadline > 0 {
		admitUntil = started.Add(c.opts.BatchDeadline)
	}

	batch := domain.BatchReport{
		RunID:     ulid.MustNew(ulid.Timestamp(started), c.entropy).String(),
		StartedAt: started,
		Status:    domain.BatchCompleted,
	}

	c.logger.Info("batch started", "run", batch.RunID, "topics", len(topics))

	for _, topic := range topics {
		c.transition(machine, StateSelectTopic)

		if !admitUntil.IsZero() && c.now().After(admitUntil) {
			c.logger.Warn("batch deadline exceeded, not admitting further topics",
				"run", batch.RunID, "remaining", len(topics)-len(batch.Outcomes))
			batch.Status = domain.BatchDeadlineExceeded
			break
		}

		outcome := c.runTopic(ctx, machine, topic, agg)
		batch.Outcomes = append(batch.Outcomes, outcome)

		c.logger.Info("topic finalized",
			"topic", topic.ID,
			"status", outcome.Status,
			"searched", outcome.Searched,
			"stored", outcome.Stored,
			"errors", len(outcome.Errors))
	}

	// Selecting the next topic is what discovers there is none left.
	if machine.Current() != StateSelectTopic {
		c.transition(machine, StateSelectTopic)
	}
	c.transition(machine, StateDone)

	batch.FinishedAt = c.now().UTC()
	batch.Errors = agg.Flatten()
	batch.ErrorCount = agg.Len()
	if batch.Status == domain.BatchCompleted && batch.ErrorCount > 0 {
		batch.Status = domain.BatchCompletedErrors
	}

	for stage, errs := range agg.ByStage() {
		c.logger.Warn("stage recorded errors", "run", batch.RunID, "stage", stage, "count", len(errs))
	}
	c.logger.Info("batch finished", "run", batch.RunID, "status", batch.Status, "errors", batch.ErrorCount)
	return batch
}

// runTopic executes one topic's stage sequence. Topic-scoped failures are
// recorded and the machine still advances; the batch never dies here.
func (c *Coordinator) runTopic(ctx context.Context, machine *Machine, topic domain.Topic, agg *report.Aggregator) domain.TopicOutcome {
	outcome := domain.TopicOutcome{Topic: topic}

	c.transition(machine, StateSearch)
	candidates, err := c.search.Search(ctx, topic.Query, c.opts.SearchLimit)
	if err != nil {
		c.logger.Warn("search failed", "topic", topic.ID, "error", err)
		outcome.Errors = append(outcome.Errors, agg.Record(topic.ID, domain.StageSearch, "", err))
		c.transition(machine, StateFinalizeTopic)
		outcome.Status = report.TopicStatus(outcome)
		return outcome
	}

	outcome.Searched = len(candidates)
	if len(candidates) == 0 {
		// Nothing found is a valid, empty outcome.
		c.transition(machine, StateFinalizeTopic)
		outcome.Status = report.TopicStatus(outcome)
		return outcome
	}

	c.transition(machine, StateRank)
	ranked := c.ranker.Rank(candidates, topic.Query, c.now())
	selected, rest := c.ranker.Select(ranked)
	outcome.Scored = len(ranked)
	outcome.Selected = len(selected)
	outcome.NotFetched = len(rest)

	c.transition(machine, StateFetch)

	expectedFetch := len(selected)
	fetchDone, fetchOK := 0, 0
	convertDone, convertOK := 0, 0

	advance := func() {
		if machine.Current() == StateFetch && fetchDone == expectedFetch {
			c.transition(machine, StateConvert)
		}
		if machine.Current() == StateConvert && convertDone == fetchOK {
			c.transition(machine, StateStore)
		}
	}

	c.fetch.Run(ctx, topic, selected, func(ev Event) {
		switch ev.Stage {
		case domain.StageFetch:
			fetchDone++
			if ev.Err == nil {
				fetchOK++
				outcome.Fetched++
			} else {
				outcome.Errors = append(outcome.Errors, agg.Record(topic.ID, ev.Stage, ev.Candidate.ID, ev.Err))
			}
		case domain.StageConvert:
			convertDone++
			if ev.Err == nil {
				convertOK++
				outcome.Converted++
			} else {
				outcome.Errors = append(outcome.Errors, agg.Record(topic.ID, ev.Stage, ev.Candidate.ID, ev.Err))
			}
		case domain.StageStore:
			if ev.Err != nil {
				outcome.Errors = append(outcome.Errors, agg.Record(topic.ID, ev.Stage, ev.Candidate.ID, ev.Err))
				break
			}
			outcome.Records = append(outcome.Records, *ev.Record)
			if ev.Record.Class == domain.ArtifactProcessed {
				outcome.Stored++
			}
		}
		advance()
	})

	// With at least one selected candidate the event stream always carries
	// the machine through convert and store before draining.
	c.transition(machine, StateFinalizeTopic)

	// Completion order is worker-dependent; the sealed record set is not.
	sort.Slice(outcome.Records, func(i, j int) bool {
		return outcome.Records[i].Key < outcome.Records[j].Key
	})

	outcome.Status = report.TopicStatus(outcome)
	return outcome
}

// transition advances the machine; a refused transition is a flow-graph bug,
// logged loudly but never allowed to kill the batch.
func (c *Coordinator) transition(machine *Machine, next State) {
	if err := machine.To(next); err != nil {
		c.logger.Error("state machine violation", "error", err)
	}
}
