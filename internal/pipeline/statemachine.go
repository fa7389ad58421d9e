package pipeline

import "fmt"

// State names one step of the per-batch control flow.
type State string

const (
	StateIdle          State = "idle"
	StateSelectTopic   State = "select_topic"
	StateSearch        State = "search"
	StateRank          State = "rank"
	StateFetch         State = "fetch"
	StateConvert       State = "convert"
	StateStore         State = "store"
	StateFinalizeTopic State = "finalize_topic"
	StateDone          State = "done"
)

// transitions lists the legal successor states. Search and Rank can jump
// straight to finalization: zero results and topic-scoped failures finish a
// topic without touching the fetch stages.
var transitions = map[State][]State{
	StateIdle:          {StateSelectTopic},
	StateSelectTopic:   {StateSearch, StateDone},
	StateSearch:        {StateRank, StateFinalizeTopic},
	StateRank:          {StateFetch, StateFinalizeTopic},
	StateFetch:         {StateConvert},
	StateConvert:       {StateStore},
	StateStore:         {StateFinalizeTopic},
	StateFinalizeTopic: {StateSelectTopic, StateDone},
	StateDone:          nil,
}

// Machine is the explicit per-run state machine. It only validates
// transitions; all actual work happens in the coordinator, which keeps the
// machine testable independent of any concurrency primitive.
type Machine struct {
	current State
}

// NewMachine starts in Idle.
func NewMachine() *Machine {
	return &Machine{current: StateIdle}
}

// Current reports the machine's position.
func (m *Machine) Current() State {
	return m.current
}

// To advances the machine, rejecting transitions the flow graph forbids.
func (m *Machine) To(next State) error {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.current, next)
}
