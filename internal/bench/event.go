package bench

import (
	"time"

	"wcrt/internal/job"
)

// EventKind classifies what a finished job means for the benchmark.
type EventKind int

const (
	EventAnalysed EventKind = iota
	EventRejected
	EventMismatch
)

// Event is emitted once per finished job.
type Event struct {
	Time    time.Time
	Kind    EventKind
	Outcome job.Outcome
}

func (k EventKind) String() string {
	switch k {
	case EventAnalysed:
		return "Analysed"
	case EventRejected:
		return "Rejected"
	case EventMismatch:
		return "Mismatch"
	default:
		return "Unknown"
	}
}

func eventFor(o job.Outcome) Event {
	kind := EventAnalysed
	switch {
	case o.Err != nil:
		kind = EventRejected
	case o.Mismatch != nil:
		kind = EventMismatch
	}
	return Event{Time: time.Now(), Kind: kind, Outcome: o}
}
