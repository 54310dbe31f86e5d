package sched

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DefaultCapacity is the largest task set the analysis accepts unless
// Options.Capacity says otherwise.
const DefaultCapacity = 100

var (
	ErrEmptyTaskSet     = errors.New("empty task set")
	ErrCapacityExceeded = errors.New("task set exceeds capacity")
	ErrInvalidTask      = errors.New("invalid task")
)

// Task represents one periodic or sporadic real-time activity.
type Task struct {
	ID       int // rank in priority order, 1 is the highest priority
	WCET     int // c
	Period   int // t
	Deadline int // d, relative
}

// Slack is t - c. RTA4 divides by it instead of by the period.
func (t Task) Slack() int { return t.Period - t.WCET }

// Utilization returns c / t.
func (t Task) Utilization() float64 { return float64(t.WCET) / float64(t.Period) }

// TaskSet is ordered by priority: index 0 preempts everything after it.
type TaskSet []Task

// NewTaskSet builds a task set from (wcet, period, deadline) triples and
// assigns IDs by position.
func NewTaskSet(params ...[3]int) TaskSet {
	ts := make(TaskSet, len(params))
	for i, p := range params {
		ts[i] = Task{ID: i + 1, WCET: p[0], Period: p[1], Deadline: p[2]}
	}
	return ts
}

// Renumber resets every ID to its 1-based position.
func (ts TaskSet) Renumber() {
	for i := range ts {
		ts[i].ID = i + 1
	}
}

// Utilization is the sum of c/t over the set.
func (ts TaskSet) Utilization() float64 {
	var u float64
	for _, t := range ts {
		u += t.Utilization()
	}
	return u
}

// Validate rejects sets that no algorithm may run on. Capacity 0 means
// DefaultCapacity. Every invalid task is reported, not only the first.
func (ts TaskSet) Validate(capacity int) error {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(ts) == 0 {
		return ErrEmptyTaskSet
	}
	if len(ts) > capacity {
		return fmt.Errorf("%w: %d tasks, capacity %d", ErrCapacityExceeded, len(ts), capacity)
	}

	var result *multierror.Error
	for i, t := range ts {
		if t.WCET <= 0 {
			result = multierror.Append(result, fmt.Errorf("%w: task %d: wcet %d must be positive", ErrInvalidTask, i+1, t.WCET))
		}
		if t.Period <= 0 {
			result = multierror.Append(result, fmt.Errorf("%w: task %d: period %d must be positive", ErrInvalidTask, i+1, t.Period))
		}
		if t.Deadline <= 0 {
			result = multierror.Append(result, fmt.Errorf("%w: task %d: deadline %d must be positive", ErrInvalidTask, i+1, t.Deadline))
		}
	}
	return result.ErrorOrNil()
}
