package sched

// Counters are the operation counts published with every result. They are
// deterministic for a given task set, method and Options.
type Counters struct {
	Divisions int `json:"divisions"` // ceil/floor operations
	Outer     int `json:"outer"`     // fixed-point iterations or top-level workload queries
	Inner     int `json:"inner"`     // summation-scan visits or workload invocations
}

func (c *Counters) add(o Counters) {
	c.Divisions += o.Divisions
	c.Outer += o.Outer
	c.Inner += o.Inner
}

// TaskResult is the outcome of one method for one task.
type TaskResult struct {
	ID     int        `json:"id"`
	Status TaskStatus `json:"status"`
	// WCRT is set only when Status is Schedulable.
	WCRT int `json:"wcrt,omitempty"`
	// Exceeded is the estimate that crossed the deadline when Status is
	// Unschedulable.
	Exceeded int `json:"exceeded,omitempty"`
	Counters
}

// Analyzed reports whether the method reached this task.
func (r TaskResult) Analyzed() bool { return r.Status != NotAnalyzed }

// Result is the outcome of one method over one task set.
type Result struct {
	Method      Method       `json:"method"`
	Schedulable bool         `json:"schedulable"`
	Tasks       []TaskResult `json:"tasks"`
}

// Totals sums the counters over every analyzed task.
func (r Result) Totals() Counters {
	var c Counters
	for _, t := range r.Tasks {
		c.add(t.Counters)
	}
	return c
}

// WCRTs returns the response times of the schedulable prefix of the set.
func (r Result) WCRTs() []int {
	out := make([]int, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		if t.Status != Schedulable {
			break
		}
		out = append(out, t.WCRT)
	}
	return out
}

// Failed returns the task that made the set unschedulable, if any.
func (r Result) Failed() (TaskResult, bool) {
	for _, t := range r.Tasks {
		if t.Status == Unschedulable {
			return t, true
		}
	}
	return TaskResult{}, false
}
