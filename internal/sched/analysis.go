// internal/sched/analysis.go

package sched

import (
	"errors"
	"fmt"
	"strings"
)

var ErrDisagreement = errors.New("methods disagree on schedulability")

// analysis holds everything one method run may touch. It is created fresh
// for every run, so no method observes state left behind by another.
type analysis struct {
	tasks TaskSet
	opts  Options
	div   divider
	res   []TaskResult
}

func newAnalysis(ts TaskSet, opts Options) *analysis {
	res := make([]TaskResult, len(ts))
	for i, t := range ts {
		res[i] = TaskResult{ID: t.ID}
	}
	return &analysis{
		tasks: ts,
		opts:  opts,
		div:   divider{mode: opts.Ceil},
		res:   res,
	}
}

// ceil and floor charge one division to the task under analysis.
func (a *analysis) ceil(owner, x, y int) int {
	a.res[owner].Divisions++
	return a.div.ceil(x, y)
}

func (a *analysis) floor(owner, x, y int) int {
	a.res[owner].Divisions++
	return a.div.floor(x, y)
}

func (a *analysis) accept(i, wcrt int) {
	a.res[i].Status = Schedulable
	a.res[i].WCRT = wcrt
}

// reject marks task i as the failure point and always returns false so the
// algorithms can write `return a.reject(i, tr)`.
func (a *analysis) reject(i, estimate int) bool {
	a.res[i].Status = Unschedulable
	a.res[i].Exceeded = estimate
	return false
}

// acceptFirst handles the highest-priority task, which suffers no
// interference. The deadline comparison is not counted.
func (a *analysis) acceptFirst(wcrt int) bool {
	t := a.tasks[0]
	if t.WCET > t.Deadline {
		return a.reject(0, t.WCET)
	}
	a.accept(0, wcrt)
	return true
}

func (a *analysis) run(m Method) (bool, error) {
	switch m {
	case RTA:
		return rta(a), nil
	case RTA2:
		return rta2(a), nil
	case RTA3:
		return rta3(a), nil
	case RTA4:
		return rta4(a), nil
	case HET:
		return het(a), nil
	case HET2:
		return het2(a), nil
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownMethod, int(m))
}

// Analyze validates ts and runs one method over it.
func Analyze(ts TaskSet, m Method, opts Options) (Result, error) {
	if err := ts.Validate(opts.Capacity); err != nil {
		return Result{}, err
	}
	return analyze(ts, m, opts)
}

func analyze(ts TaskSet, m Method, opts Options) (Result, error) {
	a := newAnalysis(ts, opts)
	ok, err := a.run(m)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: m, Schedulable: ok, Tasks: a.res}, nil
}

// Checked is a task set that passed Validate for one Options value. Its
// Analyze runs only the algorithm, which keeps timings free of validation.
type Checked struct {
	tasks TaskSet
	opts  Options
}

// Check validates ts once for repeated analysis.
func Check(ts TaskSet, opts Options) (Checked, error) {
	if err := ts.Validate(opts.Capacity); err != nil {
		return Checked{}, err
	}
	return Checked{tasks: ts, opts: opts}, nil
}

// Analyze runs one method on its own scratch state.
func (c Checked) Analyze(m Method) (Result, error) {
	return analyze(c.tasks, m, c.opts)
}

// AnalyzeAll validates ts once and runs every method in order, each on its
// own scratch state.
func AnalyzeAll(ts TaskSet, methods []Method, opts Options) ([]Result, error) {
	c, err := Check(ts, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(methods))
	for _, m := range methods {
		r, err := c.Analyze(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Agree returns ErrDisagreement when the results do not share one verdict.
func Agree(results []Result) error {
	if len(results) < 2 {
		return nil
	}
	ref := results[0].Schedulable
	for _, r := range results[1:] {
		if r.Schedulable != ref {
			parts := make([]string, len(results))
			for i, r := range results {
				parts[i] = fmt.Sprintf("%s:%t", r.Method, r.Schedulable)
			}
			return fmt.Errorf("%w: %s", ErrDisagreement, strings.Join(parts, " "))
		}
	}
	return nil
}
