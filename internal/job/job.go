// Package job runs the enabled analysis methods over many task sets in
// parallel and times every method.
package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"wcrt/internal/sched"
	"wcrt/internal/taskset"
)

// Job is one task set to analyse.
type Job struct {
	ID    int
	Group string
	Set   sched.TaskSet
}

// FromSets turns loaded or generated task sets into jobs.
func FromSets(sets []taskset.Set) []Job {
	jobs := make([]Job, len(sets))
	for i, s := range sets {
		jobs[i] = Job{ID: s.ID, Group: s.Group, Set: s.Tasks}
	}
	return jobs
}

// MethodRun is one method's result on a job together with its wall time.
type MethodRun struct {
	sched.Result
	Elapsed time.Duration
}

// Outcome is everything a job produced. When Err is set the task set was
// rejected and Runs is empty.
type Outcome struct {
	Job  Job
	Runs []MethodRun
	Err  error
	// Mismatch is non-nil when the methods disagree on the verdict.
	Mismatch error
}

// Schedulable reports the verdict of the first method, or false for a
// rejected set.
func (o Outcome) Schedulable() bool {
	return len(o.Runs) > 0 && o.Runs[0].Schedulable
}

// Runner analyses jobs with a fixed method list and options.
type Runner struct {
	Methods []sched.Method
	Options sched.Options
	Workers int

	watches map[sched.Method]*Stopwatch
	done    *xsync.Counter
	invalid *xsync.Counter
	mismat  *xsync.Counter
}

// NewRunner builds a runner for cfg. cfg must have been validated.
func NewRunner(cfg sched.Config) *Runner {
	r := &Runner{
		Methods: cfg.MethodList(),
		Options: cfg.Options(),
		Workers: max(1, cfg.Workers),
		watches: make(map[sched.Method]*Stopwatch),
		done:    xsync.NewCounter(),
		invalid: xsync.NewCounter(),
		mismat:  xsync.NewCounter(),
	}
	for _, m := range sched.AllMethods {
		r.watches[m] = &Stopwatch{}
	}
	return r
}

// Run analyses one job with every enabled method, sequentially.
func (r *Runner) Run(j Job) Outcome {
	out := Outcome{Job: j}
	checked, err := sched.Check(j.Set, r.Options)
	if err != nil {
		r.invalid.Inc()
		out.Err = err
		return out
	}

	results := make([]sched.Result, 0, len(r.Methods))
	for _, m := range r.Methods {
		var res sched.Result
		var err error
		elapsed := r.watch(m).Time(func() {
			res, err = checked.Analyze(m)
		})
		if err != nil {
			// validated above, so only an unknown method lands here
			out.Err = err
			r.invalid.Inc()
			return out
		}
		out.Runs = append(out.Runs, MethodRun{Result: res, Elapsed: elapsed})
		results = append(results, res)
	}

	if err := sched.Agree(results); err != nil {
		r.mismat.Inc()
		out.Mismatch = err
	}
	r.done.Inc()
	return out
}

func (r *Runner) watch(m sched.Method) *Stopwatch {
	if w, ok := r.watches[m]; ok {
		return w
	}
	return &Stopwatch{}
}

// RunAll analyses jobs on up to Workers goroutines and passes every outcome to
// emit, which must be safe for concurrent use. It stops handing out jobs once
// ctx is done.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, emit func(Outcome)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)

	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emit(r.Run(j))
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	slog.Debug("jobs finished",
		"analysed", r.done.Value(),
		"invalid", r.invalid.Value(),
		"mismatches", r.mismat.Value())
	return err
}

// Stats is a snapshot of the runner's counters.
type Stats struct {
	Analysed   int64
	Invalid    int64
	Mismatches int64
	// Mean is the mean wall time per method over every analysed set.
	Mean map[sched.Method]time.Duration
}

// Stats returns the counters accumulated so far.
func (r *Runner) Stats() Stats {
	s := Stats{
		Analysed:   r.done.Value(),
		Invalid:    r.invalid.Value(),
		Mismatches: r.mismat.Value(),
		Mean:       make(map[sched.Method]time.Duration, len(r.Methods)),
	}
	for _, m := range r.Methods {
		s.Mean[m] = r.watch(m).Mean()
	}
	return s
}
